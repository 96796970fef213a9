package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// parseDateOrToday parses a YYYY-MM-DD value, defaulting to today's UTC date
// when empty.
func parseDateOrToday(value string) (time.Time, error) {
	if value == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse("2006-01-02", value)
}

// dateParam returns the {date} URL parameter.
func dateParam(r *http.Request) string {
	return chi.URLParam(r, "date")
}
