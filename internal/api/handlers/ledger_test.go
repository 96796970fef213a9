package handlers_test

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmertens/fund-accounting-engine/internal/api/handlers"
	"github.com/jmertens/fund-accounting-engine/internal/api/request"
	"github.com/jmertens/fund-accounting-engine/internal/brokerage"
	"github.com/jmertens/fund-accounting-engine/internal/model"
	"github.com/jmertens/fund-accounting-engine/internal/repository"
	"github.com/jmertens/fund-accounting-engine/internal/service"
	"github.com/jmertens/fund-accounting-engine/internal/testutil"
)

func newLedgerHandler(t *testing.T, db *sql.DB) *handlers.LedgerHandler {
	t.Helper()
	navService := service.NewNavService(
		repository.NewNavRepository(db),
		repository.NewInvestorRepository(db),
		brokerage.NewRegistry(),
		"ibkr",
		testutil.SilentLogger(),
	)
	return handlers.NewLedgerHandler(
		testutil.NewTestLedgerService(t, db, testutil.WithholdingTaxConfig()),
		navService,
	)
}

func postEntry(t *testing.T, handler *handlers.LedgerHandler, body request.PostLedgerEntryRequest) model.LedgerEntry {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/ledger", body, nil)
	w := httptest.NewRecorder()
	handler.Post(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var entry model.LedgerEntry
	if err := json.NewDecoder(w.Body).Decode(&entry); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return entry
}

func TestLedgerHandler_Post(t *testing.T) {
	t.Run("posts a contribution at an explicit nav", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newLedgerHandler(t, db)
		investor := testutil.NewInvestor().Build(t, db)

		entry := postEntry(t, handler, request.PostLedgerEntryRequest{
			InvestorID:  investor.ID,
			Kind:        model.EntryContribution,
			Amount:      "5000",
			NavPerShare: "100",
			Date:        "2026-01-05",
		})

		if got := entry.SharesTransacted.String(); got != "50" {
			t.Errorf("Expected 50 shares transacted, got %s", got)
		}
		if entry.Kind != model.EntryContribution {
			t.Errorf("Expected contribution kind, got %s", entry.Kind)
		}
	})

	t.Run("defaults to the nav in force on the entry date", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newLedgerHandler(t, db)
		investor := testutil.NewInvestor().Build(t, db)
		testutil.NewNavRecord().Build(t, db)

		entry := postEntry(t, handler, request.PostLedgerEntryRequest{
			InvestorID: investor.ID,
			Kind:       model.EntryContribution,
			Amount:     "5000",
			Date:       "2026-01-05",
		})

		if got := entry.NavPerShare.String(); got != "100" {
			t.Errorf("Expected nav 100, got %s", got)
		}
		if got := entry.SharesTransacted.String(); got != "50" {
			t.Errorf("Expected 50 shares transacted, got %s", got)
		}
	})

	t.Run("returns 422 when no nav has been published", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newLedgerHandler(t, db)
		investor := testutil.NewInvestor().Build(t, db)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/ledger", request.PostLedgerEntryRequest{
			InvestorID: investor.ID,
			Kind:       model.EntryContribution,
			Amount:     "5000",
			Date:       "2026-01-05",
		}, nil)
		w := httptest.NewRecorder()

		handler.Post(w, req)

		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("Expected status 422, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("returns 422 when a withdrawal exceeds the position", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newLedgerHandler(t, db)
		investor := testutil.NewInvestor().WithShares("50", "5000").Build(t, db)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/ledger", request.PostLedgerEntryRequest{
			InvestorID:  investor.ID,
			Kind:        model.EntryWithdrawal,
			Amount:      "6000",
			NavPerShare: "100",
			Date:        "2026-01-05",
		}, nil)
		w := httptest.NewRecorder()

		handler.Post(w, req)

		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("Expected status 422, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("returns 400 on a validation failure", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newLedgerHandler(t, db)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/ledger", request.PostLedgerEntryRequest{
			InvestorID: testutil.MakeID(),
			Kind:       "adjustment",
			Amount:     "5000",
		}, nil)
		w := httptest.NewRecorder()

		handler.Post(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})
}

func TestLedgerHandler_Get(t *testing.T) {
	t.Run("returns a posted entry", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newLedgerHandler(t, db)
		investor := testutil.NewInvestor().Build(t, db)
		posted := postEntry(t, handler, request.PostLedgerEntryRequest{
			InvestorID:  investor.ID,
			Kind:        model.EntryContribution,
			Amount:      "5000",
			NavPerShare: "100",
			Date:        "2026-01-05",
		})

		req := testutil.NewRequestWithURLParams(http.MethodGet, "/api/ledger/"+posted.ID,
			map[string]string{"uuid": posted.ID})
		w := httptest.NewRecorder()

		handler.Get(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		var entry model.LedgerEntry
		if err := json.NewDecoder(w.Body).Decode(&entry); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if entry.ID != posted.ID {
			t.Errorf("Expected entry %s, got %s", posted.ID, entry.ID)
		}
	})

	t.Run("returns 404 for an unknown entry", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newLedgerHandler(t, db)

		missing := testutil.MakeID()
		req := testutil.NewRequestWithURLParams(http.MethodGet, "/api/ledger/"+missing,
			map[string]string{"uuid": missing})
		w := httptest.NewRecorder()

		handler.Get(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})
}

func TestLedgerHandler_Reverse(t *testing.T) {
	t.Run("posts the negating counterpart", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newLedgerHandler(t, db)
		investor := testutil.NewInvestor().Build(t, db)
		posted := postEntry(t, handler, request.PostLedgerEntryRequest{
			InvestorID:  investor.ID,
			Kind:        model.EntryContribution,
			Amount:      "5000",
			NavPerShare: "100",
			Date:        "2026-01-05",
		})

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/ledger/"+posted.ID+"/reverse",
			request.ReverseLedgerEntryRequest{Date: "2026-01-06"},
			map[string]string{"uuid": posted.ID})
		w := httptest.NewRecorder()

		handler.Reverse(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
		}
		var reversal model.LedgerEntry
		if err := json.NewDecoder(w.Body).Decode(&reversal); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if reversal.ReversalOf != posted.ID {
			t.Errorf("Expected reversalOf %s, got %s", posted.ID, reversal.ReversalOf)
		}
		if got := reversal.SharesTransacted.String(); got != "-50" {
			t.Errorf("Expected -50 shares transacted, got %s", got)
		}
	})

	t.Run("returns 409 when reversing a reversal", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newLedgerHandler(t, db)
		investor := testutil.NewInvestor().Build(t, db)
		posted := postEntry(t, handler, request.PostLedgerEntryRequest{
			InvestorID:  investor.ID,
			Kind:        model.EntryContribution,
			Amount:      "5000",
			NavPerShare: "100",
			Date:        "2026-01-05",
		})

		first := testutil.NewJSONRequest(t, http.MethodPost, "/api/ledger/"+posted.ID+"/reverse",
			request.ReverseLedgerEntryRequest{}, map[string]string{"uuid": posted.ID})
		firstW := httptest.NewRecorder()
		handler.Reverse(firstW, first)
		if firstW.Code != http.StatusCreated {
			t.Fatalf("Expected status 201 on first reversal, got %d", firstW.Code)
		}
		var reversal model.LedgerEntry
		if err := json.NewDecoder(firstW.Body).Decode(&reversal); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/ledger/"+reversal.ID+"/reverse",
			request.ReverseLedgerEntryRequest{}, map[string]string{"uuid": reversal.ID})
		w := httptest.NewRecorder()

		handler.Reverse(w, req)

		if w.Code != http.StatusConflict {
			t.Errorf("Expected status 409, got %d: %s", w.Code, w.Body.String())
		}
	})
}
