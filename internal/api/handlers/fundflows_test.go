package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmertens/fund-accounting-engine/internal/api/handlers"
	"github.com/jmertens/fund-accounting-engine/internal/api/request"
	"github.com/jmertens/fund-accounting-engine/internal/model"
	"github.com/jmertens/fund-accounting-engine/internal/testutil"
)

func TestFundFlowHandler_Submit(t *testing.T) {
	t.Run("creates a pending request", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewFundFlowHandler(
			testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig()))
		investor := testutil.NewInvestor().Build(t, db)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/fund-flow/", request.SubmitFundFlowRequest{
			InvestorID:    investor.ID,
			FlowType:      "contribution",
			Amount:        "5000",
			EffectiveDate: "2026-01-02",
		}, nil)
		w := httptest.NewRecorder()

		handler.Submit(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
		}

		var response model.FundFlowRequest
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if response.Status != model.FlowStatusPending {
			t.Errorf("Expected pending status, got %s", response.Status)
		}
		if got := response.RequestedAmount.String(); got != "5000" {
			t.Errorf("Expected amount 5000, got %s", got)
		}
	})

	t.Run("returns 400 on a malformed amount", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewFundFlowHandler(
			testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig()))
		investor := testutil.NewInvestor().Build(t, db)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/fund-flow/", request.SubmitFundFlowRequest{
			InvestorID: investor.ID,
			FlowType:   "contribution",
			Amount:     "lots",
		}, nil)
		w := httptest.NewRecorder()

		handler.Submit(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("returns 404 for an unknown investor", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewFundFlowHandler(
			testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig()))

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/fund-flow/", request.SubmitFundFlowRequest{
			InvestorID: testutil.MakeID(),
			FlowType:   "contribution",
			Amount:     "5000",
		}, nil)
		w := httptest.NewRecorder()

		handler.Submit(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})
}

func TestFundFlowHandler_Transitions(t *testing.T) {
	t.Run("approve moves a pending request forward", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewFundFlowHandler(
			testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig()))
		investor := testutil.NewInvestor().Build(t, db)
		flow := testutil.NewFundFlow(investor.ID).Build(t, db)

		req := testutil.NewRequestWithURLParams(http.MethodPost,
			"/api/fund-flow/"+flow.ID+"/approve", map[string]string{"uuid": flow.ID})
		w := httptest.NewRecorder()

		handler.Approve(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		var response model.FundFlowRequest
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if response.Status != model.FlowStatusApproved {
			t.Errorf("Expected approved status, got %s", response.Status)
		}
	})

	t.Run("an invalid transition returns 409", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewFundFlowHandler(
			testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig()))
		investor := testutil.NewInvestor().Build(t, db)
		flow := testutil.NewFundFlow(investor.ID).
			WithStatus(model.FlowStatusRejected).Build(t, db)

		req := testutil.NewRequestWithURLParams(http.MethodPost,
			"/api/fund-flow/"+flow.ID+"/approve", map[string]string{"uuid": flow.ID})
		w := httptest.NewRecorder()

		handler.Approve(w, req)

		if w.Code != http.StatusConflict {
			t.Errorf("Expected status 409, got %d", w.Code)
		}
	})

	t.Run("returns 404 for an unknown request", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewFundFlowHandler(
			testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig()))

		id := testutil.MakeID()
		req := testutil.NewRequestWithURLParams(http.MethodPost,
			"/api/fund-flow/"+id+"/approve", map[string]string{"uuid": id})
		w := httptest.NewRecorder()

		handler.Approve(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})
}

func TestFundFlowHandler_Match(t *testing.T) {
	t.Run("binds the request to a raw transaction", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewFundFlowHandler(
			testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig()))
		investor := testutil.NewInvestor().Build(t, db)
		raw := testutil.NewRawTransaction().Build(t, db)
		flow := testutil.NewFundFlow(investor.ID).
			WithStatus(model.FlowStatusAwaitingFunds).Build(t, db)

		req := testutil.NewJSONRequest(t, http.MethodPost,
			"/api/fund-flow/"+flow.ID+"/match",
			request.MatchFundFlowRequest{RawTransactionID: raw.ID},
			map[string]string{"uuid": flow.ID})
		w := httptest.NewRecorder()

		handler.Match(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		var response model.FundFlowRequest
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if response.MatchedRawID != raw.ID {
			t.Errorf("Expected matched raw %s, got %s", raw.ID, response.MatchedRawID)
		}
	})

	t.Run("a second request for the same raw transaction returns 409", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ffs := testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig())
		handler := handlers.NewFundFlowHandler(ffs)
		investor := testutil.NewInvestor().Build(t, db)
		raw := testutil.NewRawTransaction().Build(t, db)
		first := testutil.NewFundFlow(investor.ID).
			WithStatus(model.FlowStatusAwaitingFunds).Build(t, db)
		second := testutil.NewFundFlow(investor.ID).
			WithStatus(model.FlowStatusAwaitingFunds).Build(t, db)

		if _, err := ffs.Match(context.Background(), first.ID, raw.ID); err != nil {
			t.Fatalf("Match failed: %v", err)
		}

		req := testutil.NewJSONRequest(t, http.MethodPost,
			"/api/fund-flow/"+second.ID+"/match",
			request.MatchFundFlowRequest{RawTransactionID: raw.ID},
			map[string]string{"uuid": second.ID})
		w := httptest.NewRecorder()

		handler.Match(w, req)

		if w.Code != http.StatusConflict {
			t.Errorf("Expected status 409, got %d", w.Code)
		}
	})
}

func TestFundFlowHandler_Process(t *testing.T) {
	t.Run("settles a matched withdrawal", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ffs := testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig())
		handler := handlers.NewFundFlowHandler(ffs)
		investor := testutil.NewInvestor().WithShares("14750", "15000").Build(t, db)
		testutil.NewNavRecord().WithDate("2026-02-10").WithNavPerShare("1.2864").Build(t, db)
		raw := testutil.NewRawTransaction().WithDate("2026-02-10").WithAmount("-1000").Build(t, db)
		flow := testutil.NewFundFlow(investor.ID).Withdrawal("1000").
			WithStatus(model.FlowStatusAwaitingFunds).Build(t, db)

		if _, err := ffs.Match(context.Background(), flow.ID, raw.ID); err != nil {
			t.Fatalf("Match failed: %v", err)
		}

		req := testutil.NewRequestWithURLParams(http.MethodPost,
			"/api/fund-flow/"+flow.ID+"/process", map[string]string{"uuid": flow.ID})
		w := httptest.NewRecorder()

		handler.Process(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		var response model.FundFlowRequest
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if got := response.NetProceeds.String(); got != "922.5" {
			t.Errorf("Expected net proceeds 922.5, got %s", got)
		}
	})

	t.Run("an overdrawn withdrawal returns 422", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		ffs := testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig())
		handler := handlers.NewFundFlowHandler(ffs)
		investor := testutil.NewInvestor().WithShares("50", "5000").Build(t, db)
		testutil.NewNavRecord().Build(t, db)
		raw := testutil.NewRawTransaction().WithAmount("-6000").Build(t, db)
		flow := testutil.NewFundFlow(investor.ID).Withdrawal("6000").
			WithStatus(model.FlowStatusAwaitingFunds).Build(t, db)

		if _, err := ffs.Match(context.Background(), flow.ID, raw.ID); err != nil {
			t.Fatalf("Match failed: %v", err)
		}

		req := testutil.NewRequestWithURLParams(http.MethodPost,
			"/api/fund-flow/"+flow.ID+"/process", map[string]string{"uuid": flow.ID})
		w := httptest.NewRecorder()

		handler.Process(w, req)

		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("Expected status 422, got %d", w.Code)
		}
	})
}

func TestFundFlowHandler_ListByStatus(t *testing.T) {
	t.Run("requires the status parameter", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewFundFlowHandler(
			testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig()))

		req := httptest.NewRequest(http.MethodGet, "/api/fund-flow/", nil)
		w := httptest.NewRecorder()

		handler.ListByStatus(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("filters by status", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewFundFlowHandler(
			testutil.NewTestFundFlowService(t, db, testutil.WithholdingTaxConfig()))
		investor := testutil.NewInvestor().Build(t, db)
		testutil.NewFundFlow(investor.ID).Build(t, db)
		testutil.NewFundFlow(investor.ID).WithStatus(model.FlowStatusApproved).Build(t, db)

		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/fund-flow/",
			map[string]string{"status": "pending"})
		w := httptest.NewRecorder()

		handler.ListByStatus(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var response []model.FundFlowRequest
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if len(response) != 1 {
			t.Errorf("Expected 1 pending request, got %d", len(response))
		}
	})
}
