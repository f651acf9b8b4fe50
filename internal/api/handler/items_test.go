package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/graphcap/batchqueue/internal/store"
	"github.com/graphcap/batchqueue/pkg/models"
)

type mockClaimer struct {
	fn func(workerID string) (*models.JobItem, error)
}

func (m *mockClaimer) ClaimItem(_ context.Context, workerID string) (*models.JobItem, error) {
	return m.fn(workerID)
}

type mockCompleter struct {
	fn func(itemID int64, succeeded bool, itemErr *string) (*models.Job, error)
}

func (m *mockCompleter) CompleteItem(_ context.Context, itemID int64, succeeded bool, itemErr *string) (*models.Job, error) {
	return m.fn(itemID, succeeded, itemErr)
}

// --- claim ---

func TestClaimHandler_Success(t *testing.T) {
	jobID := uuid.New()
	mock := &mockClaimer{fn: func(workerID string) (*models.JobItem, error) {
		if workerID != "worker-1" {
			t.Errorf("unexpected workerID: %q", workerID)
		}
		return &models.JobItem{
			ID:          42,
			JobID:       jobID,
			ImagePath:   "a.jpg",
			Perspective: "art_critic",
			Status:      models.ItemStatusRunning,
		}, nil
	}}

	h := NewClaimHandler(mock)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postJSON(t, "/api/v1/queue/items/claim", map[string]any{
		"workerId": "worker-1",
	}))

	data := parseData(t, rec, http.StatusOK)
	if data["id"] != float64(42) {
		t.Errorf("unexpected id: %v", data["id"])
	}
	if data["imagePath"] != "a.jpg" || data["perspective"] != "art_critic" {
		t.Errorf("unexpected item payload: %v", data)
	}
}

func TestClaimHandler_NoItemAvailable(t *testing.T) {
	mock := &mockClaimer{fn: func(string) (*models.JobItem, error) {
		return nil, store.ErrNoItemAvailable
	}}

	h := NewClaimHandler(mock)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postJSON(t, "/api/v1/queue/items/claim", map[string]any{
		"workerId": "worker-1",
	}))

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rec.Body.String())
	}
}

func TestClaimHandler_MissingWorkerID(t *testing.T) {
	h := NewClaimHandler(&mockClaimer{fn: nil})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postJSON(t, "/api/v1/queue/items/claim", map[string]any{}))

	status, code := parseErr(t, rec)
	if status != http.StatusBadRequest || code != "INVALID_REQUEST" {
		t.Errorf("expected 400 INVALID_REQUEST, got %d %s", status, code)
	}
}

// --- complete ---

func TestCompleteHandler_Success(t *testing.T) {
	jobID := uuid.New()
	var gotItemID int64
	var gotSucceeded bool
	mock := &mockCompleter{fn: func(itemID int64, succeeded bool, itemErr *string) (*models.Job, error) {
		gotItemID = itemID
		gotSucceeded = succeeded
		if itemErr != nil {
			t.Errorf("unexpected item error: %v", *itemErr)
		}
		return &models.Job{
			JobID:           jobID,
			Status:          models.JobStatusRunning,
			ProcessedImages: 3,
			FailedImages:    1,
			Progress:        50,
		}, nil
	}}

	h := routed(http.MethodPost, "/api/v1/queue/items/{itemID}/complete", NewCompleteHandler(mock))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postJSON(t, "/api/v1/queue/items/42/complete", map[string]any{
		"succeeded": true,
	}))

	data := parseData(t, rec, http.StatusOK)
	if gotItemID != 42 || !gotSucceeded {
		t.Errorf("unexpected call: itemID=%d succeeded=%v", gotItemID, gotSucceeded)
	}
	if data["jobStatus"] != models.JobStatusRunning {
		t.Errorf("unexpected jobStatus: %v", data["jobStatus"])
	}
	if data["processedImages"] != float64(3) || data["failedImages"] != float64(1) || data["progress"] != float64(50) {
		t.Errorf("unexpected counters: %v", data)
	}
}

func TestCompleteHandler_ForwardsFailure(t *testing.T) {
	var gotErr *string
	mock := &mockCompleter{fn: func(_ int64, succeeded bool, itemErr *string) (*models.Job, error) {
		if succeeded {
			t.Error("expected succeeded=false")
		}
		gotErr = itemErr
		return &models.Job{JobID: uuid.New(), Status: models.JobStatusRunning}, nil
	}}

	h := routed(http.MethodPost, "/api/v1/queue/items/{itemID}/complete", NewCompleteHandler(mock))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postJSON(t, "/api/v1/queue/items/7/complete", map[string]any{
		"succeeded": false,
		"error":     "caption generation timed out",
	}))

	parseData(t, rec, http.StatusOK)
	if gotErr == nil || *gotErr != "caption generation timed out" {
		t.Errorf("unexpected error payload: %v", gotErr)
	}
}

func TestCompleteHandler_NotRunningConflict(t *testing.T) {
	mock := &mockCompleter{fn: func(int64, bool, *string) (*models.Job, error) {
		return nil, store.ErrItemNotRunning
	}}

	h := routed(http.MethodPost, "/api/v1/queue/items/{itemID}/complete", NewCompleteHandler(mock))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postJSON(t, "/api/v1/queue/items/7/complete", map[string]any{
		"succeeded": true,
	}))

	status, code := parseErr(t, rec)
	if status != http.StatusConflict || code != "ITEM_NOT_RUNNING" {
		t.Errorf("expected 409 ITEM_NOT_RUNNING, got %d %s", status, code)
	}
}

func TestCompleteHandler_BadItemID(t *testing.T) {
	h := routed(http.MethodPost, "/api/v1/queue/items/{itemID}/complete", NewCompleteHandler(&mockCompleter{fn: nil}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postJSON(t, "/api/v1/queue/items/nope/complete", map[string]any{
		"succeeded": true,
	}))

	status, code := parseErr(t, rec)
	if status != http.StatusBadRequest || code != "INVALID_REQUEST" {
		t.Errorf("expected 400 INVALID_REQUEST, got %d %s", status, code)
	}
}
