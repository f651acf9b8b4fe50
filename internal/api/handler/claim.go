package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/graphcap/batchqueue/internal/api/response"
	"github.com/graphcap/batchqueue/internal/store"
	"github.com/graphcap/batchqueue/pkg/models"
)

// ItemClaimer defines the interface the claim handler depends on.
type ItemClaimer interface {
	ClaimItem(ctx context.Context, workerID string) (*models.JobItem, error)
}

// NewClaimHandler returns an http.HandlerFunc for
// POST /api/v1/queue/items/claim. A 204 means no item is currently
// dispatchable; workers should back off and retry.
func NewClaimHandler(svc ItemClaimer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			WorkerID string `json:"workerId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.WorkerID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "workerId is required", nil)
			return
		}

		item, err := svc.ClaimItem(r.Context(), req.WorkerID)
		if errors.Is(err, store.ErrNoItemAvailable) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}

		response.JSON(w, item)
	}
}
