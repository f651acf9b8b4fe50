package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/graphcap/batchqueue/internal/api/response"
)

// JobReorderer defines the interface the reorder handler depends on.
type JobReorderer interface {
	Reorder(ctx context.Context, jobIDs []uuid.UUID) (int, error)
}

// NewReorderHandler returns an http.HandlerFunc for POST /api/v1/queue/reorder.
// Index 0 in the request body is the highest priority.
func NewReorderHandler(svc JobReorderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			JobIDs []string `json:"jobIds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		jobIDs := make([]uuid.UUID, 0, len(req.JobIDs))
		for _, raw := range req.JobIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"jobIds entries must be valid UUIDs", nil)
				return
			}
			jobIDs = append(jobIDs, id)
		}

		updated, err := svc.Reorder(r.Context(), jobIDs)
		if err != nil {
			writeError(w, err)
			return
		}

		response.JSON(w, reorderResponse{
			Success: true,
			Updated: updated,
		})
	}
}

type reorderResponse struct {
	Success bool `json:"success"`
	Updated int  `json:"updatedCount"`
}
