package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/graphcap/batchqueue/internal/api/response"
	"github.com/graphcap/batchqueue/pkg/models"
)

// JobCanceller defines the interface the cancel handler depends on.
type JobCanceller interface {
	Cancel(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
}

// NewCancelHandler returns an http.HandlerFunc for
// POST /api/v1/queue/jobs/{jobID}/cancel.
func NewCancelHandler(svc JobCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
			return
		}

		job, err := svc.Cancel(r.Context(), jobID)
		if err != nil {
			writeError(w, err)
			return
		}

		response.JSON(w, cancelResponse{
			Success: true,
			JobID:   job.JobID.String(),
			Status:  job.Status,
		})
	}
}

type cancelResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId"`
	Status  string `json:"status"`
}
