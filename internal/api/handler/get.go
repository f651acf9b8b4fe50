package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/graphcap/batchqueue/internal/api/response"
	"github.com/graphcap/batchqueue/pkg/models"
)

// JobGetter defines the interface the get handler depends on.
type JobGetter interface {
	Get(ctx context.Context, jobID uuid.UUID, includeItems bool) (*models.Job, []*models.JobItem, error)
}

// NewGetHandler returns an http.HandlerFunc for GET /api/v1/queue/jobs/{jobID}.
func NewGetHandler(svc JobGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
			return
		}

		includeItems := r.URL.Query().Get("include_items") == "true"

		job, items, err := svc.Get(r.Context(), jobID, includeItems)
		if err != nil {
			writeError(w, err)
			return
		}

		resp := jobStatusResponse{Job: job}
		if includeItems {
			if items == nil {
				items = []*models.JobItem{}
			}
			resp.Items = items
		}
		response.JSON(w, resp)
	}
}

type jobStatusResponse struct {
	Job   *models.Job       `json:"job"`
	Items []*models.JobItem `json:"items,omitempty"`
}
