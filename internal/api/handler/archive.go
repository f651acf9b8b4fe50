package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/graphcap/batchqueue/internal/api/response"
)

// JobArchiver defines the interface the archive handler depends on.
type JobArchiver interface {
	SetArchived(ctx context.Context, jobID uuid.UUID, archived bool) error
}

// NewArchiveHandler returns an http.HandlerFunc for
// POST /api/v1/queue/jobs/{jobID}/archive. An optional body
// {"archived": false} restores an archived job.
func NewArchiveHandler(svc JobArchiver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
			return
		}

		archived := true
		if r.ContentLength > 0 {
			var req struct {
				Archived *bool `json:"archived"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
				return
			}
			if req.Archived != nil {
				archived = *req.Archived
			}
		}

		if err := svc.SetArchived(r.Context(), jobID, archived); err != nil {
			writeError(w, err)
			return
		}

		response.JSON(w, map[string]any{
			"success":  true,
			"jobId":    jobID.String(),
			"archived": archived,
		})
	}
}
