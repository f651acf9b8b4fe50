package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/graphcap/batchqueue/internal/api/response"
	"github.com/graphcap/batchqueue/pkg/models"
)

// ItemCompleter defines the interface the complete handler depends on.
type ItemCompleter interface {
	CompleteItem(ctx context.Context, itemID int64, succeeded bool, itemErr *string) (*models.Job, error)
}

// NewCompleteHandler returns an http.HandlerFunc for
// POST /api/v1/queue/items/{itemID}/complete.
func NewCompleteHandler(svc ItemCompleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "itemID must be an integer", nil)
			return
		}

		var req struct {
			Succeeded bool    `json:"succeeded"`
			Error     *string `json:"error"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		job, err := svc.CompleteItem(r.Context(), itemID, req.Succeeded, req.Error)
		if err != nil {
			writeError(w, err)
			return
		}

		response.JSON(w, completeResponse{
			JobID:           job.JobID.String(),
			JobStatus:       job.Status,
			ProcessedImages: job.ProcessedImages,
			FailedImages:    job.FailedImages,
			Progress:        job.Progress,
		})
	}
}

type completeResponse struct {
	JobID           string `json:"jobId"`
	JobStatus       string `json:"jobStatus"`
	ProcessedImages int    `json:"processedImages"`
	FailedImages    int    `json:"failedImages"`
	Progress        int    `json:"progress"`
}
