package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/graphcap/batchqueue/internal/api/response"
	"github.com/graphcap/batchqueue/internal/store"
	"github.com/graphcap/batchqueue/pkg/models"
)

// JobLister defines the interface the list handler depends on.
type JobLister interface {
	List(ctx context.Context, filter store.JobFilter) ([]*models.Job, int, error)
}

// NewListHandler returns an http.HandlerFunc for GET /api/v1/queue/jobs.
func NewListHandler(svc JobLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		limit := 20
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be an integer", nil)
				return
			}
			limit = n
		}

		offset := 0
		if v := q.Get("offset"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "offset must be an integer", nil)
				return
			}
			offset = n
		}

		filter := store.JobFilter{
			Status:          q.Get("status"),
			IncludeArchived: q.Get("include_archived") == "true",
			Limit:           limit,
			Offset:          offset,
		}

		jobs, total, err := svc.List(r.Context(), filter)
		if err != nil {
			writeError(w, err)
			return
		}

		if jobs == nil {
			jobs = []*models.Job{}
		}
		response.Collection(w, jobs, response.PaginationMeta{
			Limit:  filter.Limit,
			Offset: filter.Offset,
			Total:  total,
		})
	}
}
