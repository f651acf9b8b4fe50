package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/graphcap/batchqueue/internal/api/response"
	"github.com/graphcap/batchqueue/internal/queue"
)

// Submitter defines the interface the submit handler depends on.
type Submitter interface {
	Submit(ctx context.Context, params queue.SubmitParams) (*queue.SubmitResult, error)
}

// NewSubmitHandler returns an http.HandlerFunc for POST /api/v1/queue/jobs.
func NewSubmitHandler(svc Submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Type         string         `json:"type"`
			Images       []string       `json:"images"`
			Perspectives []string       `json:"perspectives"`
			Priority     *int           `json:"priority"`
			Options      map[string]any `json:"options"`
			DependsOn    []string       `json:"dependsOn"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		dependsOn := make([]uuid.UUID, 0, len(req.DependsOn))
		for _, raw := range req.DependsOn {
			id, err := uuid.Parse(raw)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"dependsOn entries must be valid job UUIDs", nil)
				return
			}
			dependsOn = append(dependsOn, id)
		}

		result, err := svc.Submit(r.Context(), queue.SubmitParams{
			Type:         req.Type,
			Images:       req.Images,
			Perspectives: req.Perspectives,
			Priority:     req.Priority,
			Options:      req.Options,
			DependsOn:    dependsOn,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		response.Created(w, submitResponse{
			JobID:         result.JobID.String(),
			Status:        result.Status,
			CreatedAt:     result.CreatedAt.UTC().Format(time.RFC3339),
			QueuePosition: result.QueuePosition,
		})
	}
}

type submitResponse struct {
	JobID         string `json:"jobId"`
	Status        string `json:"status"`
	CreatedAt     string `json:"createdAt"`
	QueuePosition int    `json:"queuePosition"`
}
