package handler

import (
	"errors"
	"net/http"

	"github.com/graphcap/batchqueue/internal/api/response"
	"github.com/graphcap/batchqueue/internal/queue"
	"github.com/graphcap/batchqueue/internal/store"
)

// writeError maps queue/store errors onto the API error taxonomy: validation
// failures, unknown jobs, and state conflicts each get a distinct code so
// callers can tell "your input is malformed" from "nothing to do right now".
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrValidation):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
	case errors.Is(err, store.ErrJobTerminal):
		response.Error(w, http.StatusConflict, "JOB_TERMINAL",
			"Job is already in a terminal status", nil)
	case errors.Is(err, store.ErrItemNotRunning):
		response.Error(w, http.StatusConflict, "ITEM_NOT_RUNNING",
			"Item does not exist or is not running", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
