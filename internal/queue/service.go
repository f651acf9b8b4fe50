package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/graphcap/batchqueue/internal/cache"
	"github.com/graphcap/batchqueue/internal/store"
	"github.com/graphcap/batchqueue/pkg/models"
)

// ErrValidation marks client-input errors. Handlers map it to a 400.
var ErrValidation = fmt.Errorf("validation error")

// statusCacheTTL bounds how long a cached job status can go stale after the
// queue stops touching a job.
const statusCacheTTL = 30 * time.Minute

// Service coordinates the batch perspective queue: it validates and expands
// submissions, exposes the worker claim/complete contract, and mirrors job
// status transitions into the cache.
type Service struct {
	store store.Store
	cache cache.Cache
}

// NewService creates a new queue Service.
func NewService(st store.Store, ca cache.Cache) *Service {
	return &Service{store: st, cache: ca}
}

// SubmitParams is a validated-on-entry job submission request.
type SubmitParams struct {
	Type         string
	Images       []string
	Perspectives []string
	Priority     *int
	Options      map[string]any
	DependsOn    []uuid.UUID
}

// SubmitResult is returned to the caller after a successful submission.
// QueuePosition is computed against the listing order at creation time and is
// informational only.
type SubmitResult struct {
	JobID         uuid.UUID
	Status        string
	CreatedAt     time.Time
	QueuePosition int
}

// Submit validates the request, expands the image × perspective cross-product
// into items, and creates the job, its items, and its dependency edges in one
// transaction.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (*SubmitResult, error) {
	if !models.ValidJobTypes[params.Type] {
		return nil, fmt.Errorf("%w: unknown job type %q", ErrValidation, params.Type)
	}
	if len(params.Images) == 0 {
		return nil, fmt.Errorf("%w: at least one image is required", ErrValidation)
	}
	if len(params.Perspectives) == 0 {
		return nil, fmt.Errorf("%w: at least one perspective is required", ErrValidation)
	}

	dependsOn, err := s.validateDependencies(ctx, params.DependsOn)
	if err != nil {
		return nil, err
	}

	priority := models.DefaultPriority
	if params.Priority != nil {
		priority = *params.Priority
	}

	job := &models.Job{
		JobID:    uuid.New(),
		Type:     params.Type,
		Status:   models.JobStatusPending,
		Priority: priority,
		Config: models.JobConfig{
			Images:       params.Images,
			Perspectives: params.Perspectives,
			Options:      params.Options,
		},
		TotalImages: len(params.Images) * len(params.Perspectives),
		CreatedAt:   time.Now().UTC(),
	}

	items := make([]*models.JobItem, 0, job.TotalImages)
	for _, imagePath := range params.Images {
		for _, perspective := range params.Perspectives {
			items = append(items, &models.JobItem{
				JobID:       job.JobID,
				ImagePath:   imagePath,
				Perspective: perspective,
				Status:      models.ItemStatusPending,
			})
		}
	}

	if err := s.store.CreateJob(ctx, job, items, dependsOn); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	_ = s.cache.SetJobStatus(ctx, job.JobID, job.Status, statusCacheTTL)

	position, err := s.store.QueuePosition(ctx, job.JobID)
	if err != nil {
		// The job exists; a position failure should not fail the submission.
		slog.Warn("queue position lookup failed", "job_id", job.JobID, "error", err)
		position = 0
	}

	return &SubmitResult{
		JobID:         job.JobID,
		Status:        job.Status,
		CreatedAt:     job.CreatedAt,
		QueuePosition: position,
	}, nil
}

// validateDependencies rejects dangling references and cycles before any row
// is written. A freshly generated job ID cannot have dependents yet, so a new
// submission cannot close a cycle on its own; the walk exists to refuse
// chaining onto an already-cyclic subgraph, which would never dispatch.
func (s *Service) validateDependencies(ctx context.Context, dependsOn []uuid.UUID) ([]uuid.UUID, error) {
	if len(dependsOn) == 0 {
		return nil, nil
	}

	seen := make(map[uuid.UUID]bool, len(dependsOn))
	deduped := make([]uuid.UUID, 0, len(dependsOn))
	for _, id := range dependsOn {
		if seen[id] {
			continue
		}
		seen[id] = true
		deduped = append(deduped, id)
	}

	exists, err := s.store.JobsExist(ctx, deduped)
	if err != nil {
		return nil, fmt.Errorf("checking dependencies: %w", err)
	}
	for _, id := range deduped {
		if !exists[id] {
			return nil, fmt.Errorf("%w: dependency job %s does not exist", ErrValidation, id)
		}
	}

	state := make(map[uuid.UUID]int) // 0 unvisited, 1 on path, 2 done
	for _, id := range deduped {
		if err := s.walkDependencies(ctx, id, state); err != nil {
			return nil, err
		}
	}

	return deduped, nil
}

func (s *Service) walkDependencies(ctx context.Context, jobID uuid.UUID, state map[uuid.UUID]int) error {
	switch state[jobID] {
	case 1:
		return fmt.Errorf("%w: dependency cycle involving job %s", ErrValidation, jobID)
	case 2:
		return nil
	}
	state[jobID] = 1

	deps, err := s.store.GetJobDependencies(ctx, jobID)
	if err != nil {
		return fmt.Errorf("walking dependencies of %s: %w", jobID, err)
	}
	for _, d := range deps {
		if err := s.walkDependencies(ctx, d.DependsOnJobID, state); err != nil {
			return err
		}
	}

	state[jobID] = 2
	return nil
}

// List returns jobs in dispatch order plus the total count under the same
// filter.
func (s *Service) List(ctx context.Context, filter store.JobFilter) ([]*models.Job, int, error) {
	return s.store.ListJobs(ctx, filter)
}

// Get returns a job and, when includeItems is set, its full item list.
func (s *Service) Get(ctx context.Context, jobID uuid.UUID, includeItems bool) (*models.Job, []*models.JobItem, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}

	var items []*models.JobItem
	if includeItems {
		items, err = s.store.GetJobItems(ctx, jobID)
		if err != nil {
			return nil, nil, err
		}
	}
	return job, items, nil
}

// Cancel transitions a pending or running job to cancelled and cancels its
// pending items. Cancelling a terminal job is an error, not a no-op.
func (s *Service) Cancel(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	job, err := s.store.CancelJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	_ = s.cache.SetJobStatus(ctx, job.JobID, job.Status, statusCacheTTL)
	slog.Info("job cancelled", "job_id", job.JobID)
	return job, nil
}

// Reorder assigns priority = index*10 to the listed jobs in order. IDs not
// present in the store are skipped; the count of updated rows is returned.
func (s *Service) Reorder(ctx context.Context, jobIDs []uuid.UUID) (int, error) {
	if len(jobIDs) == 0 {
		return 0, fmt.Errorf("%w: at least one job ID is required", ErrValidation)
	}
	return s.store.ReorderJobs(ctx, jobIDs)
}

// SetArchived flags or unflags a job as archived, excluding it from default
// listings without deleting history.
func (s *Service) SetArchived(ctx context.Context, jobID uuid.UUID, archived bool) error {
	return s.store.SetJobArchived(ctx, jobID, archived)
}

// ClaimItem claims the next dispatchable pending item for a worker. Returns
// store.ErrNoItemAvailable when nothing can be claimed.
func (s *Service) ClaimItem(ctx context.Context, workerID string) (*models.JobItem, error) {
	item, err := s.store.ClaimNextItem(ctx)
	if err != nil {
		return nil, err
	}

	_ = s.cache.SetJobStatus(ctx, item.JobID, models.JobStatusRunning, statusCacheTTL)
	slog.Info("item claimed",
		"item_id", item.ID,
		"job_id", item.JobID,
		"image", item.ImagePath,
		"perspective", item.Perspective,
		"worker_id", workerID,
	)
	return item, nil
}

// CompleteItem records an item outcome and returns the owning job after the
// counter update and any finalization.
func (s *Service) CompleteItem(ctx context.Context, itemID int64, succeeded bool, itemErr *string) (*models.Job, error) {
	if !succeeded && (itemErr == nil || *itemErr == "") {
		return nil, fmt.Errorf("%w: a failed item requires an error message", ErrValidation)
	}

	job, err := s.store.CompleteItem(ctx, itemID, succeeded, itemErr)
	if err != nil {
		return nil, err
	}

	_ = s.cache.SetJobStatus(ctx, job.JobID, job.Status, statusCacheTTL)
	if job.IsTerminal() {
		slog.Info("job finished",
			"job_id", job.JobID,
			"status", job.Status,
			"processed", job.ProcessedImages,
			"failed", job.FailedImages,
		)
	}
	return job, nil
}
