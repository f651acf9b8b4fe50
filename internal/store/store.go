package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/graphcap/batchqueue/pkg/models"
)

var (
	// ErrNotFound indicates the requested job does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrJobTerminal indicates the job is already in a terminal status and
	// cannot transition further.
	ErrJobTerminal = errors.New("job already in terminal status")
	// ErrNoItemAvailable indicates no pending item from a dispatchable job
	// could be claimed.
	ErrNoItemAvailable = errors.New("no item available")
	// ErrItemNotRunning indicates the item does not exist or is not in the
	// running status required for completion.
	ErrItemNotRunning = errors.New("item not running")
	// ErrDuplicateKey indicates a unique constraint violation.
	ErrDuplicateKey = errors.New("duplicate key violation")
)

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	// CreateJob inserts the job, all of its items, and one dependency edge
	// per prerequisite in a single transaction.
	CreateJob(ctx context.Context, job *models.Job, items []*models.JobItem, dependsOn []uuid.UUID) error
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error)
	GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
	GetJobItems(ctx context.Context, jobID uuid.UUID) ([]*models.JobItem, error)
	GetJobDependencies(ctx context.Context, jobID uuid.UUID) ([]*models.JobDependency, error)
	// JobsExist reports which of the given job IDs are present in the store.
	JobsExist(ctx context.Context, jobIDs []uuid.UUID) (map[uuid.UUID]bool, error)
	// QueuePosition counts active jobs ahead of the given job in dispatch
	// order. Informational only; not a standing guarantee.
	QueuePosition(ctx context.Context, jobID uuid.UUID) (int, error)

	// ClaimNextItem atomically claims the next pending item whose job has all
	// dependencies satisfied, in (priority ASC, created_at ASC) job order.
	// The owning job flips pending -> running on its first claim.
	ClaimNextItem(ctx context.Context) (*models.JobItem, error)
	// CompleteItem transitions a running item to completed or failed,
	// increments the owning job's counters atomically, and finalizes the job
	// when the last item lands. Returns the job after the update.
	CompleteItem(ctx context.Context, itemID int64, succeeded bool, itemErr *string) (*models.Job, error)

	// CancelJob sets a pending or running job to cancelled and cancels its
	// pending items. Running items are left to finish.
	CancelJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
	// ReorderJobs assigns priority = index*10 in list order and reports how
	// many job rows were actually updated. Unknown IDs are skipped, and jobs
	// not listed keep their existing priorities verbatim.
	ReorderJobs(ctx context.Context, jobIDs []uuid.UUID) (int, error)
	SetJobArchived(ctx context.Context, jobID uuid.UUID, archived bool) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
}

// JobFilter narrows ListJobs. An empty or "all" Status matches every status.
type JobFilter struct {
	Status          string
	IncludeArchived bool
	Limit           int
	Offset          int
}
