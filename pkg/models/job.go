package models

import (
	"time"

	"github.com/google/uuid"
)

// Job statuses. completed, failed, partial and cancelled are terminal.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
	JobStatusPartial   = "partial"
)

// Job types. Informational only; they do not change queue semantics.
const (
	JobTypeMultiPerspective   = "MULTI_PERSPECTIVE"
	JobTypeDatasetPerspective = "DATASET_PERSPECTIVE"
	JobTypeBackfill           = "BACKFILL"
	JobTypeDependencyChain    = "DEPENDENCY_CHAIN"
)

// ValidJobTypes lists the accepted submission shapes.
var ValidJobTypes = map[string]bool{
	JobTypeMultiPerspective:   true,
	JobTypeDatasetPerspective: true,
	JobTypeBackfill:           true,
	JobTypeDependencyChain:    true,
}

// TerminalJobStatuses are statuses from which no further transition is
// permitted.
var TerminalJobStatuses = map[string]bool{
	JobStatusCompleted: true,
	JobStatusFailed:    true,
	JobStatusCancelled: true,
	JobStatusPartial:   true,
}

// DefaultPriority is assigned when a submission does not specify one.
// Lower values are served earlier.
const DefaultPriority = 100

// JobConfig is the opaque payload a job was submitted with. It is only used
// to derive items at creation time and is stored as JSONB.
type JobConfig struct {
	Images       []string       `json:"images"`
	Perspectives []string       `json:"perspectives"`
	Options      map[string]any `json:"options,omitempty"`
}

// Job is a batch captioning workload: the cross-product of the configured
// images and perspectives, tracked as one row plus one JobItem per pair.
// processed_images + failed_images never exceeds total_images; total_images
// is fixed at creation.
type Job struct {
	JobID           uuid.UUID  `db:"job_id"           json:"jobId"`
	Type            string     `db:"type"             json:"type"`
	Status          string     `db:"status"           json:"status"`
	Priority        int        `db:"priority"         json:"priority"`
	Config          JobConfig  `db:"config"           json:"config"`
	TotalImages     int        `db:"total_images"     json:"totalImages"`
	ProcessedImages int        `db:"processed_images" json:"processedImages"`
	FailedImages    int        `db:"failed_images"    json:"failedImages"`
	Progress        int        `db:"progress"         json:"progress"`
	CreatedAt       time.Time  `db:"created_at"       json:"createdAt"`
	StartedAt       *time.Time `db:"started_at"       json:"startedAt,omitempty"`
	CompletedAt     *time.Time `db:"completed_at"     json:"completedAt,omitempty"`
	Archived        bool       `db:"archived"         json:"archived"`
}

// IsTerminal reports whether the job has reached a terminal status.
func (j *Job) IsTerminal() bool {
	return TerminalJobStatuses[j.Status]
}
