package models

import (
	"time"

	"github.com/google/uuid"
)

// Item statuses. A running item is never forcibly cancelled; cancellation
// only applies to items still pending.
const (
	ItemStatusPending   = "pending"
	ItemStatusRunning   = "running"
	ItemStatusCompleted = "completed"
	ItemStatusFailed    = "failed"
	ItemStatusCancelled = "cancelled"
)

// JobItem is one (image, perspective) unit of work belonging to exactly one
// job. Items are deleted with their job (cascade).
type JobItem struct {
	ID             int64      `db:"id"              json:"id"`
	JobID          uuid.UUID  `db:"job_id"          json:"jobId"`
	ImagePath      string     `db:"image_path"      json:"imagePath"`
	Perspective    string     `db:"perspective"     json:"perspective"`
	Status         string     `db:"status"          json:"status"`
	Error          *string    `db:"error"           json:"error,omitempty"`
	StartedAt      *time.Time `db:"started_at"      json:"startedAt,omitempty"`
	CompletedAt    *time.Time `db:"completed_at"    json:"completedAt,omitempty"`
	ProcessingTime *int64     `db:"processing_time" json:"processingTime,omitempty"` // milliseconds
}
