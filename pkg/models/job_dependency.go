package models

import "github.com/google/uuid"

// JobDependency is a directed edge: JobID may not dispatch items until
// DependsOnJobID reaches a successful terminal status (completed or partial).
type JobDependency struct {
	ID             int64     `db:"id"                json:"id"`
	JobID          uuid.UUID `db:"job_id"            json:"jobId"`
	DependsOnJobID uuid.UUID `db:"depends_on_job_id" json:"dependsOnJobId"`
}

// DependencySatisfied reports whether a prerequisite job in the given status
// unblocks its dependents.
func DependencySatisfied(status string) bool {
	return status == JobStatusCompleted || status == JobStatusPartial
}
