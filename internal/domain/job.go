package domain

import "time"

// JobStatus represents the state of a single build job.
type JobStatus string

const (
	JobStatusIdle    JobStatus = "idle"
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusFailed  JobStatus = "failed"
	JobStatusSkipped JobStatus = "skipped"
)

// Terminal reports whether the status is final. A job never leaves a
// terminal status.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSuccess, JobStatusFailed, JobStatusSkipped:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is a legal step of
// the job state machine.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusIdle:
		return next == JobStatusQueued || next == JobStatusSkipped
	case JobStatusQueued:
		return next == JobStatusRunning || next == JobStatusSuccess ||
			next == JobStatusFailed || next == JobStatusSkipped
	case JobStatusRunning:
		return next == JobStatusSuccess || next == JobStatusFailed
	}
	return false
}

// Job represents one repository's build execution within a pipeline.
// Jobs are created in bulk when a pipeline is instantiated; only the
// requested repository's job carries a commit, every other job resolves to
// HEAD at execution time.
type Job struct {
	ID          string     `json:"id" db:"id"`
	UserID      int64      `json:"user_id" db:"user_id"`
	PipelineID  string     `json:"pipeline_id" db:"pipeline_id"`
	Repo        string     `json:"repo" db:"repo"`
	Commit      string     `json:"commit" db:"commit_sha"`
	Status      JobStatus  `json:"status" db:"status"`
	RequestedAt time.Time  `json:"requested_at" db:"requested_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty" db:"finished_at"`
	Log         *string    `json:"log,omitempty" db:"log"`
	BuildConfig *string    `json:"build_config,omitempty" db:"build_config"`
}
