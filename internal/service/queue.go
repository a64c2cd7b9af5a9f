package service

import (
	"context"
	"fmt"

	"github.com/mserranom/lean-ci-sub000/internal/domain"
)

// BuildAdmissionQueue is the per-user, per-status ordered view of jobs used
// for fair scheduling and listing. Each status has a fixed sort: queued
// builds oldest first, running builds most recently started first, finished
// builds most recently finished first.
type BuildAdmissionQueue struct {
	jobs JobStore
}

// NewBuildAdmissionQueue creates a new BuildAdmissionQueue.
func NewBuildAdmissionQueue(jobs JobStore) *BuildAdmissionQueue {
	return &BuildAdmissionQueue{jobs: jobs}
}

// Queued lists queued builds in FIFO order.
func (q *BuildAdmissionQueue) Queued(ctx context.Context, userID int64, page Page) ([]domain.Job, error) {
	return q.jobs.ListQueued(ctx, userID, page)
}

// Running lists running builds, most recently started first.
func (q *BuildAdmissionQueue) Running(ctx context.Context, userID int64, page Page) ([]domain.Job, error) {
	return q.jobs.ListRunning(ctx, userID, page)
}

// Finished lists successful and failed builds merged, most recently
// finished first.
func (q *BuildAdmissionQueue) Finished(ctx context.Context, userID int64, page Page) ([]domain.Job, error) {
	return q.jobs.ListFinished(ctx, userID,
		[]domain.JobStatus{domain.JobStatusSuccess, domain.JobStatusFailed}, page)
}

// Successful lists successful builds, most recently finished first.
func (q *BuildAdmissionQueue) Successful(ctx context.Context, userID int64, page Page) ([]domain.Job, error) {
	return q.jobs.ListFinished(ctx, userID, []domain.JobStatus{domain.JobStatusSuccess}, page)
}

// Failed lists failed builds, most recently finished first.
func (q *BuildAdmissionQueue) Failed(ctx context.Context, userID int64, page Page) ([]domain.Job, error) {
	return q.jobs.ListFinished(ctx, userID, []domain.JobStatus{domain.JobStatusFailed}, page)
}

// DequeueNext returns the head of the queued listing, or nil when the queue
// is empty. It is a pure read: the job stays queued until the scheduler
// commits to running it through UpdateJobStatus, so repeated calls are
// side-effect-free.
func (q *BuildAdmissionQueue) DequeueNext(ctx context.Context, userID int64) (*domain.Job, error) {
	jobs, err := q.jobs.ListQueued(ctx, userID, Page{Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("peek build queue for user %d: %w", userID, err)
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return &jobs[0], nil
}
