package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mserranom/lean-ci-sub000/internal/domain"
	"github.com/mserranom/lean-ci-sub000/internal/repository/inmem"
	"github.com/mserranom/lean-ci-sub000/internal/service"
)

func seedJob(t *testing.T, jobs *inmem.JobStore, id string, status domain.JobStatus, requested, started, finished time.Time) {
	t.Helper()
	job := &domain.Job{
		ID: id, UserID: userID, PipelineID: "p-" + id,
		Repo: "acme/" + id, Status: status, RequestedAt: requested,
	}
	if !started.IsZero() {
		job.StartedAt = &started
	}
	if !finished.IsZero() {
		job.FinishedAt = &finished
	}
	require.NoError(t, jobs.CreateBatch(context.Background(), []*domain.Job{job}))
}

func jobIDs(jobs []domain.Job) []string {
	var ids []string
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	return ids
}

func TestQueued_OldestFirst(t *testing.T) {
	jobs := inmem.NewJobStore()
	queue := service.NewBuildAdmissionQueue(jobs)

	base := time.Now()
	seedJob(t, jobs, "j2", domain.JobStatusQueued, base.Add(2*time.Minute), time.Time{}, time.Time{})
	seedJob(t, jobs, "j1", domain.JobStatusQueued, base.Add(1*time.Minute), time.Time{}, time.Time{})
	seedJob(t, jobs, "j3", domain.JobStatusQueued, base.Add(3*time.Minute), time.Time{}, time.Time{})

	listed, err := queue.Queued(context.Background(), userID, service.Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{"j1", "j2", "j3"}, jobIDs(listed))
}

func TestRunning_MostRecentlyStartedFirst(t *testing.T) {
	jobs := inmem.NewJobStore()
	queue := service.NewBuildAdmissionQueue(jobs)

	base := time.Now()
	seedJob(t, jobs, "j1", domain.JobStatusRunning, base, base.Add(1*time.Minute), time.Time{})
	seedJob(t, jobs, "j2", domain.JobStatusRunning, base, base.Add(2*time.Minute), time.Time{})

	listed, err := queue.Running(context.Background(), userID, service.Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{"j2", "j1"}, jobIDs(listed))
}

func TestFinished_MostRecentlyFinishedFirst(t *testing.T) {
	jobs := inmem.NewJobStore()
	queue := service.NewBuildAdmissionQueue(jobs)

	base := time.Now()
	seedJob(t, jobs, "j1", domain.JobStatusSuccess, base, base, base.Add(1*time.Minute))
	seedJob(t, jobs, "j2", domain.JobStatusFailed, base, base, base.Add(2*time.Minute))
	seedJob(t, jobs, "j3", domain.JobStatusSkipped, base, base, base.Add(3*time.Minute))

	// The merged view covers success and failure; skipped jobs are not
	// finished builds.
	listed, err := queue.Finished(context.Background(), userID, service.Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{"j2", "j1"}, jobIDs(listed))

	succeeded, err := queue.Successful(context.Background(), userID, service.Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{"j1"}, jobIDs(succeeded))

	failed, err := queue.Failed(context.Background(), userID, service.Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{"j2"}, jobIDs(failed))
}

func TestQueued_Pagination(t *testing.T) {
	jobs := inmem.NewJobStore()
	queue := service.NewBuildAdmissionQueue(jobs)

	base := time.Now()
	for i := 0; i < 5; i++ {
		seedJob(t, jobs, string(rune('a'+i)), domain.JobStatusQueued, base.Add(time.Duration(i)*time.Minute), time.Time{}, time.Time{})
	}

	listed, err := queue.Queued(context.Background(), userID, service.Page{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, jobIDs(listed))
}

func TestDequeueNext_IsARepeatableRead(t *testing.T) {
	jobs := inmem.NewJobStore()
	queue := service.NewBuildAdmissionQueue(jobs)

	base := time.Now()
	seedJob(t, jobs, "j1", domain.JobStatusQueued, base, time.Time{}, time.Time{})
	seedJob(t, jobs, "j2", domain.JobStatusQueued, base.Add(time.Minute), time.Time{}, time.Time{})

	first, err := queue.DequeueNext(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "j1", first.ID)

	// Dequeueing does not transition the job; the head stays put.
	again, err := queue.DequeueNext(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, "j1", again.ID)
}

func TestDequeueNext_EmptyQueue(t *testing.T) {
	queue := service.NewBuildAdmissionQueue(inmem.NewJobStore())

	job, err := queue.DequeueNext(context.Background(), userID)
	require.NoError(t, err)
	assert.Nil(t, job)
}
