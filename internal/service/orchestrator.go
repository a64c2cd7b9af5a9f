package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mserranom/lean-ci-sub000/internal/domain"
	"github.com/mserranom/lean-ci-sub000/internal/graph"
)

// PipelineOrchestrator turns build requests into pipelines and advances a
// pipeline's state as its jobs report status changes.
type PipelineOrchestrator struct {
	repos     RepositoryStore
	jobs      JobStore
	pipelines PipelineStore
	snapshots GraphSnapshotStore
	locks     *KeyedMutex
}

// NewPipelineOrchestrator creates a new PipelineOrchestrator.
func NewPipelineOrchestrator(repos RepositoryStore, jobs JobStore, pipelines PipelineStore, snapshots GraphSnapshotStore) *PipelineOrchestrator {
	return &PipelineOrchestrator{
		repos:     repos,
		jobs:      jobs,
		pipelines: pipelines,
		snapshots: snapshots,
		locks:     NewKeyedMutex(),
	}
}

// RequestBuild creates a pipeline covering repoName and its downstream
// transitive closure. The requested repository's job carries the commit and
// starts queued (it has no predecessors in the sub-DAG by construction);
// every other job starts idle with an empty commit, resolved to HEAD at
// execution time. Concurrent requests for overlapping repositories are
// independent: each call produces its own pipeline and job copies.
func (o *PipelineOrchestrator) RequestBuild(ctx context.Context, userID int64, repoName, commit string) (*domain.Pipeline, error) {
	repo, err := o.repos.FindByName(ctx, userID, repoName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("repository %q: %w", repoName, domain.ErrUnknownRepository)
		}
		return nil, fmt.Errorf("find repository %q: %w", repoName, err)
	}

	dep, err := loadDependencyGraph(ctx, o.repos, o.snapshots, userID)
	if err != nil {
		return nil, err
	}
	if !dep.Has(repoName) {
		// Snapshot lagging behind the store; the repo alone is still buildable.
		dep.AddRepository(repo)
	}

	sub, err := dep.Subgraph(repoName)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	pipelineID := uuid.NewString()
	repos := sub.Repositories()
	jobIDs := make(map[string]string, len(repos))
	var jobs []*domain.Job
	for _, name := range repos {
		job := &domain.Job{
			ID:          uuid.NewString(),
			UserID:      userID,
			PipelineID:  pipelineID,
			Repo:        name,
			Status:      domain.JobStatusIdle,
			RequestedAt: now,
		}
		if name == repoName {
			job.Commit = commit
			job.Status = domain.JobStatusQueued
		}
		jobIDs[name] = job.ID
		jobs = append(jobs, job)
	}

	var dependencies domain.EdgeList
	for _, e := range sub.Dependencies() {
		dependencies = append(dependencies, domain.Edge{Up: jobIDs[e.Up], Down: jobIDs[e.Down]})
	}

	// Structural validation before anything is written.
	if _, err := graph.NewPipelineGraph(jobs, dependencies); err != nil {
		return nil, err
	}

	if err := o.jobs.CreateBatch(ctx, jobs); err != nil {
		return nil, fmt.Errorf("persist jobs: %w", err)
	}

	pipeline := &domain.Pipeline{
		ID:           pipelineID,
		UserID:       userID,
		Status:       domain.PipelineStatusRunning,
		Jobs:         jobList(jobs),
		Dependencies: dependencies,
		CreatedAt:    now,
	}
	if err := o.pipelines.Create(ctx, pipeline); err != nil {
		return nil, fmt.Errorf("persist pipeline: %w", err)
	}

	slog.Info("pipeline created",
		"user_id", userID,
		"repo", repoName,
		"commit", commit,
		"pipeline_id", pipelineID,
		"jobs", len(jobs),
	)
	return pipeline, nil
}

// UpdateJobStatus applies an externally reported status change. Moving a
// job to running is pipeline-independent, since a job starting execution
// neither unlocks nor skips anything, so it persists directly. Every other change
// goes through the pipeline state machine under the pipeline's lock.
func (o *PipelineOrchestrator) UpdateJobStatus(ctx context.Context, userID int64, jobID string, status domain.JobStatus) (*domain.Job, error) {
	job, err := o.jobs.FindByID(ctx, userID, jobID)
	if err != nil {
		return nil, fmt.Errorf("find job %s: %w", jobID, err)
	}
	if job.Status == status {
		return job, nil
	}

	if status == domain.JobStatusRunning {
		if !job.Status.CanTransitionTo(status) {
			return nil, fmt.Errorf("job %s cannot move %s -> %s: %w", jobID, job.Status, status, domain.ErrInvalidTransition)
		}
		now := time.Now()
		job.Status = status
		job.StartedAt = &now
		if err := o.jobs.Update(ctx, job); err != nil {
			return nil, fmt.Errorf("persist job %s: %w", jobID, err)
		}
		slog.Info("job started", "user_id", userID, "job_id", jobID, "repo", job.Repo)
		return job, nil
	}

	unlock := o.locks.Lock(job.PipelineID)
	defer unlock()

	pipeline, err := o.pipelines.FindByID(ctx, userID, job.PipelineID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Error("integrity violation: job without owning pipeline",
				"user_id", userID, "job_id", jobID, "pipeline_id", job.PipelineID)
			return nil, fmt.Errorf("job %s: %w", jobID, domain.ErrPipelineNotFound)
		}
		return nil, fmt.Errorf("find pipeline %s: %w", job.PipelineID, err)
	}

	pipelineJobs, err := o.jobs.ListByPipeline(ctx, pipeline.ID)
	if err != nil {
		return nil, fmt.Errorf("load jobs of pipeline %s: %w", pipeline.ID, err)
	}

	pg, err := graph.NewPipelineGraph(pipelineJobs, pipeline.Dependencies)
	if err != nil {
		return nil, fmt.Errorf("rebuild pipeline %s: %w", pipeline.ID, err)
	}

	changed, err := pg.Advance(jobID, status)
	if err != nil {
		return nil, err
	}
	for _, j := range changed {
		if err := o.jobs.Update(ctx, j); err != nil {
			return nil, fmt.Errorf("persist job %s: %w", j.ID, err)
		}
	}

	if next := pg.Status(); next != pipeline.Status {
		pipeline.Status = next
		if next.Terminal() {
			now := time.Now()
			pipeline.FinishedAt = &now
		}
		if err := o.pipelines.Update(ctx, pipeline); err != nil {
			return nil, fmt.Errorf("persist pipeline %s: %w", pipeline.ID, err)
		}
	}

	slog.Info("job advanced",
		"user_id", userID,
		"job_id", jobID,
		"status", status,
		"pipeline_id", pipeline.ID,
		"pipeline_status", pipeline.Status,
		"changed", len(changed),
	)

	// A nil changed set means a concurrent caller already applied this
	// status before the lock was acquired; return the fresh copy either way.
	for _, j := range pg.Jobs() {
		if j.ID == jobID {
			return j, nil
		}
	}
	return job, nil
}

// Pipeline returns a pipeline by id.
func (o *PipelineOrchestrator) Pipeline(ctx context.Context, userID int64, id string) (*domain.Pipeline, error) {
	return o.pipelines.FindByID(ctx, userID, id)
}

// ActivePipelines lists a user's running pipelines, most recent first.
func (o *PipelineOrchestrator) ActivePipelines(ctx context.Context, userID int64, page Page) ([]domain.Pipeline, error) {
	return o.pipelines.ListActive(ctx, userID, page)
}

// FinishedPipelines lists a user's finished pipelines, most recent first.
func (o *PipelineOrchestrator) FinishedPipelines(ctx context.Context, userID int64, page Page) ([]domain.Pipeline, error) {
	return o.pipelines.ListFinished(ctx, userID, page)
}

func jobList(jobs []*domain.Job) domain.StringList {
	ids := make(domain.StringList, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	return ids
}
