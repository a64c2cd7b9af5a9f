package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mserranom/lean-ci-sub000/internal/domain"
	"github.com/mserranom/lean-ci-sub000/internal/service"
)

const defaultPageSize = 50

const jobColumns = `id, user_id, pipeline_id, repo, commit_sha, status,
	requested_at, started_at, finished_at, log, build_config`

// JobRepository handles build-job data access operations.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// CreateBatch inserts a pipeline's jobs in one statement.
func (r *JobRepository) CreateBatch(ctx context.Context, jobs []*domain.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO jobs (id, user_id, pipeline_id, repo, commit_sha, status, requested_at)
		 VALUES (:id, :user_id, :pipeline_id, :repo, :commit_sha, :status, :requested_at)`,
		jobs)
	if err != nil {
		return fmt.Errorf("create %d jobs: %w", len(jobs), err)
	}
	return nil
}

// FindByID retrieves a job by id, scoped to its owner.
func (r *JobRepository) FindByID(ctx context.Context, userID int64, id string) (*domain.Job, error) {
	var job domain.Job
	err := r.db.GetContext(ctx, &job,
		`SELECT `+jobColumns+` FROM jobs WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find job %s: %w", id, err)
	}
	return &job, nil
}

// ListByPipeline retrieves every job belonging to a pipeline.
func (r *JobRepository) ListByPipeline(ctx context.Context, pipelineID string) ([]*domain.Job, error) {
	var jobs []*domain.Job
	err := r.db.SelectContext(ctx, &jobs,
		`SELECT `+jobColumns+` FROM jobs WHERE pipeline_id = $1 ORDER BY id`, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("list jobs of pipeline %s: %w", pipelineID, err)
	}
	return jobs, nil
}

// ListQueued retrieves queued jobs oldest-request-first.
func (r *JobRepository) ListQueued(ctx context.Context, userID int64, page service.Page) ([]domain.Job, error) {
	limit, offset := pageBounds(page)
	var jobs []domain.Job
	err := r.db.SelectContext(ctx, &jobs,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE user_id = $1 AND status = $2
		 ORDER BY requested_at ASC, id ASC
		 LIMIT $3 OFFSET $4`,
		userID, domain.JobStatusQueued, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list queued jobs for user %d: %w", userID, err)
	}
	return jobs, nil
}

// ListRunning retrieves running jobs newest-start-first.
func (r *JobRepository) ListRunning(ctx context.Context, userID int64, page service.Page) ([]domain.Job, error) {
	limit, offset := pageBounds(page)
	var jobs []domain.Job
	err := r.db.SelectContext(ctx, &jobs,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE user_id = $1 AND status = $2
		 ORDER BY started_at DESC, id ASC
		 LIMIT $3 OFFSET $4`,
		userID, domain.JobStatusRunning, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list running jobs for user %d: %w", userID, err)
	}
	return jobs, nil
}

// ListFinished retrieves terminal jobs in the given statuses,
// newest-finish-first.
func (r *JobRepository) ListFinished(ctx context.Context, userID int64, statuses []domain.JobStatus, page service.Page) ([]domain.Job, error) {
	limit, offset := pageBounds(page)
	query, args, err := sqlx.In(
		`SELECT `+jobColumns+` FROM jobs
		 WHERE user_id = ? AND status IN (?)
		 ORDER BY finished_at DESC, id ASC
		 LIMIT ? OFFSET ?`,
		userID, statuses, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("build finished-jobs query: %w", err)
	}

	var jobs []domain.Job
	if err := r.db.SelectContext(ctx, &jobs, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list finished jobs for user %d: %w", userID, err)
	}
	return jobs, nil
}

// Update persists a job's mutable fields.
func (r *JobRepository) Update(ctx context.Context, job *domain.Job) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE jobs
		 SET status = $1, commit_sha = $2, started_at = $3, finished_at = $4, log = $5, build_config = $6
		 WHERE id = $7`,
		job.Status, job.Commit, job.StartedAt, job.FinishedAt, job.Log, job.BuildConfig, job.ID)
	if err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func pageBounds(page service.Page) (limit, offset int) {
	limit = page.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	offset = page.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
