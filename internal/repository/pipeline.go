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

const pipelineColumns = `id, user_id, status, jobs, dependencies, created_at, finished_at`

// PipelineRepository handles pipeline data access operations.
type PipelineRepository struct {
	db *sqlx.DB
}

// NewPipelineRepository creates a new PipelineRepository.
func NewPipelineRepository(db *sqlx.DB) *PipelineRepository {
	return &PipelineRepository{db: db}
}

// Create inserts a pipeline.
func (r *PipelineRepository) Create(ctx context.Context, pipeline *domain.Pipeline) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pipelines (id, user_id, status, jobs, dependencies, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		pipeline.ID, pipeline.UserID, pipeline.Status,
		pipeline.Jobs, pipeline.Dependencies, pipeline.CreatedAt)
	if err != nil {
		return fmt.Errorf("create pipeline %s: %w", pipeline.ID, err)
	}
	return nil
}

// FindByID retrieves a pipeline by id, scoped to its owner.
func (r *PipelineRepository) FindByID(ctx context.Context, userID int64, id string) (*domain.Pipeline, error) {
	var pipeline domain.Pipeline
	err := r.db.GetContext(ctx, &pipeline,
		`SELECT `+pipelineColumns+` FROM pipelines WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find pipeline %s: %w", id, err)
	}
	return &pipeline, nil
}

// Update persists the pipeline's aggregate status.
func (r *PipelineRepository) Update(ctx context.Context, pipeline *domain.Pipeline) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pipelines SET status = $1, finished_at = $2 WHERE id = $3`,
		pipeline.Status, pipeline.FinishedAt, pipeline.ID)
	if err != nil {
		return fmt.Errorf("update pipeline %s: %w", pipeline.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListActive retrieves running pipelines, most recently created first.
func (r *PipelineRepository) ListActive(ctx context.Context, userID int64, page service.Page) ([]domain.Pipeline, error) {
	limit, offset := pageBounds(page)
	var pipelines []domain.Pipeline
	err := r.db.SelectContext(ctx, &pipelines,
		`SELECT `+pipelineColumns+` FROM pipelines
		 WHERE user_id = $1 AND status = $2
		 ORDER BY created_at DESC, id ASC
		 LIMIT $3 OFFSET $4`,
		userID, domain.PipelineStatusRunning, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list active pipelines for user %d: %w", userID, err)
	}
	return pipelines, nil
}

// ListFinished retrieves terminal pipelines, most recently finished first.
func (r *PipelineRepository) ListFinished(ctx context.Context, userID int64, page service.Page) ([]domain.Pipeline, error) {
	limit, offset := pageBounds(page)
	var pipelines []domain.Pipeline
	err := r.db.SelectContext(ctx, &pipelines,
		`SELECT `+pipelineColumns+` FROM pipelines
		 WHERE user_id = $1 AND status != $2
		 ORDER BY finished_at DESC, id ASC
		 LIMIT $3 OFFSET $4`,
		userID, domain.PipelineStatusRunning, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list finished pipelines for user %d: %w", userID, err)
	}
	return pipelines, nil
}
