package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mserranom/lean-ci-sub000/internal/domain"
)

// GraphSnapshotRepository stores the single dependency-graph snapshot each
// user has.
type GraphSnapshotRepository struct {
	db *sqlx.DB
}

// NewGraphSnapshotRepository creates a new GraphSnapshotRepository.
func NewGraphSnapshotRepository(db *sqlx.DB) *GraphSnapshotRepository {
	return &GraphSnapshotRepository{db: db}
}

// Get retrieves a user's snapshot.
func (r *GraphSnapshotRepository) Get(ctx context.Context, userID int64) (*domain.DependencyGraphSnapshot, error) {
	var snap domain.DependencyGraphSnapshot
	err := r.db.GetContext(ctx, &snap,
		`SELECT id, user_id, repos, dependencies
		 FROM dependency_graphs WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get dependency graph for user %d: %w", userID, err)
	}
	return &snap, nil
}

// Replace upserts a user's snapshot and returns the stored row.
func (r *GraphSnapshotRepository) Replace(ctx context.Context, snap domain.DependencyGraphSnapshot) (*domain.DependencyGraphSnapshot, error) {
	var result domain.DependencyGraphSnapshot
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO dependency_graphs (user_id, repos, dependencies)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id)
		 DO UPDATE SET repos = EXCLUDED.repos,
		               dependencies = EXCLUDED.dependencies
		 RETURNING id, user_id, repos, dependencies`,
		snap.UserID, snap.Repos, snap.Dependencies,
	).StructScan(&result)
	if err != nil {
		return nil, fmt.Errorf("replace dependency graph for user %d: %w", snap.UserID, err)
	}
	return &result, nil
}
