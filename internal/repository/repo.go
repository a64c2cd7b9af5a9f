package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mserranom/lean-ci-sub000/internal/domain"
)

// RepositoryRepository handles repository data access operations.
type RepositoryRepository struct {
	db *sqlx.DB
}

// NewRepositoryRepository creates a new RepositoryRepository.
func NewRepositoryRepository(db *sqlx.DB) *RepositoryRepository {
	return &RepositoryRepository{db: db}
}

// Create inserts a repository. Fails with domain.ErrConflict when the
// (user_id, name) pair is already registered.
func (r *RepositoryRepository) Create(ctx context.Context, repo domain.Repository) (*domain.Repository, error) {
	var result domain.Repository
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO repositories (user_id, name)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id, name) DO NOTHING
		 RETURNING id, user_id, name, created_at`,
		repo.UserID, repo.Name,
	).StructScan(&result)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("repository %s already exists: %w", repo.Name, domain.ErrConflict)
		}
		return nil, fmt.Errorf("create repository %s: %w", repo.Name, err)
	}
	return &result, nil
}

// FindByName retrieves a repository by its owner and name.
func (r *RepositoryRepository) FindByName(ctx context.Context, userID int64, name string) (*domain.Repository, error) {
	var repo domain.Repository
	err := r.db.GetContext(ctx, &repo,
		`SELECT id, user_id, name, created_at
		 FROM repositories WHERE user_id = $1 AND name = $2`, userID, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find repository %s for user %d: %w", name, userID, err)
	}
	return &repo, nil
}

// ListByUser retrieves all repositories registered by a user.
func (r *RepositoryRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Repository, error) {
	var repos []domain.Repository
	err := r.db.SelectContext(ctx, &repos,
		`SELECT id, user_id, name, created_at
		 FROM repositories WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list repositories for user %d: %w", userID, err)
	}
	return repos, nil
}

// Delete removes a repository.
func (r *RepositoryRepository) Delete(ctx context.Context, userID int64, name string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM repositories WHERE user_id = $1 AND name = $2`, userID, name)
	if err != nil {
		return fmt.Errorf("delete repository %s for user %d: %w", name, userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
