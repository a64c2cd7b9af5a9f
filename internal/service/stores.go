package service

import (
	"context"

	"github.com/mserranom/lean-ci-sub000/internal/domain"
)

// Page bounds a listing. A zero Limit means the store's default page size.
type Page struct {
	Limit  int
	Offset int
}

// RepositoryStore defines repository data access as consumed by the engine.
type RepositoryStore interface {
	Create(ctx context.Context, repo domain.Repository) (*domain.Repository, error)
	FindByName(ctx context.Context, userID int64, name string) (*domain.Repository, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Repository, error)
	Delete(ctx context.Context, userID int64, name string) error
}

// JobStore defines build-job data access. Listings carry the sort order the
// admission queue mandates: queued oldest-request-first, running
// newest-start-first, finished newest-finish-first.
type JobStore interface {
	CreateBatch(ctx context.Context, jobs []*domain.Job) error
	FindByID(ctx context.Context, userID int64, id string) (*domain.Job, error)
	ListByPipeline(ctx context.Context, pipelineID string) ([]*domain.Job, error)
	ListQueued(ctx context.Context, userID int64, page Page) ([]domain.Job, error)
	ListRunning(ctx context.Context, userID int64, page Page) ([]domain.Job, error)
	ListFinished(ctx context.Context, userID int64, statuses []domain.JobStatus, page Page) ([]domain.Job, error)
	Update(ctx context.Context, job *domain.Job) error
}

// PipelineStore defines pipeline data access.
type PipelineStore interface {
	Create(ctx context.Context, pipeline *domain.Pipeline) error
	FindByID(ctx context.Context, userID int64, id string) (*domain.Pipeline, error)
	Update(ctx context.Context, pipeline *domain.Pipeline) error
	ListActive(ctx context.Context, userID int64, page Page) ([]domain.Pipeline, error)
	ListFinished(ctx context.Context, userID int64, page Page) ([]domain.Pipeline, error)
}

// GraphSnapshotStore holds the single dependency-graph snapshot per user.
type GraphSnapshotStore interface {
	Get(ctx context.Context, userID int64) (*domain.DependencyGraphSnapshot, error)
	Replace(ctx context.Context, snap domain.DependencyGraphSnapshot) (*domain.DependencyGraphSnapshot, error)
}

// UserStore defines the user data access interface consumed by AuthService
// and the dispatcher.
type UserStore interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByGitHubID(ctx context.Context, githubID string) (*domain.User, error)
	Upsert(ctx context.Context, user domain.User) (*domain.User, error)
	ListIDs(ctx context.Context) ([]int64, error)
}

// ContentResolver fetches a repository's declared upstream dependency names
// from its hosting provider.
type ContentResolver interface {
	Dependencies(ctx context.Context, repoName string) ([]string, error)
}

// BuildAgent hands a queued job to the execution layer. The agent reports
// progress back through PipelineOrchestrator.UpdateJobStatus; Execute only
// covers the handoff.
type BuildAgent interface {
	Execute(ctx context.Context, job domain.Job) error
}
