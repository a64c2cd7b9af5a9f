// Package inmem provides in-memory implementations of the engine's store
// interfaces. They back single-process deployments without Postgres and
// double as fixtures for service tests. All stores copy on the way in and
// out so callers never alias internal state.
package inmem

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mserranom/lean-ci-sub000/internal/domain"
	"github.com/mserranom/lean-ci-sub000/internal/service"
)

type repoKey struct {
	userID int64
	name   string
}

// RepositoryStore is an in-memory service.RepositoryStore.
type RepositoryStore struct {
	mu     sync.RWMutex
	nextID int64
	repos  map[repoKey]domain.Repository
}

// NewRepositoryStore creates an empty RepositoryStore.
func NewRepositoryStore() *RepositoryStore {
	return &RepositoryStore{repos: make(map[repoKey]domain.Repository)}
}

func (s *RepositoryStore) Create(_ context.Context, repo domain.Repository) (*domain.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := repoKey{repo.UserID, repo.Name}
	if _, ok := s.repos[key]; ok {
		return nil, fmt.Errorf("repository %s already exists: %w", repo.Name, domain.ErrConflict)
	}
	s.nextID++
	repo.ID = s.nextID
	repo.CreatedAt = time.Now()
	s.repos[key] = repo
	return &repo, nil
}

func (s *RepositoryStore) FindByName(_ context.Context, userID int64, name string) (*domain.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	repo, ok := s.repos[repoKey{userID, name}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &repo, nil
}

func (s *RepositoryStore) ListByUser(_ context.Context, userID int64) ([]domain.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var repos []domain.Repository
	for key, repo := range s.repos {
		if key.userID == userID {
			repos = append(repos, repo)
		}
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].Name < repos[j].Name })
	return repos, nil
}

func (s *RepositoryStore) Delete(_ context.Context, userID int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := repoKey{userID, name}
	if _, ok := s.repos[key]; !ok {
		return domain.ErrNotFound
	}
	delete(s.repos, key)
	return nil
}

// JobStore is an in-memory service.JobStore.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.Job
}

// NewJobStore creates an empty JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]domain.Job)}
}

func (s *JobStore) CreateBatch(_ context.Context, jobs []*domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range jobs {
		if _, ok := s.jobs[job.ID]; ok {
			return fmt.Errorf("job %s already exists: %w", job.ID, domain.ErrConflict)
		}
	}
	for _, job := range jobs {
		s.jobs[job.ID] = *job
	}
	return nil
}

func (s *JobStore) FindByID(_ context.Context, userID int64, id string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok || job.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

func (s *JobStore) ListByPipeline(_ context.Context, pipelineID string) ([]*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jobs []*domain.Job
	for _, job := range s.jobs {
		if job.PipelineID == pipelineID {
			j := job
			jobs = append(jobs, &j)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs, nil
}

func (s *JobStore) ListQueued(_ context.Context, userID int64, page service.Page) ([]domain.Job, error) {
	jobs := s.collect(userID, domain.JobStatusQueued)
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].RequestedAt.Equal(jobs[j].RequestedAt) {
			return jobs[i].RequestedAt.Before(jobs[j].RequestedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})
	return paginate(jobs, page), nil
}

func (s *JobStore) ListRunning(_ context.Context, userID int64, page service.Page) ([]domain.Job, error) {
	jobs := s.collect(userID, domain.JobStatusRunning)
	sort.Slice(jobs, func(i, j int) bool {
		ti, tj := timeOrZero(jobs[i].StartedAt), timeOrZero(jobs[j].StartedAt)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return jobs[i].ID < jobs[j].ID
	})
	return paginate(jobs, page), nil
}

func (s *JobStore) ListFinished(_ context.Context, userID int64, statuses []domain.JobStatus, page service.Page) ([]domain.Job, error) {
	jobs := s.collect(userID, statuses...)
	sort.Slice(jobs, func(i, j int) bool {
		ti, tj := timeOrZero(jobs[i].FinishedAt), timeOrZero(jobs[j].FinishedAt)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return jobs[i].ID < jobs[j].ID
	})
	return paginate(jobs, page), nil
}

func (s *JobStore) Update(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		return domain.ErrNotFound
	}
	s.jobs[job.ID] = *job
	return nil
}

func (s *JobStore) collect(userID int64, statuses ...domain.JobStatus) []domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jobs []domain.Job
	for _, job := range s.jobs {
		if job.UserID != userID {
			continue
		}
		for _, status := range statuses {
			if job.Status == status {
				jobs = append(jobs, job)
				break
			}
		}
	}
	return jobs
}

// PipelineStore is an in-memory service.PipelineStore.
type PipelineStore struct {
	mu        sync.RWMutex
	pipelines map[string]domain.Pipeline
}

// NewPipelineStore creates an empty PipelineStore.
func NewPipelineStore() *PipelineStore {
	return &PipelineStore{pipelines: make(map[string]domain.Pipeline)}
}

func (s *PipelineStore) Create(_ context.Context, pipeline *domain.Pipeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pipelines[pipeline.ID]; ok {
		return fmt.Errorf("pipeline %s already exists: %w", pipeline.ID, domain.ErrConflict)
	}
	s.pipelines[pipeline.ID] = *pipeline
	return nil
}

func (s *PipelineStore) FindByID(_ context.Context, userID int64, id string) (*domain.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pipeline, ok := s.pipelines[id]
	if !ok || pipeline.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return &pipeline, nil
}

func (s *PipelineStore) Update(_ context.Context, pipeline *domain.Pipeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pipelines[pipeline.ID]; !ok {
		return domain.ErrNotFound
	}
	s.pipelines[pipeline.ID] = *pipeline
	return nil
}

func (s *PipelineStore) ListActive(_ context.Context, userID int64, page service.Page) ([]domain.Pipeline, error) {
	pipelines := s.collect(userID, true)
	sort.Slice(pipelines, func(i, j int) bool {
		if !pipelines[i].CreatedAt.Equal(pipelines[j].CreatedAt) {
			return pipelines[i].CreatedAt.After(pipelines[j].CreatedAt)
		}
		return pipelines[i].ID < pipelines[j].ID
	})
	return paginate(pipelines, page), nil
}

func (s *PipelineStore) ListFinished(_ context.Context, userID int64, page service.Page) ([]domain.Pipeline, error) {
	pipelines := s.collect(userID, false)
	sort.Slice(pipelines, func(i, j int) bool {
		ti, tj := timeOrZero(pipelines[i].FinishedAt), timeOrZero(pipelines[j].FinishedAt)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return pipelines[i].ID < pipelines[j].ID
	})
	return paginate(pipelines, page), nil
}

func (s *PipelineStore) collect(userID int64, active bool) []domain.Pipeline {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pipelines []domain.Pipeline
	for _, pipeline := range s.pipelines {
		if pipeline.UserID != userID {
			continue
		}
		if (pipeline.Status == domain.PipelineStatusRunning) == active {
			pipelines = append(pipelines, pipeline)
		}
	}
	return pipelines
}

// GraphSnapshotStore is an in-memory service.GraphSnapshotStore.
type GraphSnapshotStore struct {
	mu     sync.RWMutex
	nextID int64
	snaps  map[int64]domain.DependencyGraphSnapshot
}

// NewGraphSnapshotStore creates an empty GraphSnapshotStore.
func NewGraphSnapshotStore() *GraphSnapshotStore {
	return &GraphSnapshotStore{snaps: make(map[int64]domain.DependencyGraphSnapshot)}
}

func (s *GraphSnapshotStore) Get(_ context.Context, userID int64) (*domain.DependencyGraphSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snaps[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &snap, nil
}

func (s *GraphSnapshotStore) Replace(_ context.Context, snap domain.DependencyGraphSnapshot) (*domain.DependencyGraphSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.snaps[snap.UserID]; ok {
		snap.ID = existing.ID
	} else {
		s.nextID++
		snap.ID = s.nextID
	}
	s.snaps[snap.UserID] = snap
	return &snap, nil
}

// UserStore is an in-memory service.UserStore.
type UserStore struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]domain.User
}

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[int64]domain.User)}
}

func (s *UserStore) FindByID(_ context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &user, nil
}

func (s *UserStore) FindByGitHubID(_ context.Context, githubID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.GitHubID == githubID {
			u := user
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *UserStore) Upsert(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, existing := range s.users {
		if existing.GitHubID == user.GitHubID {
			user.ID = id
			user.CreatedAt = existing.CreatedAt
			user.UpdatedAt = now
			s.users[id] = user
			return &user, nil
		}
	}
	s.nextID++
	user.ID = s.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = user
	return &user, nil
}

func (s *UserStore) ListIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func paginate[T any](items []T, page service.Page) []T {
	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
