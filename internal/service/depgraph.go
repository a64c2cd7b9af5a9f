package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/mserranom/lean-ci-sub000/internal/domain"
	"github.com/mserranom/lean-ci-sub000/internal/graph"
)

// DependencyGraphService owns mutation of each user's repository dependency
// DAG. All writes for one user are serialized so concurrent registrations
// cannot lose snapshot updates.
type DependencyGraphService struct {
	repos     RepositoryStore
	snapshots GraphSnapshotStore
	resolver  ContentResolver
	locks     *KeyedMutex
}

// NewDependencyGraphService creates a new DependencyGraphService.
func NewDependencyGraphService(repos RepositoryStore, snapshots GraphSnapshotStore, resolver ContentResolver) *DependencyGraphService {
	return &DependencyGraphService{
		repos:     repos,
		snapshots: snapshots,
		resolver:  resolver,
		locks:     NewKeyedMutex(),
	}
}

// RegisterRepository registers a repository and links it below its declared
// upstreams. The upstream list comes from the repository's manifest via the
// content resolver; a resolver failure aborts the registration. Nothing is
// persisted when the resulting graph would contain a cycle.
func (s *DependencyGraphService) RegisterRepository(ctx context.Context, userID int64, name string) (*domain.Repository, error) {
	unlock := s.locks.Lock(userKey(userID))
	defer unlock()

	upstreams, err := s.resolver.Dependencies(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("resolve upstreams of %q: %w: %v", name, domain.ErrUpstreamLookupFailed, err)
	}

	dep, snapID, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if dep.Has(name) {
		return nil, fmt.Errorf("repository %q already registered: %w", name, domain.ErrConflict)
	}

	candidate := &domain.Repository{UserID: userID, Name: name}
	dep.AddRepository(candidate)
	if err := dep.UpdateDependencies(candidate, upstreams); err != nil {
		return nil, err
	}
	if err := dep.Validate(); err != nil {
		return nil, fmt.Errorf("register %q: %w", name, err)
	}

	created, err := s.repos.Create(ctx, *candidate)
	if err != nil {
		return nil, fmt.Errorf("persist repository %q: %w", name, err)
	}
	if err := s.replace(ctx, dep, snapID, userID); err != nil {
		return nil, err
	}

	slog.Info("repository registered", "user_id", userID, "repo", name, "upstreams", len(upstreams))
	return created, nil
}

// SyncDependencies re-resolves a repository's manifest and replaces its
// inbound edges, typically driven by a push webhook. The mutation is
// rejected outright when the new edges would introduce a cycle.
func (s *DependencyGraphService) SyncDependencies(ctx context.Context, userID int64, name string) (*domain.DependencyGraphSnapshot, error) {
	unlock := s.locks.Lock(userKey(userID))
	defer unlock()

	repo, err := s.repos.FindByName(ctx, userID, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("repository %q: %w", name, domain.ErrUnknownRepository)
		}
		return nil, err
	}

	upstreams, err := s.resolver.Dependencies(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("resolve upstreams of %q: %w: %v", name, domain.ErrUpstreamLookupFailed, err)
	}

	dep, snapID, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := dep.UpdateDependencies(repo, upstreams); err != nil {
		return nil, err
	}
	if err := dep.Validate(); err != nil {
		return nil, fmt.Errorf("sync %q: %w", name, err)
	}
	if err := s.replace(ctx, dep, snapID, userID); err != nil {
		return nil, err
	}

	snap := dep.Snapshot(snapID, userID)
	slog.Info("dependencies synced", "user_id", userID, "repo", name, "upstreams", len(upstreams))
	return &snap, nil
}

// RemoveRepository deletes a repository, prunes its dangling dependency
// edges and re-persists the snapshot.
func (s *DependencyGraphService) RemoveRepository(ctx context.Context, userID int64, name string) error {
	unlock := s.locks.Lock(userKey(userID))
	defer unlock()

	if err := s.repos.Delete(ctx, userID, name); err != nil {
		return fmt.Errorf("delete repository %q: %w", name, err)
	}

	dep, snapID, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	dep.RemoveRepository(name)
	if err := s.replace(ctx, dep, snapID, userID); err != nil {
		return err
	}

	slog.Info("repository removed", "user_id", userID, "repo", name)
	return nil
}

// Graph returns the user's dependency graph, regenerated from the live
// graph rather than echoing the stored row, so stale edges never surface.
func (s *DependencyGraphService) Graph(ctx context.Context, userID int64) (*domain.DependencyGraphSnapshot, error) {
	dep, snapID, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	snap := dep.Snapshot(snapID, userID)
	return &snap, nil
}

// ListRepositories returns the user's registered repositories.
func (s *DependencyGraphService) ListRepositories(ctx context.Context, userID int64) ([]domain.Repository, error) {
	return s.repos.ListByUser(ctx, userID)
}

func (s *DependencyGraphService) load(ctx context.Context, userID int64) (*graph.DependencyGraph, int64, error) {
	return loadDependencyGraphWithID(ctx, s.repos, s.snapshots, userID)
}

func (s *DependencyGraphService) replace(ctx context.Context, dep *graph.DependencyGraph, snapID, userID int64) error {
	if _, err := s.snapshots.Replace(ctx, dep.Snapshot(snapID, userID)); err != nil {
		return fmt.Errorf("persist dependency graph for user %d: %w", userID, err)
	}
	return nil
}

func userKey(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

// loadDependencyGraph rebuilds a user's dependency graph from the persisted
// snapshot, resolving names through the repository store. A missing snapshot
// means an empty graph.
func loadDependencyGraph(ctx context.Context, repos RepositoryStore, snapshots GraphSnapshotStore, userID int64) (*graph.DependencyGraph, error) {
	dep, _, err := loadDependencyGraphWithID(ctx, repos, snapshots, userID)
	return dep, err
}

func loadDependencyGraphWithID(ctx context.Context, repos RepositoryStore, snapshots GraphSnapshotStore, userID int64) (*graph.DependencyGraph, int64, error) {
	registered, err := repos.ListByUser(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("list repositories for user %d: %w", userID, err)
	}
	lookup := make(map[string]*domain.Repository, len(registered))
	for i := range registered {
		lookup[registered[i].Name] = &registered[i]
	}

	snap, err := snapshots.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return graph.NewDependencyGraph(), 0, nil
		}
		return nil, 0, fmt.Errorf("load dependency graph for user %d: %w", userID, err)
	}

	dep, err := graph.DependencyGraphFromSnapshot(*snap, lookup)
	if err != nil {
		return nil, 0, err
	}
	return dep, snap.ID, nil
}
