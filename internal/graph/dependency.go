package graph

import (
	"fmt"

	"github.com/mserranom/lean-ci-sub000/internal/domain"
)

// DependencyGraph is one user's repository dependency DAG. Nodes are
// repository names, an edge up → down means up must build successfully
// before down.
type DependencyGraph struct {
	g *Directed[*domain.Repository]
}

// NewDependencyGraph returns an empty dependency graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{g: NewDirected[*domain.Repository]()}
}

// DependencyGraphFromSnapshot rebuilds the graph from a persisted snapshot,
// resolving each repository name through lookup. Repos and edges that
// reference a name absent from lookup are dropped silently; the snapshot may
// be stale relative to the repository store. Fails with ErrGraphCyclic if
// the surviving edges form a cycle.
func DependencyGraphFromSnapshot(snap domain.DependencyGraphSnapshot, lookup map[string]*domain.Repository) (*DependencyGraph, error) {
	d := NewDependencyGraph()
	for _, name := range snap.Repos {
		repo, ok := lookup[name]
		if !ok {
			continue
		}
		d.g.AddNode(name, repo)
	}
	for _, e := range snap.Dependencies {
		if !d.g.Has(e.Up) || !d.g.Has(e.Down) {
			continue
		}
		if err := d.g.AddEdge(e.Up, e.Down); err != nil {
			return nil, err
		}
	}
	if !d.g.IsAcyclic() {
		return nil, fmt.Errorf("rebuild dependency graph for user %d: %w", snap.UserID, domain.ErrGraphCyclic)
	}
	return d, nil
}

// AddRepository inserts a repository node with no edges.
func (d *DependencyGraph) AddRepository(repo *domain.Repository) {
	d.g.AddNode(repo.Name, repo)
}

// RemoveRepository deletes a repository and prunes every edge touching it.
func (d *DependencyGraph) RemoveRepository(name string) {
	d.g.RemoveNode(name)
}

// Has reports whether the repository is in the graph.
func (d *DependencyGraph) Has(name string) bool {
	return d.g.Has(name)
}

// Repositories returns the registered repository names, sorted.
func (d *DependencyGraph) Repositories() []string {
	return d.g.Nodes()
}

// Dependencies returns every dependency edge, sorted.
func (d *DependencyGraph) Dependencies() []domain.Edge {
	return d.g.Edges()
}

// Downstream returns the direct dependents of a repository.
func (d *DependencyGraph) Downstream(name string) []string {
	return d.g.Successors(name)
}

// UpdateDependencies replaces the inbound edges of repo: every currently
// declared upstream is removed, then an edge is added from each resolved
// upstream. Used when a repository's declared dependency manifest changes.
// Upstreams not present in the graph are dropped.
func (d *DependencyGraph) UpdateDependencies(repo *domain.Repository, upstreams []string) error {
	if !d.g.Has(repo.Name) {
		d.g.AddNode(repo.Name, repo)
	}
	for _, up := range d.g.Predecessors(repo.Name) {
		d.g.RemoveEdge(up, repo.Name)
	}
	for _, up := range upstreams {
		if !d.g.Has(up) {
			continue
		}
		if err := d.g.AddEdge(up, repo.Name); err != nil {
			return err
		}
	}
	return nil
}

// Validate fails with ErrGraphCyclic if the graph currently contains a
// cycle. Callers reject the mutation that introduced it; the graph never
// drops a cycle on its own.
func (d *DependencyGraph) Validate() error {
	if !d.g.IsAcyclic() {
		return domain.ErrGraphCyclic
	}
	return nil
}

// Subgraph returns a new, independent graph containing name and every
// repository forward-reachable from it. Ancestors and disconnected
// components are excluded even though they are technically connected: a
// build of name only affects its downstream transitive closure. The
// receiver is not mutated.
func (d *DependencyGraph) Subgraph(name string) (*DependencyGraph, error) {
	if !d.g.Has(name) {
		return nil, fmt.Errorf("subgraph rooted at %q: %w", name, domain.ErrUnknownRepository)
	}

	dist := d.g.DistancesFrom(name)
	sub := NewDependencyGraph()
	for id := range dist {
		repo, _ := d.g.Node(id)
		sub.g.AddNode(id, repo)
	}
	for _, e := range d.g.Edges() {
		if sub.g.Has(e.Up) && sub.g.Has(e.Down) {
			if err := sub.g.AddEdge(e.Up, e.Down); err != nil {
				return nil, err
			}
		}
	}
	return sub, nil
}

// Repository returns the repository stored under name.
func (d *DependencyGraph) Repository(name string) (*domain.Repository, bool) {
	return d.g.Node(name)
}

// Snapshot serializes the live graph. Reads always go through here so the
// persisted form never drifts from the graph.
func (d *DependencyGraph) Snapshot(id, userID int64) domain.DependencyGraphSnapshot {
	return domain.DependencyGraphSnapshot{
		ID:           id,
		UserID:       userID,
		Repos:        d.g.Nodes(),
		Dependencies: d.g.Edges(),
	}
}
