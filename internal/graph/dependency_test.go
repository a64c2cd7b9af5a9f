package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mserranom/lean-ci-sub000/internal/domain"
)

func repoLookup(names ...string) map[string]*domain.Repository {
	lookup := make(map[string]*domain.Repository, len(names))
	for i, name := range names {
		lookup[name] = &domain.Repository{ID: int64(i + 1), UserID: 1, Name: name}
	}
	return lookup
}

func snapshot(repos []string, edges []domain.Edge) domain.DependencyGraphSnapshot {
	return domain.DependencyGraphSnapshot{ID: 1, UserID: 1, Repos: repos, Dependencies: edges}
}

func TestDependencyGraphFromSnapshot(t *testing.T) {
	d, err := DependencyGraphFromSnapshot(
		snapshot([]string{"api", "lib", "web"}, []domain.Edge{{Up: "lib", Down: "api"}, {Up: "api", Down: "web"}}),
		repoLookup("api", "lib", "web"),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"api", "lib", "web"}, d.Repositories())
	assert.Equal(t, []domain.Edge{{Up: "api", Down: "web"}, {Up: "lib", Down: "api"}}, d.Dependencies())
}

func TestDependencyGraphFromSnapshot_DropsDanglingEdges(t *testing.T) {
	// "gone" was deleted from the store after the snapshot was written.
	d, err := DependencyGraphFromSnapshot(
		snapshot([]string{"api", "gone"}, []domain.Edge{{Up: "gone", Down: "api"}}),
		repoLookup("api"),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"api"}, d.Repositories())
	assert.Empty(t, d.Dependencies())
}

func TestDependencyGraphFromSnapshot_Cyclic(t *testing.T) {
	_, err := DependencyGraphFromSnapshot(
		snapshot([]string{"a", "b"}, []domain.Edge{{Up: "a", Down: "b"}, {Up: "b", Down: "a"}}),
		repoLookup("a", "b"),
	)
	assert.ErrorIs(t, err, domain.ErrGraphCyclic)
}

func TestDependencyGraph_UpdateDependencies(t *testing.T) {
	lookup := repoLookup("api", "lib", "core")
	d, err := DependencyGraphFromSnapshot(
		snapshot([]string{"api", "lib", "core"}, []domain.Edge{{Up: "lib", Down: "api"}}),
		lookup,
	)
	require.NoError(t, err)

	// Manifest change: api now depends on core only. The lib edge goes away.
	require.NoError(t, d.UpdateDependencies(lookup["api"], []string{"core", "unregistered"}))

	assert.Equal(t, []domain.Edge{{Up: "core", Down: "api"}}, d.Dependencies())
}

func TestDependencyGraph_ValidateRejectsCycle(t *testing.T) {
	lookup := repoLookup("a", "b")
	d, err := DependencyGraphFromSnapshot(
		snapshot([]string{"a", "b"}, []domain.Edge{{Up: "a", Down: "b"}}),
		lookup,
	)
	require.NoError(t, err)

	require.NoError(t, d.UpdateDependencies(lookup["a"], []string{"b"}))
	assert.ErrorIs(t, d.Validate(), domain.ErrGraphCyclic)
}

func TestDependencyGraph_Subgraph(t *testing.T) {
	lookup := repoLookup("r1", "r2", "r3", "r4", "r5", "r6")
	d, err := DependencyGraphFromSnapshot(
		snapshot(
			[]string{"r1", "r2", "r3", "r4", "r5", "r6"},
			[]domain.Edge{{Up: "r1", Down: "r2"}, {Up: "r1", Down: "r3"}, {Up: "r3", Down: "r4"}, {Up: "r3", Down: "r5"}},
		),
		lookup,
	)
	require.NoError(t, err)

	sub, err := d.Subgraph("r3")
	require.NoError(t, err)
	assert.Equal(t, []string{"r3", "r4", "r5"}, sub.Repositories())
	assert.Equal(t, []domain.Edge{{Up: "r3", Down: "r4"}, {Up: "r3", Down: "r5"}}, sub.Dependencies())

	leaf, err := d.Subgraph("r4")
	require.NoError(t, err)
	assert.Equal(t, []string{"r4"}, leaf.Repositories())
	assert.Empty(t, leaf.Dependencies())

	// The original is untouched.
	assert.Len(t, d.Repositories(), 6)
	assert.Len(t, d.Dependencies(), 4)
}

func TestDependencyGraph_SubgraphUnknownRepo(t *testing.T) {
	d := NewDependencyGraph()
	_, err := d.Subgraph("nope")
	assert.ErrorIs(t, err, domain.ErrUnknownRepository)
}

func TestDependencyGraph_SnapshotRoundTrip(t *testing.T) {
	lookup := repoLookup("api", "lib")
	d, err := DependencyGraphFromSnapshot(
		snapshot([]string{"api", "lib"}, []domain.Edge{{Up: "lib", Down: "api"}}),
		lookup,
	)
	require.NoError(t, err)

	snap := d.Snapshot(7, 1)
	assert.Equal(t, int64(7), snap.ID)
	assert.Equal(t, int64(1), snap.UserID)
	assert.Equal(t, domain.StringList{"api", "lib"}, snap.Repos)
	assert.Equal(t, domain.EdgeList{{Up: "lib", Down: "api"}}, snap.Dependencies)
}
