package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mserranom/lean-ci-sub000/internal/domain"
)

func buildDirected(t *testing.T, nodes []string, edges [][2]string) *Directed[string] {
	t.Helper()
	g := NewDirected[string]()
	for _, n := range nodes {
		g.AddNode(n, n)
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}
	return g
}

func TestDirected_AddEdgeUnknownNode(t *testing.T) {
	g := NewDirected[string]()
	g.AddNode("a", "a")

	assert.Error(t, g.AddEdge("a", "b"))
	assert.Error(t, g.AddEdge("b", "a"))
}

func TestDirected_RemoveNodeCascadesEdges(t *testing.T) {
	g := buildDirected(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}})

	g.RemoveNode("b")

	assert.Equal(t, []string{"a", "c"}, g.Nodes())
	assert.Empty(t, g.Successors("a"))
	assert.Empty(t, g.Predecessors("c"))
	assert.Empty(t, g.Edges())
}

func TestDirected_Sources(t *testing.T) {
	g := buildDirected(t, []string{"a", "b", "c"}, [][2]string{{"a", "c"}, {"b", "c"}})
	assert.Equal(t, []string{"a", "b"}, g.Sources())

	// c only becomes a source once every inbound edge is gone.
	g.RemoveEdge("b", "c")
	assert.Equal(t, []string{"a", "b"}, g.Sources())

	g.RemoveEdge("a", "c")
	assert.Equal(t, []string{"a", "b", "c"}, g.Sources())
}

func TestDirected_IsAcyclic(t *testing.T) {
	acyclic := buildDirected(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}, {"a", "c"}})
	assert.True(t, acyclic.IsAcyclic())

	cyclic := buildDirected(t, []string{"a", "b"}, [][2]string{{"a", "b"}, {"b", "a"}})
	assert.False(t, cyclic.IsAcyclic())

	selfLoop := buildDirected(t, []string{"a"}, [][2]string{{"a", "a"}})
	assert.False(t, selfLoop.IsAcyclic())
}

func TestDirected_DistancesFrom(t *testing.T) {
	// Diamond plus a long way around: the short path wins.
	g := buildDirected(t, []string{"a", "b", "c", "d", "e"}, [][2]string{
		{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}, {"d", "e"}, {"a", "e"},
	})

	dist := g.DistancesFrom("a")
	assert.Equal(t, map[string]int{"a": 0, "b": 1, "c": 1, "d": 2, "e": 1}, dist)
}

func TestDirected_DistancesFromExcludesUnreachable(t *testing.T) {
	g := buildDirected(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}})

	dist := g.DistancesFrom("a")
	assert.Contains(t, dist, "a")
	assert.Contains(t, dist, "b")
	assert.NotContains(t, dist, "c")

	assert.Empty(t, g.DistancesFrom("missing"))
}

func TestDirected_Edges(t *testing.T) {
	g := buildDirected(t, []string{"a", "b", "c"}, [][2]string{{"b", "c"}, {"a", "b"}})

	assert.Equal(t, []domain.Edge{{Up: "a", Down: "b"}, {Up: "b", Down: "c"}}, g.Edges())
}
