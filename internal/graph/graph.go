// Package graph implements the dependency/pipeline graph engine: a minimal
// directed-graph primitive plus the two domain wrappers built on it, the
// per-user repository DependencyGraph and the per-build PipelineGraph state
// machine.
package graph

import (
	"fmt"
	"sort"

	"github.com/mserranom/lean-ci-sub000/internal/domain"
)

// Directed is a directed graph keyed by string node ids, each carrying a
// value of type V. Relationships are stored by id in adjacency sets, never
// as live object references, so there are no reference cycles to manage and
// serialization is a plain walk.
//
// Directed is not safe for concurrent mutation; callers serialize access.
type Directed[V any] struct {
	values map[string]V
	succ   map[string]map[string]struct{}
	pred   map[string]map[string]struct{}
}

// NewDirected allocates an empty graph.
func NewDirected[V any]() *Directed[V] {
	return &Directed[V]{
		values: make(map[string]V),
		succ:   make(map[string]map[string]struct{}),
		pred:   make(map[string]map[string]struct{}),
	}
}

// AddNode inserts or replaces the node with the given id.
func (g *Directed[V]) AddNode(id string, v V) {
	g.values[id] = v
	if g.succ[id] == nil {
		g.succ[id] = make(map[string]struct{})
	}
	if g.pred[id] == nil {
		g.pred[id] = make(map[string]struct{})
	}
}

// AddEdge inserts the edge from → to. Both endpoints must already exist.
func (g *Directed[V]) AddEdge(from, to string) error {
	if _, ok := g.values[from]; !ok {
		return fmt.Errorf("add edge %s->%s: unknown node %s", from, to, from)
	}
	if _, ok := g.values[to]; !ok {
		return fmt.Errorf("add edge %s->%s: unknown node %s", from, to, to)
	}
	g.succ[from][to] = struct{}{}
	g.pred[to][from] = struct{}{}
	return nil
}

// RemoveNode deletes a node and every edge touching it. Removing an unknown
// node is a no-op.
func (g *Directed[V]) RemoveNode(id string) {
	if _, ok := g.values[id]; !ok {
		return
	}
	for to := range g.succ[id] {
		delete(g.pred[to], id)
	}
	for from := range g.pred[id] {
		delete(g.succ[from], id)
	}
	delete(g.values, id)
	delete(g.succ, id)
	delete(g.pred, id)
}

// RemoveEdge deletes the edge from → to if present.
func (g *Directed[V]) RemoveEdge(from, to string) {
	if s, ok := g.succ[from]; ok {
		delete(s, to)
	}
	if p, ok := g.pred[to]; ok {
		delete(p, from)
	}
}

// Node returns the value stored under id.
func (g *Directed[V]) Node(id string) (V, bool) {
	v, ok := g.values[id]
	return v, ok
}

// Has reports whether the node exists.
func (g *Directed[V]) Has(id string) bool {
	_, ok := g.values[id]
	return ok
}

// Len returns the number of nodes.
func (g *Directed[V]) Len() int {
	return len(g.values)
}

// Nodes returns all node ids, sorted.
func (g *Directed[V]) Nodes() []string {
	ids := make([]string, 0, len(g.values))
	for id := range g.values {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Edges returns every edge, sorted by (up, down).
func (g *Directed[V]) Edges() []domain.Edge {
	var edges []domain.Edge
	for from, tos := range g.succ {
		for to := range tos {
			edges = append(edges, domain.Edge{Up: from, Down: to})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Up != edges[j].Up {
			return edges[i].Up < edges[j].Up
		}
		return edges[i].Down < edges[j].Down
	})
	return edges
}

// Predecessors returns the ids with an edge into id, sorted.
func (g *Directed[V]) Predecessors(id string) []string {
	return sortedKeys(g.pred[id])
}

// Successors returns the ids id has an edge to, sorted.
func (g *Directed[V]) Successors(id string) []string {
	return sortedKeys(g.succ[id])
}

// Sources returns the ids of nodes with no incoming edge, sorted.
func (g *Directed[V]) Sources() []string {
	var ids []string
	for id := range g.values {
		if len(g.pred[id]) == 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// IsAcyclic reports whether the graph contains no directed cycle. It is a
// Kahn's-algorithm check and fails closed: a self-loop counts as a cycle.
func (g *Directed[V]) IsAcyclic() bool {
	indegree := make(map[string]int, len(g.values))
	for id := range g.values {
		indegree[id] = len(g.pred[id])
	}

	var frontier []string
	for id, d := range indegree {
		if d == 0 {
			frontier = append(frontier, id)
		}
	}

	visited := 0
	for len(frontier) > 0 {
		id := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		visited++
		for to := range g.succ[id] {
			indegree[to]--
			if indegree[to] == 0 {
				frontier = append(frontier, to)
			}
		}
	}
	return visited == len(g.values)
}

// DistancesFrom returns the shortest hop-count from source to every
// reachable node, source included at distance zero. Unreachable nodes are
// absent from the result. All edges are unweighted so this is a plain
// breadth-first traversal; a node reachable by several paths gets the length
// of the shortest one.
func (g *Directed[V]) DistancesFrom(source string) map[string]int {
	dist := make(map[string]int)
	if _, ok := g.values[source]; !ok {
		return dist
	}
	dist[source] = 0

	queue := []string{source}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, to := range g.Successors(id) {
			if _, seen := dist[to]; seen {
				continue
			}
			dist[to] = dist[id] + 1
			queue = append(queue, to)
		}
	}
	return dist
}

func sortedKeys(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
