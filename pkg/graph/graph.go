package graph

import (
	"fmt"
	"sort"
	"sync"
)

// Graph maintains the in-memory dependency graph: which derived entities
// must be recomputed when an upstream entity changes. Safe for concurrent
// reads; mutations are serialized by the engine but locked anyway so
// inspection endpoints can race a rebuild harmlessly.
type Graph struct {
	mu        sync.RWMutex
	nodes     map[string]*Node
	consumers map[string][]string // producer -> consumers, edge direction
	producers map[string][]string // consumer -> producers, reverse index
	edges     []Edge
}

// New creates an empty dependency graph.
func New() *Graph {
	return &Graph{
		nodes:     make(map[string]*Node),
		consumers: make(map[string][]string),
		producers: make(map[string][]string),
	}
}

// AddNode registers an entity. New nodes start clean; re-adding an
// existing ID is a no-op.
func (g *Graph) AddNode(id string, kind NodeKind) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.nodes[id]; !exists {
		g.nodes[id] = &Node{ID: id, Kind: kind, State: StateClean}
	}
}

// RemoveNode drops an entity and every edge touching it.
func (g *Graph) RemoveNode(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.nodes, id)
	delete(g.consumers, id)
	delete(g.producers, id)
	for k, list := range g.consumers {
		g.consumers[k] = remove(list, id)
	}
	for k, list := range g.producers {
		g.producers[k] = remove(list, id)
	}
	kept := g.edges[:0]
	for _, e := range g.edges {
		if e.FromID != id && e.ToID != id {
			kept = append(kept, e)
		}
	}
	g.edges = kept
}

// AddEdge registers a producer -> consumer dependency. Fails with
// ErrCycleDetected if the edge would make the consumer reach itself; the
// graph is unchanged on failure.
func (g *Graph) AddEdge(fromID, toID string, edgeType EdgeType) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[fromID]; !ok {
		return fmt.Errorf("unknown producer %s", fromID)
	}
	if _, ok := g.nodes[toID]; !ok {
		return fmt.Errorf("unknown consumer %s", toID)
	}
	if fromID == toID || g.reachableLocked(toID, fromID) {
		return fmt.Errorf("edge %s -> %s: %w", fromID, toID, ErrCycleDetected)
	}
	for _, c := range g.consumers[fromID] {
		if c == toID {
			return nil // already present
		}
	}
	g.consumers[fromID] = append(g.consumers[fromID], toID)
	g.producers[toID] = append(g.producers[toID], fromID)
	g.edges = append(g.edges, Edge{FromID: fromID, ToID: toID, Type: edgeType})
	return nil
}

// reachableLocked reports whether to is reachable from from along consumer
// edges. Must be called with g.mu held.
func (g *Graph) reachableLocked(from, to string) bool {
	stack := []string{from}
	seen := map[string]bool{from: true}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == to {
			return true
		}
		for _, next := range g.consumers[cur] {
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

// MarkDirty marks the entity and, transitively, every consumer reachable
// from it. Idempotent: already-dirty nodes are not re-visited. Error nodes
// return to dirty so the next pass retries them. Implements
// alignment.Notifier.
func (g *Graph) MarkDirty(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node, ok := g.nodes[cur]
		if !ok {
			continue
		}
		if node.State == StateDirty {
			continue
		}
		node.State = StateDirty
		node.Err = ""
		stack = append(stack, g.consumers[cur]...)
	}
}

// DirtyOrder returns the dirty nodes in topological (producer-first)
// order, computed with Kahn's algorithm over the dirty subgraph. A
// non-empty remainder means a cycle, which edge insertion is supposed to
// make impossible; it is surfaced, never swallowed.
func (g *Graph) DirtyOrder() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	dirty := map[string]bool{}
	for id, n := range g.nodes {
		if n.State == StateDirty || n.State == StateError {
			dirty[id] = true
		}
	}

	indeg := map[string]int{}
	for id := range dirty {
		indeg[id] = 0
	}
	for id := range dirty {
		for _, c := range g.consumers[id] {
			if dirty[c] {
				indeg[c]++
			}
		}
	}

	// Deterministic processing order for equal ranks.
	var queue []string
	for id, d := range indeg {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)

		var released []string
		for _, c := range g.consumers[cur] {
			if !dirty[c] {
				continue
			}
			indeg[c]--
			if indeg[c] == 0 {
				released = append(released, c)
			}
		}
		sort.Strings(released)
		queue = append(queue, released...)
	}

	if len(order) != len(dirty) {
		return nil, fmt.Errorf("%d dirty nodes unreachable by Kahn ordering: %w", len(dirty)-len(order), ErrCycleDetected)
	}
	return order, nil
}

// Producers returns the direct producers of an entity.
func (g *Graph) Producers(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.producers[id]...)
}

// Consumers returns the direct consumers of an entity.
func (g *Graph) Consumers(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.consumers[id]...)
}

// State returns the node's current rebuild state.
func (g *Graph) State(id string) (NodeState, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return "", false
	}
	return n.State, true
}

// SetState transitions a node's lifecycle state. errMsg is retained for
// error states and cleared otherwise.
func (g *Graph) SetState(id string, state NodeState, errMsg string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.nodes[id]; ok {
		n.State = state
		if state == StateError {
			n.Err = errMsg
		} else {
			n.Err = ""
		}
	}
}

// Nodes returns a snapshot copy of every node, sorted by ID.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns a snapshot copy of every edge.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Edge(nil), g.edges...)
}

func remove(list []string, id string) []string {
	kept := list[:0]
	for _, v := range list {
		if v != id {
			kept = append(kept, v)
		}
	}
	return kept
}
