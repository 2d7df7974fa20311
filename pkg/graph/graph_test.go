package graph

import (
	"errors"
	"reflect"
	"testing"
)

// project wires the canonical four-entity project:
// alignment -> profile, alignment/profile/template -> corridor.
func project(t *testing.T) *Graph {
	t.Helper()
	g := New()
	g.AddNode("align-1", KindAlignment)
	g.AddNode("prof-1", KindProfile)
	g.AddNode("tpl-1", KindTemplate)
	g.AddNode("cor-1", KindCorridor)

	mustEdge := func(from, to string, et EdgeType) {
		t.Helper()
		if err := g.AddEdge(from, to, et); err != nil {
			t.Fatalf("AddEdge(%s, %s): %v", from, to, err)
		}
	}
	mustEdge("align-1", "prof-1", EdgeAnchors)
	mustEdge("align-1", "cor-1", EdgeDrives)
	mustEdge("prof-1", "cor-1", EdgeDrives)
	mustEdge("tpl-1", "cor-1", EdgeShapes)
	return g
}

func TestMarkDirty_TransitiveConsumers(t *testing.T) {
	g := project(t)
	g.MarkDirty("align-1")

	for _, id := range []string{"align-1", "prof-1", "cor-1"} {
		if s, _ := g.State(id); s != StateDirty {
			t.Errorf("%s: expected dirty, got %s", id, s)
		}
	}
	// Templates never consume from alignments.
	if s, _ := g.State("tpl-1"); s != StateClean {
		t.Errorf("tpl-1: expected clean, got %s", s)
	}
}

func TestMarkDirty_MinimalAcrossProjects(t *testing.T) {
	g := project(t)
	// Second unrelated alignment/corridor pair.
	g.AddNode("align-2", KindAlignment)
	g.AddNode("cor-2", KindCorridor)
	if err := g.AddEdge("align-2", "cor-2", EdgeDrives); err != nil {
		t.Fatal(err)
	}

	g.MarkDirty("align-1")

	for _, id := range []string{"align-2", "cor-2"} {
		if s, _ := g.State(id); s != StateClean {
			t.Errorf("%s belongs to an unrelated alignment and must stay clean, got %s", id, s)
		}
	}
}

func TestMarkDirty_Idempotent(t *testing.T) {
	g := project(t)
	g.MarkDirty("align-1")
	before := g.Nodes()
	g.MarkDirty("align-1")
	if !reflect.DeepEqual(before, g.Nodes()) {
		t.Error("re-marking a dirty entity changed the graph")
	}
}

func TestDirtyOrder_ProducersFirst(t *testing.T) {
	g := project(t)
	g.MarkDirty("align-1")

	order, err := g.DirtyOrder()
	if err != nil {
		t.Fatal(err)
	}
	pos := map[string]int{}
	for i, id := range order {
		pos[id] = i
	}
	if len(order) != 3 {
		t.Fatalf("expected 3 dirty nodes in order, got %v", order)
	}
	if !(pos["align-1"] < pos["prof-1"] && pos["prof-1"] < pos["cor-1"]) {
		t.Errorf("bad order: %v", order)
	}
}

func TestDirtyOrder_EmptyWhenClean(t *testing.T) {
	g := project(t)
	order, err := g.DirtyOrder()
	if err != nil {
		t.Fatal(err)
	}
	if len(order) != 0 {
		t.Errorf("expected empty order, got %v", order)
	}
}

func TestAddEdge_RejectsCycle(t *testing.T) {
	g := project(t)

	// A corridor can never feed a template.
	if err := g.AddEdge("cor-1", "tpl-1", EdgeShapes); !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
	// Self edges are cycles too.
	if err := g.AddEdge("cor-1", "cor-1", EdgeDrives); !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected for self edge, got %v", err)
	}

	// The failed insert left no partial state behind.
	for _, e := range g.Edges() {
		if e.FromID == "cor-1" {
			t.Errorf("rejected edge persisted: %+v", e)
		}
	}
}

func TestAddEdge_DuplicateIsNoOp(t *testing.T) {
	g := project(t)
	n := len(g.Edges())
	if err := g.AddEdge("align-1", "cor-1", EdgeDrives); err != nil {
		t.Fatal(err)
	}
	if len(g.Edges()) != n {
		t.Errorf("duplicate edge grew the edge set: %d -> %d", n, len(g.Edges()))
	}
}

func TestSetState_ErrorRetained(t *testing.T) {
	g := project(t)
	g.SetState("cor-1", StateError, "station 42: unresolved component")

	nodes := g.Nodes()
	for _, n := range nodes {
		if n.ID == "cor-1" {
			if n.State != StateError || n.Err == "" {
				t.Errorf("error state not retained: %+v", n)
			}
		}
	}

	// Error nodes are retried: a new dirty pass includes them.
	order, err := g.DirtyOrder()
	if err != nil {
		t.Fatal(err)
	}
	if len(order) != 1 || order[0] != "cor-1" {
		t.Errorf("expected error node in next pass, got %v", order)
	}
}

func TestRemoveNode_DropsEdges(t *testing.T) {
	g := project(t)
	g.RemoveNode("prof-1")

	for _, e := range g.Edges() {
		if e.FromID == "prof-1" || e.ToID == "prof-1" {
			t.Errorf("edge to removed node persisted: %+v", e)
		}
	}
	// Dirtying the alignment still reaches the corridor directly.
	g.MarkDirty("align-1")
	if s, _ := g.State("cor-1"); s != StateDirty {
		t.Errorf("cor-1 should still be reachable, got %s", s)
	}
}
