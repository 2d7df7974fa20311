package graph

import "errors"

// ErrCycleDetected reports a dependency cycle. Edge insertion refuses to
// create one, so seeing this from the topological sort means the graph was
// corrupted by a construction bug; it is fatal to the rebuild pass and
// never ignored.
var ErrCycleDetected = errors.New("cycle detected")

// NodeKind represents the entity type behind a node.
type NodeKind string

const (
	KindAlignment NodeKind = "alignment"
	KindProfile   NodeKind = "profile"
	KindTemplate  NodeKind = "template"
	KindCorridor  NodeKind = "corridor"
)

// NodeState is the rebuild lifecycle state of one entity.
type NodeState string

const (
	StateClean      NodeState = "clean"
	StateDirty      NodeState = "dirty"
	StateRebuilding NodeState = "rebuilding"
	StateError      NodeState = "error"
)

// EdgeType represents the semantic relationship between producer and
// consumer.
type EdgeType string

const (
	EdgeAnchors EdgeType = "anchors" // Alignment -> Profile (station domain)
	EdgeShapes  EdgeType = "shapes"  // Template -> Corridor
	EdgeDrives  EdgeType = "drives"  // Alignment/Profile -> Corridor
)

// Node is a vertex of the dependency graph. It carries only the entity's
// identifier and rebuild state, never entity data: the graph holds
// non-owning references and can be dropped and rebuilt from entity
// metadata at any time.
type Node struct {
	ID    string    `json:"id"`
	Kind  NodeKind  `json:"kind"`
	State NodeState `json:"state"`
	// Err is the last rebuild failure, retained while State is error.
	Err string `json:"err,omitempty"`
}

// Edge is a directed producer -> consumer relation.
type Edge struct {
	FromID string   `json:"from_id"`
	ToID   string   `json:"to_id"`
	Type   EdgeType `json:"type"`
}
