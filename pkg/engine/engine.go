// Package engine hosts the project model and the dependency-driven
// rebuild orchestrator. All mutating operations run on one logical thread
// of control: every command and rebuild pass serializes on the engine
// mutex, matching the host application's single-writer interaction loop.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/alignworks/corridord/pkg/alignment"
	"github.com/alignworks/corridord/pkg/corridor"
	"github.com/alignworks/corridord/pkg/graph"
	"github.com/alignworks/corridord/pkg/profile"
	"github.com/alignworks/corridord/pkg/section"
	"github.com/alignworks/corridord/pkg/store"
)

// CommittedEntity is one (entity, geometry) pair published to the display
// layer after a successful commit.
type CommittedEntity struct {
	ID       string           `json:"id"`
	Kind     store.EntityKind `json:"kind"`
	Version  int64            `json:"version"`
	Geometry json.RawMessage  `json:"geometry,omitempty"`
}

// CommitListener is notified after each successful transactional commit
// with the full committed change set. The host refreshes its display from
// this; it never feeds geometry back.
type CommitListener interface {
	OnCommit(changed []CommittedEntity)
}

// Engine owns the in-memory project model, the dependency graph and the
// persistence boundary.
type Engine struct {
	mu  sync.Mutex
	log *zap.SugaredLogger

	store store.EntityStore
	graph *graph.Graph

	alignments map[string]*alignment.Alignment
	profiles   map[string]*profile.Profile
	templates  map[string]*section.Template
	corridors  map[string]*corridor.Corridor

	// surfaces holds the last committed corridor geometry.
	surfaces map[string]*corridor.Surface

	// pendingEdges stages relationship writes accumulated by commands for
	// the next transactional pass. Kept across aborted passes so the
	// relationships commit together with their entities.
	pendingEdges   []store.EdgeRecord
	pendingDeletes []store.Key
	pendingEdgeDel []store.EdgeRecord

	// gen increments on every accepted command; a background rebuild
	// whose snapshot generation no longer matches is discarded.
	gen int64

	// dirty carries a non-blocking signal per accepted command, for the
	// auto-rebuilder's debounce loop.
	dirty chan struct{}

	listeners []CommitListener
}

// New creates an engine over the given store.
func New(log *zap.SugaredLogger, st store.EntityStore) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{
		log:        log,
		store:      st,
		graph:      graph.New(),
		alignments: make(map[string]*alignment.Alignment),
		profiles:   make(map[string]*profile.Profile),
		templates:  make(map[string]*section.Template),
		corridors:  make(map[string]*corridor.Corridor),
		surfaces:   make(map[string]*corridor.Surface),
		dirty:      make(chan struct{}, 1),
	}
}

// DirtySignals exposes a level-triggered channel that receives at most one
// pending signal after any accepted command. Used by the auto-rebuilder.
func (e *Engine) DirtySignals() <-chan struct{} { return e.dirty }

// Subscribe registers a commit listener.
func (e *Engine) Subscribe(l CommitListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// Load restores the project model and dependency graph from committed
// store state. Surfaces come back from the persisted corridor geometry,
// so the display can refresh without an initial rebuild.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	recs, err := e.store.List(ctx, store.KindAlignment)
	if err != nil {
		return fmt.Errorf("failed to load alignments: %w", err)
	}
	for _, rec := range recs {
		var p alignmentPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return fmt.Errorf("alignment %s payload corrupt: %w", rec.ID, err)
		}
		a := alignment.New(rec.ID, p.Name, e.graph)
		if err := a.Restore(p.PIs, rec.Version); err != nil {
			return fmt.Errorf("alignment %s restore: %w", rec.ID, err)
		}
		e.alignments[rec.ID] = a
		e.graph.AddNode(rec.ID, graph.KindAlignment)
	}

	recs, err = e.store.List(ctx, store.KindProfile)
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}
	for _, rec := range recs {
		var p profilePayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return fmt.Errorf("profile %s payload corrupt: %w", rec.ID, err)
		}
		pr := profile.New(rec.ID, p.Name, p.AlignmentID, e.graph)
		if err := pr.Restore(p.PVIs, rec.Version); err != nil {
			return fmt.Errorf("profile %s restore: %w", rec.ID, err)
		}
		e.profiles[rec.ID] = pr
		e.graph.AddNode(rec.ID, graph.KindProfile)
	}

	recs, err = e.store.List(ctx, store.KindTemplate)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}
	for _, rec := range recs {
		var p templatePayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return fmt.Errorf("template %s payload corrupt: %w", rec.ID, err)
		}
		tpl, err := section.NewTemplate(rec.ID, p.Name, p.Components, e.graph)
		if err != nil {
			return fmt.Errorf("template %s restore: %w", rec.ID, err)
		}
		tpl.Version = rec.Version
		e.templates[rec.ID] = tpl
		e.graph.AddNode(rec.ID, graph.KindTemplate)
	}

	recs, err = e.store.List(ctx, store.KindCorridor)
	if err != nil {
		return fmt.Errorf("failed to load corridors: %w", err)
	}
	for _, rec := range recs {
		var p corridorPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return fmt.Errorf("corridor %s payload corrupt: %w", rec.ID, err)
		}
		c := corridor.New(rec.ID, p.Name, p.AlignmentID, p.ProfileID, p.Interval, e.graph)
		c.Restore(p.Assignments, p.Interval, rec.Version)
		e.corridors[rec.ID] = c
		e.graph.AddNode(rec.ID, graph.KindCorridor)

		if len(rec.Geometry) > 0 {
			var surface corridor.Surface
			if err := json.Unmarshal(rec.Geometry, &surface); err != nil {
				return fmt.Errorf("corridor %s geometry corrupt: %w", rec.ID, err)
			}
			e.surfaces[rec.ID] = &surface
		}
	}

	edges, err := e.store.ListEdges(ctx)
	if err != nil {
		return fmt.Errorf("failed to load edges: %w", err)
	}
	for _, edge := range edges {
		if err := e.graph.AddEdge(edge.FromID, edge.ToID, graph.EdgeType(edge.Type)); err != nil {
			return fmt.Errorf("edge %s -> %s: %w", edge.FromID, edge.ToID, err)
		}
	}

	e.log.Infow("project loaded",
		"alignments", len(e.alignments),
		"profiles", len(e.profiles),
		"templates", len(e.templates),
		"corridors", len(e.corridors),
	)
	return nil
}

// EntityStates returns the dependency graph nodes for inspection.
func (e *Engine) EntityStates() []graph.Node {
	return e.graph.Nodes()
}

// Surface returns the last committed surface of a corridor.
func (e *Engine) Surface(corridorID string) (*corridor.Surface, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.surfaces[corridorID]
	return s, ok
}

// kindOf maps an entity ID to its store kind.
func (e *Engine) kindOf(id string) (store.EntityKind, bool) {
	if _, ok := e.alignments[id]; ok {
		return store.KindAlignment, true
	}
	if _, ok := e.profiles[id]; ok {
		return store.KindProfile, true
	}
	if _, ok := e.templates[id]; ok {
		return store.KindTemplate, true
	}
	if _, ok := e.corridors[id]; ok {
		return store.KindCorridor, true
	}
	return "", false
}
