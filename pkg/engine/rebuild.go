package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alignworks/corridord/pkg/corridor"
	"github.com/alignworks/corridord/pkg/graph"
	"github.com/alignworks/corridord/pkg/section"
	"github.com/alignworks/corridord/pkg/store"
)

// EntityError is one entity's rebuild failure, with its station context
// preserved in the message where the underlying error carries one.
type EntityError struct {
	EntityID string         `json:"entity_id"`
	Kind     graph.NodeKind `json:"kind"`
	Message  string         `json:"message"`
}

// Result summarizes one rebuild pass.
type Result struct {
	// Committed is the change set persisted by this pass, empty when the
	// pass aborted.
	Committed []CommittedEntity `json:"committed,omitempty"`
	// Failures are entities that ended in error; their consumers were
	// skipped and stay dirty.
	Failures []EntityError `json:"failures,omitempty"`
	// Skipped are entities left dirty because a producer failed.
	Skipped []string `json:"skipped,omitempty"`
	// Discards counts stale background snapshots thrown away before this
	// pass ran. Always zero for synchronous rebuilds.
	Discards int `json:"discards,omitempty"`
}

// Rebuild runs one synchronous rebuild pass: dirty entities recompute in
// topological order, the resulting change set commits atomically, and the
// committed (entity, geometry) pairs go out to subscribed listeners.
//
// The pass is transactional. If any entity ends in error, nothing is
// persisted: the store keeps its prior committed state, successfully
// recomputed entities revert to dirty, and the returned error wraps
// store.ErrTransactionAborted alongside a Result detailing the failures.
func (e *Engine) Rebuild(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	res, changed, err := e.rebuildLocked(ctx, nil)
	listeners := append([]CommitListener(nil), e.listeners...)
	e.mu.Unlock()

	if err == nil && len(changed) > 0 {
		for _, l := range listeners {
			l.OnCommit(changed)
		}
	}
	return res, err
}

// snapshot is an immutable copy of everything a rebuild pass reads.
type snapshot struct {
	gen       int64
	corridors []*corridor.Corridor
	inputs    map[string]corridor.BuildInput
}

// precomputed carries corridor surfaces built off-thread from a snapshot.
type precomputed struct {
	gen      int64
	surfaces map[string]*corridor.Surface
	errs     map[string]error
}

// RebuildAsync runs the rebuild off the caller's thread. The expensive
// part, corridor surface generation, runs against a cloned snapshot
// without holding the engine lock, so edits stay responsive during long
// rebuilds. If edits land while the snapshot is in flight the stale
// result is discarded and a fresh snapshot is taken; the returned channel
// delivers exactly one final outcome.
func (e *Engine) RebuildAsync(ctx context.Context) <-chan AsyncOutcome {
	ch := make(chan AsyncOutcome, 1)
	go func() {
		discards := 0
		for {
			if err := ctx.Err(); err != nil {
				ch <- AsyncOutcome{Err: err}
				return
			}

			e.mu.Lock()
			snap := e.snapshotLocked()
			e.mu.Unlock()

			pre := computeSurfaces(snap)

			e.mu.Lock()
			if e.gen != snap.gen {
				e.mu.Unlock()
				discards++
				CorridordSnapshotDiscards.Inc()
				e.log.Debugw("rebuild snapshot stale, retrying", "gen", snap.gen)
				continue
			}
			res, changed, err := e.rebuildLocked(ctx, pre)
			listeners := append([]CommitListener(nil), e.listeners...)
			e.mu.Unlock()

			if res != nil {
				res.Discards = discards
			}
			if err == nil && len(changed) > 0 {
				for _, l := range listeners {
					l.OnCommit(changed)
				}
			}
			ch <- AsyncOutcome{Result: res, Err: err}
			return
		}
	}()
	return ch
}

// AsyncOutcome is the terminal result of a background rebuild.
type AsyncOutcome struct {
	Result *Result
	Err    error
}

// snapshotLocked clones the dirty corridors and their producers so the
// surface computation can run without the lock. Clean corridors are not
// snapshotted; they will not be rebuilt.
func (e *Engine) snapshotLocked() *snapshot {
	snap := &snapshot{gen: e.gen, inputs: make(map[string]corridor.BuildInput)}
	for id, c := range e.corridors {
		if st, ok := e.graph.State(id); !ok || st == graph.StateClean {
			continue
		}
		cc := c.Clone()
		snap.corridors = append(snap.corridors, cc)
		in := corridor.BuildInput{Corridor: cc, Templates: make(map[string]*section.Template)}
		if a, ok := e.alignments[c.AlignmentID]; ok {
			in.Alignment = a.Clone()
		}
		if p, ok := e.profiles[c.ProfileID]; ok {
			in.Profile = p.Clone()
		}
		for _, asg := range c.Assignments() {
			if t, ok := e.templates[asg.TemplateID]; ok {
				in.Templates[asg.TemplateID] = t.Clone()
			}
		}
		snap.inputs[id] = in
	}
	return snap
}

// computeSurfaces is the pure, lock-free part of a background rebuild.
func computeSurfaces(snap *snapshot) *precomputed {
	pre := &precomputed{
		gen:      snap.gen,
		surfaces: make(map[string]*corridor.Surface),
		errs:     make(map[string]error),
	}
	for id, in := range snap.inputs {
		if in.Alignment == nil || in.Profile == nil {
			pre.errs[id] = fmt.Errorf("corridor %s references a missing producer", id)
			continue
		}
		surface, err := corridor.Build(in)
		if err != nil {
			pre.errs[id] = err
			continue
		}
		pre.surfaces[id] = surface
	}
	return pre
}

// rebuildLocked runs one rebuild pass under the engine lock. pre, when
// non-nil, supplies corridor surfaces computed off-thread from the same
// generation; nil means compute inline.
func (e *Engine) rebuildLocked(ctx context.Context, pre *precomputed) (*Result, []CommittedEntity, error) {
	started := time.Now()

	order, err := e.graph.DirtyOrder()
	if err != nil {
		CorridordRebuildTotal.WithLabelValues("cycle").Inc()
		return nil, nil, err
	}
	res := &Result{}
	if len(order) == 0 && len(e.pendingDeletes) == 0 && len(e.pendingEdges) == 0 && len(e.pendingEdgeDel) == 0 {
		CorridordRebuildTotal.WithLabelValues("noop").Inc()
		return res, nil, nil
	}

	tx := &store.Tx{
		Deletes:     append([]store.Key(nil), e.pendingDeletes...),
		EdgePuts:    append([]store.EdgeRecord(nil), e.pendingEdges...),
		EdgeDeletes: append([]store.EdgeRecord(nil), e.pendingEdgeDel...),
	}

	blocked := make(map[string]bool) // failed or skipped this pass
	var succeeded []string
	var changed []CommittedEntity
	newSurfaces := make(map[string]*corridor.Surface)

	for _, id := range order {
		producerBlocked := false
		for _, p := range e.graph.Producers(id) {
			if blocked[p] {
				producerBlocked = true
				break
			}
		}
		kind, ok := e.kindOf(id)
		if !ok {
			// Node without an entity: a construction bug, not a user error.
			return nil, nil, fmt.Errorf("graph node %s has no backing entity", id)
		}
		if producerBlocked {
			blocked[id] = true
			res.Skipped = append(res.Skipped, id)
			CorridordEntityRebuildTotal.WithLabelValues(string(kind), "skipped").Inc()
			continue
		}

		e.graph.SetState(id, graph.StateRebuilding, "")
		rec, surface, err := e.rebuildEntityLocked(id, kind, pre)
		if err != nil {
			e.graph.SetState(id, graph.StateError, err.Error())
			blocked[id] = true
			res.Failures = append(res.Failures, EntityError{
				EntityID: id, Kind: graph.NodeKind(kind), Message: err.Error(),
			})
			CorridordEntityRebuildTotal.WithLabelValues(string(kind), "error").Inc()
			e.log.Warnw("entity rebuild failed", "id", id, "kind", kind, "err", err)
			continue
		}
		tx.Put(rec)
		if surface != nil {
			newSurfaces[id] = surface
			CorridordSectionsBuilt.Add(float64(len(surface.Sections)))
		}
		succeeded = append(succeeded, id)
		changed = append(changed, CommittedEntity{
			ID: id, Kind: rec.Kind, Version: rec.Version, Geometry: rec.Geometry,
		})
		CorridordEntityRebuildTotal.WithLabelValues(string(kind), "ok").Inc()
	}

	if len(res.Failures) > 0 {
		// Abort: nothing persists. Entities that recomputed fine revert to
		// dirty so the next pass picks them up again; staged edge and
		// delete operations stay pending for the same reason.
		for _, id := range succeeded {
			e.graph.SetState(id, graph.StateDirty, "")
		}
		e.updateDirtyGaugeLocked()
		CorridordRebuildTotal.WithLabelValues("aborted").Inc()
		CorridordRebuildSeconds.Observe(time.Since(started).Seconds())
		e.log.Warnw("rebuild aborted", "failures", len(res.Failures), "skipped", len(res.Skipped))
		return res, nil, fmt.Errorf("%d of %d entities failed: %w",
			len(res.Failures), len(order), store.ErrTransactionAborted)
	}

	if !tx.Empty() {
		if err := e.store.Commit(ctx, tx); err != nil {
			for _, id := range succeeded {
				e.graph.SetState(id, graph.StateDirty, "")
			}
			e.updateDirtyGaugeLocked()
			CorridordRebuildTotal.WithLabelValues("store_error").Inc()
			return res, nil, fmt.Errorf("commit failed: %w", err)
		}
	}

	for _, id := range succeeded {
		e.graph.SetState(id, graph.StateClean, "")
	}
	for id, s := range newSurfaces {
		e.surfaces[id] = s
	}
	e.pendingEdges = nil
	e.pendingDeletes = nil
	e.pendingEdgeDel = nil
	e.updateDirtyGaugeLocked()

	sort.Slice(changed, func(i, j int) bool { return changed[i].ID < changed[j].ID })
	res.Committed = changed
	CorridordRebuildTotal.WithLabelValues("ok").Inc()
	CorridordRebuildSeconds.Observe(time.Since(started).Seconds())
	e.log.Infow("rebuild committed",
		"entities", len(succeeded),
		"duration", time.Since(started),
	)
	return res, changed, nil
}

// rebuildEntityLocked recomputes one entity and returns its staged record,
// plus the new surface for corridors.
func (e *Engine) rebuildEntityLocked(id string, kind store.EntityKind, pre *precomputed) (store.Record, *corridor.Surface, error) {
	switch kind {
	case store.KindAlignment:
		// Horizontal solutions are maintained at edit time; the pass only
		// stages the accepted state.
		rec, err := alignmentRecord(e.alignments[id])
		return rec, nil, err

	case store.KindProfile:
		p := e.profiles[id]
		if a, ok := e.alignments[p.AlignmentID]; ok {
			p.Revalidate(a.Length())
		}
		if err := p.Validate(); err != nil {
			return store.Record{}, nil, err
		}
		rec, err := profileRecord(p)
		return rec, nil, err

	case store.KindTemplate:
		rec, err := templateRecord(e.templates[id])
		return rec, nil, err

	case store.KindCorridor:
		c := e.corridors[id]
		var surface *corridor.Surface
		if pre != nil {
			if err, ok := pre.errs[id]; ok {
				return store.Record{}, nil, err
			}
			surface = pre.surfaces[id]
		}
		if surface == nil {
			a, ok := e.alignments[c.AlignmentID]
			if !ok {
				return store.Record{}, nil, fmt.Errorf("corridor %s references unknown alignment %s", id, c.AlignmentID)
			}
			p, ok := e.profiles[c.ProfileID]
			if !ok {
				return store.Record{}, nil, fmt.Errorf("corridor %s references unknown profile %s", id, c.ProfileID)
			}
			tpls := make(map[string]*section.Template, len(c.Assignments()))
			for _, asg := range c.Assignments() {
				if t, ok := e.templates[asg.TemplateID]; ok {
					tpls[asg.TemplateID] = t
				}
			}
			var err error
			surface, err = corridor.Build(corridor.BuildInput{
				Corridor: c, Alignment: a, Profile: p, Templates: tpls,
			})
			if err != nil {
				return store.Record{}, nil, err
			}
		}
		rec, err := corridorRecord(c, surface)
		return rec, surface, err

	default:
		return store.Record{}, nil, fmt.Errorf("unknown entity kind %q", kind)
	}
}

func (e *Engine) updateDirtyGaugeLocked() {
	dirty := 0
	for _, n := range e.graph.Nodes() {
		if n.State == graph.StateDirty || n.State == graph.StateError {
			dirty++
		}
	}
	CorridordDirtyEntities.Set(float64(dirty))
}
