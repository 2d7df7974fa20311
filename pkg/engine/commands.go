package engine

import (
	"errors"
	"fmt"

	"github.com/alignworks/corridord/pkg/alignment"
	"github.com/alignworks/corridord/pkg/corridor"
	"github.com/alignworks/corridord/pkg/geom"
	"github.com/alignworks/corridord/pkg/graph"
	"github.com/alignworks/corridord/pkg/profile"
	"github.com/alignworks/corridord/pkg/section"
	"github.com/alignworks/corridord/pkg/store"
)

// ErrNotFound reports a command or query addressed to an entity the
// project does not contain.
var ErrNotFound = errors.New("entity not found")

// Commands are the synchronous mutating surface of the engine. Each one
// validates through the entity's own edit contract, marks consumers dirty
// via the dependency graph, and bumps the snapshot generation so an
// in-flight background rebuild knows its snapshot is stale. Nothing here
// touches the store; persistence happens only through Rebuild.

func (e *Engine) bumpLocked() {
	e.gen++
	select {
	case e.dirty <- struct{}{}:
	default:
	}
}

// CreateAlignment adds an empty alignment to the project.
func (e *Engine) CreateAlignment(name string) *alignment.Alignment {
	e.mu.Lock()
	defer e.mu.Unlock()
	a := alignment.New("", name, e.graph)
	e.alignments[a.ID] = a
	e.graph.AddNode(a.ID, graph.KindAlignment)
	e.graph.MarkDirty(a.ID)
	e.bumpLocked()
	e.log.Infow("alignment created", "id", a.ID, "name", name)
	return a
}

// CreateProfile adds an empty profile anchored to an alignment.
func (e *Engine) CreateProfile(name, alignmentID string) (*profile.Profile, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.alignments[alignmentID]; !ok {
		return nil, fmt.Errorf("unknown alignment %s: %w", alignmentID, ErrNotFound)
	}
	p := profile.New("", name, alignmentID, e.graph)
	e.profiles[p.ID] = p
	e.graph.AddNode(p.ID, graph.KindProfile)
	if err := e.graph.AddEdge(alignmentID, p.ID, graph.EdgeAnchors); err != nil {
		delete(e.profiles, p.ID)
		e.graph.RemoveNode(p.ID)
		return nil, err
	}
	e.pendingEdges = append(e.pendingEdges, store.EdgeRecord{
		FromID: alignmentID, ToID: p.ID, Type: string(graph.EdgeAnchors),
	})
	e.graph.MarkDirty(p.ID)
	e.bumpLocked()
	e.log.Infow("profile created", "id", p.ID, "alignment", alignmentID)
	return p, nil
}

// CreateTemplate adds a cross-section template to the project.
func (e *Engine) CreateTemplate(name string, components []section.Component) (*section.Template, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := section.NewTemplate("", name, components, e.graph)
	if err != nil {
		return nil, err
	}
	e.templates[t.ID] = t
	e.graph.AddNode(t.ID, graph.KindTemplate)
	e.graph.MarkDirty(t.ID)
	e.bumpLocked()
	e.log.Infow("template created", "id", t.ID, "name", name)
	return t, nil
}

// CreateCorridor adds a corridor driven by an alignment and a profile.
func (e *Engine) CreateCorridor(name, alignmentID, profileID string, interval float64) (*corridor.Corridor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.alignments[alignmentID]; !ok {
		return nil, fmt.Errorf("unknown alignment %s: %w", alignmentID, ErrNotFound)
	}
	p, ok := e.profiles[profileID]
	if !ok {
		return nil, fmt.Errorf("unknown profile %s: %w", profileID, ErrNotFound)
	}
	if p.AlignmentID != alignmentID {
		return nil, fmt.Errorf("profile %s is anchored to alignment %s, not %s", profileID, p.AlignmentID, alignmentID)
	}
	c := corridor.New("", name, alignmentID, profileID, interval, e.graph)
	e.corridors[c.ID] = c
	e.graph.AddNode(c.ID, graph.KindCorridor)
	for _, from := range []string{alignmentID, profileID} {
		if err := e.graph.AddEdge(from, c.ID, graph.EdgeDrives); err != nil {
			delete(e.corridors, c.ID)
			e.graph.RemoveNode(c.ID)
			return nil, err
		}
		e.pendingEdges = append(e.pendingEdges, store.EdgeRecord{
			FromID: from, ToID: c.ID, Type: string(graph.EdgeDrives),
		})
	}
	e.graph.MarkDirty(c.ID)
	e.bumpLocked()
	e.log.Infow("corridor created", "id", c.ID, "alignment", alignmentID, "profile", profileID)
	return c, nil
}

// DeleteCorridor removes a corridor, its graph node and its persisted
// record. The deletion is staged and commits with the next rebuild pass.
func (e *Engine) DeleteCorridor(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.corridors[id]
	if !ok {
		return fmt.Errorf("unknown corridor %s: %w", id, ErrNotFound)
	}
	for _, edge := range e.graph.Edges() {
		if edge.ToID == id || edge.FromID == id {
			e.pendingEdgeDel = append(e.pendingEdgeDel, store.EdgeRecord{
				FromID: edge.FromID, ToID: edge.ToID, Type: string(edge.Type),
			})
		}
	}
	e.graph.RemoveNode(id)
	delete(e.corridors, id)
	delete(e.surfaces, id)
	e.pendingDeletes = append(e.pendingDeletes, store.Key{Kind: store.KindCorridor, ID: id})
	e.bumpLocked()
	e.log.Infow("corridor deleted", "id", c.ID)
	return nil
}

// AddPI inserts a point of intersection into an alignment.
func (e *Engine) AddPI(alignmentID string, index int, point geom.Point2, curve alignment.CurveParams) (alignment.PI, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.alignments[alignmentID]
	if !ok {
		return alignment.PI{}, fmt.Errorf("unknown alignment %s: %w", alignmentID, ErrNotFound)
	}
	pi, err := a.InsertPI(index, point, curve)
	if err != nil {
		return alignment.PI{}, err
	}
	e.revalidateProfilesLocked(alignmentID)
	e.bumpLocked()
	return pi, nil
}

// MovePI relocates a point of intersection.
func (e *Engine) MovePI(alignmentID string, index int, point geom.Point2) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.alignments[alignmentID]
	if !ok {
		return fmt.Errorf("unknown alignment %s: %w", alignmentID, ErrNotFound)
	}
	if err := a.MovePI(index, point); err != nil {
		return err
	}
	e.revalidateProfilesLocked(alignmentID)
	e.bumpLocked()
	return nil
}

// RemovePI deletes a point of intersection.
func (e *Engine) RemovePI(alignmentID string, index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.alignments[alignmentID]
	if !ok {
		return fmt.Errorf("unknown alignment %s: %w", alignmentID, ErrNotFound)
	}
	if err := a.RemovePI(index); err != nil {
		return err
	}
	e.revalidateProfilesLocked(alignmentID)
	e.bumpLocked()
	return nil
}

// SetCurve changes the curve parameters at a point of intersection.
func (e *Engine) SetCurve(alignmentID string, index int, curve alignment.CurveParams) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.alignments[alignmentID]
	if !ok {
		return fmt.Errorf("unknown alignment %s: %w", alignmentID, ErrNotFound)
	}
	if err := a.SetCurve(index, curve); err != nil {
		return err
	}
	e.revalidateProfilesLocked(alignmentID)
	e.bumpLocked()
	return nil
}

// revalidateProfilesLocked re-checks PVI stationing against the new
// alignment length after a horizontal edit. Orphaned PVIs are flagged,
// never deleted; the profile surfaces them as a validation error at
// rebuild time.
func (e *Engine) revalidateProfilesLocked(alignmentID string) {
	a := e.alignments[alignmentID]
	for _, p := range e.profiles {
		if p.AlignmentID != alignmentID {
			continue
		}
		if orphans := p.Revalidate(a.Length()); orphans > 0 {
			e.log.Warnw("profile has orphaned PVIs", "profile", p.ID, "orphans", orphans)
		}
	}
}

// AddPVI inserts a vertical point of intersection into a profile.
func (e *Engine) AddPVI(profileID string, station, elevation, curveLength float64) (profile.PVI, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.profiles[profileID]
	if !ok {
		return profile.PVI{}, fmt.Errorf("unknown profile %s: %w", profileID, ErrNotFound)
	}
	pvi, err := p.AddPVI(station, elevation, curveLength)
	if err != nil {
		return profile.PVI{}, err
	}
	e.bumpLocked()
	return pvi, nil
}

// MovePVI relocates a vertical point of intersection.
func (e *Engine) MovePVI(profileID string, index int, station, elevation float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.profiles[profileID]
	if !ok {
		return fmt.Errorf("unknown profile %s: %w", profileID, ErrNotFound)
	}
	if err := p.MovePVI(index, station, elevation); err != nil {
		return err
	}
	e.bumpLocked()
	return nil
}

// RemovePVI deletes a vertical point of intersection.
func (e *Engine) RemovePVI(profileID string, index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.profiles[profileID]
	if !ok {
		return fmt.Errorf("unknown profile %s: %w", profileID, ErrNotFound)
	}
	if err := p.RemovePVI(index); err != nil {
		return err
	}
	e.bumpLocked()
	return nil
}

// SetCurveLength changes the parabolic curve length at a PVI.
func (e *Engine) SetCurveLength(profileID string, index int, length float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.profiles[profileID]
	if !ok {
		return fmt.Errorf("unknown profile %s: %w", profileID, ErrNotFound)
	}
	if err := p.SetCurveLength(index, length); err != nil {
		return err
	}
	e.bumpLocked()
	return nil
}

// SetTemplateComponents replaces a template's component set.
func (e *Engine) SetTemplateComponents(templateID string, components []section.Component) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.templates[templateID]
	if !ok {
		return fmt.Errorf("unknown template %s: %w", templateID, ErrNotFound)
	}
	if err := t.SetComponents(components); err != nil {
		return err
	}
	e.bumpLocked()
	return nil
}

// AssignTemplate applies a template to a station range of a corridor.
// The template becomes a shaping producer of the corridor on first use.
func (e *Engine) AssignTemplate(corridorID, templateID string, start, end float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.corridors[corridorID]
	if !ok {
		return fmt.Errorf("unknown corridor %s: %w", corridorID, ErrNotFound)
	}
	if _, ok := e.templates[templateID]; !ok {
		return fmt.Errorf("unknown template %s: %w", templateID, ErrNotFound)
	}
	hadEdge := false
	for _, edge := range e.graph.Edges() {
		if edge.FromID == templateID && edge.ToID == corridorID {
			hadEdge = true
			break
		}
	}
	if err := c.Assign(templateID, start, end); err != nil {
		return err
	}
	if !hadEdge {
		if err := e.graph.AddEdge(templateID, corridorID, graph.EdgeShapes); err != nil {
			return err
		}
		e.pendingEdges = append(e.pendingEdges, store.EdgeRecord{
			FromID: templateID, ToID: corridorID, Type: string(graph.EdgeShapes),
		})
	}
	e.bumpLocked()
	return nil
}

// SetInterval changes a corridor's nominal sample spacing.
func (e *Engine) SetInterval(corridorID string, interval float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.corridors[corridorID]
	if !ok {
		return fmt.Errorf("unknown corridor %s: %w", corridorID, ErrNotFound)
	}
	if err := c.SetInterval(interval); err != nil {
		return err
	}
	e.bumpLocked()
	return nil
}
