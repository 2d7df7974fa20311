package engine

import (
	"fmt"
	"sort"

	"github.com/alignworks/corridord/pkg/geom"
)

// Read-side accessors. These serialize on the engine mutex like commands,
// so callers always observe a fully adopted model state.

// AlignmentPoint evaluates an alignment's centerline at a station.
func (e *Engine) AlignmentPoint(alignmentID string, station float64) (geom.Pose, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.alignments[alignmentID]
	if !ok {
		return geom.Pose{}, fmt.Errorf("unknown alignment %s: %w", alignmentID, ErrNotFound)
	}
	return a.PointAt(station)
}

// ProfileElevation evaluates a profile's grade line at a station,
// returning elevation and grade.
func (e *Engine) ProfileElevation(profileID string, station float64) (float64, float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.profiles[profileID]
	if !ok {
		return 0, 0, fmt.Errorf("unknown profile %s: %w", profileID, ErrNotFound)
	}
	return p.ElevationAt(station)
}

// EntitySummary is one project entity as listed over the API.
type EntitySummary struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Version int64  `json:"version"`
	State   string `json:"state"`
	Err     string `json:"err,omitempty"`
}

// Entities lists every project entity with its rebuild state.
func (e *Engine) Entities() []EntitySummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := make(map[string]string)
	versions := make(map[string]int64)
	for id, a := range e.alignments {
		names[id], versions[id] = a.Name, a.Version
	}
	for id, p := range e.profiles {
		names[id], versions[id] = p.Name, p.Version
	}
	for id, t := range e.templates {
		names[id], versions[id] = t.Name, t.Version
	}
	for id, c := range e.corridors {
		names[id], versions[id] = c.Name, c.Version
	}

	nodes := e.graph.Nodes()
	out := make([]EntitySummary, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, EntitySummary{
			ID:      n.ID,
			Kind:    string(n.Kind),
			Name:    names[n.ID],
			Version: versions[n.ID],
			State:   string(n.State),
			Err:     n.Err,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
