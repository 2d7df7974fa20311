package engine

import (
	"encoding/json"
	"fmt"

	"github.com/alignworks/corridord/pkg/alignment"
	"github.com/alignworks/corridord/pkg/corridor"
	"github.com/alignworks/corridord/pkg/profile"
	"github.com/alignworks/corridord/pkg/section"
	"github.com/alignworks/corridord/pkg/store"
)

// Persisted payload envelopes. The payload is the defining state of an
// entity; committed geometry travels separately in Record.Geometry.

type alignmentPayload struct {
	Name string         `json:"name"`
	PIs  []alignment.PI `json:"pis"`
}

type profilePayload struct {
	Name        string        `json:"name"`
	AlignmentID string        `json:"alignment_id"`
	PVIs        []profile.PVI `json:"pvis"`
}

type templatePayload struct {
	Name       string              `json:"name"`
	Components []section.Component `json:"components"`
}

type corridorPayload struct {
	Name        string                `json:"name"`
	AlignmentID string                `json:"alignment_id"`
	ProfileID   string                `json:"profile_id"`
	Interval    float64               `json:"interval"`
	Assignments []corridor.Assignment `json:"assignments"`
}

func alignmentRecord(a *alignment.Alignment) (store.Record, error) {
	payload, err := json.Marshal(alignmentPayload{Name: a.Name, PIs: a.PIs()})
	if err != nil {
		return store.Record{}, fmt.Errorf("marshal alignment %s: %w", a.ID, err)
	}
	return store.Record{ID: a.ID, Kind: store.KindAlignment, Version: a.Version, Payload: payload}, nil
}

func profileRecord(p *profile.Profile) (store.Record, error) {
	payload, err := json.Marshal(profilePayload{Name: p.Name, AlignmentID: p.AlignmentID, PVIs: p.PVIs()})
	if err != nil {
		return store.Record{}, fmt.Errorf("marshal profile %s: %w", p.ID, err)
	}
	return store.Record{ID: p.ID, Kind: store.KindProfile, Version: p.Version, Payload: payload}, nil
}

func templateRecord(t *section.Template) (store.Record, error) {
	payload, err := json.Marshal(templatePayload{Name: t.Name, Components: t.Components()})
	if err != nil {
		return store.Record{}, fmt.Errorf("marshal template %s: %w", t.ID, err)
	}
	return store.Record{ID: t.ID, Kind: store.KindTemplate, Version: t.Version, Payload: payload}, nil
}

func corridorRecord(c *corridor.Corridor, surface *corridor.Surface) (store.Record, error) {
	payload, err := json.Marshal(corridorPayload{
		Name:        c.Name,
		AlignmentID: c.AlignmentID,
		ProfileID:   c.ProfileID,
		Interval:    c.Interval,
		Assignments: c.Assignments(),
	})
	if err != nil {
		return store.Record{}, fmt.Errorf("marshal corridor %s: %w", c.ID, err)
	}
	rec := store.Record{ID: c.ID, Kind: store.KindCorridor, Version: c.Version, Payload: payload}
	if surface != nil {
		geometry, err := json.Marshal(surface)
		if err != nil {
			return store.Record{}, fmt.Errorf("marshal corridor %s surface: %w", c.ID, err)
		}
		rec.Geometry = geometry
	}
	return rec, nil
}
