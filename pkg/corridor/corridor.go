// Package corridor binds one horizontal alignment, one vertical profile
// and a set of template assignments over station ranges, and builds the
// corridor surface skeleton by sampling cross-sections along the stations.
package corridor

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/alignworks/corridord/pkg/alignment"
	"github.com/alignworks/corridord/pkg/geom"
)

// Assignment applies one template over a half-open station range
// [Start, End). Assignments on the same corridor must not overlap.
type Assignment struct {
	TemplateID string  `json:"template_id"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
}

// Corridor is a derived entity: its surface is always a function of its
// bound alignment, profile and template assignments, regenerated whole on
// every rebuild. Only the bindings themselves are editable.
type Corridor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AlignmentID string `json:"alignment_id"`
	ProfileID   string `json:"profile_id"`
	Version     int64  `json:"version"`

	// Interval is the nominal sample spacing; key stations are always
	// added on top of it.
	Interval float64 `json:"interval"`

	assignments []Assignment
	notify      alignment.Notifier
}

// New creates a corridor binding the given alignment and profile.
func New(id, name, alignmentID, profileID string, interval float64, notify alignment.Notifier) *Corridor {
	if id == "" {
		id = uuid.NewString()
	}
	if interval <= 0 {
		interval = 10
	}
	return &Corridor{
		ID: id, Name: name,
		AlignmentID: alignmentID, ProfileID: profileID,
		Interval: interval, notify: notify,
	}
}

// Assignments returns a copy of the template assignments.
func (c *Corridor) Assignments() []Assignment {
	out := make([]Assignment, len(c.assignments))
	copy(out, c.assignments)
	return out
}

// Assign applies a template over [start, end). Overlapping an existing
// assignment is rejected with InvalidGeometry.
func (c *Corridor) Assign(templateID string, start, end float64) error {
	if end <= start {
		return fmt.Errorf("assignment range [%.3f, %.3f) is empty: %w", start, end, alignment.ErrInvalidGeometry)
	}
	for _, a := range c.assignments {
		if start < a.End-geom.LengthTol && a.Start < end-geom.LengthTol {
			return fmt.Errorf("assignment [%.3f, %.3f) overlaps [%.3f, %.3f): %w",
				start, end, a.Start, a.End, alignment.ErrInvalidGeometry)
		}
	}
	c.assignments = append(c.assignments, Assignment{TemplateID: templateID, Start: start, End: end})
	c.bump()
	return nil
}

// ClearAssignments removes every template assignment.
func (c *Corridor) ClearAssignments() {
	c.assignments = nil
	c.bump()
}

// SetInterval changes the nominal sample spacing.
func (c *Corridor) SetInterval(interval float64) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %.3f: %w", interval, alignment.ErrInvalidGeometry)
	}
	c.Interval = interval
	c.bump()
	return nil
}

func (c *Corridor) bump() {
	c.Version++
	if c.notify != nil {
		c.notify.MarkDirty(c.ID)
	}
}

// templateFor returns the assignment covering station s, if any. Ranges
// are half-open so an interior boundary station belongs to the next
// assignment; the terminal end station still maps to its own assignment.
func (c *Corridor) templateFor(s float64) (Assignment, bool) {
	for _, a := range c.assignments {
		if s >= a.Start-geom.LengthTol && s < a.End-geom.LengthTol {
			return a, true
		}
	}
	for _, a := range c.assignments {
		if s >= a.End-geom.LengthTol && s <= a.End+geom.LengthTol {
			return a, true
		}
	}
	return Assignment{}, false
}

// Clone returns a deep copy detached from the notifier.
func (c *Corridor) Clone() *Corridor {
	cl := &Corridor{
		ID: c.ID, Name: c.Name,
		AlignmentID: c.AlignmentID, ProfileID: c.ProfileID,
		Version: c.Version, Interval: c.Interval,
	}
	cl.assignments = append([]Assignment(nil), c.assignments...)
	return cl
}

// Restore installs assignments from committed state without version bump
// or notification.
func (c *Corridor) Restore(assignments []Assignment, interval float64, version int64) {
	c.assignments = append([]Assignment(nil), assignments...)
	if interval > 0 {
		c.Interval = interval
	}
	c.Version = version
}
