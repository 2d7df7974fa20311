// Package section implements cross-section templates: ordered typed
// components evaluated at a station into offset/elevation-delta points,
// left-to-right from the centerline.
package section

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/alignworks/corridord/pkg/alignment"
)

// ErrUnresolvedComponent reports a component whose constraint could not be
// solved at the requested station (e.g. a ditch that cannot reach daylight
// inside its search bound). The owning entity stays dirty; the error
// carries the station for the user to locate the problem.
var ErrUnresolvedComponent = errors.New("unresolved component")

// ComponentKind enumerates the closed set of section component types. The
// evaluator switches exhaustively over these; adding a kind is a
// compile-visible change.
type ComponentKind string

const (
	KindLane     ComponentKind = "lane"
	KindShoulder ComponentKind = "shoulder"
	KindCurb     ComponentKind = "curb"
	KindMedian   ComponentKind = "median"
	KindSidewalk ComponentKind = "sidewalk"
	KindDitch    ComponentKind = "ditch"
)

// Component is one typed span of a template. Which fields apply depends on
// Kind:
//
//   - lane, shoulder, median, sidewalk: Width and Slope (dz per unit offset).
//   - curb: Height (vertical face) and Width (top run, level).
//   - ditch: SideSlope (must fall), DaylightDelta (target elevation delta
//     relative to profile grade) and MaxRun (search bound for the catch
//     point).
type Component struct {
	Name          string        `json:"name,omitempty" yaml:"name,omitempty"`
	Kind          ComponentKind `json:"kind" yaml:"kind"`
	Width         float64       `json:"width,omitempty" yaml:"width,omitempty"`
	Slope         float64       `json:"slope,omitempty" yaml:"slope,omitempty"`
	Height        float64       `json:"height,omitempty" yaml:"height,omitempty"`
	SideSlope     float64       `json:"side_slope,omitempty" yaml:"side_slope,omitempty"`
	DaylightDelta float64       `json:"daylight_delta,omitempty" yaml:"daylight_delta,omitempty"`
	MaxRun        float64       `json:"max_run,omitempty" yaml:"max_run,omitempty"`
}

// Point is one evaluated section vertex. Tag names the component the
// vertex belongs to; the segment between consecutive points carries the
// right-hand point's tag.
type Point struct {
	Offset    float64       `json:"offset"`
	ElevDelta float64       `json:"elev_delta"`
	Tag       ComponentKind `json:"tag"`
}

// StationContext carries the per-station inputs a component may bank
// against.
type StationContext struct {
	Station float64
	Grade   float64
}

// Template is a named, ordered component list. Editing a referenced
// template invalidates every corridor assignment that uses it, via the
// usual dirty notification.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version int64  `json:"version"`

	components []Component
	notify     alignment.Notifier
}

// NewTemplate creates a template with the given components after
// validating them.
func NewTemplate(id, name string, components []Component, notify alignment.Notifier) (*Template, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if err := validateComponents(name, components); err != nil {
		return nil, err
	}
	t := &Template{ID: id, Name: name, notify: notify}
	t.components = append([]Component(nil), components...)
	return t, nil
}

// Components returns a copy of the ordered component list.
func (t *Template) Components() []Component {
	out := make([]Component, len(t.components))
	copy(out, t.components)
	return out
}

// SetComponents replaces the component list, bumping the version and
// notifying dependents.
func (t *Template) SetComponents(components []Component) error {
	if err := validateComponents(t.Name, components); err != nil {
		return err
	}
	t.components = append([]Component(nil), components...)
	t.Version++
	if t.notify != nil {
		t.notify.MarkDirty(t.ID)
	}
	return nil
}

func validateComponents(name string, components []Component) error {
	if len(components) == 0 {
		return fmt.Errorf("template %q has no components: %w", name, alignment.ErrInvalidGeometry)
	}
	for i, c := range components {
		switch c.Kind {
		case KindLane, KindShoulder, KindMedian, KindSidewalk:
			if c.Width <= 0 {
				return fmt.Errorf("template %q component %d (%s) needs a positive width: %w",
					name, i, c.Kind, alignment.ErrInvalidGeometry)
			}
		case KindCurb:
			if c.Height <= 0 || c.Width < 0 {
				return fmt.Errorf("template %q component %d (curb) needs height > 0 and width >= 0: %w",
					name, i, alignment.ErrInvalidGeometry)
			}
		case KindDitch:
			if c.SideSlope >= 0 || c.MaxRun <= 0 {
				return fmt.Errorf("template %q component %d (ditch) needs a falling side slope and a positive search bound: %w",
					name, i, alignment.ErrInvalidGeometry)
			}
		default:
			return fmt.Errorf("template %q component %d has unknown kind %q: %w",
				name, i, c.Kind, alignment.ErrInvalidGeometry)
		}
	}
	return nil
}

// Evaluate applies the template at a station. Points run left-to-right
// from the centerline; each component starts exactly where the previous
// one ended, so consecutive offset ranges are contiguous by construction.
func (t *Template) Evaluate(ctx StationContext) ([]Point, error) {
	points := make([]Point, 0, len(t.components)+2)
	points = append(points, Point{Offset: 0, ElevDelta: 0, Tag: t.components[0].Kind})

	off, dz := 0.0, 0.0
	for i, c := range t.components {
		switch c.Kind {
		case KindLane, KindShoulder, KindMedian, KindSidewalk:
			off += c.Width
			dz += c.Width * c.Slope
			points = append(points, Point{Offset: off, ElevDelta: dz, Tag: c.Kind})

		case KindCurb:
			// Vertical face, then a level top run.
			dz += c.Height
			points = append(points, Point{Offset: off, ElevDelta: dz, Tag: c.Kind})
			if c.Width > 0 {
				off += c.Width
				points = append(points, Point{Offset: off, ElevDelta: dz, Tag: c.Kind})
			}

		case KindDitch:
			// Solve the catch point where the side slope meets the target
			// daylight delta. The slope must actually fall toward it.
			run := (c.DaylightDelta - dz) / c.SideSlope
			if run <= 0 {
				return nil, fmt.Errorf("station %.3f component %d (ditch): side slope %.4f cannot reach daylight delta %.3f from %.3f: %w",
					ctx.Station, i, c.SideSlope, c.DaylightDelta, dz, ErrUnresolvedComponent)
			}
			if run > c.MaxRun {
				return nil, fmt.Errorf("station %.3f component %d (ditch): catch point at %.3f exceeds search bound %.3f: %w",
					ctx.Station, i, run, c.MaxRun, ErrUnresolvedComponent)
			}
			off += run
			dz = c.DaylightDelta
			points = append(points, Point{Offset: off, ElevDelta: dz, Tag: c.Kind})
		}
	}
	return points, nil
}

// Clone returns a deep copy detached from the notifier.
func (t *Template) Clone() *Template {
	c := &Template{ID: t.ID, Name: t.Name, Version: t.Version}
	c.components = append([]Component(nil), t.components...)
	return c
}

// Restore replaces the component list from committed state without version
// bump or notification.
func (t *Template) Restore(components []Component, version int64) error {
	if err := validateComponents(t.Name, components); err != nil {
		return err
	}
	t.components = append([]Component(nil), components...)
	t.Version = version
	return nil
}
