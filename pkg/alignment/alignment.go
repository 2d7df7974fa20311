package alignment

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/alignworks/corridord/pkg/geom"
)

// Alignment maintains a continuous, stationed centerline solved from an
// ordered PI sequence. All mutations re-solve the affected geometry before
// acceptance and recompute stationing end to end; a caller never observes
// partially-stationed state.
type Alignment struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version int64  `json:"version"`

	pis      []PI
	elements []element
	length   float64

	notify Notifier
}

// New creates an empty alignment. notify may be nil (useful in tests and
// for snapshot clones); dirty notifications are then dropped.
func New(id, name string, notify Notifier) *Alignment {
	if id == "" {
		id = uuid.NewString()
	}
	return &Alignment{ID: id, Name: name, notify: notify}
}

// PIs returns a copy of the PI sequence.
func (a *Alignment) PIs() []PI {
	out := make([]PI, len(a.pis))
	copy(out, a.pis)
	return out
}

// Length returns the total stationed length of the solved centerline.
func (a *Alignment) Length() float64 { return a.length }

// PointAt returns the plan pose at station s. Implements geom.Centerline.
func (a *Alignment) PointAt(s float64) (geom.Pose, error) {
	if len(a.elements) == 0 {
		return geom.Pose{}, geom.OutOfRangeError(s, 0, 0)
	}
	if s < -geom.LengthTol || s > a.length+geom.LengthTol {
		return geom.Pose{}, geom.OutOfRangeError(s, 0, a.length)
	}
	s = math.Max(0, math.Min(s, a.length))

	i := sort.Search(len(a.elements), func(i int) bool {
		return a.elements[i].endStation() >= s
	})
	if i == len(a.elements) {
		i--
	}
	e := &a.elements[i]
	return e.poseAt(s - e.startStation), nil
}

// KeyStations returns every element-boundary station in increasing order,
// including 0 and the total length. The corridor builder samples all of
// them so no curve or spiral junction falls between sections.
func (a *Alignment) KeyStations() []float64 {
	if len(a.elements) == 0 {
		return nil
	}
	out := make([]float64, 0, len(a.elements)+1)
	for i := range a.elements {
		out = append(out, a.elements[i].startStation)
	}
	out = append(out, a.length)
	return out
}

// InsertPI inserts a PI at the given index (0..len) and re-solves the
// centerline. The curve fit check runs against the proposed sequence; on
// failure the alignment is left untouched and ErrInvalidGeometry returned.
func (a *Alignment) InsertPI(index int, point geom.Point2, curve CurveParams) (PI, error) {
	if index < 0 || index > len(a.pis) {
		return PI{}, fmt.Errorf("insert index %d outside [0, %d]: %w", index, len(a.pis), geom.ErrOutOfRange)
	}
	pi := PI{ID: uuid.NewString(), Point: point, Curve: curve}

	proposed := make([]PI, 0, len(a.pis)+1)
	proposed = append(proposed, a.pis[:index]...)
	proposed = append(proposed, pi)
	proposed = append(proposed, a.pis[index:]...)

	if err := a.adopt(proposed); err != nil {
		return PI{}, err
	}
	return pi, nil
}

// RemovePI removes the PI at index and re-solves. The removed PI is
// destroyed; its ID is never reused.
func (a *Alignment) RemovePI(index int) error {
	if index < 0 || index >= len(a.pis) {
		return fmt.Errorf("remove index %d outside [0, %d): %w", index, len(a.pis), geom.ErrOutOfRange)
	}
	proposed := make([]PI, 0, len(a.pis)-1)
	proposed = append(proposed, a.pis[:index]...)
	proposed = append(proposed, a.pis[index+1:]...)
	return a.adopt(proposed)
}

// MovePI relocates the PI at index and re-solves. Stationing downstream of
// the edit shifts with the new tangent lengths; it is always recomputed
// from station zero.
func (a *Alignment) MovePI(index int, point geom.Point2) error {
	if index < 0 || index >= len(a.pis) {
		return fmt.Errorf("move index %d outside [0, %d): %w", index, len(a.pis), geom.ErrOutOfRange)
	}
	proposed := a.PIs()
	proposed[index].Point = point
	return a.adopt(proposed)
}

// SetCurve replaces the curve parameters of the PI at index and re-solves.
func (a *Alignment) SetCurve(index int, curve CurveParams) error {
	if index < 0 || index >= len(a.pis) {
		return fmt.Errorf("curve index %d outside [0, %d): %w", index, len(a.pis), geom.ErrOutOfRange)
	}
	proposed := a.PIs()
	proposed[index].Curve = curve
	return a.adopt(proposed)
}

// adopt validates and installs a proposed PI sequence, bumps the version
// and emits the dirty notification. On error nothing changes.
func (a *Alignment) adopt(proposed []PI) error {
	elements, length, err := solve(proposed)
	if err != nil {
		return err
	}
	a.pis = proposed
	a.elements = elements
	a.length = length
	a.Version++
	if a.notify != nil {
		a.notify.MarkDirty(a.ID)
	}
	return nil
}

// Clone returns a deep copy detached from the notifier, for use as an
// immutable rebuild snapshot.
func (a *Alignment) Clone() *Alignment {
	c := &Alignment{ID: a.ID, Name: a.Name, Version: a.Version, length: a.length}
	c.pis = make([]PI, len(a.pis))
	copy(c.pis, a.pis)
	c.elements = make([]element, len(a.elements))
	copy(c.elements, a.elements)
	return c
}

// Restore installs a PI sequence without touching the version or emitting
// notifications. Used when loading committed state from the store; the
// sequence must have been valid when persisted.
func (a *Alignment) Restore(pis []PI, version int64) error {
	elements, length, err := solve(pis)
	if err != nil {
		return err
	}
	a.pis = pis
	a.elements = elements
	a.length = length
	a.Version = version
	return nil
}
