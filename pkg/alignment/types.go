package alignment

import (
	"errors"

	"github.com/alignworks/corridord/pkg/geom"
)

// ErrInvalidGeometry reports curve parameters that cannot be fit between
// the adjacent tangents. Edits failing this check are rejected before the
// model is touched; the error never reaches the rebuild pipeline.
var ErrInvalidGeometry = errors.New("invalid geometry")

// Notifier receives dirty notifications after every successful mutation.
// The engine wires this to the dependency graph.
type Notifier interface {
	MarkDirty(entityID string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(entityID string)

// MarkDirty implements Notifier.
func (f NotifierFunc) MarkDirty(entityID string) { f(entityID) }

// CurveParams describes the horizontal curve placed at an interior PI.
// Radius 0 means no curve (legal only where the tangents are collinear).
// SpiralLength > 0 adds equal clothoid transitions on both ends of the arc.
type CurveParams struct {
	Radius       float64 `json:"radius"`
	SpiralLength float64 `json:"spiral_length,omitempty"`
}

// PI is a Point of Intersection: a plan anchor of the alignment's tangent
// polygon, owned by its parent Alignment.
type PI struct {
	ID    string      `json:"id"`
	Point geom.Point2 `json:"point"`
	Curve CurveParams `json:"curve"`
}

type elementKind int

const (
	elemTangent elementKind = iota
	elemSpiralIn
	elemArc
	elemSpiralOut
)

// element is one stationed piece of the solved centerline. Elements are
// derived state, regenerated wholesale by solve; they are never edited.
type element struct {
	kind         elementKind
	startStation float64
	length       float64
	start        geom.Pose
	radius       float64 // arc and spiral elements
	turn         float64 // +1 left, -1 right
	spiralLen    float64 // spiral elements
}

func (e *element) endStation() float64 { return e.startStation + e.length }

// poseAt evaluates the element at arc distance ds from its start.
func (e *element) poseAt(ds float64) geom.Pose {
	switch e.kind {
	case elemTangent:
		p := geom.Translate(geom.Point2{X: e.start.X, Y: e.start.Y}, e.start.Heading, ds)
		return geom.Pose{X: p.X, Y: p.Y, Heading: e.start.Heading}
	case elemArc:
		return geom.ArcPoint(e.start, e.radius, e.turn, ds)
	case elemSpiralIn:
		return geom.SpiralPoint(e.start, 0, 1/e.radius, e.spiralLen, e.turn, ds)
	case elemSpiralOut:
		return geom.SpiralPoint(e.start, 1/e.radius, 0, e.spiralLen, e.turn, ds)
	}
	return e.start
}
