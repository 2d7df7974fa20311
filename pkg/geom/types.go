package geom

import (
	"errors"
	"fmt"
	"math"
)

// Tolerances used across the geometry layer. Positions and lengths are in
// the project linear unit, headings in radians.
const (
	// LengthTol bounds acceptable error on computed arc lengths and
	// positions (1e-6 of an alignment unit).
	LengthTol = 1e-6
	// AngleTol bounds acceptable heading discontinuity at element
	// junctions.
	AngleTol = 1e-6
	// integrationTol is the per-interval convergence criterion for the
	// adaptive Simpson integrator; tighter than LengthTol so accumulated
	// error over a spiral stays within LengthTol.
	integrationTol = 1e-9
)

// ErrOutOfRange reports a station or offset outside the valid domain of the
// queried entity. Callers are expected to correct the input and retry.
var ErrOutOfRange = errors.New("out of range")

// OutOfRangeError wraps ErrOutOfRange with the offending station and the
// valid domain.
func OutOfRangeError(station, min, max float64) error {
	return fmt.Errorf("station %.6f outside domain [%.6f, %.6f]: %w", station, min, max, ErrOutOfRange)
}

// Point2 is a 2D point in project plan coordinates.
type Point2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Point3 is a 3D point in project coordinates.
type Point3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Pose is a position plus travel direction on the centerline. Heading is in
// radians measured counter-clockwise from the project +X bearing.
type Pose struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

// Dist returns the Euclidean distance between two plan points.
func Dist(a, b Point2) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// HeadingBetween returns the direction of travel from a to b.
func HeadingBetween(a, b Point2) float64 {
	return math.Atan2(b.Y-a.Y, b.X-a.X)
}

// NormalizeAngle maps an angle into (-pi, pi].
func NormalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// Deflection returns the signed turn from heading h1 to heading h2.
// Positive means a left (counter-clockwise) turn.
func Deflection(h1, h2 float64) float64 {
	return NormalizeAngle(h2 - h1)
}

// Translate moves p by distance d along heading h.
func Translate(p Point2, h, d float64) Point2 {
	return Point2{X: p.X + d*math.Cos(h), Y: p.Y + d*math.Sin(h)}
}

// RightNormal returns the unit vector pointing to the right of travel for
// heading h. Positive section offsets are measured along this direction.
func RightNormal(h float64) (float64, float64) {
	return math.Sin(h), -math.Cos(h)
}
