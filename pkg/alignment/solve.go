package alignment

import (
	"fmt"
	"math"

	"github.com/alignworks/corridord/pkg/geom"
)

// curveFit is the solved curve at one interior PI: how far the curve eats
// back along both tangents, and the element lengths to emit.
type curveFit struct {
	tangent   float64 // PI to curve start/end point along either tangent
	arcLen    float64
	spiralLen float64
	radius    float64
	turn      float64
}

// solve turns a PI sequence into a stationed element chain. It validates
// curve feasibility (tangent fit, spiral share of the deflection) before
// producing anything, so callers can treat an error as a clean rejection.
func solve(pis []PI) ([]element, float64, error) {
	n := len(pis)
	if n < 2 {
		return nil, 0, nil
	}

	headings := make([]float64, n-1)
	segLen := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		d := geom.Dist(pis[i].Point, pis[i+1].Point)
		if d < geom.LengthTol {
			return nil, 0, fmt.Errorf("PIs %d and %d are coincident: %w", i, i+1, ErrInvalidGeometry)
		}
		segLen[i] = d
		headings[i] = geom.HeadingBetween(pis[i].Point, pis[i+1].Point)
	}

	fits := make([]curveFit, n)
	for i := 1; i < n-1; i++ {
		defl := geom.Deflection(headings[i-1], headings[i])
		if math.Abs(defl) < geom.AngleTol {
			// Collinear tangents; any configured curve is a no-op.
			continue
		}
		c := pis[i].Curve
		if c.Radius <= 0 {
			return nil, 0, fmt.Errorf("PI %d deflects %.6f rad without a curve radius: %w", i, defl, ErrInvalidGeometry)
		}
		turn := 1.0
		if defl < 0 {
			turn = -1.0
		}
		absDefl := math.Abs(defl)

		fit := curveFit{radius: c.Radius, turn: turn}
		if c.SpiralLength > 0 {
			thetaS := c.SpiralLength / (2 * c.Radius)
			if absDefl <= 2*thetaS+geom.AngleTol {
				return nil, 0, fmt.Errorf("PI %d: spiral pair consumes %.6f rad of a %.6f rad deflection: %w",
					i, 2*thetaS, absDefl, ErrInvalidGeometry)
			}
			p, k := geom.SpiralShift(c.Radius, c.SpiralLength)
			fit.tangent = (c.Radius+p)*math.Tan(absDefl/2) + k
			fit.arcLen = c.Radius * (absDefl - 2*thetaS)
			fit.spiralLen = c.SpiralLength
		} else {
			fit.tangent = geom.TangentLength(c.Radius, absDefl)
			fit.arcLen = geom.ArcLength(c.Radius, absDefl)
		}
		fits[i] = fit
	}

	// Mandatory fit check: both curves sharing a tangent leg must leave
	// room for each other. Runs before any element is built.
	for i := 0; i < n-1; i++ {
		need := fits[i].tangent + fits[i+1].tangent
		if need > segLen[i]+geom.LengthTol {
			return nil, 0, fmt.Errorf("tangents at PIs %d/%d need %.6f of a %.6f leg: %w",
				i, i+1, need, segLen[i], ErrInvalidGeometry)
		}
	}

	// Walk the tangent polygon emitting elements. Stationing always runs
	// from zero to the end; the post-curve pose is snapped analytically to
	// the outgoing tangent so integration error cannot accumulate.
	var elems []element
	station := 0.0
	cur := geom.Pose{X: pis[0].Point.X, Y: pis[0].Point.Y, Heading: headings[0]}
	consumed := 0.0 // distance used on the current leg, measured from the previous PI

	emit := func(e element) {
		e.startStation = station
		station += e.length
		elems = append(elems, e)
	}

	for i := 1; i < n-1; i++ {
		fit := fits[i]
		run := segLen[i-1] - consumed - fit.tangent
		if run > geom.LengthTol {
			emit(element{kind: elemTangent, length: run, start: cur})
			p := geom.Translate(geom.Point2{X: cur.X, Y: cur.Y}, cur.Heading, run)
			cur = geom.Pose{X: p.X, Y: p.Y, Heading: cur.Heading}
		}

		if fit.arcLen > 0 || fit.spiralLen > 0 {
			if fit.spiralLen > 0 {
				emit(element{kind: elemSpiralIn, length: fit.spiralLen, start: cur,
					radius: fit.radius, turn: fit.turn, spiralLen: fit.spiralLen})
				cur = geom.SpiralPoint(cur, 0, 1/fit.radius, fit.spiralLen, fit.turn, fit.spiralLen)
			}
			emit(element{kind: elemArc, length: fit.arcLen, start: cur,
				radius: fit.radius, turn: fit.turn})
			cur = geom.ArcPoint(cur, fit.radius, fit.turn, fit.arcLen)
			if fit.spiralLen > 0 {
				emit(element{kind: elemSpiralOut, length: fit.spiralLen, start: cur,
					radius: fit.radius, turn: fit.turn, spiralLen: fit.spiralLen})
			}
			// Snap onto the outgoing tangent.
			p := geom.Translate(pis[i].Point, headings[i], fit.tangent)
			cur = geom.Pose{X: p.X, Y: p.Y, Heading: headings[i]}
			consumed = fit.tangent
		} else {
			consumed = 0
		}
	}

	if run := segLen[n-2] - consumed; run > geom.LengthTol {
		emit(element{kind: elemTangent, length: run, start: cur})
	}

	return elems, station, nil
}
