package geom

import "math"

// Spiral transition geometry. Curvature varies linearly along the element
// from startCurv to endCurv (curvature = 1/radius, 0 for a tangent), which
// makes the local coordinates Fresnel integrals with no closed form. They
// are evaluated with adaptive Simpson quadrature; each interval is refined
// until successive estimates agree within integrationTol, so the summed
// position error over a full spiral stays below LengthTol.

// SpiralLocal returns the local coordinates and turn angle reached after
// travelling dist along a spiral of total length length whose curvature
// ramps linearly from startCurv to endCurv. The local frame has +x along
// the entry heading and +y to the left; callers apply the turn sign and
// world transform.
func SpiralLocal(startCurv, endCurv, length, dist float64) (x, y, theta float64) {
	rate := (endCurv - startCurv) / length
	angle := func(t float64) float64 {
		return startCurv*t + rate*t*t/2
	}
	x = adaptiveSimpson(func(t float64) float64 { return math.Cos(angle(t)) }, 0, dist, integrationTol)
	y = adaptiveSimpson(func(t float64) float64 { return math.Sin(angle(t)) }, 0, dist, integrationTol)
	return x, y, angle(dist)
}

// SpiralPoint returns the world pose after travelling dist along a spiral
// element starting at start. turn is +1 for left, -1 for right.
func SpiralPoint(start Pose, startCurv, endCurv, length, turn, dist float64) Pose {
	lx, ly, theta := SpiralLocal(startCurv, endCurv, length, dist)

	sinH, cosH := math.Sincos(start.Heading)
	// Mirror the local y for right-hand spirals, then rotate into world.
	ly *= turn
	return Pose{
		X:       start.X + lx*cosH - ly*sinH,
		Y:       start.Y + lx*sinH + ly*cosH,
		Heading: NormalizeAngle(start.Heading + turn*theta),
	}
}

// SpiralShift returns the offset parameters of an entry spiral of length
// length running from a tangent onto a circle of radius radius:
// p is the shift of the circle away from the tangent, k the distance along
// the tangent from the spiral start to the shifted circle center's foot.
// Both come from the integrated spiral end point, not the small-angle
// series, so they are good to integration tolerance.
func SpiralShift(radius, length float64) (p, k float64) {
	xs, ys, thetaS := SpiralLocal(0, 1/radius, length, length)
	p = ys - radius*(1-math.Cos(thetaS))
	k = xs - radius*math.Sin(thetaS)
	return p, k
}

// adaptiveSimpson integrates f over [a, b], recursively halving intervals
// until the Richardson error estimate for each interval is below tol.
func adaptiveSimpson(f func(float64) float64, a, b, tol float64) float64 {
	c := (a + b) / 2
	fa, fb, fc := f(a), f(b), f(c)
	whole := simpson(fa, fc, fb, b-a)
	return adaptiveSimpsonRec(f, a, b, fa, fb, fc, whole, tol, 50)
}

func adaptiveSimpsonRec(f func(float64) float64, a, b, fa, fb, fc, whole, tol float64, depth int) float64 {
	c := (a + b) / 2
	l := (a + c) / 2
	r := (c + b) / 2
	fl, fr := f(l), f(r)
	left := simpson(fa, fl, fc, c-a)
	right := simpson(fc, fr, fb, b-c)
	if depth <= 0 || math.Abs(left+right-whole) <= 15*tol {
		return left + right + (left+right-whole)/15
	}
	return adaptiveSimpsonRec(f, a, c, fa, fc, fl, left, tol/2, depth-1) +
		adaptiveSimpsonRec(f, c, b, fc, fb, fr, right, tol/2, depth-1)
}

func simpson(fa, fm, fb, h float64) float64 {
	return h / 6 * (fa + 4*fm + fb)
}
