package geom

import "math"

// ArcPoint returns the pose reached after travelling dist along a circular
// arc of the given radius, starting at start. turn is +1 for a left (CCW)
// curve and -1 for a right curve. The result is closed form; no integration
// is involved.
func ArcPoint(start Pose, radius, turn, dist float64) Pose {
	// Sweep angle travelled so far.
	sweep := turn * dist / radius

	// Arc center sits one radius to the side of travel.
	nx, ny := RightNormal(start.Heading)
	cx := start.X - turn*radius*nx
	cy := start.Y - turn*radius*ny

	// Rotate the start point about the center by the sweep.
	sinS, cosS := math.Sincos(sweep)
	dx := start.X - cx
	dy := start.Y - cy
	return Pose{
		X:       cx + dx*cosS - dy*sinS,
		Y:       cy + dx*sinS + dy*cosS,
		Heading: NormalizeAngle(start.Heading + sweep),
	}
}

// TangentLength returns the distance from a PI to the curve tangent point
// for a simple circular curve of the given radius turning through the
// absolute deflection angle defl.
func TangentLength(radius, defl float64) float64 {
	return radius * math.Tan(math.Abs(defl)/2)
}

// ArcLength returns the arc length of a simple circular curve of the given
// radius turning through the absolute deflection angle defl.
func ArcLength(radius, defl float64) float64 {
	return radius * math.Abs(defl)
}
