package geom

// Centerline is a horizontal alignment seen as a station-parameterized
// curve. Implemented by pkg/alignment.
type Centerline interface {
	// PointAt returns the plan pose at station s, or ErrOutOfRange when s
	// lies outside [0, Length()].
	PointAt(s float64) (Pose, error)
	// Length returns the total stationed length.
	Length() float64
}

// Gradeline is a vertical profile seen as an elevation function over
// station. Implemented by pkg/profile.
type Gradeline interface {
	// ElevationAt returns elevation and grade at station s, or
	// ErrOutOfRange when s is outside the profile domain.
	ElevationAt(s float64) (elev, grade float64, err error)
}

// StationOffsetToWorld maps a (station, offset, elevation delta) triplet to
// a world point. offset is measured along the right normal of the travel
// direction, elevDelta relative to the profile elevation at s.
//
// This is the single projection used by the section evaluator and the
// corridor builder; two calls with equal inputs return bit-identical
// results because every term is evaluated through the same code path.
func StationOffsetToWorld(center Centerline, grade Gradeline, s, offset, elevDelta float64) (Point3, error) {
	pose, err := center.PointAt(s)
	if err != nil {
		return Point3{}, err
	}
	elev, _, err := grade.ElevationAt(s)
	if err != nil {
		return Point3{}, err
	}
	nx, ny := RightNormal(pose.Heading)
	return Point3{
		X: pose.X + offset*nx,
		Y: pose.Y + offset*ny,
		Z: elev + elevDelta,
	}, nil
}
