package geom

// Equal-tangent parabolic vertical curve. Grades are dimensionless rise
// over run (0.02 = 2% up-grade). x is the distance along the curve from
// the begin-of-vertical-curve point, length the full curve length.

// ParabolaElevation returns the elevation on an equal-tangent parabola
// starting at bvcElev with entry grade g1, exit grade g2.
func ParabolaElevation(bvcElev, g1, g2, length, x float64) float64 {
	return bvcElev + g1*x + (g2-g1)*x*x/(2*length)
}

// ParabolaGrade returns the instantaneous grade (first derivative) at x.
func ParabolaGrade(g1, g2, length, x float64) float64 {
	return g1 + (g2-g1)*x/length
}

// ParabolaHighLow returns the distance from the curve start to the local
// high or low point, and true when one exists inside the curve. The
// extremum is where grade crosses zero, x = -g1*L/(g2-g1).
func ParabolaHighLow(g1, g2, length float64) (float64, bool) {
	if g1 == g2 {
		return 0, false
	}
	x := -g1 * length / (g2 - g1)
	if x <= 0 || x >= length {
		return 0, false
	}
	return x, true
}
