package geom

import (
	"math"
	"testing"
)

func TestArcPoint_QuarterCircleLeft(t *testing.T) {
	start := Pose{X: 0, Y: 0, Heading: 0}
	radius := 100.0
	dist := radius * math.Pi / 2

	end := ArcPoint(start, radius, +1, dist)

	if math.Abs(end.X-100) > LengthTol {
		t.Errorf("expected X=100, got %f", end.X)
	}
	if math.Abs(end.Y-100) > LengthTol {
		t.Errorf("expected Y=100, got %f", end.Y)
	}
	if math.Abs(end.Heading-math.Pi/2) > AngleTol {
		t.Errorf("expected heading pi/2, got %f", end.Heading)
	}
}

func TestArcPoint_RightTurnMirrors(t *testing.T) {
	start := Pose{X: 0, Y: 0, Heading: 0}
	left := ArcPoint(start, 50, +1, 30)
	right := ArcPoint(start, 50, -1, 30)

	if math.Abs(left.X-right.X) > LengthTol {
		t.Errorf("X should be symmetric: %f vs %f", left.X, right.X)
	}
	if math.Abs(left.Y+right.Y) > LengthTol {
		t.Errorf("Y should mirror: %f vs %f", left.Y, right.Y)
	}
	if math.Abs(left.Heading+right.Heading) > AngleTol {
		t.Errorf("heading should mirror: %f vs %f", left.Heading, right.Heading)
	}
}

func TestTangentLength_RightAngle(t *testing.T) {
	// 90 degree deflection, R=100: T = R*tan(45) = R.
	got := TangentLength(100, math.Pi/2)
	if math.Abs(got-100) > LengthTol {
		t.Errorf("expected 100, got %f", got)
	}
}

func TestSpiralLocal_EndAngle(t *testing.T) {
	// Entry spiral onto R=300 over 60 units: theta_s = L/(2R).
	_, _, theta := SpiralLocal(0, 1.0/300.0, 60, 60)
	want := 60.0 / (2 * 300.0)
	if math.Abs(theta-want) > AngleTol {
		t.Errorf("expected spiral angle %f, got %f", want, theta)
	}
}

func TestSpiralLocal_SeriesAgreement(t *testing.T) {
	// Two-term clothoid series: x = L - L^5/(40*A^4),
	// y = L^3/(6*A^2) - L^7/(336*A^6), with A^2 = R*L. At R=500, L=80 the
	// second y term is ~9.8e-4, so it must be carried to compare at 1e-4.
	R := 500.0
	L := 80.0
	x, y, _ := SpiralLocal(0, 1/R, L, L)

	a2 := R * L // flatness parameter squared
	wantX := L - math.Pow(L, 5)/(40*a2*a2)
	wantY := L*L*L/(6*a2) - math.Pow(L, 7)/(336*a2*a2*a2)

	if math.Abs(x-wantX) > 1e-4 {
		t.Errorf("x: expected %f, got %f", wantX, x)
	}
	if math.Abs(y-wantY) > 1e-4 {
		t.Errorf("y: expected %f, got %f", wantY, y)
	}
}

func TestSpiralLocal_ZeroCurvatureIsStraight(t *testing.T) {
	x, y, theta := SpiralLocal(0, 0, 100, 40)
	if math.Abs(x-40) > LengthTol || math.Abs(y) > LengthTol || theta != 0 {
		t.Errorf("straight element expected (40,0,0), got (%f,%f,%f)", x, y, theta)
	}
}

func TestSpiralShift_SmallAngleApprox(t *testing.T) {
	R := 400.0
	L := 50.0
	p, k := SpiralShift(R, L)

	// p ~ L^2/(24R), k ~ L/2 for flat spirals.
	if math.Abs(p-L*L/(24*R)) > 1e-4 {
		t.Errorf("p: expected about %f, got %f", L*L/(24*R), p)
	}
	if math.Abs(k-L/2) > 1e-2 {
		t.Errorf("k: expected about %f, got %f", L/2, k)
	}
}

func TestParabola_ElevationAndGrade(t *testing.T) {
	// Sag curve: -2% into +3% over 200 units starting at elevation 50.
	bvc, g1, g2, L := 50.0, -0.02, 0.03, 200.0

	if e := ParabolaElevation(bvc, g1, g2, L, 0); math.Abs(e-50) > LengthTol {
		t.Errorf("start elevation: got %f", e)
	}
	// End elevation: 50 + g1*L + (g2-g1)*L/2.
	wantEnd := 50.0 + g1*L + (g2-g1)*L/2
	if e := ParabolaElevation(bvc, g1, g2, L, L); math.Abs(e-wantEnd) > LengthTol {
		t.Errorf("end elevation: expected %f, got %f", wantEnd, e)
	}
	if g := ParabolaGrade(g1, g2, L, 0); math.Abs(g-g1) > 1e-12 {
		t.Errorf("start grade: got %f", g)
	}
	if g := ParabolaGrade(g1, g2, L, L); math.Abs(g-g2) > 1e-12 {
		t.Errorf("end grade: got %f", g)
	}

	x, ok := ParabolaHighLow(g1, g2, L)
	if !ok {
		t.Fatal("expected a low point inside the curve")
	}
	if g := ParabolaGrade(g1, g2, L, x); math.Abs(g) > 1e-12 {
		t.Errorf("grade at low point should be zero, got %f", g)
	}
}

func TestNormalizeAngle(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{3 * math.Pi, math.Pi},
		{-3 * math.Pi, math.Pi},
		{math.Pi / 4, math.Pi / 4},
		{-math.Pi / 4, -math.Pi / 4},
	}
	for _, c := range cases {
		if got := NormalizeAngle(c.in); math.Abs(got-c.want) > 1e-12 {
			t.Errorf("NormalizeAngle(%f): expected %f, got %f", c.in, c.want, got)
		}
	}
}

// Fixed stubs so the transform can be tested without the alignment packages.

type straightLine struct{ length float64 }

func (l straightLine) PointAt(s float64) (Pose, error) {
	if s < 0 || s > l.length {
		return Pose{}, OutOfRangeError(s, 0, l.length)
	}
	return Pose{X: s, Y: 0, Heading: 0}, nil
}
func (l straightLine) Length() float64 { return l.length }

type flatGrade struct{ elev, length float64 }

func (g flatGrade) ElevationAt(s float64) (float64, float64, error) {
	if s < 0 || s > g.length {
		return 0, 0, OutOfRangeError(s, 0, g.length)
	}
	return g.elev, 0, nil
}

func TestStationOffsetToWorld(t *testing.T) {
	center := straightLine{length: 100}
	grade := flatGrade{elev: 20, length: 100}

	// Heading 0: positive offset points toward -Y (right of travel).
	pt, err := StationOffsetToWorld(center, grade, 40, 3.5, -0.07)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(pt.X-40) > LengthTol || math.Abs(pt.Y+3.5) > LengthTol || math.Abs(pt.Z-19.93) > LengthTol {
		t.Errorf("unexpected point: %+v", pt)
	}

	if _, err := StationOffsetToWorld(center, grade, 150, 0, 0); err == nil {
		t.Error("expected out-of-range error past the end")
	}
}

func TestStationOffsetToWorld_Deterministic(t *testing.T) {
	center := straightLine{length: 100}
	grade := flatGrade{elev: 5, length: 100}

	a, _ := StationOffsetToWorld(center, grade, 33.3, 1.25, 0.5)
	b, _ := StationOffsetToWorld(center, grade, 33.3, 1.25, 0.5)
	if a != b {
		t.Errorf("projection not bit-stable: %+v vs %+v", a, b)
	}
}
