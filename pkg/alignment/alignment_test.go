package alignment

import (
	"errors"
	"math"
	"testing"

	"github.com/alignworks/corridord/pkg/geom"
)

// buildL returns the reference L-shaped alignment:
// PIs (0,0) -> (500,0) -> (500,500) with a 100-unit radius arc at the bend.
func buildL(t *testing.T, notify Notifier) *Alignment {
	t.Helper()
	a := New("align-1", "Mainline", notify)
	if _, err := a.InsertPI(0, geom.Point2{X: 0, Y: 0}, CurveParams{}); err != nil {
		t.Fatalf("insert PI 0: %v", err)
	}
	if _, err := a.InsertPI(1, geom.Point2{X: 500, Y: 0}, CurveParams{Radius: 100}); err != nil {
		t.Fatalf("insert PI 1: %v", err)
	}
	if _, err := a.InsertPI(2, geom.Point2{X: 500, Y: 500}, CurveParams{}); err != nil {
		t.Fatalf("insert PI 2: %v", err)
	}
	return a
}

func TestAlignment_LShapeLengthAndEndpoints(t *testing.T) {
	a := buildL(t, nil)

	// T = R*tan(45 deg) = 100, arc = R*pi/2, two 400-unit tangents.
	want := 400.0 + 100*math.Pi/2 + 400.0
	if math.Abs(a.Length()-want) > geom.LengthTol {
		t.Errorf("expected length %f, got %f", want, a.Length())
	}

	start, err := a.PointAt(0)
	if err != nil {
		t.Fatalf("PointAt(0): %v", err)
	}
	if math.Abs(start.X) > geom.LengthTol || math.Abs(start.Y) > geom.LengthTol || math.Abs(start.Heading) > geom.AngleTol {
		t.Errorf("start pose: %+v", start)
	}

	end, err := a.PointAt(a.Length())
	if err != nil {
		t.Fatalf("PointAt(end): %v", err)
	}
	if math.Abs(end.X-500) > geom.LengthTol || math.Abs(end.Y-500) > geom.LengthTol {
		t.Errorf("end position: %+v", end)
	}
	if math.Abs(geom.NormalizeAngle(end.Heading-math.Pi/2)) > geom.AngleTol {
		t.Errorf("end heading: expected pi/2, got %f", end.Heading)
	}
}

func TestAlignment_TangencyContinuityAtJunctions(t *testing.T) {
	a := buildL(t, nil)

	for _, s := range a.KeyStations() {
		if s <= 0 || s >= a.Length() {
			continue
		}
		left, err := a.PointAt(s - 1e-9)
		if err != nil {
			t.Fatalf("PointAt(%f-): %v", s, err)
		}
		right, err := a.PointAt(s + 1e-9)
		if err != nil {
			t.Fatalf("PointAt(%f+): %v", s, err)
		}
		if d := math.Abs(geom.Deflection(left.Heading, right.Heading)); d > geom.AngleTol {
			t.Errorf("heading jump %e at station %f", d, s)
		}
		if d := math.Hypot(right.X-left.X, right.Y-left.Y); d > 1e-6 {
			t.Errorf("position jump %e at station %f", d, s)
		}
	}
}

func TestAlignment_StationingMonotoneArcLength(t *testing.T) {
	a := buildL(t, nil)

	// Chord-sum between two stations approximates s2-s1 from above as the
	// subdivision refines; at 0.1-unit steps the defect is < 1e-4 for R=100.
	s1, s2 := 300.0, 700.0
	sum := 0.0
	prev, _ := a.PointAt(s1)
	for s := s1 + 0.1; s <= s2+1e-9; s += 0.1 {
		p, err := a.PointAt(s)
		if err != nil {
			t.Fatalf("PointAt(%f): %v", s, err)
		}
		sum += math.Hypot(p.X-prev.X, p.Y-prev.Y)
		prev = p
	}
	if math.Abs(sum-(s2-s1)) > 1e-3 {
		t.Errorf("arc length between %f and %f: expected %f, got %f", s1, s2, s2-s1, sum)
	}
}

func TestAlignment_SpiralCurveContinuity(t *testing.T) {
	a := New("align-sp", "Spiraled", nil)
	mustInsert := func(i int, p geom.Point2, c CurveParams) {
		t.Helper()
		if _, err := a.InsertPI(i, p, c); err != nil {
			t.Fatalf("insert PI %d: %v", i, err)
		}
	}
	mustInsert(0, geom.Point2{X: 0, Y: 0}, CurveParams{})
	mustInsert(1, geom.Point2{X: 600, Y: 0}, CurveParams{Radius: 300, SpiralLength: 60})
	mustInsert(2, geom.Point2{X: 600, Y: 600}, CurveParams{})

	for _, s := range a.KeyStations() {
		if s <= 0 || s >= a.Length() {
			continue
		}
		left, _ := a.PointAt(s - 1e-9)
		right, _ := a.PointAt(s + 1e-9)
		if d := math.Abs(geom.Deflection(left.Heading, right.Heading)); d > geom.AngleTol {
			t.Errorf("heading jump %e at station %f", d, s)
		}
		if d := math.Hypot(right.X-left.X, right.Y-left.Y); d > 1e-5 {
			t.Errorf("position jump %e at station %f", d, s)
		}
	}

	end, err := a.PointAt(a.Length())
	if err != nil {
		t.Fatalf("PointAt(end): %v", err)
	}
	if math.Abs(end.X-600) > 1e-5 || math.Abs(end.Y-600) > 1e-5 {
		t.Errorf("spiraled alignment end: %+v", end)
	}
}

func TestAlignment_InsertRejectsUnfittableCurve(t *testing.T) {
	a := New("align-bad", "Bad", nil)
	if _, err := a.InsertPI(0, geom.Point2{X: 0, Y: 0}, CurveParams{}); err != nil {
		t.Fatal(err)
	}
	if _, err := a.InsertPI(1, geom.Point2{X: 50, Y: 0}, CurveParams{Radius: 100}); err != nil {
		t.Fatal(err)
	}
	// 90 degree bend needs T=100 on a 50-unit leg: must be rejected.
	_, err := a.InsertPI(2, geom.Point2{X: 50, Y: 500}, CurveParams{})
	if !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("expected ErrInvalidGeometry, got %v", err)
	}
	// Rejection must leave the model untouched.
	if len(a.PIs()) != 2 {
		t.Errorf("expected 2 PIs after rejected insert, got %d", len(a.PIs()))
	}
}

func TestAlignment_KinkWithoutRadiusRejected(t *testing.T) {
	a := New("align-kink", "Kink", nil)
	a.InsertPI(0, geom.Point2{X: 0, Y: 0}, CurveParams{})
	a.InsertPI(1, geom.Point2{X: 100, Y: 0}, CurveParams{})
	_, err := a.InsertPI(2, geom.Point2{X: 100, Y: 100}, CurveParams{})
	if !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("expected ErrInvalidGeometry for radius-less bend, got %v", err)
	}
}

func TestAlignment_MovePIRestations(t *testing.T) {
	a := buildL(t, nil)
	before := a.Length()

	if err := a.MovePI(2, geom.Point2{X: 500, Y: 700}); err != nil {
		t.Fatalf("MovePI: %v", err)
	}
	if math.Abs(a.Length()-(before+200)) > geom.LengthTol {
		t.Errorf("expected length %f, got %f", before+200, a.Length())
	}
}

func TestAlignment_OutOfRangeStation(t *testing.T) {
	a := buildL(t, nil)
	if _, err := a.PointAt(-5); !errors.Is(err, geom.ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange before start, got %v", err)
	}
	if _, err := a.PointAt(a.Length() + 5); !errors.Is(err, geom.ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange past end, got %v", err)
	}
}

func TestAlignment_MutationsNotifyDirty(t *testing.T) {
	var got []string
	a := buildL(t, NotifierFunc(func(id string) { got = append(got, id) }))

	if len(got) != 3 {
		t.Fatalf("expected 3 notifications for 3 inserts, got %d", len(got))
	}
	for _, id := range got {
		if id != a.ID {
			t.Errorf("notification carried %q, expected %q", id, a.ID)
		}
	}

	got = nil
	if err := a.MovePI(1, geom.Point2{X: 480, Y: 0}); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 notification after move, got %d", len(got))
	}

	// Rejected edits must not notify.
	got = nil
	if err := a.MovePI(1, geom.Point2{X: 0, Y: 0}); err == nil {
		t.Fatal("expected coincident-PI rejection")
	}
	if len(got) != 0 {
		t.Errorf("rejected edit must not notify, got %d notifications", len(got))
	}
}

func TestAlignment_VersionBumpsOnEdit(t *testing.T) {
	a := buildL(t, nil)
	v := a.Version
	if err := a.MovePI(0, geom.Point2{X: -10, Y: 0}); err != nil {
		t.Fatal(err)
	}
	if a.Version != v+1 {
		t.Errorf("expected version %d, got %d", v+1, a.Version)
	}
}
