// Package profile implements the vertical profile model: a station-ordered
// PVI sequence with equal-tangent parabolic curves, anchored to a
// horizontal alignment's station range.
package profile

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/alignworks/corridord/pkg/alignment"
	"github.com/alignworks/corridord/pkg/geom"
)

// ErrOrphanedPVI reports PVIs that fell outside the parent alignment's
// station domain after a horizontal edit. Orphaned PVIs stay in the model
// for the user to fix; the profile fails validation until they do.
var ErrOrphanedPVI = errors.New("orphaned PVI")

// PVI is a Point of Vertical Intersection owned by its parent Profile.
// CurveLength is the full length of the equal-tangent parabola centered on
// the PVI station; zero leaves a plain grade break.
type PVI struct {
	ID          string  `json:"id"`
	Station     float64 `json:"station"`
	Elevation   float64 `json:"elevation"`
	CurveLength float64 `json:"curve_length,omitempty"`
	Orphaned    bool    `json:"orphaned,omitempty"`
}

// Profile maintains a continuous grade line over the station domain of one
// horizontal alignment. Mirrors the Alignment edit contract: proposed
// states are validated before acceptance, stationing-derived state is
// never partially updated, and every successful mutation notifies the
// dependency graph.
type Profile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AlignmentID string `json:"alignment_id"`
	Version     int64  `json:"version"`

	pvis   []PVI
	notify alignment.Notifier
}

// New creates an empty profile bound to the given alignment.
func New(id, name, alignmentID string, notify alignment.Notifier) *Profile {
	if id == "" {
		id = uuid.NewString()
	}
	return &Profile{ID: id, Name: name, AlignmentID: alignmentID, notify: notify}
}

// PVIs returns a copy of the station-ordered PVI sequence.
func (p *Profile) PVIs() []PVI {
	out := make([]PVI, len(p.pvis))
	copy(out, p.pvis)
	return out
}

// Domain returns the profile's station domain [start, end]. A profile with
// fewer than two PVIs has an empty domain.
func (p *Profile) Domain() (float64, float64) {
	if len(p.pvis) < 2 {
		return 0, 0
	}
	return p.pvis[0].Station, p.pvis[len(p.pvis)-1].Station
}

// AddPVI inserts a PVI, keeping the sequence station-ordered, and returns
// the created PVI. Fails with InvalidGeometry when the vertical curve
// cannot fit between its neighbors or the station collides with an
// existing PVI.
func (p *Profile) AddPVI(station, elevation, curveLength float64) (PVI, error) {
	pvi := PVI{ID: uuid.NewString(), Station: station, Elevation: elevation, CurveLength: curveLength}
	proposed := append(p.PVIs(), pvi)
	if err := p.adopt(proposed); err != nil {
		return PVI{}, err
	}
	return pvi, nil
}

// RemovePVI removes the PVI at the given ordered index. Removed PVIs are
// destroyed; IDs are never reused.
func (p *Profile) RemovePVI(index int) error {
	if index < 0 || index >= len(p.pvis) {
		return fmt.Errorf("remove index %d outside [0, %d): %w", index, len(p.pvis), geom.ErrOutOfRange)
	}
	proposed := make([]PVI, 0, len(p.pvis)-1)
	proposed = append(proposed, p.pvis[:index]...)
	proposed = append(proposed, p.pvis[index+1:]...)
	return p.adopt(proposed)
}

// MovePVI relocates the PVI at index to a new station/elevation. The
// sequence is re-sorted, so a PVI may legally pass its neighbors.
func (p *Profile) MovePVI(index int, station, elevation float64) error {
	if index < 0 || index >= len(p.pvis) {
		return fmt.Errorf("move index %d outside [0, %d): %w", index, len(p.pvis), geom.ErrOutOfRange)
	}
	proposed := p.PVIs()
	proposed[index].Station = station
	proposed[index].Elevation = elevation
	proposed[index].Orphaned = false
	return p.adopt(proposed)
}

// SetCurveLength changes the parabola length at the PVI at index.
func (p *Profile) SetCurveLength(index int, length float64) error {
	if index < 0 || index >= len(p.pvis) {
		return fmt.Errorf("curve index %d outside [0, %d): %w", index, len(p.pvis), geom.ErrOutOfRange)
	}
	proposed := p.PVIs()
	proposed[index].CurveLength = length
	return p.adopt(proposed)
}

func (p *Profile) adopt(proposed []PVI) error {
	sort.SliceStable(proposed, func(i, j int) bool { return proposed[i].Station < proposed[j].Station })
	if err := validate(proposed); err != nil {
		return err
	}
	p.pvis = proposed
	p.Version++
	if p.notify != nil {
		p.notify.MarkDirty(p.ID)
	}
	return nil
}

// validate rejects PVI sequences whose vertical curves overlap a neighbor
// or each other, and duplicate stations. A curve on a terminal PVI is
// accepted here: during ascending construction the curved PVI is only
// transiently last, so that rule is enforced at rebuild time by Validate.
func validate(pvis []PVI) error {
	for i := 0; i+1 < len(pvis); i++ {
		gap := pvis[i+1].Station - pvis[i].Station
		if gap < geom.LengthTol {
			return fmt.Errorf("PVIs %d and %d share station %.6f: %w",
				i, i+1, pvis[i].Station, alignment.ErrInvalidGeometry)
		}
		if need := pvis[i].CurveLength/2 + pvis[i+1].CurveLength/2; need > gap+geom.LengthTol {
			return fmt.Errorf("vertical curves at PVIs %d/%d need %.6f of a %.6f gap: %w",
				i, i+1, need, gap, alignment.ErrInvalidGeometry)
		}
	}
	return nil
}

// ElevationAt returns elevation and grade at station s. Implements
// geom.Gradeline. The domain is [first PVI station, last PVI station].
func (p *Profile) ElevationAt(s float64) (float64, float64, error) {
	if len(p.pvis) < 2 {
		return 0, 0, geom.OutOfRangeError(s, 0, 0)
	}
	lo, hi := p.Domain()
	if s < lo-geom.LengthTol || s > hi+geom.LengthTol {
		return 0, 0, geom.OutOfRangeError(s, lo, hi)
	}
	s = math.Max(lo, math.Min(s, hi))

	// Find the tangent leg containing s, then check whether s falls inside
	// the parabola straddling either bounding PVI.
	i := sort.Search(len(p.pvis)-1, func(i int) bool { return p.pvis[i+1].Station >= s })
	if i >= len(p.pvis)-1 {
		i = len(p.pvis) - 2
	}
	a, b := p.pvis[i], p.pvis[i+1]
	g := (b.Elevation - a.Elevation) / (b.Station - a.Station)

	// Curve straddling the left PVI. A terminal PVI has no incoming grade,
	// so its curve is ignored here until validation makes the user fix it.
	if i > 0 && a.CurveLength > 0 && s < a.Station+a.CurveLength/2 {
		gIn := p.gradeInto(i)
		bvcSta := a.Station - a.CurveLength/2
		bvcElev := a.Elevation - gIn*a.CurveLength/2
		x := s - bvcSta
		return geom.ParabolaElevation(bvcElev, gIn, g, a.CurveLength, x),
			geom.ParabolaGrade(gIn, g, a.CurveLength, x), nil
	}
	// Curve straddling the right PVI, same terminal rule.
	if i+1 < len(p.pvis)-1 && b.CurveLength > 0 && s > b.Station-b.CurveLength/2 {
		gOut := p.gradeOutOf(i + 1)
		bvcSta := b.Station - b.CurveLength/2
		bvcElev := b.Elevation - g*b.CurveLength/2
		x := s - bvcSta
		return geom.ParabolaElevation(bvcElev, g, gOut, b.CurveLength, x),
			geom.ParabolaGrade(g, gOut, b.CurveLength, x), nil
	}

	return a.Elevation + g*(s-a.Station), g, nil
}

// gradeInto returns the grade arriving at PVI i from the left.
func (p *Profile) gradeInto(i int) float64 {
	a, b := p.pvis[i-1], p.pvis[i]
	return (b.Elevation - a.Elevation) / (b.Station - a.Station)
}

// gradeOutOf returns the grade leaving PVI i to the right.
func (p *Profile) gradeOutOf(i int) float64 {
	a, b := p.pvis[i], p.pvis[i+1]
	return (b.Elevation - a.Elevation) / (b.Station - a.Station)
}

// Revalidate re-checks every PVI against the parent alignment's current
// station domain, marking fallouts Orphaned rather than deleting them.
// Returns the number of orphans after the pass.
func (p *Profile) Revalidate(alignmentLength float64) int {
	orphans := 0
	for i := range p.pvis {
		lo := p.pvis[i].Station - p.pvis[i].CurveLength/2
		hi := p.pvis[i].Station + p.pvis[i].CurveLength/2
		p.pvis[i].Orphaned = lo < -geom.LengthTol || hi > alignmentLength+geom.LengthTol
		if p.pvis[i].Orphaned {
			orphans++
		}
	}
	return orphans
}

// Validate runs the rebuild-time checks: ErrOrphanedPVI listing every
// orphaned PVI, and InvalidGeometry when an end PVI still carries a
// vertical curve (the parabola has no grade on its open side).
func (p *Profile) Validate() error {
	var ids []string
	for i := range p.pvis {
		if p.pvis[i].Orphaned {
			ids = append(ids, fmt.Sprintf("%s@%.3f", p.pvis[i].ID, p.pvis[i].Station))
		}
	}
	if len(ids) > 0 {
		return fmt.Errorf("profile %s: %s: %w", p.ID, strings.Join(ids, ", "), ErrOrphanedPVI)
	}
	if n := len(p.pvis); n > 0 {
		if p.pvis[0].CurveLength > 0 || p.pvis[n-1].CurveLength > 0 {
			return fmt.Errorf("profile %s: end PVIs cannot carry a vertical curve: %w",
				p.ID, alignment.ErrInvalidGeometry)
		}
	}
	return nil
}

// KeyStations returns every geometric break station of the profile inside
// its domain: PVI stations plus the BVC/EVC of each vertical curve, in
// increasing order. The corridor builder samples all of them.
func (p *Profile) KeyStations() []float64 {
	if len(p.pvis) < 2 {
		return nil
	}
	lo, hi := p.Domain()
	var out []float64
	add := func(s float64) {
		if s >= lo-geom.LengthTol && s <= hi+geom.LengthTol {
			out = append(out, s)
		}
	}
	for i := range p.pvis {
		add(p.pvis[i].Station)
		if l := p.pvis[i].CurveLength; l > 0 {
			add(p.pvis[i].Station - l/2)
			add(p.pvis[i].Station + l/2)
		}
	}
	sort.Float64s(out)
	return out
}

// Clone returns a deep copy detached from the notifier.
func (p *Profile) Clone() *Profile {
	c := &Profile{ID: p.ID, Name: p.Name, AlignmentID: p.AlignmentID, Version: p.Version}
	c.pvis = make([]PVI, len(p.pvis))
	copy(c.pvis, p.pvis)
	return c
}

// Restore installs a PVI sequence from committed state without bumping the
// version or notifying.
func (p *Profile) Restore(pvis []PVI, version int64) error {
	sorted := make([]PVI, len(pvis))
	copy(sorted, pvis)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Station < sorted[j].Station })
	if err := validate(sorted); err != nil {
		return err
	}
	p.pvis = sorted
	p.Version = version
	return nil
}
