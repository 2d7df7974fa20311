package corridor

import (
	"fmt"
	"math"
	"sort"

	"github.com/alignworks/corridord/pkg/geom"
	"github.com/alignworks/corridord/pkg/section"
)

// Horizontal is the corridor builder's view of an alignment.
type Horizontal interface {
	geom.Centerline
	KeyStations() []float64
}

// Vertical is the corridor builder's view of a profile.
type Vertical interface {
	geom.Gradeline
	Domain() (float64, float64)
	KeyStations() []float64
}

// SurfacePoint is one section vertex projected to world coordinates.
type SurfacePoint struct {
	geom.Point3
	Offset float64               `json:"offset"`
	Tag    section.ComponentKind `json:"tag"`
}

// Section is one sampled cross-section.
type Section struct {
	Station float64        `json:"station"`
	Points  []SurfacePoint `json:"points"`
}

// StripEdge is the inner/outer boundary pair of a strip at one station.
type StripEdge struct {
	Station float64      `json:"station"`
	Inner   SurfacePoint `json:"inner"`
	Outer   SurfacePoint `json:"outer"`
}

// Strip is a run of same-tagged surface segments connected across
// consecutive stations. A strip breaks where the template changes shape
// (component count or tag at its ordinal) and a new one starts.
type Strip struct {
	Tag   section.ComponentKind `json:"tag"`
	Edges []StripEdge           `json:"edges"`
}

// Surface is the rebuilt corridor skeleton handed to the display layer.
type Surface struct {
	CorridorID string    `json:"corridor_id"`
	Version    int64     `json:"version"`
	Sections   []Section `json:"sections"`
	Strips     []Strip   `json:"strips"`
}

// BuildInput is the immutable snapshot a rebuild runs against. Callers
// clone live entities before handing them over (see engine snapshotting);
// Build itself never mutates anything.
type BuildInput struct {
	Corridor  *Corridor
	Alignment Horizontal
	Profile   Vertical
	Templates map[string]*section.Template
}

// Build regenerates the corridor surface from scratch. It is a pure
// function of its input: calling it twice on the same snapshot yields
// identical surfaces, which is what makes rebuilds idempotent.
func Build(in BuildInput) (*Surface, error) {
	stations, err := sampleStations(in)
	if err != nil {
		return nil, err
	}

	surface := &Surface{CorridorID: in.Corridor.ID, Version: in.Corridor.Version}
	var strips []*Strip
	var open []*Strip // indexed by segment ordinal, nil where no strip is open

	for _, s := range stations {
		asg, ok := in.Corridor.templateFor(s)
		if !ok {
			// Unassigned gap: every open strip ends here.
			open = nil
			continue
		}
		tpl, ok := in.Templates[asg.TemplateID]
		if !ok {
			return nil, fmt.Errorf("corridor %s references unknown template %s", in.Corridor.ID, asg.TemplateID)
		}

		_, grade, err := in.Profile.ElevationAt(s)
		if err != nil {
			return nil, fmt.Errorf("corridor %s: %w", in.Corridor.ID, err)
		}
		pts, err := tpl.Evaluate(section.StationContext{Station: s, Grade: grade})
		if err != nil {
			return nil, fmt.Errorf("corridor %s: %w", in.Corridor.ID, err)
		}

		sec := Section{Station: s, Points: make([]SurfacePoint, len(pts))}
		for i, p := range pts {
			world, err := geom.StationOffsetToWorld(in.Alignment, in.Profile, s, p.Offset, p.ElevDelta)
			if err != nil {
				return nil, fmt.Errorf("corridor %s: %w", in.Corridor.ID, err)
			}
			sec.Points[i] = SurfacePoint{Point3: world, Offset: p.Offset, Tag: p.Tag}
		}
		surface.Sections = append(surface.Sections, sec)

		// Connect segments to open strips by ordinal and tag.
		segs := len(sec.Points) - 1
		next := make([]*Strip, segs)
		for j := 0; j < segs; j++ {
			tag := sec.Points[j+1].Tag
			if j < len(open) && open[j] != nil && open[j].Tag == tag {
				next[j] = open[j]
			} else {
				st := &Strip{Tag: tag}
				strips = append(strips, st)
				next[j] = st
			}
			next[j].Edges = append(next[j].Edges, StripEdge{
				Station: s,
				Inner:   sec.Points[j],
				Outer:   sec.Points[j+1],
			})
		}
		open = next
	}

	surface.Strips = make([]Strip, len(strips))
	for i, st := range strips {
		surface.Strips[i] = *st
	}
	return surface, nil
}

// sampleStations plans the stations to cut sections at: the nominal
// interval over the covered domain, densified with every alignment and
// profile key station and every assignment boundary.
func sampleStations(in BuildInput) ([]float64, error) {
	asgs := in.Corridor.Assignments()
	if len(asgs) == 0 {
		return nil, nil
	}

	pLo, pHi := in.Profile.Domain()
	lo := math.Max(0, pLo)
	hi := math.Min(in.Alignment.Length(), pHi)
	if hi <= lo {
		return nil, fmt.Errorf("corridor %s: alignment and profile domains do not overlap", in.Corridor.ID)
	}

	var stations []float64
	add := func(s float64) {
		if s >= lo-geom.LengthTol && s <= hi+geom.LengthTol {
			stations = append(stations, math.Max(lo, math.Min(s, hi)))
		}
	}

	for s := lo; s < hi; s += in.Corridor.Interval {
		add(s)
	}
	add(hi)
	for _, s := range in.Alignment.KeyStations() {
		add(s)
	}
	for _, s := range in.Profile.KeyStations() {
		add(s)
	}
	for _, a := range asgs {
		add(a.Start)
		add(a.End)
	}

	sort.Float64s(stations)
	dedup := stations[:0]
	for i, s := range stations {
		if i == 0 || s-dedup[len(dedup)-1] > geom.LengthTol {
			dedup = append(dedup, s)
		}
	}
	return dedup, nil
}
