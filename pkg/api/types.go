package api

import (
	"github.com/alignworks/corridord/pkg/alignment"
	"github.com/alignworks/corridord/pkg/section"
)

// API Request/Response Structs

// CreateAlignmentRequest creates an empty alignment.
type CreateAlignmentRequest struct {
	Name string `json:"name"`
}

// PIRequest is one horizontal edit. Op selects which fields apply.
type PIRequest struct {
	AlignmentID string                `json:"alignment_id"`
	Op          string                `json:"op"` // add | move | remove | set_curve
	Index       int                   `json:"index"`
	X           float64               `json:"x,omitempty"`
	Y           float64               `json:"y,omitempty"`
	Curve       alignment.CurveParams `json:"curve,omitempty"`
}

// CreateProfileRequest creates a profile anchored to an alignment.
type CreateProfileRequest struct {
	Name        string `json:"name"`
	AlignmentID string `json:"alignment_id"`
}

// PVIRequest is one vertical edit. Op selects which fields apply.
type PVIRequest struct {
	ProfileID   string  `json:"profile_id"`
	Op          string  `json:"op"` // add | move | remove | set_curve
	Index       int     `json:"index"`
	Station     float64 `json:"station,omitempty"`
	Elevation   float64 `json:"elevation,omitempty"`
	CurveLength float64 `json:"curve_length,omitempty"`
}

// CreateTemplateRequest creates a cross-section template.
type CreateTemplateRequest struct {
	Name       string              `json:"name"`
	Components []section.Component `json:"components"`
}

// SetComponentsRequest replaces a template's component set.
type SetComponentsRequest struct {
	TemplateID string              `json:"template_id"`
	Components []section.Component `json:"components"`
}

// CreateCorridorRequest creates a corridor over an alignment and profile.
type CreateCorridorRequest struct {
	Name        string  `json:"name"`
	AlignmentID string  `json:"alignment_id"`
	ProfileID   string  `json:"profile_id"`
	Interval    float64 `json:"interval"`
}

// AssignRequest applies a template to a station range of a corridor.
type AssignRequest struct {
	CorridorID string  `json:"corridor_id"`
	TemplateID string  `json:"template_id"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
}

// CreatedResponse returns the identifier of a newly created entity.
type CreatedResponse struct {
	ID string `json:"id"`
}

// PointResponse is an evaluated centerline pose, optionally with the
// profile elevation at the same station.
type PointResponse struct {
	Station   float64  `json:"station"`
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	Heading   float64  `json:"heading"`
	Elevation *float64 `json:"elevation,omitempty"`
	Grade     *float64 `json:"grade,omitempty"`
}
