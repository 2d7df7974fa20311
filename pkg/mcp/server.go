package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/alignworks/corridord/pkg/api"
	"github.com/alignworks/corridord/pkg/client"
)

// Server adapts corridord to the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	apiClient *client.Client
}

// NewServer creates a new MCP server instance.
func NewServer(apiURL string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"corridord",
			"1.0.0",
		),
		apiClient: client.NewClient(apiURL),
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	// corridord://entities
	s.mcpServer.AddResource(mcp.NewResource(
		"corridord://entities",
		"Corridord Project Entities",
		mcp.WithResourceDescription("Every project entity with its dependency-graph rebuild state"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadEntities)
}

// --- Tools ---

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"query_station",
		mcp.WithDescription("Evaluate the centerline (and optionally the grade line) of an alignment at a station."),
		mcp.WithString("alignment_id", mcp.Required(), mcp.Description("The alignment to query")),
		mcp.WithString("profile_id", mcp.Description("Optional profile for elevation and grade")),
		mcp.WithNumber("station", mcp.Required(), mcp.Description("Station along the alignment")),
	), s.handleQueryStation)

	s.mcpServer.AddTool(mcp.NewTool(
		"edit_pi",
		mcp.WithDescription("Edit a horizontal point of intersection: add, move, remove or set_curve."),
		mcp.WithString("alignment_id", mcp.Required(), mcp.Description("The alignment to edit")),
		mcp.WithString("op", mcp.Required(), mcp.Description("One of add, move, remove, set_curve")),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("PI index")),
		mcp.WithNumber("x", mcp.Description("Plan X coordinate (add/move)")),
		mcp.WithNumber("y", mcp.Description("Plan Y coordinate (add/move)")),
		mcp.WithNumber("radius", mcp.Description("Circular curve radius (add/set_curve)")),
		mcp.WithNumber("spiral_length", mcp.Description("Entry/exit spiral length (add/set_curve)")),
	), s.handleEditPI)

	s.mcpServer.AddTool(mcp.NewTool(
		"edit_pvi",
		mcp.WithDescription("Edit a vertical point of intersection: add, move, remove or set_curve."),
		mcp.WithString("profile_id", mcp.Required(), mcp.Description("The profile to edit")),
		mcp.WithString("op", mcp.Required(), mcp.Description("One of add, move, remove, set_curve")),
		mcp.WithNumber("index", mcp.Description("PVI index (move/remove/set_curve)")),
		mcp.WithNumber("station", mcp.Description("Station (add/move)")),
		mcp.WithNumber("elevation", mcp.Description("Elevation (add/move)")),
		mcp.WithNumber("curve_length", mcp.Description("Parabolic curve length (add/set_curve)")),
	), s.handleEditPVI)

	s.mcpServer.AddTool(mcp.NewTool(
		"rebuild",
		mcp.WithDescription("Run one rebuild pass: dirty entities recompute and commit atomically. Reports failures if the pass aborted."),
	), s.handleRebuild)

	s.mcpServer.AddTool(mcp.NewTool(
		"get_surface",
		mcp.WithDescription("Summarize the committed surface of a corridor."),
		mcp.WithString("corridor_id", mcp.Required(), mcp.Description("The corridor to summarize")),
	), s.handleGetSurface)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		"corridord-aware",
		mcp.WithPromptDescription("Provides context about Corridord concepts (Alignments, Profiles, Templates, Corridors)"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func (s *Server) handleReadEntities(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	entities, err := s.apiClient.Entities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entities: %w", err)
	}

	data, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entities: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleQueryStation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	alignmentID := mcp.ParseString(request, "alignment_id", "")
	profileID := mcp.ParseString(request, "profile_id", "")
	station := mcp.ParseFloat64(request, "station", 0)

	pt, err := s.apiClient.Station(ctx, alignmentID, profileID, station)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	msg := fmt.Sprintf("Station %.3f: position (%.3f, %.3f), heading %.6f rad", pt.Station, pt.X, pt.Y, pt.Heading)
	if pt.Elevation != nil {
		msg += fmt.Sprintf(", elevation %.3f, grade %.4f", *pt.Elevation, *pt.Grade)
	}
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) handleEditPI(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := api.PIRequest{
		AlignmentID: mcp.ParseString(request, "alignment_id", ""),
		Op:          mcp.ParseString(request, "op", ""),
		Index:       int(mcp.ParseFloat64(request, "index", 0)),
		X:           mcp.ParseFloat64(request, "x", 0),
		Y:           mcp.ParseFloat64(request, "y", 0),
	}
	req.Curve.Radius = mcp.ParseFloat64(request, "radius", 0)
	req.Curve.SpiralLength = mcp.ParseFloat64(request, "spiral_length", 0)

	if err := s.apiClient.EditPI(ctx, req); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("edit rejected: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("PI %s accepted; dependent entities are dirty until the next rebuild", req.Op)), nil
}

func (s *Server) handleEditPVI(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := api.PVIRequest{
		ProfileID:   mcp.ParseString(request, "profile_id", ""),
		Op:          mcp.ParseString(request, "op", ""),
		Index:       int(mcp.ParseFloat64(request, "index", 0)),
		Station:     mcp.ParseFloat64(request, "station", 0),
		Elevation:   mcp.ParseFloat64(request, "elevation", 0),
		CurveLength: mcp.ParseFloat64(request, "curve_length", 0),
	}

	if err := s.apiClient.EditPVI(ctx, req); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("edit rejected: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("PVI %s accepted; dependent entities are dirty until the next rebuild", req.Op)), nil
}

func (s *Server) handleRebuild(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.apiClient.Rebuild(ctx)
	if errors.Is(err, client.ErrRebuildAborted) {
		data, _ := json.MarshalIndent(res.Failures, "", "  ")
		return mcp.NewToolResultText(fmt.Sprintf("Rebuild ABORTED, nothing was persisted. Failures:\n%s", data)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Rebuild committed %d entities", len(res.Committed))), nil
}

func (s *Server) handleGetSurface(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	corridorID := mcp.ParseString(request, "corridor_id", "")

	surface, err := s.apiClient.Surface(ctx, corridorID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	msg := fmt.Sprintf("Corridor %s (version %d): %d cross-sections, %d strips",
		surface.CorridorID, surface.Version, len(surface.Sections), len(surface.Strips))
	if n := len(surface.Sections); n > 0 {
		msg += fmt.Sprintf(", stations %.3f to %.3f",
			surface.Sections[0].Station, surface.Sections[n-1].Station)
	}
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != "corridord-aware" {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are interacting with Corridord, a parametric corridor geometry engine.

Concepts:
- Alignment: A horizontal path built from PIs (points of intersection) with circular curves and optional spirals.
- Profile: A vertical grade line over an alignment's station domain, built from PVIs with parabolic curves.
- Template: A cross-section shape (lanes, shoulders, curbs, ditches) evaluated at each station.
- Corridor: The 3D surface swept by applying templates along an alignment and profile.
- Rebuild: Edits mark entities dirty; a rebuild recomputes them in dependency order and commits atomically.

Edit with 'edit_pi' and 'edit_pvi', then call 'rebuild' to commit. If a rebuild aborts,
inspect the failures, fix the offending entity, and rebuild again. Use 'query_station'
to evaluate geometry and 'get_surface' to check committed corridor output.
`

	return mcp.NewGetPromptResult(
		"corridord-aware",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}
