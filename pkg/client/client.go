// Package client is the Go SDK for a running corridord daemon. The MCP
// bridge and the status TUI both sit on top of it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alignworks/corridord/pkg/api"
	"github.com/alignworks/corridord/pkg/corridor"
	"github.com/alignworks/corridord/pkg/engine"
	"github.com/alignworks/corridord/pkg/section"
)

// ErrRebuildAborted reports a rebuild pass the daemon rolled back. The
// accompanying Result names the failing entities.
var ErrRebuildAborted = errors.New("rebuild aborted")

// ErrSurfaceNotReady reports a corridor with no committed surface yet.
var ErrSurfaceNotReady = errors.New("surface not ready")

// Client is the corridord SDK client.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a new corridord client.
// endpoint defaults to "http://127.0.0.1:8090" if empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = "http://127.0.0.1:8090"
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError is the daemon's error envelope.
type apiError struct {
	Error string `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return resp.StatusCode, decodeError(resp)
	}
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var e apiError
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("daemon rejected request (%d): %s", resp.StatusCode, e.Error)
	}
	return fmt.Errorf("daemon rejected request (%d)", resp.StatusCode)
}

// CreateAlignment creates an empty alignment and returns its id.
func (c *Client) CreateAlignment(ctx context.Context, name string) (string, error) {
	var out api.CreatedResponse
	err := c.post(ctx, "/v1/alignments", api.CreateAlignmentRequest{Name: name}, &out)
	return out.ID, err
}

// EditPI applies one horizontal edit.
func (c *Client) EditPI(ctx context.Context, req api.PIRequest) error {
	return c.post(ctx, "/v1/alignments/pi", req, nil)
}

// CreateProfile creates a profile anchored to an alignment.
func (c *Client) CreateProfile(ctx context.Context, name, alignmentID string) (string, error) {
	var out api.CreatedResponse
	err := c.post(ctx, "/v1/profiles", api.CreateProfileRequest{Name: name, AlignmentID: alignmentID}, &out)
	return out.ID, err
}

// EditPVI applies one vertical edit.
func (c *Client) EditPVI(ctx context.Context, req api.PVIRequest) error {
	return c.post(ctx, "/v1/profiles/pvi", req, nil)
}

// CreateTemplate creates a cross-section template.
func (c *Client) CreateTemplate(ctx context.Context, name string, components []section.Component) (string, error) {
	var out api.CreatedResponse
	err := c.post(ctx, "/v1/templates", api.CreateTemplateRequest{Name: name, Components: components}, &out)
	return out.ID, err
}

// SetTemplateComponents replaces a template's component set.
func (c *Client) SetTemplateComponents(ctx context.Context, templateID string, components []section.Component) error {
	return c.post(ctx, "/v1/templates/components", api.SetComponentsRequest{
		TemplateID: templateID, Components: components,
	}, nil)
}

// CreateCorridor creates a corridor over an alignment and profile.
func (c *Client) CreateCorridor(ctx context.Context, name, alignmentID, profileID string, interval float64) (string, error) {
	var out api.CreatedResponse
	err := c.post(ctx, "/v1/corridors", api.CreateCorridorRequest{
		Name: name, AlignmentID: alignmentID, ProfileID: profileID, Interval: interval,
	}, &out)
	return out.ID, err
}

// AssignTemplate applies a template to a station range of a corridor.
func (c *Client) AssignTemplate(ctx context.Context, corridorID, templateID string, start, end float64) error {
	return c.post(ctx, "/v1/corridors/assign", api.AssignRequest{
		CorridorID: corridorID, TemplateID: templateID, Start: start, End: end,
	}, nil)
}

// Rebuild triggers one synchronous rebuild pass. An aborted pass returns
// the Result naming the failures together with ErrRebuildAborted.
func (c *Client) Rebuild(ctx context.Context) (*engine.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/rebuild", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusConflict:
		var res engine.Result
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			return nil, fmt.Errorf("failed to decode rebuild result: %w", err)
		}
		if resp.StatusCode == http.StatusConflict {
			return &res, ErrRebuildAborted
		}
		return &res, nil
	default:
		return nil, decodeError(resp)
	}
}

// Entities lists every project entity with its rebuild state.
func (c *Client) Entities(ctx context.Context) ([]engine.EntitySummary, error) {
	var out []engine.EntitySummary
	_, err := c.get(ctx, "/v1/entities", &out)
	return out, err
}

// Surface fetches the committed surface of a corridor. A corridor that
// has never committed returns ErrSurfaceNotReady.
func (c *Client) Surface(ctx context.Context, corridorID string) (*corridor.Surface, error) {
	var out corridor.Surface
	status, err := c.get(ctx, "/v1/surfaces?corridor_id="+corridorID, &out)
	if status == http.StatusNotFound {
		return nil, ErrSurfaceNotReady
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitForSurface polls until the corridor has a committed surface,
// backing off between attempts.
func (c *Client) WaitForSurface(ctx context.Context, corridorID string, backoff BackoffStrategy) (*corridor.Surface, error) {
	if backoff == nil {
		backoff = DefaultBackoff()
	}
	for attempt := 0; ; attempt++ {
		surface, err := c.Surface(ctx, corridorID)
		if err == nil {
			return surface, nil
		}
		if !errors.Is(err, ErrSurfaceNotReady) {
			return nil, err
		}
		select {
		case <-time.After(backoff.Next(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Station evaluates the centerline, and optionally the grade line, at a
// station.
func (c *Client) Station(ctx context.Context, alignmentID, profileID string, station float64) (*api.PointResponse, error) {
	path := fmt.Sprintf("/v1/stations?alignment_id=%s&station=%g", alignmentID, station)
	if profileID != "" {
		path += "&profile_id=" + profileID
	}
	var out api.PointResponse
	if _, err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health reports whether the daemon answers.
func (c *Client) Health(ctx context.Context) error {
	var out map[string]string
	_, err := c.get(ctx, "/v1/health", &out)
	return err
}
