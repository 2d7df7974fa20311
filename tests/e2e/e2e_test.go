package e2e_test

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alignworks/corridord/pkg/api"
	"github.com/alignworks/corridord/pkg/client"
	"github.com/alignworks/corridord/pkg/section"
)

func TestEndToEnd(t *testing.T) {
	if os.Getenv("E2E") != "true" {
		t.Skip("Skipping e2e test")
	}

	endpoint := os.Getenv("CORRIDORD_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:8090"
	}

	c := client.NewClient(endpoint)
	ctx := context.Background()

	// Poll Health until the daemon is up
	var err error
	for i := 0; i < 30; i++ {
		err = c.Health(ctx)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatal("Failed to reach server after 30 seconds")
	}

	// Build a minimal straight project
	alignID, err := c.CreateAlignment(ctx, "e2e-mainline")
	assert.NoError(t, err)
	assert.NoError(t, c.EditPI(ctx, api.PIRequest{AlignmentID: alignID, Op: "add", Index: 0, X: 0, Y: 0}))
	assert.NoError(t, c.EditPI(ctx, api.PIRequest{AlignmentID: alignID, Op: "add", Index: 1, X: 600, Y: 0}))

	profID, err := c.CreateProfile(ctx, "e2e-grade", alignID)
	assert.NoError(t, err)
	assert.NoError(t, c.EditPVI(ctx, api.PVIRequest{ProfileID: profID, Op: "add", Station: 0, Elevation: 10}))
	assert.NoError(t, c.EditPVI(ctx, api.PVIRequest{ProfileID: profID, Op: "add", Station: 600, Elevation: 16}))

	tplID, err := c.CreateTemplate(ctx, "e2e-lane", []section.Component{
		{Name: "lane", Kind: section.KindLane, Width: 3.5, Slope: -0.02},
	})
	assert.NoError(t, err)

	corID, err := c.CreateCorridor(ctx, "e2e-corridor", alignID, profID, 50)
	assert.NoError(t, err)
	assert.NoError(t, c.AssignTemplate(ctx, corID, tplID, 0, 500))

	// Rebuild and verify all four entities commit
	res, err := c.Rebuild(ctx)
	assert.NoError(t, err)
	assert.Len(t, res.Committed, 4)

	// Surface is fetchable once committed
	surf, err := c.WaitForSurface(ctx, corID, client.DefaultBackoff())
	assert.NoError(t, err)
	assert.Greater(t, len(surf.Sections), 0, "Expected surface to have sections")

	// Station query resolves plan position and elevation
	pt, err := c.Station(ctx, alignID, profID, 300)
	assert.NoError(t, err)
	assert.InDelta(t, 300, pt.X, 1e-6)
	if assert.NotNil(t, pt.Elevation) {
		assert.InDelta(t, 13, *pt.Elevation, 1e-6)
	}

	// Entity listing reports a clean graph
	ents, err := c.Entities(ctx)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, len(ents), 4, "Expected at least four entities")

	// Metrics endpoint is serving
	resp, err := http.Get(endpoint + "/metrics")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}
