package integration_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alignworks/corridord/pkg/alignment"
	"github.com/alignworks/corridord/pkg/api"
	"github.com/alignworks/corridord/pkg/client"
	"github.com/alignworks/corridord/pkg/corridor"
	"github.com/alignworks/corridord/pkg/engine"
	"github.com/alignworks/corridord/pkg/geom"
	"github.com/alignworks/corridord/pkg/graph"
	"github.com/alignworks/corridord/pkg/section"
	"github.com/alignworks/corridord/pkg/store"
)

// TestProjectLifecycle drives a whole project through the real stack:
// SQLite store, engine, HTTP server and SDK client. It then restarts
// the daemon on the same database and keeps editing.
func TestProjectLifecycle(t *testing.T) {
	// Setup: Create temporary SQLite DB
	tmpDir, err := os.MkdirTemp("", "corridord-integration-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)
	dbPath := filepath.Join(tmpDir, "lifecycle_test.db")

	st, err := store.NewStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	eng := engine.New(nil, st)
	srv := api.NewServer(eng, "127.0.0.1:0", nil)
	ts := httptest.NewServer(srv.Handler())

	ctx := context.Background()
	c := client.NewClient(ts.URL)

	// Build an L-shaped alignment with a single 100 m fillet.
	alignID, err := c.CreateAlignment(ctx, "mainline")
	if err != nil {
		t.Fatalf("CreateAlignment: %v", err)
	}
	pis := []api.PIRequest{
		{AlignmentID: alignID, Op: "add", Index: 0, X: 0, Y: 0},
		{AlignmentID: alignID, Op: "add", Index: 1, X: 500, Y: 0, Curve: alignment.CurveParams{Radius: 100}},
		{AlignmentID: alignID, Op: "add", Index: 2, X: 500, Y: 500},
	}
	for i, req := range pis {
		if err := c.EditPI(ctx, req); err != nil {
			t.Fatalf("EditPI %d: %v", i, err)
		}
	}

	profID, err := c.CreateProfile(ctx, "mainline-grade", alignID)
	if err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	pvis := []api.PVIRequest{
		{ProfileID: profID, Op: "add", Station: 0, Elevation: 100},
		{ProfileID: profID, Op: "add", Station: 450, Elevation: 104, CurveLength: 150},
		{ProfileID: profID, Op: "add", Station: 900, Elevation: 102},
	}
	for i, req := range pvis {
		if err := c.EditPVI(ctx, req); err != nil {
			t.Fatalf("EditPVI %d: %v", i, err)
		}
	}

	tplID, err := c.CreateTemplate(ctx, "two-lane", []section.Component{
		{Name: "lane", Kind: section.KindLane, Width: 3.5, Slope: -0.02},
		{Name: "shoulder", Kind: section.KindShoulder, Width: 2.0, Slope: -0.04},
	})
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}

	corID, err := c.CreateCorridor(ctx, "mainline-corridor", alignID, profID, 25)
	if err != nil {
		t.Fatalf("CreateCorridor: %v", err)
	}
	if err := c.AssignTemplate(ctx, corID, tplID, 0, 850); err != nil {
		t.Fatalf("AssignTemplate: %v", err)
	}

	// First rebuild commits all four entities in one transaction.
	res, err := c.Rebuild(ctx)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if len(res.Committed) != 4 {
		t.Fatalf("expected 4 committed entities, got %d (%v)", len(res.Committed), res.Committed)
	}

	surf, err := c.Surface(ctx, corID)
	if err != nil {
		t.Fatalf("Surface: %v", err)
	}
	if len(surf.Sections) == 0 {
		t.Fatal("committed surface has no sections")
	}

	pt, err := c.Station(ctx, alignID, profID, 200)
	if err != nil {
		t.Fatalf("Station: %v", err)
	}
	if math.Abs(pt.X-200) > geom.LengthTol || math.Abs(pt.Y) > geom.LengthTol {
		t.Fatalf("station 200 evaluated to (%f, %f), want (200, 0)", pt.X, pt.Y)
	}
	if pt.Elevation == nil {
		t.Fatal("station response missing elevation")
	}

	// Restart: tear down the first daemon and boot a fresh one on the
	// same database. The whole project must come back.
	ts.Close()
	if err := st.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	st2, err := store.NewStore(dbPath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer st2.Close()

	eng2 := engine.New(nil, st2)
	if err := eng2.Load(ctx); err != nil {
		t.Fatalf("Load after restart: %v", err)
	}
	ts2 := httptest.NewServer(api.NewServer(eng2, "127.0.0.1:0", nil).Handler())
	defer ts2.Close()
	c2 := client.NewClient(ts2.URL)

	ents, err := c2.Entities(ctx)
	if err != nil {
		t.Fatalf("Entities after restart: %v", err)
	}
	if len(ents) != 4 {
		t.Fatalf("expected 4 entities after restart, got %d", len(ents))
	}
	for _, e := range ents {
		if e.State != string(graph.StateClean) {
			t.Fatalf("entity %s (%s) not clean after restart: %s", e.ID, e.Kind, e.State)
		}
	}

	// The committed surface survives the restart without a rebuild.
	surf2, err := c2.Surface(ctx, corID)
	if err != nil {
		t.Fatalf("Surface after restart: %v", err)
	}
	if len(surf2.Sections) != len(surf.Sections) {
		t.Fatalf("restored surface has %d sections, want %d", len(surf2.Sections), len(surf.Sections))
	}

	// Keep editing: moving a PI dirties the alignment and everything
	// downstream, and the next rebuild recommits the chain.
	if err := c2.EditPI(ctx, api.PIRequest{
		AlignmentID: alignID, Op: "move", Index: 2, X: 500, Y: 600,
	}); err != nil {
		t.Fatalf("EditPI after restart: %v", err)
	}
	res2, err := c2.Rebuild(ctx)
	if err != nil {
		t.Fatalf("Rebuild after restart: %v", err)
	}
	if len(res2.Committed) != 3 {
		t.Fatalf("expected alignment, profile and corridor recommitted, got %v", res2.Committed)
	}
	committed := func(id string) bool {
		for _, got := range res2.Committed {
			if got.ID == id {
				return true
			}
		}
		return false
	}
	if !committed(alignID) || !committed(profID) || !committed(corID) {
		t.Fatalf("unexpected commit set after edit: %v", res2.Committed)
	}
	if committed(tplID) {
		t.Fatalf("template should not be dirtied by a PI move: %v", res2.Committed)
	}
}

// TestAbortLeavesDatabaseUntouched breaks a corridor, verifies the
// aborted pass persists nothing, repairs it and commits.
func TestAbortLeavesDatabaseUntouched(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "corridord-integration-abort")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	st, err := store.NewStore(filepath.Join(tmpDir, "abort_test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer st.Close()

	eng := engine.New(nil, st)
	ctx := context.Background()

	a := eng.CreateAlignment("straight")
	for i, pt := range []geom.Point2{{X: 0, Y: 0}, {X: 1000, Y: 0}} {
		if _, err := eng.AddPI(a.ID, i, pt, alignment.CurveParams{}); err != nil {
			t.Fatalf("AddPI: %v", err)
		}
	}
	p, err := eng.CreateProfile("flat", a.ID)
	if err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	if _, err := eng.AddPVI(p.ID, 0, 50, 0); err != nil {
		t.Fatalf("AddPVI: %v", err)
	}
	if _, err := eng.AddPVI(p.ID, 1000, 50, 0); err != nil {
		t.Fatalf("AddPVI: %v", err)
	}
	// The ditch daylight target sits above where its falling slope can
	// ever reach within MaxRun, so evaluation fails at every station.
	tpl, err := eng.CreateTemplate("broken-ditch", []section.Component{
		{Name: "lane", Kind: section.KindLane, Width: 3.5, Slope: -0.02},
		{Name: "ditch", Kind: section.KindDitch, SideSlope: -0.25, DaylightDelta: 5.0, MaxRun: 4.0},
	})
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	cor, err := eng.CreateCorridor("broken", a.ID, p.ID, 100)
	if err != nil {
		t.Fatalf("CreateCorridor: %v", err)
	}
	if err := eng.AssignTemplate(cor.ID, tpl.ID, 0, 900); err != nil {
		t.Fatalf("AssignTemplate: %v", err)
	}

	res, err := eng.Rebuild(ctx)
	if err == nil {
		t.Fatal("expected aborted rebuild")
	}
	if !errors.Is(err, store.ErrTransactionAborted) {
		t.Fatalf("unexpected rebuild error: %v", err)
	}
	if len(res.Failures) != 1 || !strings.Contains(res.Failures[0].Message, "unresolved component") {
		t.Fatalf("expected an unresolved component failure, got %+v", res.Failures)
	}

	// Nothing reached the database.
	for _, kind := range []store.EntityKind{store.KindAlignment, store.KindProfile, store.KindTemplate, store.KindCorridor} {
		recs, err := st.List(ctx, kind)
		if err != nil {
			t.Fatalf("List %s: %v", kind, err)
		}
		if len(recs) != 0 {
			t.Fatalf("aborted pass persisted %d %s records", len(recs), kind)
		}
	}

	// Repair the ditch and retry. Everything commits this time.
	if err := eng.SetTemplateComponents(tpl.ID, []section.Component{
		{Name: "lane", Kind: section.KindLane, Width: 3.5, Slope: -0.02},
		{Name: "ditch", Kind: section.KindDitch, SideSlope: -0.25, DaylightDelta: -2.0, MaxRun: 20.0},
	}); err != nil {
		t.Fatalf("SetTemplateComponents: %v", err)
	}
	res, err = eng.Rebuild(ctx)
	if err != nil {
		t.Fatalf("retry rebuild: %v", err)
	}
	if len(res.Committed) != 4 {
		t.Fatalf("expected 4 committed after repair, got %v", res.Committed)
	}

	rec, err := st.Get(ctx, store.KindCorridor, cor.ID)
	if err != nil || rec == nil {
		t.Fatalf("corridor record missing after commit: %v", err)
	}
	var surf corridor.Surface
	if err := json.Unmarshal(rec.Geometry, &surf); err != nil {
		t.Fatalf("persisted geometry does not decode: %v", err)
	}
	if len(surf.Sections) == 0 {
		t.Fatal("persisted surface has no sections")
	}
}
