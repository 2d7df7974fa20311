// Package api is the HTTP surface of the corridor engine: command
// endpoints for edits, a synchronous rebuild trigger, and read endpoints
// for entity states, committed surfaces and station queries.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/alignworks/corridord/pkg/engine"
	"github.com/alignworks/corridord/pkg/geom"
	"github.com/alignworks/corridord/pkg/store"
)

// Server encapsulates the HTTP API server
type Server struct {
	eng    *engine.Engine
	server *http.Server
	log    *zap.SugaredLogger
}

// NewServer creates a new API server instance
func NewServer(eng *engine.Engine, addr string, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{eng: eng, log: log}

	mux := http.NewServeMux()

	// Register routes
	mux.HandleFunc("/v1/health", handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/alignments", s.handleCreateAlignment)
	mux.HandleFunc("/v1/alignments/pi", s.handlePI)
	mux.HandleFunc("/v1/profiles", s.handleCreateProfile)
	mux.HandleFunc("/v1/profiles/pvi", s.handlePVI)
	mux.HandleFunc("/v1/templates", s.handleCreateTemplate)
	mux.HandleFunc("/v1/templates/components", s.handleSetComponents)
	mux.HandleFunc("/v1/corridors", s.handleCreateCorridor)
	mux.HandleFunc("/v1/corridors/assign", s.handleAssign)
	mux.HandleFunc("/v1/rebuild", s.handleRebuild)
	mux.HandleFunc("/v1/entities", s.handleEntities)
	mux.HandleFunc("/v1/surfaces", s.handleSurface)
	mux.HandleFunc("/v1/stations", s.handleStation)

	s.server = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start runs the server until Stop or a listener error.
func (s *Server) Start() error {
	s.log.Infow("api server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.log.Infow("api server stopping")
	return s.server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeCommandError maps model rejections to 422 and unknown-entity
// lookups to 404. Validation failures are the caller's problem, never a
// server fault.
func writeCommandError(w http.ResponseWriter, err error) {
	status := http.StatusUnprocessableEntity
	if errors.Is(err, engine.ErrNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func (s *Server) handleCreateAlignment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	var req CreateAlignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}
	a := s.eng.CreateAlignment(req.Name)
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: a.ID})
}

func (s *Server) handlePI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	var req PIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}
	var err error
	switch req.Op {
	case "add":
		_, err = s.eng.AddPI(req.AlignmentID, req.Index, geom.Point2{X: req.X, Y: req.Y}, req.Curve)
	case "move":
		err = s.eng.MovePI(req.AlignmentID, req.Index, geom.Point2{X: req.X, Y: req.Y})
	case "remove":
		err = s.eng.RemovePI(req.AlignmentID, req.Index)
	case "set_curve":
		err = s.eng.SetCurve(req.AlignmentID, req.Index, req.Curve)
	default:
		http.Error(w, `{"error":"unknown_op"}`, http.StatusBadRequest)
		return
	}
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	var req CreateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}
	p, err := s.eng.CreateProfile(req.Name, req.AlignmentID)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: p.ID})
}

func (s *Server) handlePVI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	var req PVIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}
	var err error
	switch req.Op {
	case "add":
		_, err = s.eng.AddPVI(req.ProfileID, req.Station, req.Elevation, req.CurveLength)
	case "move":
		err = s.eng.MovePVI(req.ProfileID, req.Index, req.Station, req.Elevation)
	case "remove":
		err = s.eng.RemovePVI(req.ProfileID, req.Index)
	case "set_curve":
		err = s.eng.SetCurveLength(req.ProfileID, req.Index, req.CurveLength)
	default:
		http.Error(w, `{"error":"unknown_op"}`, http.StatusBadRequest)
		return
	}
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	var req CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}
	t, err := s.eng.CreateTemplate(req.Name, req.Components)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: t.ID})
}

func (s *Server) handleSetComponents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	var req SetComponentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}
	if err := s.eng.SetTemplateComponents(req.TemplateID, req.Components); err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateCorridor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	var req CreateCorridorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}
	c, err := s.eng.CreateCorridor(req.Name, req.AlignmentID, req.ProfileID, req.Interval)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: c.ID})
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}
	if err := s.eng.AssignTemplate(req.CorridorID, req.TemplateID, req.Start, req.End); err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRebuild runs one synchronous rebuild pass. An aborted pass is not
// a server fault: the Result detailing the failures comes back with 409.
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	res, err := s.eng.Rebuild(r.Context())
	if err != nil {
		if errors.Is(err, store.ErrTransactionAborted) {
			writeJSON(w, http.StatusConflict, res)
			return
		}
		s.log.Errorw("rebuild failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.eng.Entities())
}

func (s *Server) handleSurface(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("corridor_id")
	surface, ok := s.eng.Surface(id)
	if !ok {
		http.Error(w, `{"error":"no_committed_surface"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, surface)
}

// handleStation evaluates the centerline at a station, joined with the
// profile grade line when profile_id is given.
func (s *Server) handleStation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	station, err := parseFloat(q.Get("station"))
	if err != nil {
		http.Error(w, `{"error":"invalid_station"}`, http.StatusBadRequest)
		return
	}
	pose, err := s.eng.AlignmentPoint(q.Get("alignment_id"), station)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	resp := PointResponse{Station: station, X: pose.X, Y: pose.Y, Heading: pose.Heading}
	if profileID := q.Get("profile_id"); profileID != "" {
		elev, grade, err := s.eng.ProfileElevation(profileID, station)
		if err != nil {
			writeCommandError(w, err)
			return
		}
		resp.Elevation, resp.Grade = &elev, &grade
	}
	writeJSON(w, http.StatusOK, resp)
}
