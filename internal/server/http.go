package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ecomax360/internal/deviceerr"
	"github.com/muurk/ecomax360/internal/logging"
	"github.com/muurk/ecomax360/internal/params"
	"github.com/muurk/ecomax360/internal/version"
)

// Handler returns the HTTP routes:
//
//	GET  /healthz
//	GET  /api/version
//	GET  /api/readings
//	GET  /api/readings/{name}
//	POST /api/readings/{name}/refresh
//	POST /api/preset     {"preset": "eco"}
//	POST /api/setpoint   {"night": false, "celsius": 21.5}
//	POST /api/target     {"celsius": 21.5}
//	GET  /ws
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/version", s.handleVersion)
	mux.HandleFunc("GET /api/readings", s.handleReadings)
	mux.HandleFunc("GET /api/readings/{name}", s.handleReading)
	mux.HandleFunc("POST /api/readings/{name}/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/preset", s.handlePreset)
	mux.HandleFunc("POST /api/setpoint", s.handleSetpoint)
	mux.HandleFunc("POST /api/target", s.handleTarget)
	mux.HandleFunc("GET /ws", s.handleWS)
	return logRequests(mux)
}

// statusRecorder captures the response status for the access log
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack passes WebSocket upgrades through to the underlying connection
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Failed to write response", zap.Error(err))
	}
}

type errorBody struct {
	Error string   `json:"error"`
	Hints []string `json:"hints,omitempty"`
}

// writeError maps an error to a status code
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case deviceerr.IsEncodingError(err):
		status = http.StatusBadRequest
	case deviceerr.IsNoResponseError(err):
		status = http.StatusGatewayTimeout
	case deviceerr.IsLinkError(err):
		status = http.StatusBadGateway
	}
	body := errorBody{Error: err.Error()}
	if status != http.StatusBadRequest {
		body.Hints = deviceerr.GetTroubleshootingHint(err)
	}
	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, format string, args ...any) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf(format, args...)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"websockets": s.hub.Count(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.source.Snapshots())
}

func (s *Server) handleReading(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, err := params.Lookup(name); err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}
	snap, ok := s.source.Latest(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: fmt.Sprintf("no reading for %s yet", name)})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, err := params.Lookup(name); err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.source.Refresh(r.Context(), name))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 4096)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		badRequest(w, "invalid request body: %v", err)
		return false
	}
	return true
}

func (s *Server) handlePreset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Preset string `json:"preset"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.writer.SetPreset(r.Context(), req.Preset); err != nil {
		writeError(w, err)
		return
	}
	s.afterWrite(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "preset": req.Preset})
}

func (s *Server) handleSetpoint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Night   bool     `json:"night"`
		Celsius *float64 `json:"celsius"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Celsius == nil {
		badRequest(w, "celsius is required")
		return
	}
	if err := s.writer.SetSetpoint(r.Context(), req.Night, *req.Celsius); err != nil {
		writeError(w, err)
		return
	}
	s.afterWrite(r.Context())
	register := params.SetSetpointDay
	if req.Night {
		register = params.SetSetpointNight
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "register": register, "celsius": *req.Celsius})
}

func (s *Server) handleTarget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Celsius *float64 `json:"celsius"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Celsius == nil {
		badRequest(w, "celsius is required")
		return
	}
	register, err := s.writer.SetTargetTemperature(r.Context(), *req.Celsius)
	if err != nil {
		writeError(w, err)
		return
	}
	s.afterWrite(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "register": register, "celsius": *req.Celsius})
}
