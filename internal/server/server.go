package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/vigil-ai/vigil/internal/audit"
	"github.com/vigil-ai/vigil/internal/config"
	"github.com/vigil-ai/vigil/internal/observer"
	"github.com/vigil-ai/vigil/internal/pipeline"
)

// Server exposes the validation pipeline over HTTP.
type Server struct {
	mux      *http.ServeMux
	cfg      *config.Config
	pipeline *pipeline.Orchestrator
	observer *observer.Observer
	auditor  *audit.Emitter
}

// New creates a server with all routes registered. The observer and auditor
// are optional; they only feed /statusz.
func New(cfg *config.Config, orch *pipeline.Orchestrator, obs *observer.Observer, auditor *audit.Emitter) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		cfg:      cfg,
		pipeline: orch,
		observer: obs,
		auditor:  auditor,
	}

	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/statusz", s.handleStatus)
	s.mux.HandleFunc("/v1/validate/input", s.handleValidateInput)
	s.mux.HandleFunc("/v1/validate", s.handleValidate)

	return s
}

// Handler returns the route mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start runs the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	log.Printf("vigil listening on %s", addr)
	return http.ListenAndServe(addr, s.mux)
}

type validateInputRequest struct {
	Text  string   `json:"text"`
	Turns []string `json:"turns,omitempty"`
}

type validateRequest struct {
	Input  string   `json:"input"`
	Output string   `json:"output"`
	Turns  []string `json:"turns,omitempty"`
}

// Empty text is a valid request: the pipeline treats it as a clean pass,
// so the handlers do not reject it up front.

func (s *Server) handleValidateInput(w http.ResponseWriter, r *http.Request) {
	var req validateInputRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	res := s.pipeline.ValidateInputWithHistory(r.Context(), req.Text, req.Turns)
	writeJSON(w, res)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	res := s.pipeline.ValidateDialogueWithHistory(r.Context(), req.Input, req.Output, req.Turns)
	writeJSON(w, res)
}

// decodeBody enforces the method and body limits shared by the validate
// endpoints. It writes the error response itself and reports whether the
// handler should continue.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		writeAPIError(w, http.StatusMethodNotAllowed, "method not allowed", "invalid_request_error")
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeAPIError(w, http.StatusRequestEntityTooLarge, "request body too large", "invalid_request_error")
			return false
		}
		writeAPIError(w, http.StatusBadRequest, "invalid JSON body", "invalid_request_error")
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "ok")
}

type statusResponse struct {
	Pipeline pipeline.Snapshot `json:"pipeline"`
	Retry    *retryStatus      `json:"retry,omitempty"`
	Audit    *auditStatus      `json:"audit,omitempty"`
}

type retryStatus struct {
	TotalCalls    int64            `json:"total_calls"`
	Successes     int64            `json:"successes"`
	Failures      int64            `json:"failures"`
	Retries       int64            `json:"retries"`
	RetriesByType map[string]int64 `json:"retries_by_type,omitempty"`
}

type auditStatus struct {
	Enqueued uint64 `json:"enqueued"`
	Dropped  uint64 `json:"dropped"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "method not allowed", "invalid_request_error")
		return
	}

	status := statusResponse{Pipeline: s.pipeline.Stats()}

	if s.observer != nil {
		rs := s.observer.RetryStats()
		byType := make(map[string]int64, len(rs.RetriesByType))
		for k, v := range rs.RetriesByType {
			byType[string(k)] = v
		}
		status.Retry = &retryStatus{
			TotalCalls:    rs.TotalCalls,
			Successes:     rs.Successes,
			Failures:      rs.Failures,
			Retries:       rs.Retries,
			RetriesByType: byType,
		}
	}

	if s.auditor != nil {
		m := s.auditor.MetricsSnapshot()
		status.Audit = &auditStatus{
			Enqueued: m.Enqueued(),
			Dropped:  m.Dropped(),
		}
	}

	writeJSON(w, status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}

type apiErrorBody struct {
	Error apiErrorDetail `json:"error"`
}

type apiErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// writeAPIError writes an OpenAI-style error JSON.
func writeAPIError(w http.ResponseWriter, status int, message, typ string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiErrorBody{
		Error: apiErrorDetail{
			Message: message,
			Type:    typ,
		},
	})
}
