// Package server exposes the mediation pipeline over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wardenai/warden-oss/pkg/domain"
	"github.com/wardenai/warden-oss/pkg/gateway"
)

// Server handles the gateway's HTTP API.
type Server struct {
	gw     *gateway.Gateway
	logger *slog.Logger
}

// New creates a Server over the gateway.
func New(gw *gateway.Gateway, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{gw: gw, logger: logger}
}

// Handler returns the routed, instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/mediate", s.handleMediate)
	mux.HandleFunc("POST /v1/documents", s.handleScreenDocument)
	mux.HandleFunc("POST /v1/retrieval/query", s.handleRetrievalQuery)
	mux.HandleFunc("GET /v1/posture/{principal_id}", s.handlePosture)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return otelhttp.NewHandler(mux, "warden.api")
}

func (s *Server) handleMediate(w http.ResponseWriter, r *http.Request) {
	var req gateway.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.Validation("body", err))
		return
	}

	// Denied and blocked outcomes are normal responses, not errors.
	resp, err := s.gw.MediateRequest(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type documentRequest struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

func (s *Server) handleScreenDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.Validation("body", err))
		return
	}

	doc, err := s.gw.ScreenDocument(r.Context(), req.Content, req.Source)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

type retrievalRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

func (s *Server) handleRetrievalQuery(w http.ResponseWriter, r *http.Request) {
	var req retrievalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.Validation("body", err))
		return
	}

	result, err := s.gw.RetrieveQuery(r.Context(), req.Query, req.K)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePosture(w http.ResponseWriter, r *http.Request) {
	score, err := s.gw.ComputePosture(r.Context(), r.PathValue("principal_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, score)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrPrincipalNotFound), errors.Is(err, domain.ErrPolicyNotFound):
		status = http.StatusNotFound
	case domain.IsValidation(err):
		status = http.StatusBadRequest
	case domain.IsUpstreamTimeout(err):
		status = http.StatusGatewayTimeout
	case domain.IsUpstream(err):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response failed", "error", err)
	}
}
