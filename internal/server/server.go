// Package server exposes the claim pipeline over HTTP.
package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/zombor/superclaims/internal/claim"
	"github.com/zombor/superclaims/internal/extraction"
	"github.com/zombor/superclaims/internal/metrics"
)

// ClaimProcessor runs one claim through the pipeline.
type ClaimProcessor interface {
	ProcessClaim(ctx context.Context, files []extraction.RawDocument) (*claim.Result, error)
}

// Config holds request limits and identity.
type Config struct {
	ServiceName string
	// MaxUploadBytes caps the request body. Zero means no cap.
	MaxUploadBytes int64
	// MaxFiles caps the number of uploaded files. Zero means no cap.
	MaxFiles int
}

// Server handles HTTP requests for claims.
type Server struct {
	processor ClaimProcessor
	cfg       Config
	metrics   *metrics.Pipeline
	mux       *http.ServeMux
	handler   http.Handler
}

// NewServer creates a new Server with default mux. m may be nil.
func NewServer(processor ClaimProcessor, cfg Config, m *metrics.Pipeline) *Server {
	return NewServerWithMux(processor, cfg, m, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing.
func NewServerWithMux(processor ClaimProcessor, cfg Config, m *metrics.Pipeline, mux *http.ServeMux) *Server {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "superclaims-backend"
	}

	s := &Server{
		processor: processor,
		cfg:       cfg,
		metrics:   m,
		mux:       mux,
	}
	s.registerRoutes()
	s.handler = requestIDMiddleware(accessLogMiddleware(m.Middleware(corsMiddleware(s.mux))))
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /process-claim", s.handleProcessClaim)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// ServeHTTP implements http.Handler with all middleware applied.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// corsMiddleware allows every origin, method and header. Preflight requests
// are answered directly.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w, r)

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// setCORSHeaders reflects the caller's origin so credentialed requests work.
func setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	if origin := r.Header.Get("Origin"); origin != "" {
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")
	} else {
		h.Set("Access-Control-Allow-Origin", "*")
	}

	methods := r.Header.Get("Access-Control-Request-Method")
	if methods == "" {
		methods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	}
	h.Set("Access-Control-Allow-Methods", methods)

	headers := strings.TrimSpace(r.Header.Get("Access-Control-Request-Headers"))
	if headers == "" {
		headers = "*"
	}
	h.Set("Access-Control-Allow-Headers", headers)
	h.Set("Access-Control-Max-Age", "600")
}
