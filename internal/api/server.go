package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/txplain/callplain/internal/agent"
	"github.com/txplain/callplain/internal/models"
)

// explainTimeout bounds a single explanation, LLM retries included
const explainTimeout = 300 * time.Second

// maxRequestBody caps request bodies; call args are small
const maxRequestBody = 1 << 20

// Server represents the API server
type Server struct {
	router  *mux.Router
	agent   *agent.CallplainAgent
	address string
	version string
	server  *http.Server
	logger  zerolog.Logger
}

// NewServer creates a new API server around a shared agent. The caller owns the agent.
func NewServer(address string, callAgent *agent.CallplainAgent, version string, logger zerolog.Logger) *Server {
	server := &Server{
		router:  mux.NewRouter(),
		agent:   callAgent,
		address: address,
		version: version,
		logger:  logger.With().Str("component", "api").Logger(),
	}

	server.setupRoutes()

	return server
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.corsMiddleware)
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// API version 1
	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/enrich", s.handleEnrich).Methods("POST", "OPTIONS")
	v1.HandleFunc("/explain", s.handleExplain).Methods("POST", "OPTIONS")
	v1.HandleFunc("/knowledge/{key}", s.handleKnowledge).Methods("GET")
	v1.HandleFunc("/rules/{section}", s.handleRules).Methods("GET")
	v1.HandleFunc("/calls", s.handleCalls).Methods("GET")
	v1.HandleFunc("/chains", s.handleChains).Methods("GET")
}

// handleHealth returns the health status of the service
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "healthy",
		"timestamp":         time.Now().UTC(),
		"service":           "callplain",
		"version":           s.version,
		"llm":               s.agent.HasLLM(),
		"knowledge_version": s.agent.KnowledgeVersion(),
	})
}

// decodeRequest reads an ExplainRequest body, writing the error response itself on failure
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (*models.ExplainRequest, bool) {
	var request models.ExplainRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(&request); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return nil, false
	}
	if err := request.Validate(); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, capitalize(err.Error()), nil)
		return nil, false
	}
	return &request, true
}

// handleEnrich decodes a call without generating an explanation
func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	request, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	enriched, err := s.agent.Enrich(request)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid call", err)
		return
	}

	s.writeJSON(w, http.StatusOK, enriched)
}

// handleExplain handles call explanation requests
func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	request, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), explainTimeout)
	defer cancel()

	s.logger.Debug().Str("section", request.Section).Str("method", request.Method).Msg("explaining call")
	explanation, err := s.agent.Explain(ctx, request)
	if err != nil {
		switch {
		case errors.Is(err, agent.ErrInvalidRequest):
			s.writeErrorResponse(w, http.StatusBadRequest, "Invalid call", err)
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			s.writeErrorResponse(w, http.StatusRequestTimeout, "Call explanation timed out", err)
		case errors.Is(ctx.Err(), context.Canceled):
			s.writeErrorResponse(w, http.StatusRequestTimeout, "Request was canceled", err)
		default:
			s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to explain call", err)
		}
		return
	}

	s.writeJSON(w, http.StatusOK, explanation)
}

// handleKnowledge returns the catalog entry for a "<section>.<method>" key
func (s *Server) handleKnowledge(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"key":   key,
		"entry": s.agent.Lookup(key),
	})
}

// handleRules returns the phrasing template for a section
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	section := mux.Vars(r)["section"]
	rules := s.agent.Rules(section)
	if rules == "" {
		s.writeErrorResponse(w, http.StatusNotFound, fmt.Sprintf("No rules for section %s", section), nil)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"section": section,
		"rules":   rules,
	})
}

// handleCalls lists the calls with a dedicated handler
func (s *Server) handleCalls(w http.ResponseWriter, r *http.Request) {
	calls := s.agent.SupportedCalls()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"calls": calls,
		"count": len(calls),
	})
}

// handleChains returns the chain presets requests can refer to
func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	chains := s.agent.GetSupportedChains()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"chains": chains,
		"count":  len(chains),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Status is already sent, only log
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// writeErrorResponse writes an error response in a consistent format
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	response := map[string]interface{}{
		"error":     message,
		"timestamp": time.Now().UTC(),
	}

	if err != nil {
		s.logger.Warn().Err(err).Int("status", statusCode).Msg(message)

		// Caller mistakes are safe to echo; anything else is sanitized
		switch {
		case errors.Is(err, agent.ErrInvalidRequest):
			response["details"] = err.Error()
		case statusCode == http.StatusBadRequest:
			response["details"] = "Malformed JSON"
		case strings.Contains(err.Error(), "LLM"):
			response["details"] = "External service error"
		case strings.Contains(err.Error(), "context"):
			response["details"] = "Request timeout"
		default:
			response["details"] = "Internal processing error"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
		s.logger.Error().Err(encodeErr).Msg("failed to encode error response")
		w.Write([]byte(`{"error":"Internal server error - failed to encode response"}`))
	}
}

func capitalize(message string) string {
	if message == "" {
		return message
	}
	return strings.ToUpper(message[:1]) + message[1:]
}

// recoveryMiddleware catches panics and returns proper JSON error responses
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error().Str("method", r.Method).Str("path", r.URL.Path).Interface("panic", err).Msg("recovered from panic")

				// Only write response if headers haven't been sent yet
				if w.Header().Get("Content-Type") == "" {
					s.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", fmt.Errorf("panic: %v", err))
				}
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware echoes the caller's request id, or assigns a new one
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
			r.Header.Set(requestIDHeader, requestID)
		}
		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Str("remote", r.RemoteAddr).
			Str("request_id", r.Header.Get(requestIDHeader)).
			Int("status", wrapped.statusCode).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.address,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      explainTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("address", s.address).Msg("starting callplain API server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("shutting down callplain API server")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}
	return nil
}
