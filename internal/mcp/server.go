package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/txplain/callplain/internal/agent"
	"github.com/txplain/callplain/internal/models"
)

// JSON-RPC error codes
const (
	CodeParseError      = -32700
	CodeMethodNotFound  = -32601
	CodeInvalidParams   = -32602
	CodeProcessingError = -32000
)

var methods = []string{
	"callplain.enrich",
	"callplain.explain",
	"callplain.lookup",
	"callplain.rules",
	"callplain.capabilities",
}

// Server represents the MCP server
type Server struct {
	router  *mux.Router
	agent   *agent.CallplainAgent
	address string
	version string
	server  *http.Server
	logger  zerolog.Logger
}

// MCPRequest represents a Model Context Protocol request
type MCPRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     interface{}     `json:"id"`
}

// MCPResponse represents a Model Context Protocol response
type MCPResponse struct {
	Result interface{} `json:"result,omitempty"`
	Error  *MCPError   `json:"error,omitempty"`
	ID     interface{} `json:"id"`
}

// MCPError represents an MCP error
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// NewServer creates a new MCP server around a shared agent
func NewServer(address string, callAgent *agent.CallplainAgent, version string, logger zerolog.Logger) *Server {
	server := &Server{
		router:  mux.NewRouter(),
		agent:   callAgent,
		address: address,
		version: version,
		logger:  logger.With().Str("component", "mcp").Logger(),
	}

	server.setupRoutes()

	return server
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures the MCP server routes
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/mcp", s.handleMCPRequest).Methods("POST")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/capabilities", s.handleCapabilities).Methods("GET")
}

// handleMCPRequest handles Model Context Protocol requests
func (s *Server) handleMCPRequest(w http.ResponseWriter, r *http.Request) {
	var request MCPRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeErrorResponse(w, nil, CodeParseError, "Parse error", err.Error())
		return
	}

	switch request.Method {
	case "callplain.enrich":
		s.handleEnrichMethod(w, &request)
	case "callplain.explain":
		s.handleExplainMethod(r.Context(), w, &request)
	case "callplain.lookup":
		s.handleLookupMethod(w, &request)
	case "callplain.rules":
		s.handleRulesMethod(w, &request)
	case "callplain.capabilities":
		s.writeResult(w, request.ID, s.capabilities())
	default:
		s.writeErrorResponse(w, request.ID, CodeMethodNotFound, "Method not found", fmt.Sprintf("Unknown method: %s", request.Method))
	}
}

// callParams decodes the params of enrich and explain, which share the HTTP request shape
func (s *Server) callParams(w http.ResponseWriter, request *MCPRequest) (*models.ExplainRequest, bool) {
	var params models.ExplainRequest
	if len(request.Params) == 0 {
		s.writeErrorResponse(w, request.ID, CodeInvalidParams, "Invalid params", "section and method are required")
		return nil, false
	}
	if err := json.Unmarshal(request.Params, &params); err != nil {
		s.writeErrorResponse(w, request.ID, CodeInvalidParams, "Invalid params", err.Error())
		return nil, false
	}
	return &params, true
}

func (s *Server) handleEnrichMethod(w http.ResponseWriter, request *MCPRequest) {
	params, ok := s.callParams(w, request)
	if !ok {
		return
	}

	enriched, err := s.agent.Enrich(params)
	if err != nil {
		s.writeErrorResponse(w, request.ID, CodeInvalidParams, "Invalid params", err.Error())
		return
	}
	s.writeResult(w, request.ID, enriched)
}

func (s *Server) handleExplainMethod(ctx context.Context, w http.ResponseWriter, request *MCPRequest) {
	params, ok := s.callParams(w, request)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	explanation, err := s.agent.Explain(ctx, params)
	if err != nil {
		if errors.Is(err, agent.ErrInvalidRequest) {
			s.writeErrorResponse(w, request.ID, CodeInvalidParams, "Invalid params", err.Error())
			return
		}
		s.logger.Warn().Err(err).Msg("explain failed")
		s.writeErrorResponse(w, request.ID, CodeProcessingError, "Processing error", err.Error())
		return
	}
	s.writeResult(w, request.ID, explanation)
}

func (s *Server) handleLookupMethod(w http.ResponseWriter, request *MCPRequest) {
	var params struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(request.Params, &params); err != nil || params.Key == "" {
		s.writeErrorResponse(w, request.ID, CodeInvalidParams, "Invalid params", "key is required")
		return
	}
	s.writeResult(w, request.ID, map[string]interface{}{
		"key":   params.Key,
		"entry": s.agent.Lookup(params.Key),
	})
}

func (s *Server) handleRulesMethod(w http.ResponseWriter, request *MCPRequest) {
	var params struct {
		Section string `json:"section"`
	}
	if err := json.Unmarshal(request.Params, &params); err != nil || params.Section == "" {
		s.writeErrorResponse(w, request.ID, CodeInvalidParams, "Invalid params", "section is required")
		return
	}
	// An empty rules string means the section has no template
	s.writeResult(w, request.ID, map[string]interface{}{
		"section": params.Section,
		"rules":   s.agent.Rules(params.Section),
	})
}

func (s *Server) capabilities() map[string]interface{} {
	return map[string]interface{}{
		"service":           "callplain",
		"version":           s.version,
		"methods":           methods,
		"llm":               s.agent.HasLLM(),
		"knowledge_version": s.agent.KnowledgeVersion(),
		"supported_calls":   s.agent.SupportedCalls(),
		"supported_chains":  s.agent.GetSupportedChains(),
		"features": []string{
			"call_enrichment",
			"human_readable_explanations",
			"pallet_knowledge_lookup",
			"phrasing_rules",
		},
	}
}

// handleHealth returns health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":    "healthy",
		"service":   "callplain-mcp",
		"timestamp": time.Now().UTC(),
	})
}

// handleCapabilities returns service capabilities
func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.capabilities())
}

func (s *Server) writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	writeJSON(w, MCPResponse{Result: result, ID: id})
}

// writeErrorResponse writes an MCP error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, id interface{}, code int, message, data string) {
	writeJSON(w, MCPResponse{
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	})
}

// writeJSON always answers 200; MCP errors travel in the body
func writeJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}

// loggingMiddleware logs MCP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info().Str("method", r.Method).Str("uri", r.RequestURI).Dur("duration", time.Since(start)).Msg("request")
	})
}

// Start starts the MCP server and blocks until it stops
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.address,
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      70 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("address", s.address).Msg("starting callplain MCP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the MCP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("shutting down callplain MCP server")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown MCP server: %w", err)
		}
	}
	return nil
}
