// Package server exposes the evaluation pipeline over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ppiankov/safeguard/internal/model"
	"github.com/ppiankov/safeguard/internal/pipeline"
)

// Evaluator is the part of the pipeline the API needs
type Evaluator interface {
	Evaluate(ctx context.Context, req model.EvaluationRequest) (*model.EvaluationResult, error)
	Chat(ctx context.Context, message string) (*model.ChatResult, error)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

type chatRequest struct {
	Message string `json:"message"`
}

// Server serves /api/evaluate, /api/chat and /health
type Server struct {
	evaluator Evaluator
	config    model.ServerConfig
	logger    *slog.Logger

	evaluateSchema *jsonschema.Schema
	chatSchema     *jsonschema.Schema
}

// New creates an API server
func New(evaluator Evaluator, cfg model.ServerConfig, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	evalSchema, err := compileSchema("evaluate", evaluateSchema)
	if err != nil {
		return nil, err
	}
	chatSch, err := compileSchema("chat", chatSchema)
	if err != nil {
		return nil, err
	}

	return &Server{
		evaluator:      evaluator,
		config:         cfg,
		logger:         logger.With("component", "server"),
		evaluateSchema: evalSchema,
		chatSchema:     chatSch,
	}, nil
}

// Handler returns the routed handler with CORS and access logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/evaluate", s.handleEvaluate)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /health", s.handleHealth)
	return s.logRequests(s.cors(mux))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "listening", "addr", s.config.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		s.logger.InfoContext(ctx, "shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var body model.EvaluationRequest
	if !s.decode(w, r, s.evaluateSchema, &body) {
		return
	}

	req, err := model.NewEvaluationRequest(body.Content, body.Context)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Content is required"})
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	result, err := s.evaluator.Evaluate(ctx, req)
	if err != nil {
		s.logger.ErrorContext(ctx, "evaluation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if !s.decode(w, r, s.chatSchema, &body) {
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	result, err := s.evaluator.Chat(ctx, body.Message)
	switch {
	case errors.Is(err, model.ErrEmptyContent):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Message is required"})
	case errors.Is(err, pipeline.ErrChatUnavailable):
		s.logger.WarnContext(ctx, "chat generation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "AI generation failed", Message: "Unable to generate response"})
	case err != nil:
		s.logger.ErrorContext(ctx, "chat evaluation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "healthy",
		Service: model.ServiceName,
		Version: model.Version,
	})
}

// decode reads a bounded body, validates it against schema and unmarshals
// it into dst. It writes the error response itself and reports success.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, dst any) bool {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return false
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON", Message: err.Error()})
		return false
	}
	if err := schema.Validate(doc); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request", Message: validationMessage(err)})
		return false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request", Message: err.Error()})
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verr *jsonschema.ValidationError
	if errors.As(err, &verr) {
		leaf := verr
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		if leaf.InstanceLocation != "" {
			return leaf.InstanceLocation + ": " + leaf.Message
		}
		return leaf.Message
	}
	return err.Error()
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.config.RequestTimeout > 0 {
		return context.WithTimeout(r.Context(), s.config.RequestTimeout)
	}
	return context.WithCancel(r.Context())
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	return slices.Contains(s.config.AllowedOrigins, "*") || slices.Contains(s.config.AllowedOrigins, origin)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
