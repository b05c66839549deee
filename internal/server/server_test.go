package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/safeguard/internal/model"
	"github.com/ppiankov/safeguard/internal/pipeline"
)

type stubEvaluator struct {
	lastReq     model.EvaluationRequest
	lastMessage string
	evalErr     error
	chatErr     error
	deadline    bool
}

func (s *stubEvaluator) Evaluate(ctx context.Context, req model.EvaluationRequest) (*model.EvaluationResult, error) {
	s.lastReq = req
	_, s.deadline = ctx.Deadline()
	if s.evalErr != nil {
		return nil, s.evalErr
	}
	return &model.EvaluationResult{
		RequestID:   "req-1",
		Decision:    model.DecisionAllow,
		Severity:    model.SeverityLow,
		Explanation: "Eggs are a recognised source of vitamin B12.",
		Details: model.Details{
			ExplanationSource: model.ExplanationSource{GeneratedBy: "fallback"},
		},
	}, nil
}

func (s *stubEvaluator) Chat(ctx context.Context, message string) (*model.ChatResult, error) {
	s.lastMessage = message
	if strings.TrimSpace(message) == "" {
		return nil, model.ErrEmptyContent
	}
	if s.chatErr != nil {
		return nil, s.chatErr
	}
	return &model.ChatResult{
		EvaluationResult: model.EvaluationResult{
			RequestID:   "req-2",
			Decision:    model.DecisionAllow,
			Explanation: "This answer is consistent with trusted sources.",
		},
		UserMessage:      message,
		Safe:             true,
		AIResponse:       "Eggs contain B12.",
		FilteredResponse: "Eggs contain B12.",
	}, nil
}

func newTestServer(t *testing.T, ev Evaluator, cfg model.ServerConfig) (http.Handler, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	s, err := New(ev, cfg, slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, err)
	return s.Handler(), &logs
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestEvaluate_OK(t *testing.T) {
	ev := &stubEvaluator{}
	h, logs := newTestServer(t, ev, model.ServerConfig{RequestTimeout: time.Minute})

	rec := do(h, http.MethodPost, "/api/evaluate", `{"content":"Does egg contain vitamin B12?","userContext":{"age":"30","symptoms":"fatigue"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decodeBody(t, rec)
	assert.Equal(t, "ALLOW", body["decision"])
	assert.Equal(t, "Eggs are a recognised source of vitamin B12.", body["explanation"], "explanation is plain text")
	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"generated_by": "fallback"}, details["explanation_source"])
	assert.Equal(t, "Does egg contain vitamin B12?", ev.lastReq.Content)
	assert.Equal(t, "30", ev.lastReq.Context.Age)
	assert.Equal(t, "fatigue", ev.lastReq.Context.Symptoms)
	assert.True(t, ev.deadline, "request timeout should reach the pipeline")
	assert.Contains(t, logs.String(), "path=/api/evaluate")
	assert.Contains(t, logs.String(), "status=200")
}

func TestEvaluate_BadRequests(t *testing.T) {
	h, _ := newTestServer(t, &stubEvaluator{}, model.ServerConfig{})

	tests := []struct {
		name  string
		body  string
		error string
	}{
		{"missing content", `{}`, "Content is required"},
		{"blank content", `{"content":"   "}`, "Content is required"},
		{"wrong type", `{"content":42}`, "Invalid request"},
		{"bad context type", `{"content":"hi","userContext":{"age":30}}`, "Invalid request"},
		{"not json", `content=hi`, "Invalid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodPost, "/api/evaluate", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.error, decodeBody(t, rec)["error"])
		})
	}
}

func TestEvaluate_BodyTooLarge(t *testing.T) {
	h, _ := newTestServer(t, &stubEvaluator{}, model.ServerConfig{MaxBodyBytes: 16})
	rec := do(h, http.MethodPost, "/api/evaluate", `{"content":"this body is longer than sixteen bytes"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestEvaluate_InternalErrorIsGeneric(t *testing.T) {
	ev := &stubEvaluator{evalErr: errors.New("decide: malformed input: secret detail")}
	h, logs := newTestServer(t, ev, model.ServerConfig{})

	rec := do(h, http.MethodPost, "/api/evaluate", `{"content":"hello there"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decodeBody(t, rec)["error"])
	assert.NotContains(t, rec.Body.String(), "secret detail")
	assert.Contains(t, logs.String(), "secret detail")
}

func TestChat(t *testing.T) {
	ev := &stubEvaluator{}
	h, _ := newTestServer(t, ev, model.ServerConfig{})

	rec := do(h, http.MethodPost, "/api/chat", `{"message":"Does egg contain vitamin B12?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["safe"])
	assert.Equal(t, "Eggs contain B12.", body["ai_response"])
	assert.Equal(t, "Does egg contain vitamin B12?", body["user_message"])
	assert.Equal(t, "req-2", body["request_id"])
	assert.Equal(t, "This answer is consistent with trusted sources.", body["explanation"])

	rec = do(h, http.MethodPost, "/api/chat", `{"message":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Message is required", decodeBody(t, rec)["error"])
}

func TestChat_GenerationFailed(t *testing.T) {
	ev := &stubEvaluator{chatErr: fmt.Errorf("%w: 503", pipeline.ErrChatUnavailable)}
	h, _ := newTestServer(t, ev, model.ServerConfig{})

	rec := do(h, http.MethodPost, "/api/chat", `{"message":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "AI generation failed", body["error"])
	assert.Equal(t, "Unable to generate response", body["message"])
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, &stubEvaluator{}, model.ServerConfig{})

	rec := do(h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, model.ServiceName, body["service"])
	assert.Equal(t, model.Version, body["version"])
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newTestServer(t, &stubEvaluator{}, model.ServerConfig{})
	rec := do(h, http.MethodGet, "/api/evaluate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORS(t *testing.T) {
	h, _ := newTestServer(t, &stubEvaluator{}, model.ServerConfig{AllowedOrigins: []string{"chrome-extension://abc"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/evaluate", nil)
	req.Header.Set("Origin", "chrome-extension://abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "chrome-extension://abc", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Wildcard(t *testing.T) {
	h, _ := newTestServer(t, &stubEvaluator{}, model.ServerConfig{AllowedOrigins: []string{"*"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://any.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://any.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestListenAndServe_Shutdown(t *testing.T) {
	s, err := New(&stubEvaluator{}, model.ServerConfig{Addr: "127.0.0.1:0"}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
