package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuthorizeRequestLogsExpiredTokenAtInfoLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodPost, "/events", http.NoBody)
	request.Header.Set("Authorization", "Bearer expired-token")
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		tokens: stubTokenValidator{validateErr: jwt.ErrTokenExpired},
		logger: zap.New(core),
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.InfoLevel {
		t.Fatalf("expected info level for expired token, got %s", entry.Level)
	}
	if entry.Message != "token validation failed" {
		t.Fatalf("unexpected log message: %q", entry.Message)
	}
}

func TestAuthorizeRequestLogsUnexpectedTokenErrorAtWarnLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodPost, "/events", http.NoBody)
	request.Header.Set("Authorization", "Bearer invalid-token")
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		tokens: stubTokenValidator{validateErr: errors.New("signature mismatch")},
		logger: zap.New(core),
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected one warn entry, got %v", entries)
	}
}

func TestAuthorizeRequestRejectsMissingBearer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, header := range []string{"", "Basic abc", "Bearer   "} {
		recorder := httptest.NewRecorder()
		ctx, _ := gin.CreateTestContext(recorder)
		request := httptest.NewRequest(http.MethodPost, "/events", http.NoBody)
		if header != "" {
			request.Header.Set("Authorization", header)
		}
		ctx.Request = request

		handler := &httpHandler{tokens: stubTokenValidator{subject: "feeder"}, logger: zap.NewNop()}
		handler.authorizeRequest(ctx)

		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected unauthorized, got %d", header, recorder.Code)
		}
	}
}

func TestCORSPreflightAllowsAuthorizationHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, dispatcher := newTestHandler(t)
	router, err := NewHTTPHandler(Dependencies{
		Tokens:        handler.tokens,
		Pipeline:      handler.pipeline,
		Notifications: dispatcher,
	})
	if err != nil {
		t.Fatalf("failed to construct router: %v", err)
	}

	request := httptest.NewRequest(http.MethodOptions, "/events", http.NoBody)
	request.Header.Set("Origin", "https://app.example.com")
	request.Header.Set("Access-Control-Request-Method", http.MethodPost)
	request.Header.Set("Access-Control-Request-Headers", "Authorization")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("unexpected allow origin %q", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestNewHTTPHandlerRequiresDependencies(t *testing.T) {
	handler, dispatcher := newTestHandler(t)
	tests := []struct {
		name string
		deps Dependencies
	}{
		{name: "tokens", deps: Dependencies{Pipeline: handler.pipeline, Notifications: dispatcher}},
		{name: "pipeline", deps: Dependencies{Tokens: handler.tokens, Notifications: dispatcher}},
		{name: "notifications", deps: Dependencies{Tokens: handler.tokens, Pipeline: handler.pipeline}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewHTTPHandler(tt.deps); err == nil {
				t.Fatalf("expected error without %s", tt.name)
			}
		})
	}
}
