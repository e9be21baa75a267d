package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/unisearch/internal/model"
)

// newLoggedRouter はアクセスログ → セッションゲートの順で組んだテスト用ルーターを返す。
func newLoggedRouter(buf *bytes.Buffer, status int) http.Handler {
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	finder := &mockSessionRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "valid-session" {
				return &model.Session{ID: id, UserID: "user-1"}, nil
			}
			return nil, nil
		},
	}

	r := chi.NewRouter()
	r.Use(NewLoggingMiddleware(logger))
	handler := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(status) }
	r.With(NewSessionMiddleware(finder)).Get("/api/search", handler)
	r.With(NewSessionRedirectMiddleware(finder, "/login")).Get("/integrations/{provider}/connect", handler)
	r.Get("/health", handler)
	return r
}

func decodeLogEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	return entry
}

func TestLoggingMiddleware_AuthenticatedSearch_LogsUserAndRoute(t *testing.T) {
	var buf bytes.Buffer
	router := newLoggedRouter(&buf, http.StatusOK)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=quarterly+budget", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "valid-session"})
	router.ServeHTTP(httptest.NewRecorder(), req)

	entry := decodeLogEntry(t, &buf)
	want := map[string]any{
		"msg":     "http_request",
		"level":   "INFO",
		"method":  "GET",
		"path":    "/api/search",
		"route":   "/api/search",
		"user_id": "user-1",
		"status":  float64(200),
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("expected duration_ms field")
	}
	if strings.Contains(buf.String(), "quarterly") {
		t.Errorf("search query must not be logged: %s", buf.String())
	}
}

func TestLoggingMiddleware_IntegrationRoute_LogsProvider(t *testing.T) {
	var buf bytes.Buffer
	router := newLoggedRouter(&buf, http.StatusTemporaryRedirect)

	req := httptest.NewRequest(http.MethodGet, "/integrations/notion/connect", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "valid-session"})
	router.ServeHTTP(httptest.NewRecorder(), req)

	entry := decodeLogEntry(t, &buf)
	if entry["route"] != "/integrations/{provider}/connect" {
		t.Errorf("route = %v, want pattern", entry["route"])
	}
	if entry["provider"] != "notion" {
		t.Errorf("provider = %v, want notion", entry["provider"])
	}
	if entry["user_id"] != "user-1" {
		t.Errorf("user_id = %v, want user-1", entry["user_id"])
	}
}

func TestLoggingMiddleware_Unauthenticated_WarnsWithoutUserID(t *testing.T) {
	var buf bytes.Buffer
	router := newLoggedRouter(&buf, http.StatusOK)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/search?q=x", nil))

	entry := decodeLogEntry(t, &buf)
	if entry["status"] != float64(http.StatusUnauthorized) {
		t.Errorf("status = %v, want 401", entry["status"])
	}
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", entry["level"])
	}
	if _, ok := entry["user_id"]; ok {
		t.Errorf("user_id should be omitted, got %v", entry["user_id"])
	}
}

func TestLoggingMiddleware_ContextUserIDFallback(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := NewLoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
	req = req.WithContext(ContextWithUserID(req.Context(), "user-9"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if entry := decodeLogEntry(t, &buf); entry["user_id"] != "user-9" {
		t.Errorf("user_id = %v, want user-9", entry["user_id"])
	}
}

func TestLoggingMiddleware_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusSeeOther, "INFO"},
		{http.StatusBadRequest, "WARN"},
		{http.StatusTooManyRequests, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
		{http.StatusBadGateway, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			router := newLoggedRouter(&buf, tt.status)
			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

			entry := decodeLogEntry(t, &buf)
			if entry["level"] != tt.level {
				t.Errorf("level = %v, want %s", entry["level"], tt.level)
			}
			if entry["status"] != float64(tt.status) {
				t.Errorf("status = %v, want %d", entry["status"], tt.status)
			}
		})
	}
}

func TestLoggingMiddleware_BodyWithoutWriteHeader_Records200(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := NewLoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
		w.WriteHeader(http.StatusInternalServerError) // 書き込み後の変更は無視される
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	if entry := decodeLogEntry(t, &buf); entry["status"] != float64(http.StatusOK) {
		t.Errorf("status = %v, want 200", entry["status"])
	}
}
