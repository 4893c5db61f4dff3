package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/cadence/internal/calendar"
	"github.com/dukerupert/cadence/internal/database"
	"github.com/dukerupert/cadence/internal/handler"
	cws "github.com/dukerupert/cadence/internal/websocket"
)

func setupServer(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(db, Options{
		Version:       "test",
		Location:      time.UTC,
		Clock:         calendar.Fixed(time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)),
		JWTSecret:     "test-secret",
		SessionTTL:    time.Hour,
		Retry:         handler.DefaultRetryPolicy,
		AuthRateLimit: 100,
	}, logger)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, srv
}

func call(t *testing.T, ts *httptest.Server, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func login(t *testing.T, ts *httptest.Server, username string) string {
	t.Helper()
	creds := map[string]string{"username": username, "password": "hunter22"}
	if resp, body := call(t, ts, http.MethodPost, "/auth/register", "", creds); resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: %d %s", resp.StatusCode, body)
	}
	resp, body := call(t, ts, http.MethodPost, "/auth/login", "", creds)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: %d %s", resp.StatusCode, body)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return out.Token
}

func TestPublicRoutes(t *testing.T) {
	ts, _ := setupServer(t)

	if resp, _ := call(t, ts, http.MethodGet, "/health", "", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("health: status = %d", resp.StatusCode)
	}
	if resp, _ := call(t, ts, http.MethodGet, "/version", "", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("version: status = %d", resp.StatusCode)
	}
	if resp, _ := call(t, ts, http.MethodGet, "/api/todos", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("protected without token: status = %d, want 401", resp.StatusCode)
	}

	resp, body := call(t, ts, http.MethodGet, "/metrics", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `cadence_http_requests_total{method="GET",route="GET /health",status="200"}`) {
		t.Errorf("metrics missing instrumented health route")
	}
}

func TestSequenceOverAPIWithLiveUpdates(t *testing.T) {
	ts, srv := setupServer(t)
	token := login(t, ts, "alice")

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?access_token=" + token
	conn, _, err := ws.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()
	waitForClients(t, srv.Hub(), 1)

	resp, body := call(t, ts, http.MethodPost, "/api/collections", token, map[string]any{
		"title": "Morning",
		"items": []map[string]any{{"title": "stretch"}, {"title": "plan"}},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", resp.StatusCode, body)
	}
	var c struct {
		ID int64 `json:"id"`
	}
	json.Unmarshal(body, &c)

	expectMessage(ctx, t, conn, "collection_created")

	path := "/api/collections/" + strconv.FormatInt(c.ID, 10) + "/sequence/start"
	if resp, body := call(t, ts, http.MethodPost, path, token, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("start: %d %s", resp.StatusCode, body)
	}
	msg := expectMessage(ctx, t, conn, "collection_sequence_start")
	if msg.Extra["current_index"] != float64(0) {
		t.Errorf("current_index = %v, want 0", msg.Extra["current_index"])
	}

	other := login(t, ts, "bob")
	if resp, _ := call(t, ts, http.MethodGet, "/api/collections/"+strconv.FormatInt(c.ID, 10), other, nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("other user: status = %d, want 404", resp.StatusCode)
	}
}

func TestLogoutInvalidatesToken(t *testing.T) {
	ts, _ := setupServer(t)
	token := login(t, ts, "alice")

	if resp, _ := call(t, ts, http.MethodGet, "/auth/me", token, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("me: status = %d", resp.StatusCode)
	}
	if resp, _ := call(t, ts, http.MethodPost, "/auth/logout", token, nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout: status = %d", resp.StatusCode)
	}
	if resp, _ := call(t, ts, http.MethodGet, "/auth/me", token, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("after logout: status = %d, want 401", resp.StatusCode)
	}
}

func expectMessage(ctx context.Context, t *testing.T, conn *ws.Conn, wantType string) cws.Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read %s: %v", wantType, err)
	}
	var msg cws.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.Type != wantType {
		t.Fatalf("message type = %s, want %s", msg.Type, wantType)
	}
	return msg
}

func waitForClients(t *testing.T, hub *cws.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
