package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/cadence/internal/auth"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, userID int64) *Client {
	return &Client{
		hub:    hub,
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(testLogger)

	c1 := mockClient(hub, 1)
	c2 := mockClient(hub, 2)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)
	// Should not panic
	hub.Unregister(c2)
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestPublishOnlyReachesUser(t *testing.T) {
	hub := NewHub(testLogger)

	a1 := mockClient(hub, 1)
	a2 := mockClient(hub, 1)
	b := mockClient(hub, 2)
	for _, c := range []*Client{a1, a2, b} {
		hub.Register(c)
	}

	hub.Publish(1, NewMessage("collection", "sequence_started", 42, map[string]any{"current_index": float64(0)}))

	for _, c := range []*Client{a1, a2} {
		select {
		case data := <-c.send:
			var got Message
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != "collection_sequence_started" {
				t.Errorf("type = %s, want collection_sequence_started", got.Type)
			}
			if got.ID != 42 {
				t.Errorf("id = %d, want 42", got.ID)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for message")
		}
	}

	select {
	case <-b.send:
		t.Error("other user received the message")
	default:
	}
}

func TestPublishFullBuffer(t *testing.T) {
	hub := NewHub(testLogger)

	c := mockClient(hub, 1)
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Publish(1, NewMessage("test", "fill", int64(i), nil))
	}
	// This should drop the message, not block.
	hub.Publish(1, NewMessage("test", "dropped", 999, nil))

	if got := len(c.send); got != sendBufferSize {
		t.Errorf("buffered = %d, want %d", got, sendBufferSize)
	}
	hub.Unregister(c)
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(testLogger)
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			c := mockClient(hub, userID)
			hub.Register(c)
			hub.Publish(userID, NewMessage("test", "concurrent", 0, nil))
			hub.Unregister(c)
		}(int64(i % 3))
	}
	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

func TestHandleWebSocketDelivers(t *testing.T) {
	hub := NewHub(testLogger)
	h := HandleWebSocket(hub, nil, testLogger)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h(w, r.WithContext(auth.WithAuth(r.Context(), auth.AuthContext{UserID: 7})))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	for hub.ClientCount() == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("client never registered")
		case <-time.After(10 * time.Millisecond):
		}
	}

	hub.Publish(7, NewMessage("check_in", "created", 1, nil))

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != "check_in_created" {
		t.Errorf("type = %s, want check_in_created", got.Type)
	}
}

func TestHandleWebSocketRequiresAuth(t *testing.T) {
	h := HandleWebSocket(NewHub(testLogger), nil, testLogger)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("GET", "/ws", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
