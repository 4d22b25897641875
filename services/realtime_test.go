package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newRealtimeTestServer runs handler against each upgraded connection
// and returns a config pointing at it.
func newRealtimeTestServer(t *testing.T, handler func(conn *websocket.Conn)) (*httptest.Server, RealtimeConfig) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	cfg := RealtimeConfig{
		Endpoint:   "ws" + strings.TrimPrefix(srv.URL, "http"),
		APIKey:     "test-key",
		Deployment: "test-deployment",
		Voice:      "alloy",
	}
	return srv, cfg
}

func TestRealtimeHandshakePrecedesSpeak(t *testing.T) {
	frames := make(chan string, 8)
	srv, cfg := newRealtimeTestServer(t, func(conn *websocket.Conn) {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(message, &frame); err == nil {
				frames <- frame.Type
			}
		}
	})
	defer srv.Close()

	client := NewRealtimeClient(cfg)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	if err := client.Speak(context.Background(), "Tell me about yourself."); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}

	recv := func() string {
		select {
		case frame := <-frames:
			return frame
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for a frame")
			return ""
		}
	}

	if first := recv(); first != "session.update" {
		t.Errorf("first frame = %q, expected the session configuration", first)
	}
	if second := recv(); second != "response.create" {
		t.Errorf("second frame = %q, expected the speak request", second)
	}
}

func TestRealtimeDoneEventSurfaces(t *testing.T) {
	srv, cfg := newRealtimeTestServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage() // session configuration
		conn.WriteJSON(map[string]string{"type": "response.done"})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	client := NewRealtimeClient(cfg)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	select {
	case ev := <-client.Events():
		if ev.Type != RealtimeDone {
			t.Errorf("event type = %q, expected %q", ev.Type, RealtimeDone)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the done event")
	}
}

func TestRealtimeCloseWithUndrainedEvents(t *testing.T) {
	srv, cfg := newRealtimeTestServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage() // session configuration
		// Stream far more deltas than the event buffer holds.
		for i := 0; i < 200; i++ {
			if err := conn.WriteJSON(map[string]string{"type": "response.audio.delta", "delta": "UklGRg=="}); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	client := NewRealtimeClient(cfg)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// Nobody consumes the events; give the read loop time to wedge on
	// the full buffer, then Close must still return.
	time.Sleep(100 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- client.Close() }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close hung waiting for the read loop")
	}
}
