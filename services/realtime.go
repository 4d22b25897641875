package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const realtimeAPIVersion = "2024-10-01-preview"

// Realtime event types surfaced to the session loop.
const (
	RealtimeAudioDelta = "audio_delta"
	RealtimeDone       = "done"
	RealtimeClosed     = "closed"
)

// RealtimeEvent is one upstream event from the voice endpoint.
type RealtimeEvent struct {
	Type     string
	AudioB64 string // base64 audio chunk for audio_delta events
}

// VoiceClient is the upstream speech interface the session loop talks
// to. Satisfied by RealtimeClient in production and by fakes in tests.
type VoiceClient interface {
	Connect(ctx context.Context) error
	Speak(ctx context.Context, text string) error
	Events() <-chan RealtimeEvent
	Close() error
}

// RealtimeClient speaks the Azure OpenAI realtime protocol over a
// websocket. Upstream events are delivered on a channel rather than
// callbacks so the session loop can select over them alongside
// candidate input. The events channel closes when the connection dies.
type RealtimeClient struct {
	cfg  RealtimeConfig
	conn *websocket.Conn

	events  chan RealtimeEvent
	writeMu sync.Mutex
	group   *errgroup.Group
}

func NewRealtimeClient(cfg RealtimeConfig) *RealtimeClient {
	return &RealtimeClient{
		cfg:    cfg,
		events: make(chan RealtimeEvent, 64),
	}
}

// Connect dials the realtime endpoint and starts the read loop.
func (c *RealtimeClient) Connect(ctx context.Context) error {
	endpoint := strings.TrimSuffix(c.cfg.Endpoint, "/")
	endpoint = strings.Replace(endpoint, "https://", "wss://", 1)
	url := fmt.Sprintf("%s/openai/realtime?api-version=%s&deployment=%s", endpoint, realtimeAPIVersion, c.cfg.Deployment)

	header := http.Header{}
	header.Set("api-key", c.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return upstreamErr("realtime", "connect", err)
	}
	c.conn = conn

	// Session-scoped configuration has to land before anything is
	// spoken on this connection.
	handshake := map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"modalities": []string{"text", "audio"},
			"voice":      c.cfg.Voice,
			"turn_detection": map[string]any{
				"type": "server_vad",
			},
		},
	}
	if err := conn.WriteJSON(handshake); err != nil {
		conn.Close()
		c.conn = nil
		return upstreamErr("realtime", "configure session", err)
	}
	slog.Info("Connected to realtime voice endpoint", "deployment", c.cfg.Deployment)

	c.group, _ = errgroup.WithContext(ctx)
	c.group.Go(c.readLoop)
	return nil
}

// readLoop decodes upstream frames into events. Unknown frame types
// are ignored; the loop exits and closes the events channel when the
// connection drops.
func (c *RealtimeClient) readLoop() error {
	defer close(c.events)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("Realtime connection read error", "error", err)
			}
			c.events <- RealtimeEvent{Type: RealtimeClosed}
			return nil
		}

		var frame struct {
			Type  string `json:"type"`
			Delta string `json:"delta"`
		}
		if err := json.Unmarshal(message, &frame); err != nil {
			continue
		}

		switch frame.Type {
		case "response.audio.delta":
			if frame.Delta != "" {
				c.events <- RealtimeEvent{Type: RealtimeAudioDelta, AudioB64: frame.Delta}
			}
		case "response.done":
			c.events <- RealtimeEvent{Type: RealtimeDone}
		}
	}
}

// Speak asks the upstream voice to say the given text aloud.
func (c *RealtimeClient) Speak(ctx context.Context, text string) error {
	if c.conn == nil {
		return upstreamErr("realtime", "speak", fmt.Errorf("not connected"))
	}

	message := map[string]any{
		"type": "response.create",
		"response": map[string]any{
			"modalities":   []string{"audio", "text"},
			"instructions": fmt.Sprintf("You are a professional job interviewer with a warm, clear voice. Say this naturally: %s", text),
			"voice":        c.cfg.Voice,
		},
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(message); err != nil {
		return upstreamErr("realtime", "speak", err)
	}
	return nil
}

// Events returns the upstream event stream.
func (c *RealtimeClient) Events() <-chan RealtimeEvent {
	return c.events
}

// Close shuts down the connection and waits for the read loop.
func (c *RealtimeClient) Close() error {
	if c.conn == nil {
		return nil
	}

	c.writeMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	err := c.conn.Close()

	// The read loop may be blocked delivering into a full buffer once
	// the session loop has stopped consuming. Drain until it closes the
	// channel so Wait cannot deadlock.
	go func() {
		for range c.events {
		}
	}()
	if c.group != nil {
		c.group.Wait()
	}
	slog.Info("Realtime voice connection closed")
	return err
}
