package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/studyhub/studyfeed/pkg/backend"
)

func TestNewClient(t *testing.T) {
	client := NewClient(DefaultConfig())

	if client.getState() != StateDisconnected {
		t.Errorf("Initial state should be StateDisconnected, got %v", client.getState())
	}
	if client.IsConnected() {
		t.Error("Newly created client should not be connected")
	}
	if err := client.Send(Message{Type: MessageTypeHeartbeat}); err != ErrNotConnected {
		t.Errorf("Send before connect = %v, want ErrNotConnected", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !strings.HasPrefix(cfg.URL, "ws://") {
		t.Errorf("DefaultConfig URL should be ws://, got %s", cfg.URL)
	}
	if cfg.MaxReconnectAttempts != -1 {
		t.Errorf("MaxReconnectAttempts should be -1 (unlimited), got %d", cfg.MaxReconnectAttempts)
	}
}

func TestOnUnsubscribeRemovesOnlyThatListener(t *testing.T) {
	client := NewClient(DefaultConfig())

	first := client.On(MessageTypePong, func(Message) {})
	client.On(MessageTypePong, func(Message) {})
	first()
	first()

	client.listenersMu.RLock()
	n := len(client.listeners[MessageTypePong])
	client.listenersMu.RUnlock()
	if n != 1 {
		t.Errorf("expected 1 pong listener after unsubscribe, got %d", n)
	}
}

func TestGetStats(t *testing.T) {
	client := NewClient(DefaultConfig())

	client.recordMessageSent()
	client.recordMessageSent()
	client.recordMessageReceived()
	client.recordError("test error")

	stats := client.GetStats()
	if stats.MessagesSent != 2 || stats.MessagesReceived != 1 {
		t.Errorf("unexpected counters: %+v", stats)
	}
	if stats.LastError != "test error" {
		t.Errorf("LastError mismatch: got %s", stats.LastError)
	}
}

// changeServer answers every subscribe frame with one "added" change for that subscription.
func changeServer(t *testing.T, token chan<- string) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token <- r.URL.Query().Get("token")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg Message
			if err := codec.Unmarshal(data, &msg); err != nil {
				continue
			}
			if msg.Type != MessageTypeSubscribe {
				continue
			}
			var q backend.Query
			_ = codec.Unmarshal(msg.Payload, &q)
			payload, _ := codec.Marshal(backend.Change{
				Type: backend.ChangeAdded,
				Doc:  backend.Document{ID: "n1", Data: map[string]interface{}{"collection": q.Collection}},
			})
			out, _ := codec.Marshal(Message{Type: MessageTypeChange, ID: msg.ID, Payload: payload})
			if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
				return
			}
		}
	}))
}

func TestSubscribeReceivesChanges(t *testing.T) {
	tokens := make(chan string, 1)
	srv := changeServer(t, tokens)
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.URL = "ws" + strings.TrimPrefix(srv.URL, "http")
	client := NewClient(cfg)
	client.SetAuthToken("tok-123")
	defer client.Disconnect()

	got := make(chan backend.Change, 1)
	cancel, err := client.Subscribe(context.Background(), backend.Query{Collection: "notifications"}, func(c backend.Change) {
		got <- c
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	if tok := <-tokens; tok != "tok-123" {
		t.Errorf("token = %q, want tok-123", tok)
	}

	select {
	case c := <-got:
		if c.Type != backend.ChangeAdded || c.Doc.ID != "n1" {
			t.Errorf("unexpected change: %+v", c)
		}
		if c.Doc.Data["collection"] != "notifications" {
			t.Errorf("server saw collection %v", c.Doc.Data["collection"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}
}
