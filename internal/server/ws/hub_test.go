package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
)

type chanSource chan []byte

func (s chanSource) Subscribe(ctx context.Context) (<-chan []byte, error) {
	return s, nil
}

func startHub(t *testing.T, source EventSource) (*Hub, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(source, func() any { return map[string]bool{"running": true} }, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	typ, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if typ != websocket.TextMessage {
		t.Fatalf("frame type = %d, want text", typ)
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return f
}

func eventKind(t *testing.T, f frame) domain.EventKind {
	t.Helper()
	var ev domain.Event
	if err := json.Unmarshal(f.Event, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return ev.Kind
}

func TestHubSendsStatusThenEvents(t *testing.T) {
	hub, srv := startHub(t, nil)
	conn := dial(t, srv, "")

	if f := readFrame(t, conn); f.Type != "status" {
		t.Fatalf("first frame type = %s, want status", f.Type)
	}

	ev := domain.Event{Kind: domain.EventFlipCompleted, Profit: 87.5, At: time.Unix(1700000000, 0)}
	if err := hub.PublishEvent(context.Background(), ev); err != nil {
		t.Fatalf("PublishEvent: %v", err)
	}
	f := readFrame(t, conn)
	if f.Type != "event" || eventKind(t, f) != domain.EventFlipCompleted {
		t.Fatalf("unexpected frame %+v", f)
	}
}

func TestHubFiltersByKind(t *testing.T) {
	hub, srv := startHub(t, nil)
	conn := dial(t, srv, "?kinds=flip_completed")
	readFrame(t, conn)

	ctx := context.Background()
	hub.PublishEvent(ctx, domain.Event{Kind: domain.EventOrderAdmitted})
	hub.PublishEvent(ctx, domain.Event{Kind: domain.EventFlipCompleted})

	if k := eventKind(t, readFrame(t, conn)); k != domain.EventFlipCompleted {
		t.Fatalf("kind = %s, want flip_completed", k)
	}
}

func TestHubBridgesSource(t *testing.T) {
	src := make(chanSource, 1)
	_, srv := startHub(t, src)
	conn := dial(t, srv, "")
	readFrame(t, conn)

	src <- []byte(`{"kind":"order_expired","at":"2024-01-01T00:00:00Z"}`)
	if k := eventKind(t, readFrame(t, conn)); k != domain.EventOrderExpired {
		t.Fatalf("kind = %s, want order_expired", k)
	}
}
