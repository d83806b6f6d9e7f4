package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/longregen/refinery/internal/adapters/http/dto"
)

func startFeedServer(t *testing.T, broadcaster *Broadcaster, allowedOrigins []string) *httptest.Server {
	t.Helper()

	router := chi.NewRouter()
	feed := NewFeedHandler(broadcaster, allowedOrigins)
	router.Get("/api/v1/sessions/{id}/ws", feed.Handle)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func dialFeed(t *testing.T, server *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/sessions/" + sessionID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial feed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitForSubscriber bridges the gap between the client handshake
// finishing and the server goroutine registering the connection.
func waitForSubscriber(t *testing.T, b *Broadcaster, sessionID string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b.SubscriberCount(sessionID) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("subscriber never registered")
}

func readEvent(t *testing.T, conn *websocket.Conn) *dto.SessionEvent {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Fatalf("expected binary frame, got type %d", msgType)
	}

	var event dto.SessionEvent
	if err := msgpack.Unmarshal(data, &event); err != nil {
		t.Fatalf("failed to decode frame: %v", err)
	}
	return &event
}

func TestBroadcaster_StreamsIterationEvents(t *testing.T) {
	broadcaster := NewBroadcaster()
	server := startFeedServer(t, broadcaster, nil)
	conn := dialFeed(t, server, "ses_ws")
	waitForSubscriber(t, broadcaster, "ses_ws")

	broadcaster.OnIterationStart("ses_ws", 1, 3)
	event := readEvent(t, conn)
	if event.Type != dto.EventIterationStart {
		t.Errorf("expected %q, got %q", dto.EventIterationStart, event.Type)
	}
	if event.SessionID != "ses_ws" || event.Iteration != 1 || event.Total != 3 {
		t.Errorf("unexpected start event: %+v", event)
	}

	broadcaster.OnIterationComplete("ses_ws", 1, 7.5, 1500*time.Millisecond)
	event = readEvent(t, conn)
	if event.Type != dto.EventIterationComplete {
		t.Errorf("expected %q, got %q", dto.EventIterationComplete, event.Type)
	}
	if event.Score != 7.5 || event.DurationSeconds != 1.5 {
		t.Errorf("unexpected complete event: %+v", event)
	}

	broadcaster.OnIterationFailed("ses_ws", 2, errors.New("backend exploded"))
	event = readEvent(t, conn)
	if event.Type != dto.EventIterationFailed {
		t.Errorf("expected %q, got %q", dto.EventIterationFailed, event.Type)
	}
	if event.Iteration != 2 || event.Error != "backend exploded" {
		t.Errorf("unexpected failure event: %+v", event)
	}
}

func TestBroadcaster_SessionCompleteClosesFeed(t *testing.T) {
	broadcaster := NewBroadcaster()
	server := startFeedServer(t, broadcaster, nil)
	conn := dialFeed(t, server, "ses_done")
	waitForSubscriber(t, broadcaster, "ses_done")

	broadcaster.OnSessionComplete("ses_done", 8, 2*time.Second)

	event := readEvent(t, conn)
	if event.Type != dto.EventSessionComplete {
		t.Errorf("expected %q, got %q", dto.EventSessionComplete, event.Type)
	}
	if event.BestScore != 8 || event.DurationSeconds != 2 {
		t.Errorf("unexpected completion event: %+v", event)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal closure after completion, got %v", err)
	}

	if count := broadcaster.SubscriberCount("ses_done"); count != 0 {
		t.Errorf("expected 0 subscribers after completion, got %d", count)
	}
}

func TestBroadcaster_NoSubscribersIsANoop(t *testing.T) {
	broadcaster := NewBroadcaster()

	broadcaster.OnIterationStart("ses_nobody", 1, 3)
	broadcaster.OnSessionComplete("ses_nobody", 5, time.Second)

	if count := broadcaster.SubscriberCount("ses_nobody"); count != 0 {
		t.Errorf("expected 0 subscribers, got %d", count)
	}
}

func TestFeedHandler_OriginCheck(t *testing.T) {
	broadcaster := NewBroadcaster()
	server := startFeedServer(t, broadcaster, []string{"http://localhost:3000"})
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/sessions/ses_ws/ws"

	header := http.Header{"Origin": []string{"http://evil.example"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		conn.Close()
		t.Fatal("expected handshake to fail for disallowed origin")
	}

	header = http.Header{"Origin": []string{"http://localhost:3000"}}
	conn, _, err = websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("expected handshake to succeed for allowed origin: %v", err)
	}
	conn.Close()
}
