package handlers

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/longregen/refinery/internal/adapters/http/dto"
	"github.com/longregen/refinery/internal/adapters/http/encoding"
	"github.com/longregen/refinery/internal/ports"
)

// Broadcaster fans session progress events out to websocket
// subscribers as MessagePack binary frames. It implements
// ports.RunObserver so the engine feeds it directly; a session with no
// subscribers costs one map lookup per event.
type Broadcaster struct {
	connections map[string]map[*websocket.Conn]struct{}
	mu          sync.RWMutex
}

var _ ports.RunObserver = (*Broadcaster)(nil)

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		connections: make(map[string]map[*websocket.Conn]struct{}),
	}
}

func (b *Broadcaster) Subscribe(sessionID string, conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.connections[sessionID] == nil {
		b.connections[sessionID] = make(map[*websocket.Conn]struct{})
	}

	b.connections[sessionID][conn] = struct{}{}
	log.Printf("WebSocket subscribed to session %s (total: %d)", sessionID, len(b.connections[sessionID]))
}

func (b *Broadcaster) Unsubscribe(sessionID string, conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if conns, ok := b.connections[sessionID]; ok {
		delete(conns, conn)
		log.Printf("WebSocket unsubscribed from session %s (remaining: %d)", sessionID, len(conns))

		if len(conns) == 0 {
			delete(b.connections, sessionID)
		}
	}
}

// SubscriberCount reports the live connections for one session feed.
func (b *Broadcaster) SubscriberCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if conns, ok := b.connections[sessionID]; ok {
		return len(conns)
	}
	return 0
}

// BroadcastBinary sends one binary frame to every subscriber of a
// session, dropping connections whose writes fail.
func (b *Broadcaster) BroadcastBinary(sessionID string, data []byte) {
	b.mu.RLock()
	conns, ok := b.connections[sessionID]
	if !ok || len(conns) == 0 {
		b.mu.RUnlock()
		return
	}
	targets := make([]*websocket.Conn, 0, len(conns))
	for conn := range conns {
		targets = append(targets, conn)
	}
	b.mu.RUnlock()

	for _, conn := range targets {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			log.Printf("Failed to broadcast to WebSocket connection: %v", err)
			b.Unsubscribe(sessionID, conn)
		}
	}
}

func (b *Broadcaster) broadcastEvent(event *dto.SessionEvent) {
	data, err := encoding.Marshal(event)
	if err != nil {
		log.Printf("Failed to encode session event for WebSocket broadcast: %v", err)
		return
	}

	b.BroadcastBinary(event.SessionID, data)
}

func (b *Broadcaster) OnIterationStart(sessionID string, iteration, total int) {
	b.broadcastEvent(&dto.SessionEvent{
		Type:      dto.EventIterationStart,
		SessionID: sessionID,
		Iteration: iteration,
		Total:     total,
	})
}

func (b *Broadcaster) OnIterationComplete(sessionID string, iteration int, score float64, duration time.Duration) {
	b.broadcastEvent(&dto.SessionEvent{
		Type:            dto.EventIterationComplete,
		SessionID:       sessionID,
		Iteration:       iteration,
		Score:           score,
		DurationSeconds: duration.Seconds(),
	})
}

func (b *Broadcaster) OnIterationFailed(sessionID string, iteration int, err error) {
	b.broadcastEvent(&dto.SessionEvent{
		Type:      dto.EventIterationFailed,
		SessionID: sessionID,
		Iteration: iteration,
		Error:     err.Error(),
	})
}

// OnSessionComplete emits the final frame, then closes the session's
// connections: nothing further will ever arrive on the feed.
func (b *Broadcaster) OnSessionComplete(sessionID string, bestScore float64, duration time.Duration) {
	b.broadcastEvent(&dto.SessionEvent{
		Type:            dto.EventSessionComplete,
		SessionID:       sessionID,
		BestScore:       bestScore,
		DurationSeconds: duration.Seconds(),
	})

	b.mu.Lock()
	conns := b.connections[sessionID]
	delete(b.connections, sessionID)
	b.mu.Unlock()

	for conn := range conns {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session complete"),
			time.Now().Add(time.Second))
		conn.Close()
	}
}

// FeedHandler upgrades feed requests to websocket connections and
// subscribes them to a session's progress events.
type FeedHandler struct {
	upgrader    websocket.Upgrader
	broadcaster *Broadcaster
}

func NewFeedHandler(broadcaster *Broadcaster, allowedOrigins []string) *FeedHandler {
	allowedOriginsMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowedOriginsMap[origin] = true
	}

	return &FeedHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return allowedOriginsMap[origin]
			},
		},
		broadcaster: broadcaster,
	}
}

// Handle subscribes the caller to a session's feed. The session need
// not be stored yet: feeds are typically opened right after the 202
// acknowledgment, before the first iteration lands.
func (h *FeedHandler) Handle(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := validateURLParam(r, w, "id", "Session ID")
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket connection: %v", err)
		return
	}
	defer conn.Close()

	h.broadcaster.Subscribe(sessionID, conn)
	defer h.broadcaster.Unsubscribe(sessionID, conn)

	log.Printf("WebSocket feed established for session %s", sessionID)

	// The feed is write-only; reading only notices disconnects. No read
	// deadline: minutes can pass between iterations.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
