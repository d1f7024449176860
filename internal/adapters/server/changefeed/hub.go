// Package changefeed pushes task-list change signals to live boards over websockets.
package changefeed

import (
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// Message types.
const (
	TypeReady   = "ready"
	TypeRefresh = "refresh"
)

// subscriberBuffer bounds queued signals per connection; extra signals are dropped
// because one pending refresh already makes the board re-pull.
const subscriberBuffer = 16

// Message is one feed frame.
type Message struct {
	Type         string `json:"type"`
	InitiativeID string `json:"initiativeId,omitempty"`
}

// Hub tracks subscribers per initiative. It implements app.ChangeNotifier.
type Hub struct {
	mu       sync.Mutex
	subs     map[chan Message]string
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(logger *log.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHub constructs an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs: map[chan Message]string{},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a channel for one initiative's change signals.
func (h *Hub) Subscribe(initiativeID string) chan Message {
	ch := make(chan Message, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[ch] = initiativeID
	return ch
}

// Unsubscribe removes and closes ch.
func (h *Hub) Unsubscribe(ch chan Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; !ok {
		return
	}
	delete(h.subs, ch)
	close(ch)
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// NotifyTasksChanged sends a refresh signal to every subscriber of initiativeID
// without blocking.
func (h *Hub) NotifyTasksChanged(initiativeID string) {
	msg := Message{Type: TypeRefresh, InitiativeID: initiativeID}
	h.mu.Lock()
	defer h.mu.Unlock()
	sent := 0
	for ch, id := range h.subs {
		if id != initiativeID {
			continue
		}
		select {
		case ch <- msg:
			sent++
		default:
		}
	}
	if sent > 0 {
		h.logger.Debug("broadcast refresh", "initiative_id", initiativeID, "subscribers", sent)
	}
}

// ServeHTTP upgrades to a websocket and streams change signals for the initiative
// named by the initiative_id query parameter.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	initiativeID := strings.TrimSpace(r.URL.Query().Get("initiative_id"))
	if initiativeID == "" {
		http.Error(w, "initiative_id is required", http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	sub := h.Subscribe(initiativeID)
	defer h.Unsubscribe(sub)

	go func() {
		if err := conn.WriteJSON(Message{Type: TypeReady, InitiativeID: initiativeID}); err != nil {
			_ = conn.Close()
			return
		}
		for msg := range sub {
			if err := conn.WriteJSON(msg); err != nil {
				_ = conn.Close()
				return
			}
		}
	}()

	// Inbound frames are ignored; the read loop only detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
