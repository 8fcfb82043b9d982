package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"realm-trivia-bot/internal/domain"
	"github.com/gorilla/websocket"
)

// Hub is the websocket-backed presentation channel. Session messages fan
// out to every connected client; submit/withdraw frames from clients feed
// the single active answer subscription.
type Hub struct {
	log      *slog.Logger
	upgrader websocket.Upgrader
	now      func() time.Time

	mu       sync.Mutex
	clients  map[*client]struct{}
	messages map[domain.MessageHandle]domain.Message
	next     domain.MessageHandle
	sub      *subscription
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		now:      time.Now,
		clients:  make(map[*client]struct{}),
		messages: make(map[domain.MessageHandle]domain.Message),
	}
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	userID      string
	displayName string
}

type outboundFrame struct {
	Type    string               `json:"type"`
	ID      domain.MessageHandle `json:"id,omitempty"`
	Payload any                  `json:"payload,omitempty"`
}

type inboundFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type submissionPayload struct {
	MessageID   domain.MessageHandle `json:"messageId"`
	OptionIndex int                  `json:"optionIndex"`
	Text        string               `json:"text,omitempty"`
}

type subscription struct {
	handle   domain.MessageHandle
	deadline time.Time
	events   chan domain.AnswerEvent
	timer    *time.Timer
	once     sync.Once
}

// Send broadcasts a new message and returns its handle for later edits.
func (h *Hub) Send(_ context.Context, msg domain.Message) (domain.MessageHandle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	handle := h.next
	h.messages[handle] = msg
	h.broadcastLocked(outboundFrame{Type: "message", ID: handle, Payload: msg})
	return handle, nil
}

// Edit replaces a previously sent message in place.
func (h *Hub) Edit(_ context.Context, handle domain.MessageHandle, msg domain.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.messages[handle]; !ok {
		return domain.ErrMessageNotFound
	}
	h.messages[handle] = msg
	h.broadcastLocked(outboundFrame{Type: "edit", ID: handle, Payload: msg})
	return nil
}

// Delete retracts a previously sent message.
func (h *Hub) Delete(_ context.Context, handle domain.MessageHandle) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.messages[handle]; !ok {
		return domain.ErrMessageNotFound
	}
	delete(h.messages, handle)
	h.broadcastLocked(outboundFrame{Type: "delete", ID: handle})
	return nil
}

// AttachOptions advertises the selectable option tokens for a message.
func (h *Hub) AttachOptions(_ context.Context, handle domain.MessageHandle, tokens []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.messages[handle]; !ok {
		return domain.ErrMessageNotFound
	}
	h.broadcastLocked(outboundFrame{Type: "options", ID: handle, Payload: tokens})
	return nil
}

// Listen opens the bounded subscription for a question message. The stream
// closes by itself when d elapses; stop releases it early. Only one
// subscription may be open at a time.
func (h *Hub) Listen(_ context.Context, handle domain.MessageHandle, d time.Duration) (<-chan domain.AnswerEvent, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sub != nil {
		return nil, nil, domain.ErrListenerActive
	}
	sub := &subscription{
		handle:   handle,
		deadline: h.now().Add(d),
		events:   make(chan domain.AnswerEvent, 256),
	}
	sub.timer = time.AfterFunc(d, func() { h.closeSubscription(sub) })
	h.sub = sub
	return sub.events, func() { h.closeSubscription(sub) }, nil
}

func (h *Hub) closeSubscription(sub *subscription) {
	sub.once.Do(func() {
		h.mu.Lock()
		if h.sub == sub {
			h.sub = nil
		}
		close(sub.events)
		h.mu.Unlock()
		if sub.timer != nil {
			sub.timer.Stop()
		}
	})
}

// dispatch routes one answer event to the active subscription, if any.
// Events for other messages, or arriving past the deadline, are dropped.
func (h *Hub) dispatch(handle domain.MessageHandle, ev domain.AnswerEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub := h.sub
	if sub == nil || sub.handle != handle {
		return
	}
	if !ev.At.Before(sub.deadline) {
		return
	}
	select {
	case sub.events <- ev:
	default:
		h.log.Warn("answer buffer full, dropping event",
			"participant", ev.ParticipantID, "message", handle)
	}
}

func (h *Hub) broadcastLocked(frame outboundFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.log.Error("marshal frame", "err", err)
		return
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn("slow client, dropping frame", "user", c.userID)
		}
	}
}

// ServeWS upgrades HTTP requests to websockets and pumps frames both ways.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	if userID == "" || displayName == "" {
		http.Error(w, "missing userId or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("ws upgrade failed", "err", err)
		return
	}

	c := &client{
		hub:         h,
		conn:        conn,
		send:        make(chan []byte, 32),
		userID:      userID,
		displayName: displayName,
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Info("participant connected", "user", userID, "name", displayName)

	go c.writePump()
	c.readPump()

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(c.send)
	h.log.Info("participant disconnected", "user", userID)
}

func (c *client) writePump() {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.hub.log.Debug("ws write error", "user", c.userID, "err", err)
			return
		}
	}
}

func (c *client) readPump() {
	defer c.conn.Close()
	for {
		var frame inboundFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			return
		}

		var kind domain.EventKind
		switch frame.Type {
		case "submit":
			kind = domain.EventSubmit
		case "withdraw":
			kind = domain.EventWithdraw
		default:
			continue
		}

		var payload submissionPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			c.hub.log.Debug("bad submission payload", "user", c.userID, "err", err)
			continue
		}

		c.hub.dispatch(payload.MessageID, domain.AnswerEvent{
			ParticipantID: c.userID,
			DisplayName:   c.displayName,
			OptionIndex:   payload.OptionIndex,
			Text:          payload.Text,
			Kind:          kind,
			At:            c.hub.now(),
		})
	}
}
