package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256

	// maxSubscriptions caps the channels one client may follow.
	maxSubscriptions = 64
)

// SeqSource reports the last committed sequence number.
type SeqSource interface {
	Seq() int64
}

// frame is one outgoing message in both encodings.
type frame struct {
	binary []byte
	text   []byte
}

// client represents a single WebSocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan frame
	json bool

	mu   sync.RWMutex
	subs map[string]bool
}

// controlMsg is what a client sends to change its subscriptions.
type controlMsg struct {
	Action   string   `json:"action"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
	Events   []uint64 `json:"events"`
}

// Hub relays committed logs from the signal bus to WebSocket clients. Every
// log goes to clients following domain.LogsChannel; a log naming an event
// also goes to clients following that event's channel. Data frames are
// protobuf-encoded google.protobuf.Struct values in binary frames, or JSON
// text frames for clients that connect with ?format=json.
type Hub struct {
	bus      domain.SignalBus
	seq      SeqSource
	upgrader websocket.Upgrader
	logger   *slog.Logger

	broadcast chan routed
	done      chan struct{}

	mu      sync.RWMutex
	clients map[*client]bool
}

type routed struct {
	channels []string
	frame    frame
}

// NewHub creates a Hub. allowedOrigins limits browser origins; empty allows
// all.
func NewHub(bus domain.SignalBus, seq SeqSource, allowedOrigins []string, logger *slog.Logger) *Hub {
	return &Hub{
		bus: bus,
		seq: seq,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		logger:    logger.With(slog.String("component", "ws_hub")),
		broadcast: make(chan routed, 256),
		done:      make(chan struct{}),
		clients:   make(map[*client]bool),
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// Run subscribes to the bus and fans messages out until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	msgs, err := h.bus.Subscribe(ctx, domain.LogsChannel)
	if err != nil {
		return fmt.Errorf("ws: subscribe %s: %w", domain.LogsChannel, err)
	}
	h.logger.InfoContext(ctx, "ws: subscribed", slog.String("channel", domain.LogsChannel))
	go h.relay(ctx, msgs)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.follows(msg.channels) {
					continue
				}
				select {
				case c.send <- msg.frame:
				default:
					h.logger.Warn("ws: dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// relay decodes bus payloads into frames.
func (h *Hub) relay(ctx context.Context, msgs <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgs:
			if !ok {
				h.logger.Warn("ws: bus subscription closed", slog.String("channel", domain.LogsChannel))
				return
			}
			msg, err := encodeLog(data)
			if err != nil {
				h.logger.Warn("ws: undecodable bus message", slog.String("error", err.Error()))
				continue
			}
			select {
			case h.broadcast <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// encodeLog routes a LogMessage payload and renders both frame encodings.
func encodeLog(data []byte) (routed, error) {
	var msg domain.LogMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return routed{}, err
	}
	channels := []string{domain.LogsChannel}
	if id, ok := msg.Log.EventID(); ok {
		channels = append(channels, domain.EventLogsChannel(id))
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return routed{}, err
	}
	fields["type"] = "log"
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return routed{}, err
	}
	bin, err := proto.Marshal(st)
	if err != nil {
		return routed{}, err
	}
	text, err := json.Marshal(fields)
	if err != nil {
		return routed{}, err
	}
	return routed{channels: channels, frame: frame{binary: bin, text: text}}, nil
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the client with the hub. Clients start on domain.LogsChannel unless
// ?events=1,2 narrows them to those events.
// GET /ws?format=json&events=1,2
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan frame, sendBufferSize),
		json: r.URL.Query().Get("format") == "json",
		subs: make(map[string]bool),
	}
	if ids := r.URL.Query().Get("events"); ids != "" {
		for _, s := range strings.Split(ids, ",") {
			var id uint64
			if _, err := fmt.Sscan(strings.TrimSpace(s), &id); err == nil && id > 0 {
				c.subs[domain.EventLogsChannel(id)] = true
			}
		}
	}
	if len(c.subs) == 0 {
		c.subs[domain.LogsChannel] = true
	}

	if !h.register(c) {
		_ = conn.Close()
		return
	}
	c.control(map[string]any{"type": "hello", "seq": h.seq.Seq(), "channels": c.channels()})

	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *client) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("ws: client connected", slog.Int("total_clients", n))
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.logger.Info("ws: client disconnected", slog.Int("total_clients", n))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump reads subscription changes until the connection drops.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error", slog.String("error", err.Error()))
			}
			return
		}
		var msg controlMsg
		if err := json.Unmarshal(message, &msg); err != nil {
			c.control(map[string]any{"type": "error", "error": "invalid control message"})
			continue
		}
		if err := c.apply(msg); err != nil {
			c.control(map[string]any{"type": "error", "error": err.Error()})
			continue
		}
		c.control(map[string]any{"type": "subscribed", "channels": c.channels()})
	}
}

// apply changes the client's subscriptions. Only log channels are accepted.
func (c *client) apply(msg controlMsg) error {
	channels := append([]string(nil), msg.Channels...)
	for _, id := range msg.Events {
		channels = append(channels, domain.EventLogsChannel(id))
	}
	for _, ch := range channels {
		if ch != domain.LogsChannel && !isEventChannel(ch) {
			return fmt.Errorf("unknown channel %q", ch)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch msg.Action {
	case "subscribe":
		if len(c.subs)+len(channels) > maxSubscriptions {
			return fmt.Errorf("at most %d subscriptions", maxSubscriptions)
		}
		for _, ch := range channels {
			c.subs[ch] = true
		}
	case "unsubscribe":
		for _, ch := range channels {
			delete(c.subs, ch)
		}
	default:
		return fmt.Errorf("unknown action %q", msg.Action)
	}
	return nil
}

func isEventChannel(ch string) bool {
	rest, ok := strings.CutPrefix(ch, "tiqet:event:")
	if !ok {
		return false
	}
	id, ok := strings.CutSuffix(rest, ":logs")
	if !ok || id == "" {
		return false
	}
	return strings.Trim(id, "0123456789") == ""
}

func (c *client) follows(channels []string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range channels {
		if c.subs[ch] {
			return true
		}
	}
	return false
}

func (c *client) channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.subs))
	for ch := range c.subs {
		out = append(out, ch)
	}
	return out
}

// control queues a JSON text frame for the client. Control frames skip the
// protobuf encoding.
func (c *client) control(v map[string]any) {
	text, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- frame{text: text}:
	default:
	}
}

// writePump pumps frames from the hub to the connection and keeps it alive
// with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			var err error
			if f.binary == nil || c.json {
				err = c.conn.WriteMessage(websocket.TextMessage, f.text)
			} else {
				err = c.conn.WriteMessage(websocket.BinaryMessage, f.binary)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
