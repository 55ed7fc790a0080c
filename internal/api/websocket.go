package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/domo-bridge/internal/infrastructure/config"
	"github.com/nerrad567/domo-bridge/internal/infrastructure/logging"
)

var errInvalidPayload = errors.New("invalid subscribe payload")

// Message types on the WebSocket wire. Clients send subscribe,
// unsubscribe and ping; the server answers with response, error and
// pong, and pushes event frames for subscribed channels.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// Channels a client can subscribe to. These mirror what the bridge
// publishes over MQTT; the WebSocket is a convenience relay for
// dashboards that do not speak MQTT.
const (
	// ChannelElementState carries element state publications.
	ChannelElementState = "element.state_changed"

	// ChannelBridgeCycle carries poll cycle events, including failures
	// that mark retained states stale.
	ChannelBridgeCycle = "bridge.cycle"
)

// wsSendBufferSize is the per-client outbound buffer. A client that
// falls this far behind starts losing events rather than stalling the
// broadcast path.
const wsSendBufferSize = 256

// WSMessage is one frame in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload carries the channel list for subscribe and
// unsubscribe requests.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin filtering already happened in the CORS middleware.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// Hub tracks connected WebSocket clients and fans events out to them.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// NewHub creates the hub. Zero-valued config fields fall back to
// workable defaults so a partially-filled config cannot stall the
// pumps.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 60
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// Register adds a client to the broadcast set.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", h.ClientCount())
}

// Unregister removes a client. Whichever goroutine wins the map
// removal closes the send channel; readPump and Run can both get
// here during shutdown and the channel must close exactly once.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, present := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if present {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast pushes an event frame to every client subscribed to the
// channel. The client set is snapshotted first: subscription checks
// take each client's own lock, and holding the hub lock across them
// would order hub and client locks against each other.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	h.mu.RLock()
	snapshot := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		snapshot = append(snapshot, client)
	}
	h.mu.RUnlock()

	recipients := 0
	for _, client := range snapshot {
		if client.subscribed(channel) {
			client.enqueue(data)
			recipients++
		}
	}
	if recipients > 0 {
		h.logger.Debug("broadcast sent", "channel", channel, "recipients", recipients)
	}
}

// WSClient is one connected WebSocket peer. A readPump and a
// writePump goroutine run per client; the send channel is the only
// path to the socket from outside writePump.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu            sync.RWMutex
	subscriptions map[string]struct{}
}

// handleWebSocket upgrades the connection and starts the pumps. A
// fresh client is subscribed to nothing; events only flow after an
// explicit subscribe frame.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	s.hub.Register(client)

	go client.writePump()
	go client.readPump()
}

// readDeadline is how long the peer may stay silent: one ping
// interval for our ping to go out plus the pong timeout for the
// answer.
func (c *WSClient) readDeadline() time.Time {
	cfg := c.hub.cfg
	wait := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	return time.Now().Add(wait)
}

// readPump consumes frames until the connection dies, dispatching
// protocol messages. It owns unregistration.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(c.hub.cfg.MaxMessageSize))
	//nolint:errcheck // best-effort deadline on connection setup
	c.conn.SetReadDeadline(c.readDeadline())
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(c.readDeadline())
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}

		// Any inbound frame proves the peer is alive, so it resets the
		// deadline even when the peer never answers protocol pings.
		//nolint:errcheck // best-effort deadline reset
		c.conn.SetReadDeadline(c.readDeadline())
		c.dispatch(message)
	}
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with protocol pings.
func (c *WSClient) writePump() {
	pingInterval := time.Duration(c.hub.cfg.PingInterval) * time.Second
	writeWait := time.Duration(c.hub.cfg.PongTimeout) * time.Second

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel.
				//nolint:errcheck // best-effort close frame
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // write error surfaces on the next line
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // ping error surfaces on the next line
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch routes one inbound frame.
func (c *WSClient) dispatch(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply("", WSTypeError, map[string]string{"message": "invalid JSON message"})
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.updateSubscriptions(msg, true)
	case WSTypeUnsubscribe:
		c.updateSubscriptions(msg, false)
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.reply(msg.ID, WSTypeError, map[string]string{
			"message": "unknown message type: " + msg.Type,
		})
	}
}

// updateSubscriptions applies a subscribe or unsubscribe frame and
// confirms it.
func (c *WSClient) updateSubscriptions(msg WSMessage, add bool) {
	channels, err := channelsFrom(msg)
	if err != nil {
		c.reply(msg.ID, WSTypeError, map[string]string{"message": err.Error()})
		return
	}

	c.mu.Lock()
	for _, ch := range channels {
		if add {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()

	if add {
		c.hub.logger.Info("websocket client subscribed", "channels", channels)
		c.reply(msg.ID, WSTypeResponse, map[string]any{"subscribed": channels})
		return
	}
	c.reply(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": channels})
}

// channelsFrom extracts the channel list from a subscribe or
// unsubscribe frame. The payload arrives as any, so it round-trips
// through JSON into the typed form.
func channelsFrom(msg WSMessage) ([]string, error) {
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, errInvalidPayload
	}
	var sub WSSubscribePayload
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, errInvalidPayload
	}
	return sub.Channels, nil
}

// subscribed reports whether the client wants frames for channel.
func (c *WSClient) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

// enqueue hands data to the write pump without blocking. A full
// buffer drops the frame (slow client); a closed channel is absorbed
// (client raced a broadcast during disconnect).
func (c *WSClient) enqueue(data []byte) {
	defer func() {
		recover() //nolint:errcheck // absorb send-on-closed-channel
	}()

	select {
	case c.send <- data:
	default:
	}
}

// reply sends a control-plane frame (response, error, pong) to this
// client only.
func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.enqueue(data)
}

// subscribeStateUpdates wires the relay: the server subscribes to the
// bridge's own MQTT publications and mirrors them onto WebSocket
// channels. The bridge persists history and telemetry on its publish
// path already, so the relay stays read-only.
func (s *Server) subscribeStateUpdates() error {
	if s.mqtt == nil {
		return nil // broker not configured; WebSocket relay disabled
	}

	stateTopic := s.topics.AllElementStates()
	s.logger.Info("subscribing to state topics for WebSocket relay", "topic", stateTopic)
	if err := s.mqtt.Subscribe(stateTopic, 1, func(_ string, payload []byte) error {
		s.relay(ChannelElementState, payload)
		return nil
	}); err != nil {
		return err
	}

	return s.mqtt.Subscribe(s.topics.BridgeCycle(), 1, func(_ string, payload []byte) error {
		s.relay(ChannelBridgeCycle, payload)
		return nil
	})
}

// relay decodes one bridge publication and broadcasts it. Payloads
// that fail to decode are dropped; the MQTT copy is authoritative and
// a broken relay frame helps nobody.
func (s *Server) relay(channel string, payload []byte) {
	var msg map[string]any
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Warn("malformed payload on relay topic", "channel", channel, "error", err)
		return
	}
	s.hub.Broadcast(channel, msg)
}
