package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/domo-bridge/internal/infrastructure/config"
)

// MessageHandler receives inbound messages. The paho library invokes
// handlers on its own goroutines, so they must not block for long; a
// returned error is logged and the message is still acknowledged.
type MessageHandler func(topic string, payload []byte) error

// Logger is the slice of the logging interface this package needs.
// Satisfied by logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription remembers enough to re-subscribe after a reconnect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// Client is the bridge's connection to the MQTT broker.
//
// It wraps paho.mqtt.golang and layers on the behaviour the daemon
// needs: availability status with a Last Will on {base}/bridge/status,
// automatic re-subscription after reconnects, panic recovery around
// message handlers, and payload size limits on publish.
//
// All methods are safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics

	// mu guards connected, the event callbacks and the logger.
	mu           sync.RWMutex
	connected    bool
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger

	// subMu guards the re-subscription map. Separate from mu because
	// handlers fire on paho goroutines while subscriptions churn.
	subMu         sync.RWMutex
	subscriptions map[string]subscription
}

// Connect dials the broker and blocks until the first connection
// succeeds or defaultConnectTimeout expires.
//
// The connection carries a retained Last Will on the bridge status
// topic, so consumers can tell a crashed bridge from a quiet one.
// Once connected the client publishes the matching "online" status and
// keeps doing so after every reconnect. Paho's auto-reconnect stays on
// for the life of the client; only the first attempt can fail here.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	topics := NewTopics(cfg.BaseTopic)

	c := &Client{
		cfg:           cfg,
		topics:        topics,
		subscriptions: make(map[string]subscription),
	}

	opts := clientOptions(cfg)
	setLastWill(opts, topics, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) { c.brokerUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.brokerDown(err) })

	c.client = pahomqtt.NewClient(opts)

	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler runs asynchronously and may not have fired
	// yet; mark connected here so IsConnected is true on return.
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	return c, nil
}

// Close publishes a graceful offline status, waits briefly for pending
// operations and disconnects. Distinct from the Last Will: consumers
// see reason "graceful_shutdown" instead of "unexpected_disconnect".
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		payload := statusPayload("offline", c.cfg.Broker.ClientID, "graceful_shutdown")
		token := c.client.Publish(c.topics.BridgeStatus(), byte(c.cfg.QoS), true, payload)
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	return nil
}

// Topics returns the topic builder rooted at the configured base topic.
func (c *Client) Topics() Topics {
	return c.topics
}

// HealthCheck reports nil while the broker connection is up.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the client currently holds a broker
// connection. Paho reconnects in the background, so false is usually
// transient.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetOnConnect registers a callback fired on the initial connection
// and after every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	c.onConnect = callback
	c.mu.Unlock()
}

// SetOnDisconnect registers a callback fired when the connection
// drops, with the reason.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.mu.Lock()
	c.onDisconnect = callback
	c.mu.Unlock()
}

// SetLogger wires a logger for handler errors and recovered panics.
// Without one those are dropped silently.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

// brokerUp runs on every (re)connection: restores subscriptions,
// announces the bridge as online and notifies the callback.
func (c *Client) brokerUp() {
	c.mu.Lock()
	c.connected = true
	callback := c.onConnect
	c.mu.Unlock()

	c.resubscribeAll()

	payload := statusPayload("online", c.cfg.Broker.ClientID, "")
	c.client.Publish(c.topics.BridgeStatus(), byte(c.cfg.QoS), true, payload)

	if callback != nil {
		callback()
	}
}

// brokerDown runs when the connection is lost.
func (c *Client) brokerDown(err error) {
	c.mu.Lock()
	c.connected = false
	callback := c.onDisconnect
	c.mu.Unlock()

	if callback != nil {
		callback(err)
	}
}

// resubscribeAll replays tracked subscriptions against the broker.
// Errors are ignored; a failed replay will recur on the next reconnect.
func (c *Client) resubscribeAll() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		c.client.Subscribe(sub.topic, sub.qos, c.safeHandler(sub.handler))
	}
}

// safeHandler adapts a MessageHandler to paho's signature, adding
// panic recovery so a broken handler cannot kill the paho router.
func (c *Client) safeHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.currentLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.currentLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}

func (c *Client) currentLogger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}
