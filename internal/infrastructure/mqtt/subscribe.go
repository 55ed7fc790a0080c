package mqtt

import (
	"fmt"
)

// Subscribe registers a handler for a topic pattern and waits for the
// broker to confirm it.
//
// Patterns may use MQTT wildcards: "+" for one level
// ("domobridge/element/+/set" matches every element) and "#" for the
// rest of the tree. The subscription is tracked and replayed after
// every reconnect, so callers subscribe once at startup.
//
// The handler runs on a paho goroutine per message, wrapped in panic
// recovery; it should return quickly.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := checkTopicQoS(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.track(topic, qos, handler)

	token := c.client.Subscribe(topic, qos, c.safeHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		c.untrack(topic)
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		c.untrack(topic)
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}

// Unsubscribe drops a subscription. Messages already in flight may
// still reach the handler.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.untrack(topic)

	token := c.client.Unsubscribe(topic)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrUnsubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}

	return nil
}

// SubscriptionCount returns the number of tracked subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// HasSubscription reports whether the exact topic string is tracked.
// No pattern matching: "a/+/b" and "a/x/b" are different entries.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, exists := c.subscriptions[topic]
	return exists
}

// track records a subscription for replay on reconnect.
func (c *Client) track(topic string, qos byte, handler MessageHandler) {
	c.subMu.Lock()
	c.subscriptions[topic] = subscription{topic: topic, qos: qos, handler: handler}
	c.subMu.Unlock()
}

func (c *Client) untrack(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}
