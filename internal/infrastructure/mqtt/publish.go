package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outbound payloads at 1MB, in line with common
// broker defaults. State and cycle payloads are a few hundred bytes;
// anything near this limit is a bug upstream.
const maxPayloadSize = 1 << 20

// checkTopicQoS validates the arguments shared by Publish, Subscribe
// and Unsubscribe.
func checkTopicQoS(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	return nil
}

// Publish sends a message and waits for the broker ack (QoS > 0) or
// for the write to complete (QoS 0), up to defaultPublishTimeout.
//
// Retained must be true for state topics so late subscribers see the
// current value, and false for anything command-like.
//
// Parameters:
//   - topic: destination, e.g. "domobridge/element/72623_119/state"
//   - payload: message body, JSON in this codebase, at most 1MB
//   - qos: 0 at most once, 1 at least once, 2 exactly once
//   - retained: broker keeps the last message for new subscribers
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := checkTopicQoS(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes",
			ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishString publishes a string payload.
func (c *Client) PublishString(topic string, payload string, qos byte, retained bool) error {
	return c.Publish(topic, []byte(payload), qos, retained)
}

// PublishRetained publishes a retained message at the configured
// default QoS. The common case for element state updates.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}
