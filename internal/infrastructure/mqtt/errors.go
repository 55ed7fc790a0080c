package mqtt

import "errors"

// Sentinel errors, matched with errors.Is. Operation failures wrap the
// matching sentinel together with the underlying paho error.

// Connection lifecycle.
var (
	// ErrConnectionFailed means the initial broker connection did not
	// come up within the timeout. Later drops reconnect silently.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected means an operation ran while the broker link was
	// down. Usually transient; paho reconnects in the background.
	ErrNotConnected = errors.New("mqtt: not connected to broker")
)

// Message operations.
var (
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS rejects QoS levels outside 0..2.
	ErrInvalidQoS = errors.New("mqtt: QoS must be 0, 1 or 2")

	// ErrInvalidTopic rejects an empty topic string.
	ErrInvalidTopic = errors.New("mqtt: empty topic")
)
