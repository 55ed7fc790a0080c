package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/domo-bridge/internal/infrastructure/config"
)

const (
	// defaultConnectTimeout bounds the initial Connect call. Reconnects
	// after that are paho's business and retry forever.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout bounds waiting for a publish or subscribe ack.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is how long Disconnect waits for pending
	// work, in milliseconds (paho takes a uint, not a Duration).
	defaultDisconnectQuiesce = 1000

	// defaultKeepAlive is the PINGREQ interval for dead-link detection.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the highest QoS level MQTT defines.
	maxQoS = 2

	tlsMinVersion = tls.VersionTLS12
)

// clientOptions translates the YAML config into paho client options:
// broker URL with tcp or ssl scheme, client id, optional credentials,
// clean sessions, and auto-reconnect with capped backoff.
func clientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	opts.SetClientID(cfg.Broker.ClientID)
	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Clean sessions: the bridge republishes retained state on connect,
	// so there is nothing worth queueing for us while we are away.
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	return opts
}

// setLastWill registers the retained Last Will on {base}/bridge/status.
// The broker publishes it if the bridge dies without a clean Close, so
// consumers can tell a crashed bridge from one idling between polls.
func setLastWill(opts *pahomqtt.ClientOptions, topics Topics, clientID string) {
	opts.SetWill(
		topics.BridgeStatus(),
		statusPayload("offline", clientID, "unexpected_disconnect"),
		1,
		true,
	)
}

// statusPayload builds the availability JSON published on the bridge
// status topic. An empty reason omits the field, which is the "online"
// case.
func statusPayload(status, clientID, reason string) string {
	ts := time.Now().UTC().Format(time.RFC3339)
	if reason == "" {
		return fmt.Sprintf(
			`{"status":"%s","client_id":"%s","timestamp":"%s"}`,
			status, clientID, ts,
		)
	}
	return fmt.Sprintf(
		`{"status":"%s","client_id":"%s","reason":"%s","timestamp":"%s"}`,
		status, clientID, reason, ts,
	)
}
