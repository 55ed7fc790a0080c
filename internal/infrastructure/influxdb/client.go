package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/domo-bridge/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	// The influxdb client takes its flush interval in milliseconds;
	// config.yaml speaks seconds.
	millisecondsPerSecond = 1000
)

// Client wraps the official InfluxDB v2 client for the bridge's
// telemetry writes.
//
// Writes ride the library's non-blocking WriteAPI: batched, flushed on
// size or interval, delivered by a background goroutine. Callers never
// block on InfluxDB, which is the property the poll path depends on.
// Safe for concurrent use.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	mu        sync.RWMutex
	connected bool
	onError   func(err error)
}

// Connect builds the client and verifies the server actually answers
// a ping before anyone depends on it. Token auth; batch size and
// flush interval come from config with defaults for zero values.
//
// Returns ErrDisabled when the integration is off in config, which
// callers treat as "run without telemetry".
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))

	if err := verifyServer(client); err != nil {
		client.Close()
		return nil, err
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	c := &Client{
		client:    client,
		writeAPI:  writeAPI,
		cfg:       cfg,
		connected: true,
	}

	go c.forwardWriteErrors(writeAPI.Errors())

	return c, nil
}

// writeOptions maps the YAML batching knobs onto library options,
// substituting defaults for zero values.
func writeOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10
	}

	// #nosec G115 -- both values forced positive above
	return influxdb2.DefaultOptions().
		SetBatchSize(uint(batchSize)).
		SetFlushInterval(uint(flushInterval) * millisecondsPerSecond)
}

// verifyServer pings once with the connect timeout. Run at startup so
// a bad URL or token fails the daemon instead of rotting quietly in
// the async write path.
func verifyServer(client influxdb2.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		return fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}
	return nil
}

// forwardWriteErrors drains the async error channel into the
// registered callback. The channel closes when the client does.
func (c *Client) forwardWriteErrors(errs <-chan error) {
	for err := range errs {
		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()

		if callback != nil {
			callback(err)
		}
	}
}

// Close flushes pending points and shuts the client down. The
// library's Close never fails; the error return keeps the signature
// uniform with the other subsystem clients.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.writeAPI.Flush()
	c.client.Close()

	return nil
}

// HealthCheck pings the server within defaultPingTimeout.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}

	return nil
}

// IsConnected reports whether Close has not been called. It does not
// probe the server; HealthCheck does that.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetOnError registers a callback for asynchronous write failures.
// Without one, failed batches vanish silently.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	c.onError = callback
	c.mu.Unlock()
}

// Flush pushes every buffered point out now, blocking until done.
// Used by tests and the shutdown path; a closed client ignores it.
func (c *Client) Flush() {
	if c.writeAPI == nil {
		return
	}
	if !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}
