package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Domo Bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Panel     PanelConfig     `yaml:"panel"`
	Polling   PollingConfig   `yaml:"polling"`
	Elements  ElementsConfig  `yaml:"elements"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Energy    EnergyConfig    `yaml:"energy"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PanelConfig contains connection settings for the Domo panel.
type PanelConfig struct {
	// Host is the panel base URL, e.g. "https://192.168.1.10".
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// VerifyTLS enables TLS certificate verification. Panels ship with
	// self-signed certificates, so this defaults to false.
	VerifyTLS bool `yaml:"verify_tls"`

	// Timeout is the total request timeout in seconds.
	Timeout int `yaml:"timeout"`

	// ConnectTimeout is the connection establishment timeout in seconds.
	ConnectTimeout int `yaml:"connect_timeout"`

	// MaxInflight caps concurrent requests to the panel across all callers.
	MaxInflight int `yaml:"max_inflight"`
}

// PollingConfig contains status polling and reconciliation settings.
type PollingConfig struct {
	// Interval is the poll cycle interval in seconds.
	Interval int `yaml:"interval"`

	// ScenePauseMS is the pause between per-scene discovery fetches
	// in milliseconds.
	ScenePauseMS int `yaml:"scene_pause_ms"`

	// VerifyDelayMS is the delay before a post-command verification
	// fetch in milliseconds.
	VerifyDelayMS int `yaml:"verify_delay_ms"`

	// DimmerHoldMS is the window after a local dimmer command during
	// which authoritative reads do not overwrite the predicted state,
	// in milliseconds.
	DimmerHoldMS int `yaml:"dimmer_hold_ms"`

	// TravelTime is the default shutter full-travel time in seconds,
	// used for position estimation.
	TravelTime int `yaml:"travel_time"`

	// TravelTimes overrides TravelTime per element id (seconds).
	TravelTimes map[string]int `yaml:"travel_times"`

	// InverterEnabled includes Delios inverter elements in the catalog.
	InverterEnabled bool `yaml:"inverter_enabled"`
}

// ElementsConfig contains per-element overrides applied at setup time.
type ElementsConfig struct {
	// Names maps element id to a custom display name. Applied once after
	// discovery; the panel-reported name is kept when no entry exists.
	Names map[string]string `yaml:"names"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	BaseTopic string              `yaml:"base_topic"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// EnergyConfig contains derived energy accumulator settings.
type EnergyConfig struct {
	// FlushInterval is how often accumulated totals are written to the
	// database, in seconds.
	FlushInterval int `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DOMOBRIDGE_SECTION_KEY
// For example: DOMOBRIDGE_PANEL_HOST, DOMOBRIDGE_DATABASE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Panel: PanelConfig{
			VerifyTLS:      false,
			Timeout:        30,
			ConnectTimeout: 10,
			MaxInflight:    3,
		},
		Polling: PollingConfig{
			Interval:      30,
			ScenePauseMS:  200,
			VerifyDelayMS: 1500,
			DimmerHoldMS:  5000,
			TravelTime:    25,
		},
		Database: DatabaseConfig{
			Path:        "./data/domobridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "domo-bridge",
			},
			BaseTopic: "domobridge",
			QoS:       1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8093,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Energy: EnergyConfig{
			FlushInterval: 300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DOMOBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Panel
	if v := os.Getenv("DOMOBRIDGE_PANEL_HOST"); v != "" {
		cfg.Panel.Host = v
	}
	if v := os.Getenv("DOMOBRIDGE_PANEL_USERNAME"); v != "" {
		cfg.Panel.Username = v
	}
	if v := os.Getenv("DOMOBRIDGE_PANEL_PASSWORD"); v != "" {
		cfg.Panel.Password = v
	}

	// Database
	if v := os.Getenv("DOMOBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("DOMOBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DOMOBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DOMOBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("DOMOBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("DOMOBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Panel validation
	if c.Panel.Host == "" {
		errs = append(errs, "panel.host is required")
	} else if u, err := url.Parse(c.Panel.Host); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, "panel.host must be an http(s) URL")
	}
	if c.Panel.Username == "" {
		errs = append(errs, "panel.username is required (the panel uses basic authentication)")
	}
	if c.Panel.MaxInflight < 1 {
		errs = append(errs, "panel.max_inflight must be at least 1")
	}

	// Polling validation
	if c.Polling.Interval < 5 {
		errs = append(errs, "polling.interval must be at least 5 seconds")
	}
	if c.Polling.TravelTime < 1 {
		errs = append(errs, "polling.travel_time must be at least 1 second")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.BaseTopic == "" {
		errs = append(errs, "mqtt.base_topic is required")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetRequestTimeout returns the panel total request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Panel.Timeout) * time.Second
}

// GetConnectTimeout returns the panel connect timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.Panel.ConnectTimeout) * time.Second
}

// GetPollInterval returns the poll cycle interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Polling.Interval) * time.Second
}

// GetScenePause returns the inter-scene discovery pause as a Duration.
func (c *Config) GetScenePause() time.Duration {
	return time.Duration(c.Polling.ScenePauseMS) * time.Millisecond
}

// GetVerifyDelay returns the post-command verification delay as a Duration.
func (c *Config) GetVerifyDelay() time.Duration {
	return time.Duration(c.Polling.VerifyDelayMS) * time.Millisecond
}

// GetDimmerHold returns the dimmer hold window as a Duration.
func (c *Config) GetDimmerHold() time.Duration {
	return time.Duration(c.Polling.DimmerHoldMS) * time.Millisecond
}

// GetEnergyFlushInterval returns the energy totals flush interval as a Duration.
func (c *Config) GetEnergyFlushInterval() time.Duration {
	return time.Duration(c.Energy.FlushInterval) * time.Second
}

// TravelTimeFor returns the shutter travel time for an element,
// falling back to the default when no per-element override exists.
func (c *Config) TravelTimeFor(elementID string) time.Duration {
	if secs, ok := c.Polling.TravelTimes[elementID]; ok && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return time.Duration(c.Polling.TravelTime) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
