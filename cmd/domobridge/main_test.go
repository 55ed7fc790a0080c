package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTestConfig drops a config file into a temp dir and points
// DOMOBRIDGE_CONFIG at it. t.Setenv restores the variable afterwards.
func writeTestConfig(t *testing.T, content string) {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("DOMOBRIDGE_CONFIG", configPath)
}

// minimalConfig builds a config that passes validation, with the
// given database path and MQTT broker port.
func minimalConfig(dbPath string, brokerPort int) string {
	return fmt.Sprintf(`
panel:
  host: "https://192.0.2.1"
  username: "admin"
  password: "admin"

database:
  path: %q
  wal_mode: true
  busy_timeout: 5

mqtt:
  broker:
    host: "127.0.0.1"
    port: %d
    client_id: "test-client"
    tls: false
  base_topic: "domobridge"
  qos: 1
  reconnect:
    initial_delay: 1
    max_delay: 5

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout
`, dbPath, brokerPort)
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("DOMOBRIDGE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// An empty database path must fail validation before anything
// connects. The panel section is valid so the failure is really the
// database path.
func TestRun_MissingDatabasePath(t *testing.T) {
	writeTestConfig(t, minimalConfig("", 1883))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("DOMOBRIDGE_CONFIG", "")
	os.Unsetenv("DOMOBRIDGE_CONFIG")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	want := "/custom/path/config.yaml"
	t.Setenv("DOMOBRIDGE_CONFIG", want)

	if path := getConfigPath(); path != want {
		t.Errorf("getConfigPath() = %q, want %q", path, want)
	}
}

// Startup must fail cleanly when the broker is unreachable. The
// database opens and migrates before the MQTT connect, so the error
// comes from the broker step and the deferred teardown has a live
// database to close.
func TestRun_UnreachableBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("waits out the MQTT connect timeout")
	}

	dbPath := filepath.Join(t.TempDir(), "test.db")
	writeTestConfig(t, minimalConfig(dbPath, 19999))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail when the broker is unreachable")
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file should exist after failed startup: %v", err)
	}
}
