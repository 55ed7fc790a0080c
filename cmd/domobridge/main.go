// Domo Bridge - panel to MQTT/HTTP gateway
//
// This is the main entry point for the Domo Bridge daemon. The bridge
// connects a proprietary Domo home automation panel to open tooling:
//   - Polls the panel's XML status API and publishes typed element
//     states over MQTT
//   - Accepts commands from MQTT and a local HTTP API, with optimistic
//     prediction and read-back verification
//   - Persists the element catalog, state history, command audit log
//     and lifetime energy totals in SQLite
//   - Optionally forwards telemetry to InfluxDB
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/domo-bridge/migrations"

	"github.com/nerrad567/domo-bridge/internal/api"
	"github.com/nerrad567/domo-bridge/internal/audit"
	"github.com/nerrad567/domo-bridge/internal/bridge"
	"github.com/nerrad567/domo-bridge/internal/domo"
	"github.com/nerrad567/domo-bridge/internal/element"
	"github.com/nerrad567/domo-bridge/internal/energy"
	"github.com/nerrad567/domo-bridge/internal/infrastructure/config"
	"github.com/nerrad567/domo-bridge/internal/infrastructure/database"
	"github.com/nerrad567/domo-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/domo-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/domo-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/domo-bridge/internal/poll"
	"github.com/nerrad567/domo-bridge/internal/reconcile"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Domo Bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories share the one SQLite handle
	elementRepo := element.NewSQLiteRepository(db.DB)
	historyRepo := element.NewSQLiteStateHistoryRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)
	totalsRepo := energy.NewSQLiteTotalsRepository(db.DB)
	meter := energy.NewMeter()

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		influxClient = nil
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	}

	// Panel protocol client
	panel := domo.New(domo.Config{
		Host:           cfg.Panel.Host,
		Username:       cfg.Panel.Username,
		Password:       cfg.Panel.Password,
		VerifyTLS:      cfg.Panel.VerifyTLS,
		RequestTimeout: cfg.GetRequestTimeout(),
		ConnectTimeout: cfg.GetConnectTimeout(),
		MaxInflight:    cfg.Panel.MaxInflight,
		ScenePause:     cfg.GetScenePause(),
	}, log)

	// Discovery doubles as the startup reachability check for the
	// panel: a panel that cannot serve its scene list is fatal here.
	catalog, err := panel.DiscoverElements(ctx)
	if err != nil {
		return fmt.Errorf("discovering elements: %w", err)
	}
	if !cfg.Polling.InverterEnabled {
		for id, el := range catalog {
			if el.Class == element.ClassInverter {
				delete(catalog, id)
			}
		}
	}
	if len(catalog) == 0 {
		log.Warn("discovery returned no bridgeable elements")
	}
	log.Info("element catalog built", "elements", len(catalog))

	store := poll.NewStore()

	// The tracker and coordinator call back into the bridge. br is
	// assigned before either starts producing events: verifications
	// are only scheduled by the bridge itself, and the coordinator is
	// started after the bridge below.
	var br *bridge.Bridge

	tracker := reconcile.NewTracker(reconcile.Config{
		Fetcher:     panel,
		Store:       store,
		VerifyDelay: cfg.GetVerifyDelay(),
		HoldWindow:  cfg.GetDimmerHold(),
		Logger:      log,
		OnVerified: func(elementID string, state element.State) {
			br.HandleVerified(elementID, state)
		},
	})
	defer func() {
		log.Info("stopping reconcile tracker")
		tracker.Close()
	}()

	coordinator := poll.NewCoordinator(poll.Config{
		Fetcher:  panel,
		Store:    store,
		Interval: cfg.GetPollInterval(),
		Logger:   log,
		OnPublish: func(states map[string]element.State) {
			br.HandleCyclePublish(states)
		},
		OnCycleError: func(err error) {
			br.HandleCycleFailure(err)
		},
	})
	coordinator.SetCatalog(catalog)

	br, err = newBridge(cfg, mqttClient, panel, tracker, store, coordinator, catalog,
		elementRepo, historyRepo, auditRepo, meter, totalsRepo, influxClient, log)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if err := br.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		br.Stop()
	}()

	// First cycle runs immediately and publishes through the bridge
	coordinator.Start(ctx)
	defer func() {
		log.Info("stopping poll coordinator")
		coordinator.Stop()
	}()
	log.Info("poll coordinator started", "interval", cfg.GetPollInterval())

	// Start HTTP API (optional)
	if cfg.API.Enabled {
		apiServer, apiErr := newAPIServer(cfg, log, catalog, store, br, coordinator,
			elementRepo, historyRepo, auditRepo, meter, mqttClient, db, influxClient)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		log.Info("API server started",
			"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))
	} else {
		log.Info("API server disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, coordinator, bridge, tracker, InfluxDB, MQTT, database

	log.Info("Domo Bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses DOMOBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DOMOBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// newBridge assembles the bridge from its collaborators. Telemetry is
// only wired when InfluxDB actually connected; assigning a nil
// *influxdb.Client to the interface field would read as enabled.
func newBridge(
	cfg *config.Config,
	mqttClient *mqtt.Client,
	panel *domo.Client,
	tracker *reconcile.Tracker,
	store *poll.Store,
	coordinator *poll.Coordinator,
	catalog element.Catalog,
	elementRepo element.Repository,
	historyRepo element.StateHistoryRepository,
	auditRepo audit.Repository,
	meter *energy.Meter,
	totalsRepo energy.TotalsRepository,
	influxClient *influxdb.Client,
	log *logging.Logger,
) (*bridge.Bridge, error) {
	opts := bridge.Options{
		Config:    cfg,
		MQTT:      mqttClient,
		Panel:     panel,
		Tracker:   tracker,
		Store:     store,
		Refresher: coordinator,
		Catalog:   catalog,
		Elements:  elementRepo,
		History:   historyRepo,
		Audit:     auditRepo,
		Meter:     meter,
		Totals:    totalsRepo,
		Logger:    log,
	}
	if influxClient != nil {
		opts.Telemetry = influxClient
	}
	return bridge.New(opts)
}

// newAPIServer assembles the HTTP API server around the running
// subsystems. The health probes cover every external connection the
// daemon holds.
func newAPIServer(
	cfg *config.Config,
	log *logging.Logger,
	catalog element.Catalog,
	store *poll.Store,
	br *bridge.Bridge,
	coordinator *poll.Coordinator,
	elementRepo element.Repository,
	historyRepo element.StateHistoryRepository,
	auditRepo audit.Repository,
	meter *energy.Meter,
	mqttClient *mqtt.Client,
	db *database.DB,
	influxClient *influxdb.Client,
) (*api.Server, error) {
	health := map[string]api.HealthChecker{
		"database": db,
		"mqtt":     mqttClient,
	}
	if influxClient != nil {
		health["influxdb"] = influxClient
	}

	return api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		BaseTopic: cfg.MQTT.BaseTopic,
		Logger:    log,
		Catalog:   catalog,
		Store:     store,
		States:    br,
		Commander: br,
		Refresher: coordinator,
		Cycle:     coordinator,
		Stats:     br,
		Elements:  elementRepo,
		History:   historyRepo,
		Audit:     auditRepo,
		Meter:     meter,
		MQTT:      mqttClient,
		Health:    health,
		Version:   version,
	})
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// Panel health was established by discovery; the poll coordinator
	// reports ongoing reachability via its status.

	return nil
}
