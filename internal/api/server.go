package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/domo-bridge/internal/audit"
	"github.com/nerrad567/domo-bridge/internal/bridge"
	"github.com/nerrad567/domo-bridge/internal/element"
	"github.com/nerrad567/domo-bridge/internal/energy"
	"github.com/nerrad567/domo-bridge/internal/infrastructure/config"
	"github.com/nerrad567/domo-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/domo-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/domo-bridge/internal/poll"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Commander executes element commands through the bridge's shared
// command path. Satisfied by *bridge.Bridge.
type Commander interface {
	ExecuteCommand(ctx context.Context, elementID, action string, params map[string]any, source string) error
}

// StateSource returns an element's presentable current state, holds
// and position estimates applied. Satisfied by *bridge.Bridge.
type StateSource interface {
	CurrentState(elementID string) (element.State, bool)
}

// Refresher triggers a coalesced poll cycle. Satisfied by
// *poll.Coordinator.
type Refresher interface {
	Refresh()
}

// CycleStatus reports the poll loop's state. Satisfied by
// *poll.Coordinator.
type CycleStatus interface {
	Status() poll.Status
}

// BridgeStats reports the bridge's operation counters. Satisfied by
// *bridge.Bridge.
type BridgeStats interface {
	GetMetrics() bridge.Metrics
}

// Subscriber is the slice of the MQTT client the WebSocket relay
// needs. Optional; without it the relay is disabled.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// HealthChecker is the health probe the subsystems share.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	BaseTopic string // MQTT base topic, for the WebSocket relay subscriptions
	Logger    *logging.Logger
	Catalog   element.Catalog
	Store     *poll.Store
	States    StateSource
	Commander Commander
	Refresher Refresher
	Cycle     CycleStatus
	Stats     BridgeStats
	Elements  element.Repository
	History   element.StateHistoryRepository
	Audit     audit.Repository
	Meter     *energy.Meter
	MQTT      Subscriber               // optional: enables the WebSocket relay
	Health    map[string]HealthChecker // optional: subsystem probes for /health
	Version   string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	topics    mqtt.Topics
	logger    *logging.Logger
	catalog   element.Catalog
	store     *poll.Store
	states    StateSource
	commander Commander
	refresher Refresher
	cycle     CycleStatus
	stats     BridgeStats
	elements  element.Repository
	history   element.StateHistoryRepository
	audit     audit.Repository
	meter     *energy.Meter
	mqtt      Subscriber
	health    map[string]HealthChecker
	version   string

	// encodedIDs maps the slash-free path form of an element id back
	// to the panel id. Built once in New.
	encodedIDs map[string]string

	server    *http.Server
	hub       *Hub
	startedAt time.Time
	cancel    context.CancelFunc
}

// New creates an API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("element catalog is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if deps.States == nil {
		return nil, fmt.Errorf("state source is required")
	}
	if deps.Commander == nil {
		return nil, fmt.Errorf("commander is required")
	}
	if deps.Refresher == nil {
		return nil, fmt.Errorf("refresher is required")
	}
	if deps.Cycle == nil {
		return nil, fmt.Errorf("cycle status source is required")
	}
	if deps.Stats == nil {
		return nil, fmt.Errorf("bridge stats source is required")
	}
	if deps.Elements == nil {
		return nil, fmt.Errorf("element repository is required")
	}
	if deps.History == nil {
		return nil, fmt.Errorf("state history repository is required")
	}
	if deps.Audit == nil {
		return nil, fmt.Errorf("audit repository is required")
	}
	if deps.Meter == nil {
		return nil, fmt.Errorf("energy meter is required")
	}
	// MQTT is optional — without it only the WebSocket relay is disabled.

	encodedIDs := make(map[string]string, len(deps.Catalog))
	for id := range deps.Catalog {
		encodedIDs[mqtt.EncodeElementID(id)] = id
	}

	// The hub exists from construction; Start only runs its loop.
	// Handlers can therefore touch it unconditionally.
	hub := NewHub(deps.WS, deps.Logger)

	return &Server{
		cfg:        deps.Config,
		topics:     mqtt.NewTopics(deps.BaseTopic),
		logger:     deps.Logger,
		catalog:    deps.Catalog,
		store:      deps.Store,
		states:     deps.States,
		commander:  deps.Commander,
		refresher:  deps.Refresher,
		cycle:      deps.Cycle,
		stats:      deps.Stats,
		elements:   deps.Elements,
		history:    deps.History,
		audit:      deps.Audit,
		meter:      deps.Meter,
		mqtt:       deps.MQTT,
		health:     deps.Health,
		version:    deps.Version,
		encodedIDs: encodedIDs,
		hub:        hub,
		startedAt:  time.Now(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, subscribes to the bridge's MQTT state
// topics for real-time relay, and launches the HTTP listener in a
// background goroutine. The server is stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop the hub independently of
	// the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	if err := s.subscribeStateUpdates(); err != nil {
		s.logger.Warn("failed to subscribe to state updates for WebSocket", "error", err)
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then
// forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// elementID resolves the path form of an element id (slashes encoded
// as underscores, matching the MQTT topics) back to the panel id.
func (s *Server) elementID(encoded string) (string, bool) {
	id, ok := s.encodedIDs[encoded]
	return id, ok
}
