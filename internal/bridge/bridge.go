package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/nerrad567/domo-bridge/internal/audit"
	"github.com/nerrad567/domo-bridge/internal/element"
	"github.com/nerrad567/domo-bridge/internal/energy"
	"github.com/nerrad567/domo-bridge/internal/infrastructure/config"
	"github.com/nerrad567/domo-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/domo-bridge/internal/poll"
	"github.com/nerrad567/domo-bridge/internal/reconcile"
)

// Bridge operation constants.
const (
	// commandTimeout bounds a single panel command issued from MQTT
	// intake.
	commandTimeout = 5 * time.Second

	// shutdownFlushTimeout bounds the final energy flush during Stop.
	shutdownFlushTimeout = 5 * time.Second

	// defaultEnergyFlushInterval is used when the configuration does
	// not carry one.
	defaultEnergyFlushInterval = 5 * time.Minute

	// historyRetention is how long state history rows are kept.
	historyRetention = 30 * 24 * time.Hour

	// historyPruneInterval is how often expired history rows are
	// removed.
	historyPruneInterval = 24 * time.Hour
)

// Command origins recorded in the audit log.
const (
	SourceAPI  = "api"
	SourceMQTT = "mqtt"
)

// MQTTClient is the slice of the MQTT client the bridge uses.
// Satisfied by *mqtt.Client; declared here so tests can substitute a
// mock without a broker.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// IsConnected reports whether the broker connection is up.
	IsConnected() bool
}

// PanelController is the typed command surface of the panel client.
// Satisfied by *domo.Client.
type PanelController interface {
	SwitchLight(ctx context.Context, elementID string, on bool) error
	SetDimmer(ctx context.Context, elementID string, level int) error
	CoverCommand(ctx context.Context, elementID, command string) error
	SetThermostatMode(ctx context.Context, elementID, mode string) error
	SetThermostatSeason(ctx context.Context, elementID, season string) error
	SetThermostatMaxTemp(ctx context.Context, elementID string, temp float64) error
	SetThermostatMinTemp(ctx context.Context, elementID string, temp float64) error
	SetThermostatSpeed(ctx context.Context, elementID string, speed int) error
	SetACTemperature(ctx context.Context, elementID string, temp float64) error
	SetACFanSpeed(ctx context.Context, elementID string, speed int) error
	SetACMode(ctx context.Context, elementID, mode string) error
	SetWaterHeaterTemperature(ctx context.Context, elementID string, temp float64) error
	SetWaterHeaterMode(ctx context.Context, elementID, mode string) error
	PressButton(ctx context.Context, elementID, action string) error
	SwitchLoad(ctx context.Context, elementID string, on bool) error
}

// Refresher triggers a coalesced poll cycle. Satisfied by
// *poll.Coordinator.
type Refresher interface {
	Refresh()
}

// TelemetryWriter is the slice of the time-series client the bridge
// writes through. Optional; a nil writer disables telemetry.
type TelemetryWriter interface {
	WriteElementMetric(elementID, metric string, value float64)
	WriteEnergyMetric(elementID, metric string, powerWatts, energyKWh float64)
	WritePoint(measurement string, tags map[string]string, fields map[string]interface{})
}

// Logger is the logging interface the bridge needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options holds dependencies for creating a Bridge.
type Options struct {
	// Config is the loaded daemon configuration.
	Config *config.Config

	// MQTT is the broker client.
	MQTT MQTTClient

	// Panel issues typed commands to the panel.
	Panel PanelController

	// Tracker runs the predict/verify protocol and hold windows.
	Tracker *reconcile.Tracker

	// Store holds the latest polled snapshot. Read for on-demand
	// state queries.
	Store *poll.Store

	// Refresher serves MQTT refresh requests.
	Refresher Refresher

	// Catalog is the discovered element catalog. The bridge keeps its
	// own annotated copy; the catalog is fixed for the bridge's
	// lifetime.
	Catalog element.Catalog

	// Elements persists the catalog.
	Elements element.Repository

	// History records published state changes.
	History element.StateHistoryRepository

	// Audit records issued commands.
	Audit audit.Repository

	// Meter accumulates energy from polled power readings.
	Meter *energy.Meter

	// Totals persists the meter across restarts.
	Totals energy.TotalsRepository

	// Telemetry is optional; nil disables time-series writes.
	Telemetry TelemetryWriter

	// Logger is optional.
	Logger Logger
}

// Bridge publishes element states over MQTT and executes commands
// arriving from MQTT and the HTTP API.
//
// All methods are safe for concurrent use.
type Bridge struct {
	cfg       *config.Config
	mqtt      MQTTClient
	topics    mqtt.Topics
	qos       byte
	panel     PanelController
	tracker   *reconcile.Tracker
	store     *poll.Store
	refresher Refresher
	elements  element.Repository
	history   element.StateHistoryRepository
	audit     audit.Repository
	meter     *energy.Meter
	totals    energy.TotalsRepository
	telemetry TelemetryWriter
	logger    Logger

	// catalog, encodedIDs and estimators are built once in New and
	// never mutated afterwards, so reads need no locking.
	catalog    element.Catalog
	encodedIDs map[string]string
	estimators map[string]*reconcile.PositionEstimator

	// Last published state per element, for change detection.
	publishMu     sync.Mutex
	lastPublished map[string]element.State

	metricsMu sync.Mutex
	counters  Metrics

	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc
}

// statePayload is the JSON body published to element state topics.
type statePayload struct {
	ElementID string        `json:"element_id"`
	State     element.State `json:"state"`
	Source    string        `json:"source"`
	Timestamp time.Time     `json:"ts"`
}

// cycleEvent is the JSON body published to the bridge cycle topic
// after every poll cycle. Failed cycles carry the error and flag the
// retained element states as stale.
type cycleEvent struct {
	OK        bool      `json:"ok"`
	Elements  int       `json:"elements,omitempty"`
	Published int       `json:"published,omitempty"`
	Error     string    `json:"error,omitempty"`
	Stale     bool      `json:"stale,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// New creates a bridge. Call Start to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Panel == nil {
		return nil, fmt.Errorf("panel controller is required")
	}
	if opts.Tracker == nil {
		return nil, fmt.Errorf("reconcile tracker is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if opts.Refresher == nil {
		return nil, fmt.Errorf("refresher is required")
	}
	if opts.Elements == nil {
		return nil, fmt.Errorf("element repository is required")
	}
	if opts.History == nil {
		return nil, fmt.Errorf("state history repository is required")
	}
	if opts.Audit == nil {
		return nil, fmt.Errorf("audit repository is required")
	}
	if opts.Meter == nil {
		return nil, fmt.Errorf("energy meter is required")
	}
	if opts.Totals == nil {
		return nil, fmt.Errorf("energy totals repository is required")
	}

	// Annotated catalog copy: configured custom names are applied here
	// once, so DisplayName is correct everywhere downstream.
	catalog := make(element.Catalog, len(opts.Catalog))
	encodedIDs := make(map[string]string, len(opts.Catalog))
	estimators := make(map[string]*reconcile.PositionEstimator)
	for id, el := range opts.Catalog {
		if name, ok := opts.Config.Elements.Names[id]; ok {
			el.CustomName = name
		}
		catalog[id] = el
		encodedIDs[mqtt.EncodeElementID(id)] = id

		if el.Class == element.ClassShutter {
			estimators[id] = reconcile.NewPositionEstimator(opts.Config.TravelTimeFor(id))
		}
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	return &Bridge{
		cfg:           opts.Config,
		mqtt:          opts.MQTT,
		topics:        mqtt.NewTopics(opts.Config.MQTT.BaseTopic),
		qos:           byte(opts.Config.MQTT.QoS),
		panel:         opts.Panel,
		tracker:       opts.Tracker,
		store:         opts.Store,
		refresher:     opts.Refresher,
		elements:      opts.Elements,
		history:       opts.History,
		audit:         opts.Audit,
		meter:         opts.Meter,
		totals:        opts.Totals,
		telemetry:     opts.Telemetry,
		logger:        opts.Logger,
		catalog:       catalog,
		encodedIDs:    encodedIDs,
		estimators:    estimators,
		lastPublished: make(map[string]element.State),
		done:          make(chan struct{}),
		ctx:           ctx,
		ctxCancel:     ctxCancel,
	}, nil
}

// Start persists the catalog, restores energy totals, subscribes to
// the command and refresh topics and launches the background flush
// loops.
func (b *Bridge) Start(ctx context.Context) error {
	b.persistCatalog(ctx)
	b.seedEnergy(ctx)

	setTopic := b.topics.AllElementSets()
	if err := b.mqtt.Subscribe(setTopic, b.qos, b.handleSetMessage); err != nil {
		return fmt.Errorf("subscribe to element commands: %w", err)
	}
	b.logInfo("subscribed to element commands", "topic", setTopic)

	refreshTopic := b.topics.BridgeRefresh()
	if err := b.mqtt.Subscribe(refreshTopic, b.qos, b.handleRefreshMessage); err != nil {
		return fmt.Errorf("subscribe to refresh requests: %w", err)
	}
	b.logInfo("subscribed to refresh requests", "topic", refreshTopic)

	b.wg.Add(2)
	go b.energyFlushLoop()
	go b.historyPruneLoop()

	b.logInfo("bridge started",
		"base_topic", b.topics.Base(),
		"elements", len(b.catalog))

	return nil
}

// Stop shuts the bridge down: background loops are drained, in-flight
// commands cancelled and the energy totals flushed a final time.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
		defer cancel()
		b.flushEnergy(ctx)

		b.logInfo("bridge stopped")
	})
}

// HandleCyclePublish consumes a successful poll cycle: telemetry is
// recorded for every element, then each state is decorated and
// published if it changed. Wired as the coordinator's publish
// callback.
func (b *Bridge) HandleCyclePublish(states map[string]element.State) {
	published := 0
	for id, state := range states {
		info, ok := b.catalog[id]
		if !ok {
			continue
		}

		b.recordTelemetry(id, info.Class, state)

		presented := b.presentState(id, info.Class, state)
		if b.publishElementState(id, presented, element.StateSourcePoll) {
			published++
		}
	}

	b.countCycle(true)
	b.publishCycleEvent(cycleEvent{OK: true, Elements: len(states), Published: published})

	if b.telemetry != nil {
		b.telemetry.WritePoint("poll_cycle", nil, map[string]interface{}{
			"elements":  len(states),
			"published": published,
		})
	}

	b.logDebug("cycle published", "elements", len(states), "changed", published)
}

// HandleCycleFailure publishes a failed cycle to the bridge cycle
// topic. The retained element states stay on the broker; the event
// flags them stale. Wired as the coordinator's error callback.
func (b *Bridge) HandleCycleFailure(err error) {
	b.countCycle(false)
	b.logError("poll cycle failed", err)
	b.publishCycleEvent(cycleEvent{OK: false, Error: err.Error(), Stale: true})
}

// HandleVerified publishes the merged state after a post-command
// verification. Wired as the tracker's verified callback.
func (b *Bridge) HandleVerified(elementID string, state element.State) {
	info, ok := b.catalog[elementID]
	if !ok {
		return
	}

	// Verification reporting the shutter idle ends position
	// integration for this movement.
	if est := b.estimators[elementID]; est != nil {
		if !state.Bool("is_opening") && !state.Bool("is_closing") {
			est.ClearTick()
		}
	}

	presented := b.presentState(elementID, info.Class, state)
	b.publishElementState(elementID, presented, element.StateSourceVerify)
}

// CurrentState returns the element's present state on demand: the
// latest polled snapshot with any hold window overlaid and, for
// shutters, the estimated position attached. The second return is
// false when the element is unknown or not yet polled.
func (b *Bridge) CurrentState(elementID string) (element.State, bool) {
	info, ok := b.catalog[elementID]
	if !ok {
		return nil, false
	}
	state, ok := b.store.Get(elementID)
	if !ok {
		return nil, false
	}
	return b.presentState(elementID, info.Class, state), true
}

// presentState decorates an authoritative state for publishing: any
// active hold window is overlaid, and shutters get their estimated
// position attached.
func (b *Bridge) presentState(elementID string, class element.Class, state element.State) element.State {
	state = b.tracker.Overlay(elementID, state)

	est := b.estimators[elementID]
	if class != element.ClassShutter || est == nil {
		return state
	}

	isOpening := state.Bool("is_opening")
	isClosing := state.Bool("is_closing")

	out := state.DeepCopy()
	out["position"] = est.Advance(isOpening, isClosing)
	out["is_closed"] = est.IsClosed(isOpening, isClosing)
	return out
}

// publishElementState publishes one element's state retained, records
// it in the history table and remembers it for change detection.
// Returns false when the state is unchanged or the publish failed; a
// failed publish is retried naturally on the next cycle because the
// remembered state is not updated.
func (b *Bridge) publishElementState(elementID string, state element.State, source string) bool {
	if !b.stateChanged(elementID, state) {
		return false
	}

	payload, err := json.Marshal(statePayload{
		ElementID: elementID,
		State:     state,
		Source:    source,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		b.logError("state payload marshal failed", err)
		return false
	}

	if err := b.mqtt.Publish(b.topics.ElementState(elementID), payload, b.qos, true); err != nil {
		b.logWarn("state publish failed", "element_id", elementID, "error", err)
		return false
	}

	b.rememberPublished(elementID, state)
	b.countStatePublished()

	if err := b.history.RecordStateChange(b.ctx, elementID, state, source); err != nil {
		b.logWarn("state history write failed", "element_id", elementID, "error", err)
	}

	return true
}

// publishCycleEvent publishes the cycle outcome retained, so late
// subscribers see the current freshness immediately.
func (b *Bridge) publishCycleEvent(event cycleEvent) {
	event.Timestamp = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		b.logError("cycle event marshal failed", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.BridgeCycle(), payload, b.qos, true); err != nil {
		b.logWarn("cycle event publish failed", "error", err)
	}
}

// stateChanged reports whether the state differs from the last
// published one.
func (b *Bridge) stateChanged(elementID string, state element.State) bool {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	prev, ok := b.lastPublished[elementID]
	return !ok || !reflect.DeepEqual(prev, state)
}

func (b *Bridge) rememberPublished(elementID string, state element.State) {
	b.publishMu.Lock()
	b.lastPublished[elementID] = state.DeepCopy()
	b.publishMu.Unlock()
}

// persistCatalog upserts the discovered catalog, applies configured
// custom names and removes elements no longer reported by the panel.
// Persistence failures are logged and skipped; bridging works without
// the database.
func (b *Bridge) persistCatalog(ctx context.Context) {
	for id := range b.catalog {
		el := b.catalog[id]
		if err := b.elements.Upsert(ctx, &el); err != nil {
			b.logWarn("element upsert failed", "element_id", id, "error", err)
		}
	}

	for id, name := range b.cfg.Elements.Names {
		if !b.catalog.Has(id) {
			b.logWarn("custom name for unknown element", "element_id", id)
			continue
		}
		if err := b.elements.SetCustomName(ctx, id, name); err != nil {
			b.logWarn("custom name update failed", "element_id", id, "error", err)
		}
	}

	removed, err := b.elements.DeleteMissing(ctx, b.catalog.IDs())
	if err != nil {
		b.logWarn("catalog cleanup failed", "error", err)
	} else if removed > 0 {
		b.logInfo("removed elements no longer on panel", "count", removed)
	}

	b.logInfo("catalog persisted", "elements", len(b.catalog))
}

// seedEnergy restores accumulated totals into the meter so counters
// survive restarts.
func (b *Bridge) seedEnergy(ctx context.Context) {
	totals, err := b.totals.Load(ctx)
	if err != nil {
		b.logWarn("energy totals load failed", "error", err)
		return
	}
	for _, t := range totals {
		b.meter.Seed(t.ElementID, t.Metric, t.KWh)
	}
	if len(totals) > 0 {
		b.logInfo("energy totals restored", "streams", len(totals))
	}
}

// Metrics is a point-in-time view of bridge activity.
type Metrics struct {
	Connected        bool      `json:"connected"`
	ElementsManaged  int       `json:"elements_managed"`
	StatesPublished  uint64    `json:"states_published"`
	CommandsExecuted uint64    `json:"commands_executed"`
	CommandsFailed   uint64    `json:"commands_failed"`
	Cycles           uint64    `json:"cycles"`
	CycleFailures    uint64    `json:"cycle_failures"`
	LastCycleAt      time.Time `json:"last_cycle_at"`
}

// GetMetrics returns current bridge metrics.
func (b *Bridge) GetMetrics() Metrics {
	b.metricsMu.Lock()
	m := b.counters
	b.metricsMu.Unlock()

	m.Connected = b.mqtt.IsConnected()
	m.ElementsManaged = len(b.catalog)
	return m
}

func (b *Bridge) countStatePublished() {
	b.metricsMu.Lock()
	b.counters.StatesPublished++
	b.metricsMu.Unlock()
}

func (b *Bridge) countCommand(failed bool) {
	b.metricsMu.Lock()
	if failed {
		b.counters.CommandsFailed++
	} else {
		b.counters.CommandsExecuted++
	}
	b.metricsMu.Unlock()
}

func (b *Bridge) countCycle(ok bool) {
	b.metricsMu.Lock()
	if ok {
		b.counters.Cycles++
	} else {
		b.counters.CycleFailures++
	}
	b.counters.LastCycleAt = time.Now().UTC()
	b.metricsMu.Unlock()
}

// logDebug logs a debug message if a logger is set.
func (b *Bridge) logDebug(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}

// logInfo logs an info message if a logger is set.
func (b *Bridge) logInfo(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Info(msg, args...)
	}
}

// logWarn logs a warning if a logger is set.
func (b *Bridge) logWarn(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, args...)
	}
}

// logError logs an error if a logger is set.
func (b *Bridge) logError(msg string, err error) {
	if b.logger != nil {
		b.logger.Error(msg, "error", err)
	}
}
