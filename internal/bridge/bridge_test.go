package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/domo-bridge/internal/audit"
	"github.com/nerrad567/domo-bridge/internal/domo"
	"github.com/nerrad567/domo-bridge/internal/element"
	"github.com/nerrad567/domo-bridge/internal/energy"
	"github.com/nerrad567/domo-bridge/internal/infrastructure/config"
	"github.com/nerrad567/domo-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/domo-bridge/internal/poll"
	"github.com/nerrad567/domo-bridge/internal/reconcile"
)

// --- mocks ---

type publishedMessage struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type mockMQTT struct {
	mu            sync.Mutex
	published     []publishedMessage
	subscriptions map[string]mqtt.MessageHandler
	publishErr    error
	connected     bool
}

func newMockMQTT() *mockMQTT {
	return &mockMQTT{
		subscriptions: make(map[string]mqtt.MessageHandler),
		connected:     true,
	}
}

func (m *mockMQTT) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, publishedMessage{topic, payload, qos, retained})
	return nil
}

func (m *mockMQTT) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[topic] = handler
	return nil
}

func (m *mockMQTT) IsConnected() bool { return m.connected }

func (m *mockMQTT) messagesTo(topic string) []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []publishedMessage
	for _, msg := range m.published {
		if msg.topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

func (m *mockMQTT) hasSubscription(topic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subscriptions[topic]
	return ok
}

func (m *mockMQTT) handlerFor(t *testing.T, topic string) mqtt.MessageHandler {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.subscriptions[topic]
	if !ok {
		t.Fatalf("no subscription for %q", topic)
	}
	return h
}

type panelCall struct {
	method    string
	elementID string
	value     any
}

type mockPanel struct {
	mu    sync.Mutex
	calls []panelCall
	err   error
}

func (p *mockPanel) record(method, elementID string, value any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, panelCall{method, elementID, value})
	return p.err
}

func (p *mockPanel) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *mockPanel) lastCall(t *testing.T) panelCall {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		t.Fatal("expected a panel call, got none")
	}
	return p.calls[len(p.calls)-1]
}

func (p *mockPanel) SwitchLight(_ context.Context, id string, on bool) error {
	return p.record("SwitchLight", id, on)
}
func (p *mockPanel) SetDimmer(_ context.Context, id string, level int) error {
	return p.record("SetDimmer", id, level)
}
func (p *mockPanel) CoverCommand(_ context.Context, id, command string) error {
	return p.record("CoverCommand", id, command)
}
func (p *mockPanel) SetThermostatMode(_ context.Context, id, mode string) error {
	return p.record("SetThermostatMode", id, mode)
}
func (p *mockPanel) SetThermostatSeason(_ context.Context, id, season string) error {
	return p.record("SetThermostatSeason", id, season)
}
func (p *mockPanel) SetThermostatMaxTemp(_ context.Context, id string, temp float64) error {
	return p.record("SetThermostatMaxTemp", id, temp)
}
func (p *mockPanel) SetThermostatMinTemp(_ context.Context, id string, temp float64) error {
	return p.record("SetThermostatMinTemp", id, temp)
}
func (p *mockPanel) SetThermostatSpeed(_ context.Context, id string, speed int) error {
	return p.record("SetThermostatSpeed", id, speed)
}
func (p *mockPanel) SetACTemperature(_ context.Context, id string, temp float64) error {
	return p.record("SetACTemperature", id, temp)
}
func (p *mockPanel) SetACFanSpeed(_ context.Context, id string, speed int) error {
	return p.record("SetACFanSpeed", id, speed)
}
func (p *mockPanel) SetACMode(_ context.Context, id, mode string) error {
	return p.record("SetACMode", id, mode)
}
func (p *mockPanel) SetWaterHeaterTemperature(_ context.Context, id string, temp float64) error {
	return p.record("SetWaterHeaterTemperature", id, temp)
}
func (p *mockPanel) SetWaterHeaterMode(_ context.Context, id, mode string) error {
	return p.record("SetWaterHeaterMode", id, mode)
}
func (p *mockPanel) PressButton(_ context.Context, id, action string) error {
	return p.record("PressButton", id, action)
}
func (p *mockPanel) SwitchLoad(_ context.Context, id string, on bool) error {
	return p.record("SwitchLoad", id, on)
}

type mockRefresher struct {
	mu    sync.Mutex
	count int
}

func (r *mockRefresher) Refresh() {
	r.mu.Lock()
	r.count++
	r.mu.Unlock()
}

func (r *mockRefresher) refreshCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

type memElements struct {
	mu           sync.Mutex
	upserted     map[string]element.Element
	names        map[string]string
	missingCalls [][]string
}

func newMemElements() *memElements {
	return &memElements{
		upserted: make(map[string]element.Element),
		names:    make(map[string]string),
	}
}

func (m *memElements) GetByID(_ context.Context, id string) (*element.Element, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.upserted[id]
	if !ok {
		return nil, element.ErrNotFound
	}
	return &el, nil
}

func (m *memElements) List(context.Context) ([]element.Element, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]element.Element, 0, len(m.upserted))
	for _, el := range m.upserted {
		out = append(out, el)
	}
	return out, nil
}

func (m *memElements) Upsert(_ context.Context, e *element.Element) error {
	m.mu.Lock()
	m.upserted[e.ID] = *e
	m.mu.Unlock()
	return nil
}

func (m *memElements) SetCustomName(_ context.Context, id, name string) error {
	m.mu.Lock()
	m.names[id] = name
	m.mu.Unlock()
	return nil
}

func (m *memElements) DeleteMissing(_ context.Context, activeIDs []string) (int64, error) {
	m.mu.Lock()
	m.missingCalls = append(m.missingCalls, activeIDs)
	m.mu.Unlock()
	return 0, nil
}

type memHistory struct {
	mu      sync.Mutex
	entries []element.StateHistoryEntry
}

func (m *memHistory) RecordStateChange(_ context.Context, elementID string, state element.State, source string) error {
	m.mu.Lock()
	m.entries = append(m.entries, element.StateHistoryEntry{
		ElementID: elementID,
		State:     state.DeepCopy(),
		Source:    source,
	})
	m.mu.Unlock()
	return nil
}

func (m *memHistory) GetHistory(_ context.Context, elementID string, _ int) ([]element.StateHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []element.StateHistoryEntry
	for _, e := range m.entries {
		if e.ElementID == elementID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memHistory) PruneHistory(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

func (m *memHistory) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type memAudit struct {
	mu      sync.Mutex
	entries []audit.CommandLog
}

func (m *memAudit) Create(_ context.Context, log *audit.CommandLog) error {
	m.mu.Lock()
	m.entries = append(m.entries, *log)
	m.mu.Unlock()
	return nil
}

func (m *memAudit) List(context.Context, audit.Filter) (*audit.ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	logs := make([]audit.CommandLog, len(m.entries))
	copy(logs, m.entries)
	return &audit.ListResult{Logs: logs, Total: len(logs)}, nil
}

func (m *memAudit) lastEntry(t *testing.T) audit.CommandLog {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		t.Fatal("expected an audit entry, got none")
	}
	return m.entries[len(m.entries)-1]
}

func (m *memAudit) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type memTotals struct {
	mu     sync.Mutex
	seeded []energy.Total
	saved  [][]energy.Total
}

func (m *memTotals) Load(context.Context) ([]energy.Total, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seeded, nil
}

func (m *memTotals) Save(_ context.Context, totals []energy.Total) error {
	m.mu.Lock()
	m.saved = append(m.saved, totals)
	m.mu.Unlock()
	return nil
}

func (m *memTotals) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

// verifyFetcherStub satisfies the tracker's fetcher; tests never let a
// verification fire.
type verifyFetcherStub struct{}

func (verifyFetcherStub) FetchSingleStatus(context.Context, string) (*domo.Document, error) {
	return nil, errors.New("no panel in tests")
}

// --- fixture ---

const (
	lightID   = "72623/119"
	shutterID = "72623/120"
	sensorID  = "72623/121"
	sceneID   = "72623/122"
)

func testCatalog() element.Catalog {
	return element.Catalog{
		lightID:   {ID: lightID, Name: "Kitchen Light", Class: element.ClassDimmableLight, SceneID: "1", SceneName: "Kitchen"},
		shutterID: {ID: shutterID, Name: "Kitchen Shutter", Class: element.ClassShutter, SceneID: "1", SceneName: "Kitchen"},
		sensorID:  {ID: sensorID, Name: "Main Meter", Class: element.ClassPowerSensor, SceneID: "2", SceneName: "Utility"},
		sceneID:   {ID: sceneID, Name: "Night Scene", Class: element.ClassScenario, SceneID: "2", SceneName: "Utility"},
	}
}

func testBridgeConfig() *config.Config {
	return &config.Config{
		MQTT:    config.MQTTConfig{BaseTopic: "domobridge", QoS: 1},
		Polling: config.PollingConfig{TravelTime: 25},
		Energy:  config.EnergyConfig{FlushInterval: 300},
	}
}

type fixture struct {
	bridge    *Bridge
	mqtt      *mockMQTT
	panel     *mockPanel
	refresher *mockRefresher
	store     *poll.Store
	tracker   *reconcile.Tracker
	meter     *energy.Meter
	elements  *memElements
	history   *memHistory
	audits    *memAudit
	totals    *memTotals
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()

	store := poll.NewStore()
	tracker := reconcile.NewTracker(reconcile.Config{
		Fetcher:     verifyFetcherStub{},
		Store:       store,
		VerifyDelay: time.Hour,
	})
	t.Cleanup(tracker.Close)

	fx := &fixture{
		mqtt:      newMockMQTT(),
		panel:     &mockPanel{},
		refresher: &mockRefresher{},
		store:     store,
		tracker:   tracker,
		meter:     energy.NewMeter(),
		elements:  newMemElements(),
		history:   &memHistory{},
		audits:    &memAudit{},
		totals:    &memTotals{},
	}

	opts := Options{
		Config:    testBridgeConfig(),
		MQTT:      fx.mqtt,
		Panel:     fx.panel,
		Tracker:   tracker,
		Store:     store,
		Refresher: fx.refresher,
		Catalog:   testCatalog(),
		Elements:  fx.elements,
		History:   fx.history,
		Audit:     fx.audits,
		Meter:     fx.meter,
		Totals:    fx.totals,
	}
	if mutate != nil {
		mutate(&opts)
	}

	b, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(b.Stop)

	fx.bridge = b
	return fx
}

func decodeStatePayload(t *testing.T, payload []byte) statePayload {
	t.Helper()
	var sp statePayload
	if err := json.Unmarshal(payload, &sp); err != nil {
		t.Fatalf("unmarshal state payload: %v", err)
	}
	return sp
}

// --- tests ---

func TestNewMissingDependencies(t *testing.T) {
	valid := func() Options {
		return Options{
			Config:    testBridgeConfig(),
			MQTT:      newMockMQTT(),
			Panel:     &mockPanel{},
			Tracker:   reconcile.NewTracker(reconcile.Config{Fetcher: verifyFetcherStub{}, Store: poll.NewStore()}),
			Store:     poll.NewStore(),
			Refresher: &mockRefresher{},
			Catalog:   testCatalog(),
			Elements:  newMemElements(),
			History:   &memHistory{},
			Audit:     &memAudit{},
			Meter:     energy.NewMeter(),
			Totals:    &memTotals{},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr string
	}{
		{"missing config", func(o *Options) { o.Config = nil }, "config"},
		{"missing mqtt", func(o *Options) { o.MQTT = nil }, "MQTT"},
		{"missing panel", func(o *Options) { o.Panel = nil }, "panel"},
		{"missing tracker", func(o *Options) { o.Tracker = nil }, "tracker"},
		{"missing store", func(o *Options) { o.Store = nil }, "store"},
		{"missing refresher", func(o *Options) { o.Refresher = nil }, "refresher"},
		{"missing elements", func(o *Options) { o.Elements = nil }, "element repository"},
		{"missing history", func(o *Options) { o.History = nil }, "history"},
		{"missing audit", func(o *Options) { o.Audit = nil }, "audit"},
		{"missing meter", func(o *Options) { o.Meter = nil }, "meter"},
		{"missing totals", func(o *Options) { o.Totals = nil }, "totals"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := valid()
			tt.mutate(&opts)
			_, err := New(opts)
			if err == nil {
				t.Fatal("New() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("New() error = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestStartSubscribesAndRestoresState(t *testing.T) {
	fx := newFixture(t, func(o *Options) {
		o.Config.Elements.Names = map[string]string{
			lightID:   "Accent Light",
			"999/999": "Ghost",
		}
	})
	fx.totals.seeded = []energy.Total{
		{ElementID: sensorID, Metric: "power", KWh: 12.5},
	}

	if err := fx.bridge.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if !fx.mqtt.hasSubscription("domobridge/element/+/set") {
		t.Error("expected subscription to element set topics")
	}
	if !fx.mqtt.hasSubscription("domobridge/bridge/refresh") {
		t.Error("expected subscription to refresh topic")
	}

	kwh, ok := fx.meter.Total(sensorID, "power")
	if !ok || kwh != 12.5 {
		t.Errorf("meter.Total(%q, power) = %v, %v, want 12.5, true", sensorID, kwh, ok)
	}

	fx.elements.mu.Lock()
	defer fx.elements.mu.Unlock()
	if len(fx.elements.upserted) != 4 {
		t.Errorf("upserted %d elements, want 4", len(fx.elements.upserted))
	}
	if got := fx.elements.upserted[lightID].CustomName; got != "Accent Light" {
		t.Errorf("upserted custom name = %q, want %q", got, "Accent Light")
	}
	if got := fx.elements.names[lightID]; got != "Accent Light" {
		t.Errorf("SetCustomName recorded %q, want %q", got, "Accent Light")
	}
	if _, ok := fx.elements.names["999/999"]; ok {
		t.Error("custom name for unknown element should not be persisted")
	}
	if len(fx.elements.missingCalls) != 1 || len(fx.elements.missingCalls[0]) != 4 {
		t.Errorf("DeleteMissing calls = %v, want one call with 4 ids", fx.elements.missingCalls)
	}
}

func TestHandleCyclePublishRetainsChangedStates(t *testing.T) {
	fx := newFixture(t, nil)

	states := map[string]element.State{
		lightID:  {"is_on": true, "brightness": 80},
		sensorID: {"power": 1500.0},
	}
	fx.bridge.HandleCyclePublish(states)

	msgs := fx.mqtt.messagesTo("domobridge/element/72623_119/state")
	if len(msgs) != 1 {
		t.Fatalf("light state messages = %d, want 1", len(msgs))
	}
	if !msgs[0].retained {
		t.Error("state publish should be retained")
	}
	if msgs[0].qos != 1 {
		t.Errorf("state publish qos = %d, want 1", msgs[0].qos)
	}

	sp := decodeStatePayload(t, msgs[0].payload)
	if sp.ElementID != lightID {
		t.Errorf("payload element_id = %q, want %q", sp.ElementID, lightID)
	}
	if sp.Source != element.StateSourcePoll {
		t.Errorf("payload source = %q, want %q", sp.Source, element.StateSourcePoll)
	}
	if !sp.State.Bool("is_on") {
		t.Error("payload state is_on = false, want true")
	}

	events := fx.mqtt.messagesTo("domobridge/bridge/cycle")
	if len(events) != 1 {
		t.Fatalf("cycle events = %d, want 1", len(events))
	}
	var ev cycleEvent
	if err := json.Unmarshal(events[0].payload, &ev); err != nil {
		t.Fatalf("unmarshal cycle event: %v", err)
	}
	if !ev.OK || ev.Elements != 2 || ev.Published != 2 {
		t.Errorf("cycle event = %+v, want ok with 2 elements published", ev)
	}

	if fx.history.count() != 2 {
		t.Errorf("history entries = %d, want 2", fx.history.count())
	}

	if _, ok := fx.meter.Total(sensorID, "power"); !ok {
		t.Error("expected an energy stream for the power sensor")
	}

	// Unchanged states are not republished.
	fx.bridge.HandleCyclePublish(states)
	if got := len(fx.mqtt.messagesTo("domobridge/element/72623_119/state")); got != 1 {
		t.Errorf("light state messages after identical cycle = %d, want 1", got)
	}

	// A changed state is.
	fx.bridge.HandleCyclePublish(map[string]element.State{
		lightID: {"is_on": false, "brightness": 0},
	})
	if got := len(fx.mqtt.messagesTo("domobridge/element/72623_119/state")); got != 2 {
		t.Errorf("light state messages after change = %d, want 2", got)
	}
}

func TestHandleCyclePublishEstimatesShutterPosition(t *testing.T) {
	fx := newFixture(t, nil)

	fx.bridge.HandleCyclePublish(map[string]element.State{
		shutterID: {"is_opening": true, "is_closing": false},
	})

	msgs := fx.mqtt.messagesTo("domobridge/element/72623_120/state")
	if len(msgs) != 1 {
		t.Fatalf("shutter state messages = %d, want 1", len(msgs))
	}
	sp := decodeStatePayload(t, msgs[0].payload)

	pos, ok := sp.State.Int("position")
	if !ok {
		t.Fatal("shutter state missing position")
	}
	if pos != 50 {
		t.Errorf("initial position = %d, want 50", pos)
	}
	if sp.State.Bool("is_closed") {
		t.Error("moving shutter should not be closed")
	}
}

func TestHandleCycleFailurePublishesStaleEvent(t *testing.T) {
	fx := newFixture(t, nil)

	fx.bridge.HandleCycleFailure(errors.New("panel unreachable"))

	events := fx.mqtt.messagesTo("domobridge/bridge/cycle")
	if len(events) != 1 {
		t.Fatalf("cycle events = %d, want 1", len(events))
	}
	var ev cycleEvent
	if err := json.Unmarshal(events[0].payload, &ev); err != nil {
		t.Fatalf("unmarshal cycle event: %v", err)
	}
	if ev.OK {
		t.Error("cycle event ok = true, want false")
	}
	if !ev.Stale {
		t.Error("cycle event stale = false, want true")
	}
	if !strings.Contains(ev.Error, "unreachable") {
		t.Errorf("cycle event error = %q, want the failure reason", ev.Error)
	}

	if got := fx.bridge.GetMetrics().CycleFailures; got != 1 {
		t.Errorf("CycleFailures = %d, want 1", got)
	}
}

func TestHandleVerifiedPublishes(t *testing.T) {
	fx := newFixture(t, nil)

	fx.bridge.HandleVerified(lightID, element.State{"is_on": false, "brightness": 0})

	msgs := fx.mqtt.messagesTo("domobridge/element/72623_119/state")
	if len(msgs) != 1 {
		t.Fatalf("state messages = %d, want 1", len(msgs))
	}
	sp := decodeStatePayload(t, msgs[0].payload)
	if sp.Source != element.StateSourceVerify {
		t.Errorf("payload source = %q, want %q", sp.Source, element.StateSourceVerify)
	}

	// Unknown elements are ignored.
	fx.bridge.HandleVerified("999/999", element.State{"is_on": true})
	if got := len(fx.mqtt.published); got != 1 {
		t.Errorf("published messages = %d, want 1", got)
	}
}

func TestCurrentState(t *testing.T) {
	fx := newFixture(t, nil)

	if _, ok := fx.bridge.CurrentState(lightID); ok {
		t.Error("CurrentState before any poll should report not found")
	}

	fx.store.ReplaceAll(map[string]element.State{
		lightID:   {"is_on": true, "brightness": 40},
		shutterID: {"is_opening": false, "is_closing": false},
	})

	state, ok := fx.bridge.CurrentState(lightID)
	if !ok || !state.Bool("is_on") {
		t.Errorf("CurrentState(%q) = %v, %v, want is_on true", lightID, state, ok)
	}

	// An active hold wins over the polled truth.
	fx.tracker.Hold(lightID, element.State{"brightness": 90})
	state, _ = fx.bridge.CurrentState(lightID)
	if got, _ := state.Int("brightness"); got != 90 {
		t.Errorf("held brightness = %d, want 90", got)
	}

	// Shutters carry the position estimate.
	state, ok = fx.bridge.CurrentState(shutterID)
	if !ok {
		t.Fatalf("CurrentState(%q) not found", shutterID)
	}
	if _, ok := state.Int("position"); !ok {
		t.Error("shutter state missing position estimate")
	}

	if _, ok := fx.bridge.CurrentState("999/999"); ok {
		t.Error("unknown element should report not found")
	}
}

func TestPublishRetriesAfterBrokerError(t *testing.T) {
	fx := newFixture(t, nil)
	fx.mqtt.publishErr = errors.New("not connected")

	states := map[string]element.State{lightID: {"is_on": true}}
	fx.bridge.HandleCyclePublish(states)

	if got := fx.bridge.GetMetrics().StatesPublished; got != 0 {
		t.Errorf("StatesPublished = %d, want 0 after failed publish", got)
	}

	// Once the broker is back the same state goes out: the failed
	// publish was not remembered.
	fx.mqtt.mu.Lock()
	fx.mqtt.publishErr = nil
	fx.mqtt.mu.Unlock()

	fx.bridge.HandleCyclePublish(states)
	if got := len(fx.mqtt.messagesTo("domobridge/element/72623_119/state")); got != 1 {
		t.Errorf("state messages after recovery = %d, want 1", got)
	}
}

func TestStopFlushesEnergyOnce(t *testing.T) {
	fx := newFixture(t, nil)

	fx.bridge.HandleCyclePublish(map[string]element.State{
		sensorID: {"power": 900.0},
	})

	fx.bridge.Stop()
	fx.bridge.Stop()

	if got := fx.totals.saveCount(); got != 1 {
		t.Fatalf("energy saves = %d, want 1", got)
	}
	fx.totals.mu.Lock()
	defer fx.totals.mu.Unlock()
	if len(fx.totals.saved[0]) != 1 {
		t.Errorf("flushed streams = %d, want 1", len(fx.totals.saved[0]))
	}
	if fx.totals.saved[0][0].LastPowerW != 900.0 {
		t.Errorf("flushed last power = %v, want 900", fx.totals.saved[0][0].LastPowerW)
	}
}

func TestGetMetrics(t *testing.T) {
	fx := newFixture(t, nil)

	fx.bridge.HandleCyclePublish(map[string]element.State{lightID: {"is_on": true}})
	fx.bridge.HandleCycleFailure(errors.New("boom"))

	m := fx.bridge.GetMetrics()
	if !m.Connected {
		t.Error("Connected = false, want true")
	}
	if m.ElementsManaged != 4 {
		t.Errorf("ElementsManaged = %d, want 4", m.ElementsManaged)
	}
	if m.Cycles != 1 || m.CycleFailures != 1 {
		t.Errorf("Cycles = %d, CycleFailures = %d, want 1 and 1", m.Cycles, m.CycleFailures)
	}
	if m.StatesPublished != 1 {
		t.Errorf("StatesPublished = %d, want 1", m.StatesPublished)
	}
	if m.LastCycleAt.IsZero() {
		t.Error("LastCycleAt should be set")
	}
}
