package energy

import (
	"sort"
	"sync"
	"time"
)

// Total is one stream's persisted accumulator state.
type Total struct {
	ElementID  string  `json:"element_id"`
	Metric     string  `json:"metric"`
	KWh        float64 `json:"total_kwh"`
	LastPowerW float64 `json:"last_power_w"`
}

// streamKey identifies one power stream within a meter.
type streamKey struct {
	elementID string
	metric    string
}

// Meter multiplexes integrators across element power streams.
//
// Streams are created lazily on first Observe or Seed. Safe for
// concurrent use.
type Meter struct {
	mu      sync.Mutex
	streams map[streamKey]*Integrator
	nowFn   func() time.Time
}

// NewMeter creates an empty meter.
func NewMeter() *Meter {
	return &Meter{
		streams: map[streamKey]*Integrator{},
		nowFn:   time.Now,
	}
}

// Seed restores a stream's total from persistence without adding a
// power baseline; the next Observe seeds the baseline fresh.
func (m *Meter) Seed(elementID, metric string, kwh float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	integrator := NewIntegrator(kwh)
	integrator.nowFn = m.nowFn
	m.streams[streamKey{elementID, metric}] = integrator
}

// Observe routes one power reading to its stream's integrator.
func (m *Meter) Observe(elementID, metric string, powerW float64) {
	m.stream(elementID, metric).Observe(powerW)
}

// Total returns one stream's cumulative kWh. The second return value
// is false for streams that have never been observed or seeded.
func (m *Meter) Total(elementID, metric string) (float64, bool) {
	m.mu.Lock()
	integrator, ok := m.streams[streamKey{elementID, metric}]
	m.mu.Unlock()

	if !ok {
		return 0, false
	}
	return integrator.Total(), true
}

// Snapshot returns every stream's current totals, ordered by element
// then metric for deterministic persistence.
func (m *Meter) Snapshot() []Total {
	m.mu.Lock()
	totals := make([]Total, 0, len(m.streams))
	for key, integrator := range m.streams {
		totals = append(totals, Total{
			ElementID:  key.elementID,
			Metric:     key.metric,
			KWh:        integrator.Total(),
			LastPowerW: integrator.LastPower(),
		})
	}
	m.mu.Unlock()

	sort.Slice(totals, func(a, b int) bool {
		if totals[a].ElementID != totals[b].ElementID {
			return totals[a].ElementID < totals[b].ElementID
		}
		return totals[a].Metric < totals[b].Metric
	})
	return totals
}

// stream returns the integrator for a key, creating it on first use.
func (m *Meter) stream(elementID, metric string) *Integrator {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := streamKey{elementID, metric}
	integrator, ok := m.streams[key]
	if !ok {
		integrator = NewIntegrator(0)
		integrator.nowFn = m.nowFn
		m.streams[key] = integrator
	}
	return integrator
}
