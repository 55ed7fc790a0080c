package energy

import (
	"math"
	"sync"
	"time"
)

const (
	wattsPerKilowatt = 1000.0
	totalDecimals    = 1000.0 // Wh resolution on reported totals
)

// Integrator accumulates energy for a single power stream.
//
// Safe for concurrent use.
type Integrator struct {
	mu         sync.Mutex
	total      float64
	lastPower  float64
	lastUpdate time.Time
	seeded     bool
	nowFn      func() time.Time
}

// NewIntegrator creates an integrator starting from a prior total,
// typically restored from the totals repository.
func NewIntegrator(initialKWh float64) *Integrator {
	return &Integrator{
		total: initialKWh,
		nowFn: time.Now,
	}
}

// Observe folds one power reading into the running total.
//
// Negative readings clamp to zero. The first observation records the
// baseline without adding energy; subsequent observations add the
// trapezoidal area between readings.
func (i *Integrator) Observe(powerW float64) {
	if powerW < 0 {
		powerW = 0
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.nowFn()
	if i.seeded {
		deltaHours := now.Sub(i.lastUpdate).Hours()
		avgPower := (i.lastPower + powerW) / 2
		kwh := avgPower * deltaHours / wattsPerKilowatt
		if kwh > 0 {
			i.total += kwh
		}
	}

	i.lastPower = powerW
	i.lastUpdate = now
	i.seeded = true
}

// Total returns the cumulative energy in kWh, rounded to watt-hour
// resolution.
func (i *Integrator) Total() float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return math.Round(i.total*totalDecimals) / totalDecimals
}

// LastPower returns the most recent clamped power reading in watts,
// zero before the first observation.
func (i *Integrator) LastPower() float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastPower
}
