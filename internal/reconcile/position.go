package reconcile

import (
	"sync"
	"time"
)

// minTravelTime guards the division in movement estimation.
const minTravelTime = time.Second

// PositionEstimator tracks a shutter's position from elapsed movement
// time.
//
// The panel reports direction flags only, so position is integrated:
// each Advance call attributes the time since the last tick to
// movement at full speed over the configured travel time. Position
// starts at 50 until real movement reveals an endpoint, and is clamped
// to [0, 100].
//
// All methods are safe for concurrent use.
type PositionEstimator struct {
	mu       sync.Mutex
	travel   time.Duration
	position float64
	lastTick time.Time
	nowFn    func() time.Time
}

// NewPositionEstimator creates an estimator for one shutter. Travel
// times under one second are raised to one second.
func NewPositionEstimator(travel time.Duration) *PositionEstimator {
	if travel < minTravelTime {
		travel = minTravelTime
	}
	return &PositionEstimator{
		travel:   travel,
		position: 50,
		nowFn:    time.Now,
	}
}

// Advance integrates movement since the last tick using the given
// direction flags and returns the updated position. The tick is
// refreshed while moving and cleared when idle, so a paused shutter
// does not accrue phantom travel.
func (p *PositionEstimator) Advance(isOpening, isClosing bool) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.nowFn()
	moving := isOpening || isClosing

	if moving && !p.lastTick.IsZero() {
		movement := now.Sub(p.lastTick).Seconds() / p.travel.Seconds() * 100
		if isOpening {
			p.position = min(100, p.position+movement)
		} else {
			p.position = max(0, p.position-movement)
		}
	}

	if moving {
		p.lastTick = now
	} else {
		p.lastTick = time.Time{}
	}
	return int(p.position)
}

// StartTick stamps movement start when a move command is issued, so
// the first Advance measures from the command rather than the next
// poll.
func (p *PositionEstimator) StartTick() {
	p.mu.Lock()
	p.lastTick = p.nowFn()
	p.mu.Unlock()
}

// ClearTick drops the movement stamp. Called on stop commands and when
// verification reports the shutter idle.
func (p *PositionEstimator) ClearTick() {
	p.mu.Lock()
	p.lastTick = time.Time{}
	p.mu.Unlock()
}

// Position returns the current estimate without advancing it.
func (p *PositionEstimator) Position() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.position)
}

// IsClosed reports whether the shutter is fully closed. A moving
// shutter is never closed.
func (p *PositionEstimator) IsClosed(isOpening, isClosing bool) bool {
	if isOpening || isClosing {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position <= 0
}
