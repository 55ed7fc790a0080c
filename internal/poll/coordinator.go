package poll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/domo-bridge/internal/domo"
	"github.com/nerrad567/domo-bridge/internal/element"
)

// ErrCycleFailed indicates a poll cycle could not fetch the bulk
// status document. Previously published states remain available but
// stale.
var ErrCycleFailed = errors.New("poll: cycle failed")

// DefaultInterval matches the panel's comfortable polling rate.
const DefaultInterval = 30 * time.Second

// Phase identifies where the coordinator is within its cycle.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseFetching  Phase = "fetching"
	PhaseDecoding  Phase = "decoding"
	PhasePublished Phase = "published"
	PhaseFailed    Phase = "failed"
)

// StatusFetcher is the slice of the panel client the coordinator needs.
type StatusFetcher interface {
	FetchAllStatuses(ctx context.Context) (*domo.Document, error)
}

// DecodeFunc turns one element's raw snapshot into typed state.
type DecodeFunc func(class element.Class, snap element.Snapshot) (element.State, error)

// Logger is the logging interface the coordinator needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds coordinator dependencies.
type Config struct {
	// Fetcher retrieves the bulk status document.
	Fetcher StatusFetcher

	// Store receives the decoded states. Required.
	Store *Store

	// Interval is the poll cycle period. Default: 30 seconds.
	Interval time.Duration

	// Decode overrides the element decoder. Default: element.Decode.
	Decode DecodeFunc

	// Logger is optional.
	Logger Logger

	// OnPublish is invoked after every successful cycle with the
	// freshly decoded states. Optional.
	OnPublish func(states map[string]element.State)

	// OnCycleError is invoked when a cycle fails. Optional.
	OnCycleError func(err error)
}

// Status is a point-in-time view of the coordinator for health
// reporting.
type Status struct {
	Phase       Phase     `json:"phase"`
	Cycles      uint64    `json:"cycles"`
	Failures    uint64    `json:"failures"`
	LastSuccess time.Time `json:"last_success"`
	LastError   string    `json:"last_error,omitempty"`
}

// Coordinator runs the periodic status cycle.
//
// One cycle is in flight at a time. Manual refreshes are coalesced
// into at most one pending follow-up cycle.
type Coordinator struct {
	fetcher  StatusFetcher
	store    *Store
	interval time.Duration
	decode   DecodeFunc
	logger   Logger

	onPublish    func(map[string]element.State)
	onCycleError func(error)

	catalogMu sync.RWMutex
	catalog   element.Catalog

	statusMu    sync.RWMutex
	phase       Phase
	lastError   string
	lastSuccess time.Time
	cycles      uint64
	failures    uint64

	refreshCh chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

// NewCoordinator creates a coordinator. Call SetCatalog with the
// discovery result before the first cycle, then Start.
func NewCoordinator(cfg Config) *Coordinator {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	decode := cfg.Decode
	if decode == nil {
		decode = element.Decode
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Coordinator{
		fetcher:      cfg.Fetcher,
		store:        cfg.Store,
		interval:     interval,
		decode:       decode,
		logger:       logger,
		onPublish:    cfg.OnPublish,
		onCycleError: cfg.OnCycleError,
		catalog:      element.Catalog{},
		phase:        PhaseIdle,
		refreshCh:    make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

// SetCatalog replaces the element catalog used to route snapshots to
// decoders. Called after discovery and re-discovery.
func (c *Coordinator) SetCatalog(catalog element.Catalog) {
	c.catalogMu.Lock()
	c.catalog = catalog
	c.catalogMu.Unlock()
}

// Start begins periodic polling. The first cycle runs immediately.
// Call Stop to shut down.
func (c *Coordinator) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.run(ctx)
}

// Stop halts the poll loop. Safe to call multiple times.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
	})
}

// Refresh requests an immediate cycle. Requests arriving while a cycle
// is already queued or running collapse into one.
func (c *Coordinator) Refresh() {
	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

// Status returns a snapshot of the coordinator's cycle counters.
func (c *Coordinator) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()

	return Status{
		Phase:       c.phase,
		Cycles:      c.cycles,
		Failures:    c.failures,
		LastSuccess: c.lastSuccess,
		LastError:   c.lastError,
	}
}

// run is the poll loop.
func (c *Coordinator) run(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	if err := c.RunCycle(ctx); err != nil {
		c.logger.Error("initial poll cycle failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.cycle(ctx)
		case <-c.refreshCh:
			c.cycle(ctx)
			// Push the next timed cycle a full interval out
			ticker.Reset(c.interval)
		}
	}
}

// cycle runs one cycle and routes the error to the callback.
func (c *Coordinator) cycle(ctx context.Context) {
	if err := c.RunCycle(ctx); err != nil {
		c.logger.Error("poll cycle failed", "error", err)
		if c.onCycleError != nil {
			c.onCycleError(err)
		}
	}
}

// RunCycle executes a single fetch-decode-publish pass.
//
// A bulk fetch failure returns an error wrapping ErrCycleFailed, marks
// the store stale and leaves its contents untouched. Decode failures
// drop only the affected element.
func (c *Coordinator) RunCycle(ctx context.Context) error {
	c.setPhase(PhaseFetching)

	doc, err := c.fetcher.FetchAllStatuses(ctx)
	if err != nil {
		c.recordFailure(err)
		return fmt.Errorf("%w: fetching statuses: %w", ErrCycleFailed, err)
	}

	c.setPhase(PhaseDecoding)

	c.catalogMu.RLock()
	catalog := c.catalog
	c.catalogMu.RUnlock()

	snapshots := doc.StatusSnapshots()
	states := make(map[string]element.State, len(snapshots))
	for id, snap := range snapshots {
		info, ok := catalog[id]
		if !ok {
			continue
		}
		if !element.HasDecoder(info.Class) {
			continue
		}

		state, decodeErr := c.decode(info.Class, snap)
		if decodeErr != nil {
			c.logger.Error("decoding element failed",
				"element_id", id, "class", string(info.Class), "error", decodeErr)
			continue
		}
		states[id] = state
	}

	c.store.ReplaceAll(states)
	c.recordSuccess()

	c.logger.Debug("poll cycle published",
		"elements", len(states), "snapshots", len(snapshots))

	if c.onPublish != nil {
		c.onPublish(states)
	}
	return nil
}

func (c *Coordinator) setPhase(phase Phase) {
	c.statusMu.Lock()
	c.phase = phase
	c.statusMu.Unlock()
}

func (c *Coordinator) recordSuccess() {
	c.statusMu.Lock()
	c.phase = PhasePublished
	c.cycles++
	c.lastSuccess = time.Now().UTC()
	c.lastError = ""
	c.statusMu.Unlock()
}

func (c *Coordinator) recordFailure(err error) {
	c.store.MarkStale()

	c.statusMu.Lock()
	c.phase = PhaseFailed
	c.cycles++
	c.failures++
	c.lastError = err.Error()
	c.statusMu.Unlock()
}
