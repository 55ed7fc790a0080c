package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/domo-bridge/internal/domo"
	"github.com/nerrad567/domo-bridge/internal/element"
	"github.com/nerrad567/domo-bridge/internal/poll"
)

const (
	// DefaultVerifyDelay gives the panel time to apply a command
	// before the bridge reads the element back.
	DefaultVerifyDelay = 1500 * time.Millisecond

	// DefaultHoldWindow is how long optimistic values override poll
	// data after a command.
	DefaultHoldWindow = 5 * time.Second
)

// StatusFetcher is the slice of the panel client the tracker needs.
type StatusFetcher interface {
	FetchSingleStatus(ctx context.Context, elementID string) (*domo.Document, error)
}

// DecodeFunc turns one element's raw snapshot into typed state.
type DecodeFunc func(class element.Class, snap element.Snapshot) (element.State, error)

// Logger is the logging interface the tracker needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds tracker dependencies.
type Config struct {
	// Fetcher reads single-element status documents. Required.
	Fetcher StatusFetcher

	// Store receives verified state fragments. Required.
	Store *poll.Store

	// VerifyDelay is the wait before reading back. Default: 1.5s.
	VerifyDelay time.Duration

	// HoldWindow is the optimistic override period. Default: 5s.
	HoldWindow time.Duration

	// Decode overrides the element decoder. Default: element.Decode.
	Decode DecodeFunc

	// Logger is optional.
	Logger Logger

	// OnVerified is invoked with the merged element state after each
	// completed verification. Optional.
	OnVerified func(elementID string, state element.State)
}

// pendingVerify identifies one in-flight verification.
type pendingVerify struct {
	token  uint64
	cancel context.CancelFunc
}

// holdEntry is an element's optimistic fragment and its expiry.
type holdEntry struct {
	fragment element.State
	expires  time.Time
}

// Tracker verifies optimistic command effects against the panel.
//
// All methods are safe for concurrent use.
type Tracker struct {
	fetcher     StatusFetcher
	store       *poll.Store
	verifyDelay time.Duration
	holdWindow  time.Duration
	decode      DecodeFunc
	logger      Logger
	onVerified  func(string, element.State)

	mu        sync.Mutex
	nextToken uint64
	pending   map[string]pendingVerify
	holds     map[string]holdEntry

	nowFn func() time.Time

	wg sync.WaitGroup
}

// NewTracker creates a tracker. Call Close during shutdown to drain
// in-flight verifications.
func NewTracker(cfg Config) *Tracker {
	verifyDelay := cfg.VerifyDelay
	if verifyDelay <= 0 {
		verifyDelay = DefaultVerifyDelay
	}
	holdWindow := cfg.HoldWindow
	if holdWindow <= 0 {
		holdWindow = DefaultHoldWindow
	}
	decode := cfg.Decode
	if decode == nil {
		decode = element.Decode
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Tracker{
		fetcher:     cfg.Fetcher,
		store:       cfg.Store,
		verifyDelay: verifyDelay,
		holdWindow:  holdWindow,
		decode:      decode,
		logger:      logger,
		onVerified:  cfg.OnVerified,
		pending:     map[string]pendingVerify{},
		holds:       map[string]holdEntry{},
		nowFn:       time.Now,
	}
}

// Predict merges an optimistic fragment into the element's published
// state and returns the merged result for immediate publishing.
func (t *Tracker) Predict(elementID string, fragment element.State) element.State {
	return t.store.MergeElement(elementID, fragment)
}

// Hold records an optimistic fragment that overrides poll data for
// this element until the hold window expires.
func (t *Tracker) Hold(elementID string, fragment element.State) {
	t.mu.Lock()
	t.holds[elementID] = holdEntry{
		fragment: fragment.DeepCopy(),
		expires:  t.nowFn().Add(t.holdWindow),
	}
	t.mu.Unlock()
}

// Overlay applies any active hold fragment over a polled state.
// Expired holds are dropped on first touch.
func (t *Tracker) Overlay(elementID string, state element.State) element.State {
	t.mu.Lock()
	defer t.mu.Unlock()

	hold, ok := t.holds[elementID]
	if !ok {
		return state
	}
	if t.nowFn().After(hold.expires) {
		delete(t.holds, elementID)
		return state
	}
	return state.Merge(hold.fragment)
}

// Held reports whether the element is inside an active hold window.
func (t *Tracker) Held(elementID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	hold, ok := t.holds[elementID]
	if !ok {
		return false
	}
	if t.nowFn().After(hold.expires) {
		delete(t.holds, elementID)
		return false
	}
	return true
}

// ScheduleVerify queues a delayed read-back for the element. Any
// verification already pending for the same element is superseded.
func (t *Tracker) ScheduleVerify(ctx context.Context, elementID string, class element.Class) {
	vctx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	if prev, ok := t.pending[elementID]; ok {
		prev.cancel()
	}
	t.nextToken++
	token := t.nextToken
	t.pending[elementID] = pendingVerify{token: token, cancel: cancel}
	t.mu.Unlock()

	t.wg.Add(1)
	go t.verify(vctx, elementID, class, token)
}

// Close cancels all pending verifications and waits for their
// goroutines to finish.
func (t *Tracker) Close() {
	t.mu.Lock()
	for _, p := range t.pending {
		p.cancel()
	}
	t.pending = map[string]pendingVerify{}
	t.mu.Unlock()

	t.wg.Wait()
}

// verify waits out the delay, reads the element back and merges the
// authoritative fragment over the published state.
func (t *Tracker) verify(ctx context.Context, elementID string, class element.Class, token uint64) {
	defer t.wg.Done()

	timer := time.NewTimer(t.verifyDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	doc, err := t.fetcher.FetchSingleStatus(ctx, elementID)
	if err != nil {
		t.logger.Error("verification fetch failed", "element_id", elementID, "error", err)
		t.release(elementID, token)
		return
	}

	verified, err := t.decode(class, doc.Snapshot())
	if err != nil {
		t.logger.Error("verification decode failed",
			"element_id", elementID, "class", string(class), "error", err)
		t.release(elementID, token)
		return
	}

	// A newer command may have superseded us while the fetch was in
	// flight; its verification owns the element now.
	if !t.release(elementID, token) {
		return
	}

	merged := t.store.MergeElement(elementID, verified)
	t.refreshHold(elementID, verified)

	t.logger.Debug("verification merged", "element_id", elementID)
	if t.onVerified != nil {
		t.onVerified(elementID, merged)
	}
}

// release removes the pending entry if this verification still owns
// it. Returns false when a newer verification has taken over.
func (t *Tracker) release(elementID string, token uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.pending[elementID]
	if !ok || current.token != token {
		return false
	}
	delete(t.pending, elementID)
	return true
}

// refreshHold folds verified values into an active hold so the
// remainder of the window serves panel truth instead of the original
// guess.
func (t *Tracker) refreshHold(elementID string, verified element.State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	hold, ok := t.holds[elementID]
	if !ok || t.nowFn().After(hold.expires) {
		return
	}
	hold.fragment = hold.fragment.Merge(verified)
	t.holds[elementID] = hold
}
