package flow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/UniversalShopper/ShopperChat/internal/models"
)

// Default polling cadence for active checkout processes.
const (
	DefaultPollInterval = 3 * time.Second
	DefaultMaxAttempts  = 100
)

// ProcessFetcher is the slice of the backend client the poller needs.
type ProcessFetcher interface {
	GetProcess(ctx context.Context, processID string) (*models.Process, error)
}

// PollSink receives poll outcomes. Callbacks run on the timer goroutine with
// no poller lock held; implementations must call Live with the supplied
// generation before acting on a result, so that results from fetches already
// in flight when polling stopped are discarded.
type PollSink interface {
	// PollResult delivers one fetch outcome. Exactly one of proc and err is
	// meaningful.
	PollResult(ctx context.Context, gen uint64, processID string, proc *models.Process, err error)
	// PollTimeout fires once when the attempt ceiling is exceeded.
	PollTimeout(ctx context.Context, gen uint64, processID string)
}

// PollerOpts holds configurable poller fields.
type PollerOpts struct {
	Interval    time.Duration
	MaxAttempts int
	Timer       Timer
}

// PollerOption configures a Poller.
type PollerOption func(*PollerOpts)

// WithPollInterval overrides the delay between status fetches.
func WithPollInterval(d time.Duration) PollerOption {
	return func(o *PollerOpts) { o.Interval = d }
}

// WithMaxAttempts overrides the poll attempt ceiling.
func WithMaxAttempts(n int) PollerOption {
	return func(o *PollerOpts) { o.MaxAttempts = n }
}

// WithTimer overrides the timer used to schedule polls.
func WithTimer(t Timer) PollerOption {
	return func(o *PollerOpts) { o.Timer = t }
}

// Poller periodically fetches one process's status and feeds the results to
// a PollSink. At most one poll cycle is live at a time: Start while live is
// a no-op, and Stop invalidates the current generation so late results are
// discarded by the sink.
type Poller struct {
	api         ProcessFetcher
	sink        PollSink
	timer       Timer
	interval    time.Duration
	maxAttempts int

	mu         sync.Mutex
	ctx        context.Context
	processID  string
	timerID    string
	attempts   int
	generation uint64
}

// NewPoller creates a poller over the given fetcher and sink.
func NewPoller(api ProcessFetcher, sink PollSink, opts ...PollerOption) *Poller {
	cfg := PollerOpts{
		Interval:    DefaultPollInterval,
		MaxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Timer == nil {
		cfg.Timer = NewSimpleTimer()
	}
	slog.Debug("Creating Poller", "interval", cfg.Interval, "maxAttempts", cfg.MaxAttempts)
	return &Poller{
		api:         api,
		sink:        sink,
		timer:       cfg.Timer,
		interval:    cfg.Interval,
		maxAttempts: cfg.MaxAttempts,
	}
}

// Start begins polling processID. If a cycle is already live the call is a
// no-op; the caller resets state via Stop first when switching processes.
func (p *Poller) Start(ctx context.Context, processID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timerID != "" {
		slog.Debug("Poller already live, ignoring start", "processID", processID, "current", p.processID)
		return
	}

	p.generation++
	p.ctx = ctx
	p.processID = processID
	p.attempts = 0
	gen := p.generation

	id, err := p.timer.ScheduleAfter(p.interval, func() { p.tick(gen) })
	if err != nil {
		slog.Error("Poller failed to schedule first poll", "error", err, "processID", processID)
		return
	}
	p.timerID = id
	slog.Debug("Poller started", "processID", processID, "generation", gen)
}

// Stop halts polling and bumps the generation so that any fetch already in
// flight is discarded by the sink. Stop is idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.generation++
	p.attempts = 0
	if p.timerID == "" {
		return
	}
	if err := p.timer.Cancel(p.timerID); err != nil {
		slog.Error("Poller failed to cancel timer", "error", err, "timerID", p.timerID)
	}
	p.timerID = ""
	slog.Debug("Poller stopped", "processID", p.processID, "generation", p.generation)
}

// Live reports whether gen is still the current polling generation. Sinks
// call this under their own lock before mutating state from a poll result.
func (p *Poller) Live(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timerID != "" && gen == p.generation
}

// Active reports whether a poll cycle is currently live.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timerID != ""
}

// Attempts returns the number of polls performed in the current cycle.
func (p *Poller) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// tick runs one poll: bump the attempt counter, fetch the process with no
// lock held, hand the result to the sink, then schedule the next poll if the
// cycle is still live.
func (p *Poller) tick(gen uint64) {
	p.mu.Lock()
	if gen != p.generation || p.timerID == "" {
		p.mu.Unlock()
		slog.Debug("Poller discarding stale tick", "generation", gen)
		return
	}
	p.attempts++
	attempt := p.attempts
	processID := p.processID
	ctx := p.ctx
	p.mu.Unlock()

	if attempt > p.maxAttempts {
		slog.Warn("Poller attempt ceiling reached", "processID", processID, "attempts", attempt)
		p.sink.PollTimeout(ctx, gen, processID)
		return
	}

	proc, err := p.api.GetProcess(ctx, processID)
	if err != nil {
		slog.Debug("Poller fetch failed", "error", err, "processID", processID, "attempt", attempt)
	}
	p.sink.PollResult(ctx, gen, processID, proc, err)

	p.scheduleNext(gen)
}

// scheduleNext arms the next poll unless the cycle was stopped while the
// sink handled the previous result.
func (p *Poller) scheduleNext(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.generation || p.timerID == "" {
		slog.Debug("Poller cycle ended, not rescheduling", "generation", gen)
		return
	}
	id, err := p.timer.ScheduleAfter(p.interval, func() { p.tick(gen) })
	if err != nil {
		slog.Error("Poller failed to schedule next poll", "error", err, "processID", p.processID)
		return
	}
	p.timerID = id
}
