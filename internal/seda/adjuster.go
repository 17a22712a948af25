package seda

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/seda/internal/logging"
)

// DefaultAdjustInterval is the tick period of an Adjuster created with a
// non-positive interval.
const DefaultAdjustInterval = time.Second

// Adjustable is anything an Adjuster can tick.
type Adjustable interface {
	Name() string
	AdjustThreadPool() int
}

// Adjuster periodically runs the control tick of every attached stage from
// a single goroutine.
type Adjuster struct {
	mu       sync.Mutex
	stages   []Adjustable
	interval atomic.Int64 // nanoseconds
	logger   *logging.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewAdjuster creates a stopped Adjuster. A nil logger discards output.
func NewAdjuster(interval time.Duration, logger *logging.Logger) *Adjuster {
	if logger == nil {
		logger = logging.NopLogger()
	}
	a := &Adjuster{logger: logger.With("component", "adjuster")}
	a.SetInterval(interval)
	return a
}

// AddStage attaches s. It is safe to call before or after Start.
func (a *Adjuster) AddStage(s Adjustable) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stages = append(a.stages, s)
}

// SetInterval changes the tick period from the next tick on. Non-positive
// values select DefaultAdjustInterval.
func (a *Adjuster) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultAdjustInterval
	}
	a.interval.Store(int64(d))
}

// Interval returns the tick period.
func (a *Adjuster) Interval() time.Duration {
	return time.Duration(a.interval.Load())
}

// Running reports whether the tick goroutine is active.
func (a *Adjuster) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancel != nil
}

// Start launches the tick goroutine. It is a no-op if already running.
func (a *Adjuster) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.loop(ctx, a.done)
}

// Stop ends the tick goroutine and waits for it. It is a no-op if not running.
func (a *Adjuster) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Adjust ticks every attached stage once. A panicking stage is logged and
// does not stop the others.
func (a *Adjuster) Adjust() {
	a.mu.Lock()
	stages := make([]Adjustable, len(a.stages))
	copy(stages, a.stages)
	a.mu.Unlock()

	for _, s := range stages {
		if r := panics.Try(func() { s.AdjustThreadPool() }); r != nil {
			a.logger.Warn("stage adjustment panicked",
				"stage", s.Name(),
				"panic", r.Value,
				"stack", string(r.Stack),
			)
		}
	}
}

func (a *Adjuster) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		start := time.Now()
		a.Adjust()

		// An overrun tick starts the next one immediately.
		timer := time.NewTimer(max(a.Interval()-time.Since(start), 0))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
