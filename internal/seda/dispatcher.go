package seda

import (
	"sort"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/seda/internal/errors"
	"github.com/Iron-Ham/seda/internal/logging"
)

// Dispatcher is a registry of named stages and routes messages to them.
// A process may hold any number of dispatchers; each stage belongs to one.
type Dispatcher struct {
	mu       sync.RWMutex
	stages   map[string]Runner
	adjuster *Adjuster
	logger   *logging.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger used by the dispatcher, its adjuster,
// and stages that are not given their own logger.
func WithDispatcherLogger(l *logging.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		stages: make(map[string]Runner),
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register stores r under its name and returns the stage previously
// registered under that name, or nil.
func (d *Dispatcher) Register(r Runner) Runner {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev := d.stages[r.Name()]
	d.stages[r.Name()] = r
	if prev != nil {
		d.logger.Warn("stage replaced", "stage", r.Name())
	}
	return prev
}

// GetStage returns the stage registered under name, or nil.
func (d *Dispatcher) GetStage(name string) Runner {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stages[name]
}

// Lookup returns the stage registered under name if it accepts messages of
// type T.
func Lookup[T Message](d *Dispatcher, name string) (*Stage[T], bool) {
	s, ok := d.GetStage(name).(*Stage[T])
	return s, ok
}

// MustLookup is like Lookup but returns an error naming what went wrong.
func MustLookup[T Message](d *Dispatcher, name string) (*Stage[T], error) {
	r := d.GetStage(name)
	if r == nil {
		return nil, errors.NewNotFoundError("stage", name)
	}
	s, ok := r.(*Stage[T])
	if !ok {
		return nil, errors.Wrapf(errors.ErrMessageType, "stage %s", name)
	}
	return s, nil
}

// Construction calls Construct on every registered stage. Run it once after
// all stages are registered and before the first dispatch.
func (d *Dispatcher) Construction() {
	for _, s := range d.Stages() {
		s.Construct()
	}
}

// Dispatch routes msg to the stage named by its type (see TypeName).
func (d *Dispatcher) Dispatch(msg Message) bool {
	return d.DispatchTo(TypeName(msg), msg)
}

// DispatchTo hands msg to the stage registered under name. It returns false
// with no other effect when no stage is registered there, and false with a
// warning when the stage does not accept msg's type.
func (d *Dispatcher) DispatchTo(name string, msg Message) bool {
	r := d.GetStage(name)
	if r == nil {
		return false
	}
	if !r.accept(msg) {
		d.logger.Warn("message type not accepted by stage",
			"stage", name,
			"message_type", TypeName(msg),
		)
		return false
	}
	return true
}

// Shutdown shuts down every stage, then stops the adjuster.
func (d *Dispatcher) Shutdown() {
	for _, s := range d.Stages() {
		s.Shutdown()
	}

	d.mu.Lock()
	adj := d.adjuster
	d.mu.Unlock()
	if adj != nil {
		adj.Stop()
	}
}

// StartAdjust starts periodic control ticks for every stage registered so
// far. Stages registered later are not adjusted unless added to Adjuster()
// explicitly.
func (d *Dispatcher) StartAdjust(interval time.Duration) {
	d.mu.Lock()
	if d.adjuster == nil {
		d.adjuster = NewAdjuster(interval, d.logger)
	}
	adj := d.adjuster
	stages := d.sortedLocked()
	d.mu.Unlock()

	for _, s := range stages {
		adj.AddStage(s)
	}
	adj.SetInterval(interval)
	adj.Start()
}

// Adjuster returns the dispatcher's adjuster, or nil before StartAdjust.
func (d *Dispatcher) Adjuster() *Adjuster {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.adjuster
}

// Stages returns all registered stages sorted by name.
func (d *Dispatcher) Stages() []Runner {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sortedLocked()
}

// Select returns the registered stages whose names match a glob pattern,
// sorted by name.
func (d *Dispatcher) Select(pattern string) ([]Runner, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, errors.NewValidationError("invalid stage pattern").
			WithField("pattern").WithValue(pattern)
	}
	var out []Runner
	for _, s := range d.Stages() {
		if g.Match(s.Name()) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Clear unregisters every stage. It does not shut them down.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.stages)
}

// Stats returns a snapshot of every registered stage, sorted by name.
func (d *Dispatcher) Stats() []Stats {
	stages := d.Stages()
	out := make([]Stats, len(stages))
	for i, s := range stages {
		out[i] = s.Stats()
	}
	return out
}

func (d *Dispatcher) sortedLocked() []Runner {
	out := make([]Runner, 0, len(d.stages))
	for _, s := range d.stages {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
