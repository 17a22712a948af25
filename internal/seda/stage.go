package seda

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/Iron-Ham/seda/internal/errors"
	"github.com/Iron-Ham/seda/internal/event"
	"github.com/Iron-Ham/seda/internal/logging"
	"github.com/Iron-Ham/seda/internal/scaling"
)

// Stage defaults and timing constants.
const (
	DefaultMinPoolSize       = 1
	DefaultMaxPoolSize       = 100
	DefaultMaxTolerableDelay = time.Second

	// MinAdjustInterval is the shortest time between two effective control
	// ticks of one stage.
	MinAdjustInterval = time.Second

	shutdownPollInterval = 10 * time.Millisecond
	shutdownPolls        = 500
	// shutdownDrainFactor bounds the queue length, relative to pool
	// throughput, for which Shutdown waits for a drain.
	shutdownDrainFactor = 100
)

// Status is the lifecycle state of a stage. It only ever moves forward.
type Status int32

const (
	Running Status = iota
	ShuttingDown
	Stopped
	Terminated
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case ShuttingDown:
		return "SHUTTING_DOWN"
	case Stopped:
		return "STOPPED"
	case Terminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// Processor handles the messages of one stage. Process is called by exactly
// one worker per message; a returned error or a panic turns the message into
// a ProcessError rejection.
type Processor[T Message] interface {
	Process(msg T, d *Dispatcher) error
}

// ProcessFunc adapts a function to Processor.
type ProcessFunc[T Message] func(msg T, d *Dispatcher) error

// Process calls f(msg, d).
func (f ProcessFunc[T]) Process(msg T, d *Dispatcher) error { return f(msg, d) }

// Constructor is optionally implemented by a Processor that needs to resolve
// downstream stages once every stage has been registered.
type Constructor interface {
	Construct(d *Dispatcher)
}

// Runner is the type-erased view of a stage held by a Dispatcher.
type Runner interface {
	Name() string
	Construct()
	AdjustThreadPool() int
	Shutdown()
	AwaitTermination(ctx context.Context) error
	InputSize() int
	Status() Status
	Stats() Stats

	// accept enqueues msg if it has the stage's element type.
	accept(msg Message) bool
}

// Stats is a point-in-time snapshot of a stage.
type Stats struct {
	Name        string
	Status      Status
	PoolSize    int
	MinPoolSize int
	MaxPoolSize int
	QueueSize   int
	ProcessRate float64
	LastAction  scaling.Action

	// Accepted counts messages enqueued by AddInput.
	Accepted int64
	// Processed counts messages Process handled without error.
	Processed int64
	// Failed counts messages turned into ProcessError rejections.
	Failed int64
	// Dropped counts messages shed as StageBusy rejections.
	Dropped int64
	// RejectsDiscarded counts reject messages shed without a further rejection.
	RejectsDiscarded int64
	// ShutdownRejected counts AddInput calls refused after Shutdown.
	ShutdownRejected int64
}

// Option configures a Stage.
type Option func(*stageOptions)

type stageOptions struct {
	minPool     int
	maxPool     int
	maxDelay    time.Duration
	queue       any
	logger      *logging.Logger
	bus         *event.Bus
	rejectRoute string
	clock       func() time.Time
}

// WithPoolSize bounds the worker pool. The pool starts at minSize workers.
func WithPoolSize(minSize, maxSize int) Option {
	return func(o *stageOptions) {
		o.minPool = minSize
		o.maxPool = maxSize
	}
}

// WithMaxTolerableDelay sets how long a message may wait in the queue before
// the stage considers itself overloaded. Shedding starts once the backlog
// would take twice this long to clear.
func WithMaxTolerableDelay(d time.Duration) Option {
	return func(o *stageOptions) { o.maxDelay = d }
}

// WithQueue replaces the default unbounded queue. q must be a Queue of the
// stage's element type.
func WithQueue(q any) Option {
	return func(o *stageOptions) { o.queue = q }
}

// WithLogger sets the stage logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *stageOptions) { o.logger = l }
}

// WithEventBus publishes stage lifecycle and control events on b.
func WithEventBus(b *event.Bus) Option {
	return func(o *stageOptions) { o.bus = b }
}

// WithRejectRoute changes the stage name rejections are dispatched to.
func WithRejectRoute(name string) Option {
	return func(o *stageOptions) { o.rejectRoute = name }
}

// WithClock replaces the time source used for control ticks.
func WithClock(now func() time.Time) Option {
	return func(o *stageOptions) { o.clock = now }
}

// Stage is a named unit of concurrent execution: an input queue, a pool of
// workers calling a Processor, and the controller that sizes the pool and
// sheds load.
type Stage[T Message] struct {
	name        string
	queue       Queue[T]
	dispatcher  *Dispatcher
	processor   Processor[T]
	minPool     int
	maxPool     int
	maxDelay    time.Duration
	rejectRoute string
	logger      *logging.Logger
	bus         *event.Bus
	now         func() time.Time

	// mu serializes pool changes, control ticks and termination.
	mu         sync.Mutex
	workers    []*worker
	nextWorker int
	controller *scaling.Controller
	lastAdjust time.Time

	wg            conc.WaitGroup
	constructOnce sync.Once
	waitOnce      sync.Once
	exited        chan struct{}

	status      atomic.Int32
	poolSize    atomic.Int32
	processRate atomic.Uint64 // float64 bits
	lastAction  atomic.Value  // scaling.Action

	exeCount  atomic.Int64
	exeMicros atomic.Int64

	accepted         atomic.Int64
	processed        atomic.Int64
	failed           atomic.Int64
	dropped          atomic.Int64
	rejectsDiscarded atomic.Int64
	shutdownRejected atomic.Int64
}

// NewStage creates a stage and starts its minimum number of workers.
// The stage is not registered; pass it to Dispatcher.Register.
func NewStage[T Message](name string, d *Dispatcher, p Processor[T], opts ...Option) (*Stage[T], error) {
	o := stageOptions{
		minPool:     DefaultMinPoolSize,
		maxPool:     DefaultMaxPoolSize,
		maxDelay:    DefaultMaxTolerableDelay,
		rejectRoute: RejectStageName,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	switch {
	case name == "":
		return nil, errors.NewValidationError("stage name cannot be empty").WithField("name")
	case d == nil:
		return nil, errors.NewValidationError("dispatcher is required").WithField("dispatcher")
	case p == nil:
		return nil, errors.NewValidationError("processor is required").WithField("processor")
	case o.minPool < 1:
		return nil, errors.NewValidationError("min pool size must be at least 1").
			WithField("minPoolSize").WithValue(o.minPool)
	case o.maxPool < o.minPool:
		return nil, errors.NewValidationError("max pool size must not be below min pool size").
			WithField("maxPoolSize").WithValue(o.maxPool)
	case o.maxDelay <= 0:
		return nil, errors.NewValidationError("max tolerable delay must be positive").
			WithField("maxTolerableDelay").WithValue(o.maxDelay)
	}

	var queue Queue[T]
	if o.queue == nil {
		queue = NewLinkedQueue[T]()
	} else {
		q, ok := o.queue.(Queue[T])
		if !ok {
			return nil, errors.NewValidationError("queue element type does not match stage").
				WithField("queue").WithValue(fmt.Sprintf("%T", o.queue))
		}
		queue = q
	}

	logger := o.logger
	if logger == nil {
		logger = d.logger
	}
	if o.clock == nil {
		o.clock = time.Now
	}

	s := &Stage[T]{
		name:        name,
		queue:       queue,
		dispatcher:  d,
		processor:   p,
		minPool:     o.minPool,
		maxPool:     o.maxPool,
		maxDelay:    o.maxDelay,
		rejectRoute: o.rejectRoute,
		logger:      logger.WithStage(name),
		bus:         o.bus,
		now:         o.clock,
		controller:  scaling.NewController(o.minPool, o.maxPool, o.maxDelay),
		exited:      make(chan struct{}),
	}
	s.processRate.Store(math.Float64bits(scaling.InitialProcessRate))
	s.lastAction.Store(scaling.ActionNone)

	s.mu.Lock()
	for s.PoolSize() < s.minPool {
		s.addWorkerLocked()
	}
	s.lastAdjust = s.now()
	s.mu.Unlock()

	return s, nil
}

// Name returns the stage name.
func (s *Stage[T]) Name() string { return s.name }

// Status returns the current lifecycle status.
func (s *Stage[T]) Status() Status { return Status(s.status.Load()) }

// PoolSize returns the current number of workers.
func (s *Stage[T]) PoolSize() int { return int(s.poolSize.Load()) }

// InputSize returns the number of queued messages.
func (s *Stage[T]) InputSize() int { return s.queue.Len() }

// ProcessRate returns the last measured per-worker rate in messages/ms.
func (s *Stage[T]) ProcessRate() float64 {
	return math.Float64frombits(s.processRate.Load())
}

// Dispatcher returns the dispatcher the stage routes through.
func (s *Stage[T]) Dispatcher() *Dispatcher { return s.dispatcher }

// AddInput enqueues msg. After Shutdown it is rejected as StageShutdown
// instead. It never blocks.
//
// The status check and the enqueue are not atomic with respect to Shutdown:
// a message added concurrently with Shutdown may land after the last worker
// has exited and then stays in the queue of the terminated stage, visible
// through InputSize.
func (s *Stage[T]) AddInput(msg T) {
	if s.Status() < ShuttingDown {
		s.queue.Put(msg)
		s.accepted.Add(1)
		return
	}
	s.shutdownRejected.Add(1)
	s.Reject(StageShutdown, s.name, msg)
}

func (s *Stage[T]) accept(msg Message) bool {
	m, ok := msg.(T)
	if !ok {
		return false
	}
	s.AddInput(m)
	return true
}

// Construct runs the processor's Construct hook once.
func (s *Stage[T]) Construct() {
	s.constructOnce.Do(func() {
		if c, ok := s.processor.(Constructor); ok {
			c.Construct(s.dispatcher)
		}
	})
}

// Reject dispatches a RejectMessage for msg to the stage's reject route.
// A reject message is never rejected again; it is logged and discarded.
func (s *Stage[T]) Reject(t RejectType, info any, msg Message) {
	if rm, ok := msg.(*RejectMessage); ok {
		s.logger.Warn("discarding rejected reject message",
			"reject_type", t.String(),
			"original_type", rm.Type().String(),
		)
		return
	}
	s.dispatcher.DispatchTo(s.rejectRoute, NewRejectMessage(t, info, msg))
}

// Shutdown stops the stage from accepting input. If the backlog is small
// compared to the pool's throughput it waits up to about five seconds for
// the queue to drain; in either case it then interrupts idle workers.
// In-flight Process calls are not aborted and termination completes
// asynchronously; use AwaitTermination to wait for it.
func (s *Stage[T]) Shutdown() {
	if !s.advance(ShuttingDown) {
		return
	}
	s.logger.Info("stage shutting down", "queue", s.queue.Len(), "pool", s.PoolSize())

	if float64(s.queue.Len()) <= shutdownDrainFactor*s.ProcessRate()*float64(s.PoolSize()) {
		for i := 0; i < shutdownPolls && s.queue.Len() > 0; i++ {
			time.Sleep(shutdownPollInterval)
		}
	}

	s.mu.Lock()
	workers := make([]*worker, len(s.workers))
	copy(workers, s.workers)
	s.mu.Unlock()

	for _, w := range workers {
		w.cancel()
	}
}

// AwaitTermination blocks until every worker goroutine has exited or ctx ends.
// Concurrent and repeated calls share a single waiter.
func (s *Stage[T]) AwaitTermination(ctx context.Context) error {
	s.waitOnce.Do(func() {
		go func() {
			s.wg.Wait()
			close(s.exited)
		}()
	})
	select {
	case <-s.exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the stage without taking its lock.
func (s *Stage[T]) Stats() Stats {
	action, _ := s.lastAction.Load().(scaling.Action)
	return Stats{
		Name:             s.name,
		Status:           s.Status(),
		PoolSize:         s.PoolSize(),
		MinPoolSize:      s.minPool,
		MaxPoolSize:      s.maxPool,
		QueueSize:        s.queue.Len(),
		ProcessRate:      s.ProcessRate(),
		LastAction:       action,
		Accepted:         s.accepted.Load(),
		Processed:        s.processed.Load(),
		Failed:           s.failed.Load(),
		Dropped:          s.dropped.Load(),
		RejectsDiscarded: s.rejectsDiscarded.Load(),
		ShutdownRejected: s.shutdownRejected.Load(),
	}
}

// advance moves the status forward to to. It reports false if the stage is
// already at or past to.
func (s *Stage[T]) advance(to Status) bool {
	for {
		from := s.Status()
		if from >= to {
			return false
		}
		if s.status.CompareAndSwap(int32(from), int32(to)) {
			if s.bus.HasSubscribers(event.TypeStageStatus) {
				s.bus.Publish(event.NewStageStatusEvent(s.name, from.String(), to.String()))
			}
			return true
		}
	}
}
