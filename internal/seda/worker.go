package seda

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/seda/internal/errors"
	"github.com/Iron-Ham/seda/internal/event"
	"github.com/Iron-Ham/seda/internal/logging"
)

// worker is one goroutine of a stage's pool.
type worker struct {
	name    string
	working atomic.Bool
	ctx     context.Context
	// cancel interrupts a blocking Take.
	cancel context.CancelFunc
}

// addWorkerLocked starts a new worker. Callers hold s.mu.
func (s *Stage[T]) addWorkerLocked() {
	s.nextWorker++
	ctx, cancel := context.WithCancel(context.Background())
	w := &worker{
		name:   fmt.Sprintf("%s-%d", s.name, s.nextWorker),
		ctx:    ctx,
		cancel: cancel,
	}
	w.working.Store(true)

	s.workers = append(s.workers, w)
	from := int(s.poolSize.Add(1)) - 1
	s.wg.Go(func() { s.work(w) })

	s.logger.Debug("worker started", "worker", w.name, "pool", from+1)
	if s.bus.HasSubscribers(event.TypePoolResized) {
		s.bus.Publish(event.NewPoolResizedEvent(s.name, w.name, from, from+1))
	}
}

// removeWorkerLocked retires the oldest worker. A busy worker finishes its
// current message first. Callers hold s.mu.
func (s *Stage[T]) removeWorkerLocked() {
	if len(s.workers) == 0 {
		s.logger.Warn("no worker left to remove", "pool", s.PoolSize())
		return
	}
	w := s.workers[0]
	s.workers[0] = nil
	s.workers = s.workers[1:]

	w.working.Store(false)
	w.cancel()
	from := int(s.poolSize.Add(-1)) + 1

	s.logger.Debug("worker retired", "worker", w.name, "pool", from-1)
	if s.bus.HasSubscribers(event.TypePoolResized) {
		s.bus.Publish(event.NewPoolResizedEvent(s.name, w.name, from, from-1))
	}
}

// work is the worker loop. It exits when the worker is retired, when the
// stage stops, or when the queue is empty during shutdown.
func (s *Stage[T]) work(w *worker) {
	defer w.cancel()
	log := s.logger.WithWorker(w.name)

	for s.Status() < Stopped && w.working.Load() {
		msg, ok, err := s.take(w)
		if err != nil {
			// Interrupted; the loop condition decides whether to go on.
			continue
		}
		if !ok {
			break
		}
		s.handle(w, log, msg)
	}

	if s.Status() == ShuttingDown {
		s.tryTerminate()
	}
}

// take waits for a message while running and polls once shutting down.
func (s *Stage[T]) take(w *worker) (T, bool, error) {
	var zero T
	switch s.Status() {
	case Running:
		msg, err := s.queue.Take(w.ctx)
		if err != nil {
			return zero, false, err
		}
		return msg, true, nil
	case ShuttingDown:
		msg, ok := s.queue.Poll()
		return msg, ok, nil
	default:
		return zero, false, nil
	}
}

// handle runs Process for one message and converts any failure into a
// ProcessError rejection.
func (s *Stage[T]) handle(w *worker, log *logging.Logger, msg T) {
	start := time.Now()
	var err error
	recovered := panics.Try(func() {
		err = s.processor.Process(msg, s.dispatcher)
	})

	if recovered == nil && err == nil {
		s.exeCount.Add(1)
		s.exeMicros.Add(time.Since(start).Microseconds())
		s.processed.Add(1)
		return
	}

	var perr *errors.ProcessError
	if recovered != nil {
		perr = errors.NewPanicError(s.name, recovered.Value, recovered.Stack)
	} else {
		perr = errors.NewProcessError(s.name, err)
	}
	s.failed.Add(1)

	log.Error("process failed",
		"error", perr.Unwrap(),
		"message_type", TypeName(msg),
		"panicked", perr.Panicked(),
	)
	if s.bus.HasSubscribers(event.TypeProcessFailed) {
		s.bus.Publish(event.NewProcessFailedEvent(s.name, w.name, perr, perr.Panicked()))
	}
	s.Reject(ProcessError, perr, msg)
}

// tryTerminate marks the stage terminated once its queue is empty.
func (s *Stage[T]) tryTerminate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queue.Len() != 0 {
		return
	}
	if s.advance(Terminated) {
		// Workers still idle in Take would otherwise never wake up.
		for _, w := range s.workers {
			w.cancel()
		}
		s.poolSize.Store(0)
		clear(s.workers)
		s.workers = nil
		s.logger.Info("stage terminated",
			"processed", s.processed.Load(),
			"failed", s.failed.Load(),
			"dropped", s.dropped.Load(),
		)
	}
}
