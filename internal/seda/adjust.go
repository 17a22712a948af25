package seda

import (
	"math"
	"time"

	"github.com/Iron-Ham/seda/internal/event"
	"github.com/Iron-Ham/seda/internal/logging"
	"github.com/Iron-Ham/seda/internal/scaling"
)

// AdjustThreadPool runs one control tick: it estimates the input and
// process rates since the previous tick, sheds queued messages if the
// backlog cannot be cleared within twice the tolerable delay, and grows or
// shrinks the pool. It does nothing when called within MinAdjustInterval of
// the previous tick or once the stage is shutting down. It returns the pool
// size after the tick.
func (s *Stage[T]) AdjustThreadPool() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastAdjust) < MinAdjustInterval || s.Status() > Running {
		return s.PoolSize()
	}

	processed := s.exeCount.Swap(0)
	micros := s.exeMicros.Swap(0)
	elapsed := now.Sub(s.lastAdjust)
	s.lastAdjust = now

	queueSize := s.queue.Len()
	pool := s.PoolSize()

	est := s.controller.Estimate(scaling.Sample{
		QueueSize:   queueSize,
		Processed:   processed,
		ProcessTime: time.Duration(micros) * time.Microsecond,
		Elapsed:     elapsed,
	}, pool)
	s.processRate.Store(math.Float64bits(est.ProcessRate))

	dropped := 0
	if est.Overloaded {
		dropped = s.DropMessages(est.KeepCount)
		s.logger.Info("too many messages queued", "queue", queueSize, "max", est.MaxQueueSize, "dropped", dropped)
	}

	if s.logger.Enabled(logging.LevelDebug) {
		s.logger.Debug("stage rates",
			"input", est.InputRate,
			"consume", est.ConsumeRate,
			"process", est.ProcessRate,
			"pool", pool,
			"queue", queueSize,
		)
	}

	decision := s.controller.Decide(est, queueSize, dropped, pool)
	switch {
	case decision.Delta > 0:
		for range decision.Delta {
			s.addWorkerLocked()
		}
	case decision.Delta < 0:
		for range -decision.Delta {
			s.removeWorkerLocked()
		}
	}
	s.lastAction.Store(decision.Action)

	if s.bus.HasSubscribers(event.TypeStageAdjusted) {
		e := event.NewStageAdjustedEvent(s.name)
		e.InputRate = est.InputRate
		e.ConsumeRate = est.ConsumeRate
		e.ProcessRate = est.ProcessRate
		e.Load = decision.Load
		e.QueueSize = queueSize
		e.Dropped = dropped
		e.PoolBefore = pool
		e.PoolAfter = s.PoolSize()
		e.Action = decision.Action.String()
		e.Reason = decision.Reason
		s.bus.Publish(e)
	}

	return s.PoolSize()
}

// DropMessages removes messages from the head of the queue until keep
// remain. Reject messages are discarded; every other message is rejected as
// StageBusy. It returns the number of messages removed, which is lower than
// requested if the queue drained concurrently.
func (s *Stage[T]) DropMessages(keep int) int {
	want := s.queue.Len() - keep
	if want <= 0 {
		return 0
	}

	removed, rejects := 0, 0
	for range want {
		msg, ok := s.queue.Poll()
		if !ok {
			break
		}
		removed++
		if _, isReject := any(msg).(*RejectMessage); isReject {
			rejects++
			continue
		}
		s.Reject(StageBusy, s, msg)
	}
	if removed == 0 {
		return 0
	}

	s.dropped.Add(int64(removed - rejects))
	s.rejectsDiscarded.Add(int64(rejects))

	s.logger.Warn("messages dropped", "count", removed, "queue", s.queue.Len())
	if rejects > 0 {
		s.logger.Warn("reject messages dropped, the reject handler cannot keep up", "count", rejects)
	}
	if s.bus.HasSubscribers(event.TypeMessagesDropped) {
		s.bus.Publish(event.NewMessagesDroppedEvent(s.name, removed-rejects, rejects))
	}
	return removed
}
