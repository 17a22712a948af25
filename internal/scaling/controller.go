package scaling

import (
	"fmt"
	"time"
)

// Controller constants.
const (
	// InitialProcessRate is the per-worker rate (messages/ms) assumed until a
	// tick observes real processing time.
	InitialProcessRate = 1.01

	// DropCoefficient scales the tolerable delay into the overload backlog.
	DropCoefficient = 2

	growThreshold    = 0.6
	shrinkThreshold  = -0.8
	growFactor       = 0.8
	dampedGrowFactor = 0.6
	shrinkBias       = 0.2
)

// Controller estimates rates and decides pool-size changes for one stage.
// It is not safe for concurrent use.
type Controller struct {
	minPool    int
	maxPool    int
	maxDelayMs float64

	processRate   float64
	lastQueueSize int
	lastAction    Action
}

// NewController creates a Controller for a pool bounded by [minPool, maxPool]
// whose messages should not wait longer than maxDelay.
func NewController(minPool, maxPool int, maxDelay time.Duration) *Controller {
	return &Controller{
		minPool:     minPool,
		maxPool:     maxPool,
		maxDelayMs:  float64(maxDelay) / float64(time.Millisecond),
		processRate: InitialProcessRate,
		lastAction:  ActionNone,
	}
}

// ProcessRate returns the current per-worker rate in messages/ms.
func (c *Controller) ProcessRate() float64 { return c.processRate }

// SetProcessRate overrides the per-worker rate. Non-positive values are
// ignored.
func (c *Controller) SetProcessRate(rate float64) {
	if rate > 0 {
		c.processRate = rate
	}
}

// LastAction returns the action of the previous Decide call.
func (c *Controller) LastAction() Action { return c.lastAction }

// LastQueueSize returns the queue length carried into the next tick.
func (c *Controller) LastQueueSize() int { return c.lastQueueSize }

// Estimate derives rates from s and checks for overload against the
// current pool size. It updates the remembered process rate.
func (c *Controller) Estimate(s Sample, pool int) Estimate {
	elapsedMs := float64(s.Elapsed) / float64(time.Millisecond)
	if elapsedMs <= 0 {
		elapsedMs = 1
	}
	processed := float64(s.Processed)

	// A tick without measured processing time keeps the previous rate;
	// dropping to zero would demand an unbounded pool.
	if micros := s.ProcessTime.Microseconds(); micros > 0 && s.Processed > 0 {
		c.processRate = processed * 1000 / float64(micros)
	}

	est := Estimate{
		InputRate:   (float64(s.QueueSize) + processed - float64(c.lastQueueSize)) / elapsedMs,
		ConsumeRate: processed / elapsedMs,
		ProcessRate: c.processRate,
	}
	est.MaxQueueSize = int(DropCoefficient * c.maxDelayMs * c.processRate * float64(pool))
	if s.QueueSize > est.MaxQueueSize {
		est.Overloaded = true
		est.KeepCount = est.MaxQueueSize / (DropCoefficient * 2)
	}
	return est
}

// Decide turns an estimate into a pool-size change. queueSize is the queue
// length the estimate was built from and dropped is how many messages the
// stage actually shed; the difference is remembered for the next tick.
func (c *Controller) Decide(est Estimate, queueSize, dropped, pool int) Decision {
	c.lastQueueSize = queueSize - dropped

	load := est.InputRate/c.processRate - float64(pool)
	backlogged := float64(queueSize) > c.maxDelayMs*c.processRate*float64(pool)

	switch {
	case load > growThreshold || (load > 0 && backlogged):
		factor := growFactor
		if c.lastAction == ActionShrink {
			factor = dampedGrowFactor
		}
		add := int(load * factor)
		if add == 0 {
			add = 1
		}
		if room := c.maxPool - pool; add > room {
			add = max(room, 0)
		}
		c.lastAction = ActionGrow
		return Decision{
			Action: ActionGrow,
			Delta:  add,
			Load:   load,
			Reason: fmt.Sprintf("input %.4f/ms exceeds %d workers at %.4f/ms", est.InputRate, pool, c.processRate),
		}

	case load < shrinkThreshold:
		// Truncation toward zero: a load of -1.0 removes one worker.
		sub := int(load - shrinkBias)
		if c.lastAction == ActionGrow {
			sub++
		}
		remove := -sub
		if room := pool - c.minPool; remove > room {
			remove = max(room, 0)
		}
		c.lastAction = ActionShrink
		return Decision{
			Action: ActionShrink,
			Delta:  -max(remove, 0),
			Load:   load,
			Reason: fmt.Sprintf("input %.4f/ms needs fewer than %d workers at %.4f/ms", est.InputRate, pool, c.processRate),
		}

	default:
		c.lastAction = ActionNone
		return Decision{
			Action: ActionNone,
			Load:   load,
			Reason: "load within hysteresis band",
		}
	}
}
