package scaling

import "time"

// Action represents the direction of a pool-size decision.
type Action string

const (
	// ActionGrow indicates workers should be added.
	ActionGrow Action = "grow"

	// ActionShrink indicates workers should be removed.
	ActionShrink Action = "shrink"

	// ActionNone indicates the pool size is left unchanged.
	ActionNone Action = "none"
)

// String returns the string representation of the action.
func (a Action) String() string {
	return string(a)
}

// Sample is what a stage measured since its previous control tick.
type Sample struct {
	// QueueSize is the input queue length at the start of the tick.
	QueueSize int

	// Processed is the number of messages successfully processed.
	Processed int64

	// ProcessTime is the total time spent inside Process for those messages.
	ProcessTime time.Duration

	// Elapsed is the wall time since the previous tick.
	Elapsed time.Duration
}

// Estimate holds the rates derived from a Sample and the overload check.
// All rates are messages per millisecond; ProcessRate is per worker.
type Estimate struct {
	InputRate   float64
	ConsumeRate float64
	ProcessRate float64

	// MaxQueueSize is the backlog the current pool can clear within twice
	// the tolerable delay.
	MaxQueueSize int

	// Overloaded is set when QueueSize exceeds MaxQueueSize; the stage should
	// then shed messages down to KeepCount.
	Overloaded bool
	KeepCount  int
}

// Decision is the result of one control tick.
type Decision struct {
	// Action is the direction of the change, recorded even when Delta was
	// clamped to zero by the pool bounds.
	Action Action

	// Delta is the number of workers to add (positive) or remove (negative).
	Delta int

	// Load is the estimated worker demand above the current pool size
	// (inputRate/processRate - pool).
	Load float64

	// Reason is a human-readable explanation of the decision.
	Reason string
}
