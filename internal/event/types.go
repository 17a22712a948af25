package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "stage.pool_resized").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeStageStatus     = "stage.status_changed"
	TypePoolResized     = "stage.pool_resized"
	TypeStageAdjusted   = "stage.adjusted"
	TypeMessagesDropped = "stage.messages_dropped"
	TypeProcessFailed   = "stage.process_failed"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// StageStatusEvent is emitted when a stage moves to a later lifecycle status.
type StageStatusEvent struct {
	baseEvent
	Stage string
	From  string
	To    string
}

// NewStageStatusEvent creates a StageStatusEvent.
func NewStageStatusEvent(stage, from, to string) StageStatusEvent {
	return StageStatusEvent{
		baseEvent: newBaseEvent(TypeStageStatus),
		Stage:     stage,
		From:      from,
		To:        to,
	}
}

// PoolResizedEvent is emitted when workers are added to or removed from a
// stage's pool. Worker names the goroutine that started or was retired.
type PoolResizedEvent struct {
	baseEvent
	Stage  string
	Worker string
	From   int
	To     int
}

// NewPoolResizedEvent creates a PoolResizedEvent.
func NewPoolResizedEvent(stage, worker string, from, to int) PoolResizedEvent {
	return PoolResizedEvent{
		baseEvent: newBaseEvent(TypePoolResized),
		Stage:     stage,
		Worker:    worker,
		From:      from,
		To:        to,
	}
}

// StageAdjustedEvent carries the measurements and outcome of one control tick.
// Rates are messages per millisecond; ProcessRate is per worker.
type StageAdjustedEvent struct {
	baseEvent
	Stage       string
	InputRate   float64
	ConsumeRate float64
	ProcessRate float64
	Load        float64
	QueueSize   int
	Dropped     int
	PoolBefore  int
	PoolAfter   int
	Action      string
	Reason      string
}

// NewStageAdjustedEvent creates a StageAdjustedEvent.
func NewStageAdjustedEvent(stage string) StageAdjustedEvent {
	return StageAdjustedEvent{
		baseEvent: newBaseEvent(TypeStageAdjusted),
		Stage:     stage,
	}
}

// MessagesDroppedEvent is emitted after load shedding. Rejected counts the
// messages forwarded as STAGE_BUSY rejections; Discarded counts reject
// messages that were dropped without a further rejection.
type MessagesDroppedEvent struct {
	baseEvent
	Stage     string
	Rejected  int
	Discarded int
}

// NewMessagesDroppedEvent creates a MessagesDroppedEvent.
func NewMessagesDroppedEvent(stage string, rejected, discarded int) MessagesDroppedEvent {
	return MessagesDroppedEvent{
		baseEvent: newBaseEvent(TypeMessagesDropped),
		Stage:     stage,
		Rejected:  rejected,
		Discarded: discarded,
	}
}

// Total returns the number of messages removed from the queue.
func (e MessagesDroppedEvent) Total() int { return e.Rejected + e.Discarded }

// ProcessFailedEvent is emitted when a Process callback returns an error or
// panics.
type ProcessFailedEvent struct {
	baseEvent
	Stage    string
	Worker   string
	Err      error
	Panicked bool
}

// NewProcessFailedEvent creates a ProcessFailedEvent.
func NewProcessFailedEvent(stage, worker string, err error, panicked bool) ProcessFailedEvent {
	return ProcessFailedEvent{
		baseEvent: newBaseEvent(TypeProcessFailed),
		Stage:     stage,
		Worker:    worker,
		Err:       err,
		Panicked:  panicked,
	}
}
