// Package event provides a pub-sub event bus through which stages report
// lifecycle and control decisions.
//
// Stages never depend on their observers. A stage configured with a [Bus]
// publishes events; the TUI monitor, the scaling recorder and tests subscribe
// by event type.
//
// # Event Types
//
//   - [StageStatusEvent] ("stage.status_changed"): a stage moved forward in its lifecycle
//   - [PoolResizedEvent] ("stage.pool_resized"): workers were added or removed
//   - [StageAdjustedEvent] ("stage.adjusted"): one control tick completed
//   - [MessagesDroppedEvent] ("stage.messages_dropped"): load shedding removed queued messages
//   - [ProcessFailedEvent] ("stage.process_failed"): a Process callback failed
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called
// synchronously on the publishing goroutine and protected by panic recovery,
// so a handler must be quick: stages publish from worker and control paths.
package event
