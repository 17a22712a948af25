// Package scaling implements the adaptive worker-pool controller used by
// seda stages, and a recorder for the decisions it makes.
//
// Every control tick a stage hands the [Controller] a [Sample] of what
// happened since the previous tick. The controller:
//
//   - infers the arrival rate from the change in queue length plus what was
//     processed, rather than counting arrivals directly;
//   - keeps a per-worker processing rate that is only replaced when the tick
//     observed processing time, starting from 1.01 messages/ms;
//   - flags overload when the backlog cannot be cleared within twice the
//     tolerable delay, telling the stage how many messages to keep;
//   - grows or shrinks the pool proportionally to the estimated demand, with
//     asymmetric thresholds and one tick of memory to damp oscillation.
//
// The [Monitor] subscribes to "stage.adjusted" events on an event bus and
// keeps a short per-stage history for status displays.
//
// # Thread Safety
//
// A [Controller] is owned by one stage and must be driven from one goroutine
// at a time (the stage serializes ticks under its lock). [Monitor] is safe
// for concurrent use.
package scaling
