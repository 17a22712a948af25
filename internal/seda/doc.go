// Package seda implements a staged, message-driven execution engine.
//
// A [Stage] owns an input queue and a pool of worker goroutines that call a
// user [Processor] for each message. Stages are registered with a
// [Dispatcher] by name; a Processor forwards work to the next stage through
// the dispatcher it is handed, forming a pipeline:
//
//	d := seda.NewDispatcher()
//	parse, _ := seda.NewStage[[]byte]("parse", d, seda.ProcessFunc[[]byte](func(b []byte, d *seda.Dispatcher) error {
//	    d.DispatchTo("store", decode(b))
//	    return nil
//	}), seda.WithPoolSize(1, 8))
//	d.Register(parse)
//	d.Construction()
//	d.StartAdjust(time.Second)
//	d.DispatchTo("parse", payload)
//
// # Self-tuning pools
//
// Each stage resizes its own pool on every control tick
// ([Stage.AdjustThreadPool]), at most once per [MinAdjustInterval]. An
// [Adjuster] drives the ticks of many stages from one goroutine. The sizing
// arithmetic lives in the scaling package.
//
// # Load shedding and rejections
//
// When a stage's backlog would take more than twice its tolerable delay to
// clear, the oldest messages are removed and turned into [RejectMessage]s of
// type [StageBusy]. Rejections of every kind ([ProcessError], [UserReject],
// [StageShutdown], [StageBusy]) are dispatched to [RejectStageName] on the
// same dispatcher. With no stage registered there they are discarded.
// Delivery is at-most-once and in-process only.
//
// # Lifecycle
//
// A stage moves through [Running], [ShuttingDown], [Stopped] and
// [Terminated], never backward. After [Stage.Shutdown] new input is
// rejected, queued input is drained opportunistically, and idle workers are
// interrupted.
package seda
