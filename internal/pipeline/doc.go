// Package pipeline wires a demonstration pipeline on top of the seda engine.
//
// Three stages form a chain, plus a reject stage:
//
//	demo.raw      "key=value" payload  → parse       → demo.parsed
//	demo.parsed   key, value           → enrich      → demo.enriched
//	demo.enriched shard, latency       → sink (count)
//	seda.RejectMessage                 → count by type, optionally forward
//
// Stage sizing comes from [config.Config]. The enrich stage sleeps for
// demo.work_ms per message and fails every demo.fail_every-th message, which
// makes pool growth, load shedding and reject routing visible.
//
// # Usage
//
//	p, _ := pipeline.New(cfg, pipeline.WithDispatcher(seda.NewDispatcher()))
//	_ = p.Start()
//	_, _ = p.Produce(ctx, 10000, 2000)
//	_ = p.Wait(ctx)
//	_ = p.Shutdown(ctx)
//	fmt.Println(p.Summary())
package pipeline
