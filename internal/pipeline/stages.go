package pipeline

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/seda/internal/errors"
	"github.com/Iron-Ham/seda/internal/seda"
)

// ErrMalformed is returned for payloads that are not "key=value".
var ErrMalformed = errors.New("malformed payload")

// ErrInjected is returned by the enrich stage for deliberately failed messages.
var ErrInjected = errors.New("injected failure")

// NumShards is the number of shards Enriched records are assigned to.
const NumShards = 16

// parser splits raw payloads and forwards them to ParsedStage.
type parser struct{}

func (parser) Process(r *RawRecord, d *seda.Dispatcher) error {
	key, value, ok := bytes.Cut(r.Payload, []byte("="))
	if !ok || len(key) == 0 {
		return fmt.Errorf("record %d: %w", r.Seq, ErrMalformed)
	}
	d.Dispatch(&Parsed{
		ID:         r.ID,
		Seq:        r.Seq,
		Key:        string(key),
		Value:      string(value),
		ReceivedAt: r.ReceivedAt,
	})
	return nil
}

// enricher simulates per-message work and shards records by key.
type enricher struct {
	work      time.Duration
	failEvery int64
}

func (e enricher) Process(p *Parsed, d *seda.Dispatcher) error {
	if e.work > 0 {
		time.Sleep(e.work)
	}
	if e.failEvery > 0 && p.Seq%e.failEvery == 0 {
		return fmt.Errorf("record %d: %w", p.Seq, ErrInjected)
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(p.Key))
	d.Dispatch(&Enriched{
		Parsed:     p,
		Shard:      int(h.Sum32() % NumShards),
		EnrichedAt: time.Now(),
	})
	return nil
}

// sink counts delivered records and their latency.
type sink struct {
	delivered    atomic.Int64
	latencyMicro atomic.Int64
}

func (s *sink) Process(e *Enriched, _ *seda.Dispatcher) error {
	s.latencyMicro.Add(e.Latency().Microseconds())
	s.delivered.Add(1)
	return nil
}

func (s *sink) avgLatency() time.Duration {
	n := s.delivered.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(s.latencyMicro.Load()/n) * time.Microsecond
}

// rejectCounter is the pipeline's reject stage. It counts rejections by
// type and optionally forwards them to another stage.
type rejectCounter struct {
	counts  [seda.StageBusy + 1]atomic.Int64
	forward string
}

func (c *rejectCounter) Process(r *seda.RejectMessage, d *seda.Dispatcher) error {
	if t := r.Type(); t >= 0 && int(t) < len(c.counts) {
		c.counts[t].Add(1)
	}
	if c.forward != "" {
		d.DispatchTo(c.forward, r)
	}
	return nil
}

func (c *rejectCounter) snapshot() map[string]int64 {
	out := make(map[string]int64, len(c.counts))
	for t := range c.counts {
		if n := c.counts[t].Load(); n > 0 {
			out[seda.RejectType(t).String()] = n
		}
	}
	return out
}
