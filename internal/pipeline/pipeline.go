package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Iron-Ham/seda/internal/config"
	"github.com/Iron-Ham/seda/internal/errors"
	"github.com/Iron-Ham/seda/internal/logging"
	"github.com/Iron-Ham/seda/internal/seda"
)

// settlePollInterval is how often Wait re-checks the summary.
const settlePollInterval = 20 * time.Millisecond

// Pipeline is the demo parse → enrich → sink pipeline with a reject counter.
//
// Raw payloads enter through Submit or Produce. Every submitted message ends
// up either delivered to the sink or counted as a rejection; Summary reports
// both.
type Pipeline struct {
	mu      sync.Mutex
	cfg     *config.Config
	d       *seda.Dispatcher
	logger  *logging.Logger
	started bool

	// stages in shutdown order, upstream first, reject stage last.
	stages  []seda.Runner
	sink    *sink
	rejects *rejectCounter

	seq       atomic.Int64
	submitted atomic.Int64
}

// New creates the pipeline's stages and registers them with the dispatcher.
// Call Start before submitting messages.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: config is required")
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, config.ValidationErrors(errs)
	}

	pc := &pipelineConfig{}
	for _, opt := range opts {
		opt(pc)
	}
	if pc.dispatcher == nil {
		pc.dispatcher = DefaultDispatcher()
	}
	if pc.logger == nil {
		pc.logger = logging.NopLogger()
	}

	p := &Pipeline{
		cfg:     cfg,
		d:       pc.dispatcher,
		logger:  pc.logger.With("component", "pipeline"),
		sink:    &sink{},
		rejects: &rejectCounter{forward: pc.rejectForward},
	}

	stageOpts := []seda.Option{
		seda.WithPoolSize(cfg.Stage.MinPoolSize, cfg.Stage.MaxPoolSize),
		seda.WithMaxTolerableDelay(cfg.Stage.MaxTolerableDelay()),
		seda.WithLogger(pc.logger),
		seda.WithEventBus(pc.bus),
	}

	raw, err := seda.NewStage[*RawRecord](RawStage, p.d, parser{}, stageOpts...)
	if err != nil {
		return nil, fmt.Errorf("pipeline: create %s: %w", RawStage, err)
	}
	parsed, err := seda.NewStage[*Parsed](ParsedStage, p.d, enricher{
		work:      cfg.Demo.Work(),
		failEvery: int64(cfg.Demo.FailEvery),
	}, stageOpts...)
	if err != nil {
		return nil, fmt.Errorf("pipeline: create %s: %w", ParsedStage, err)
	}
	enriched, err := seda.NewStage[*Enriched](EnrichedStage, p.d, p.sink, stageOpts...)
	if err != nil {
		return nil, fmt.Errorf("pipeline: create %s: %w", EnrichedStage, err)
	}
	rejects, err := seda.NewStage[*seda.RejectMessage](seda.RejectStageName, p.d, p.rejects, stageOpts...)
	if err != nil {
		return nil, fmt.Errorf("pipeline: create %s: %w", seda.RejectStageName, err)
	}

	p.stages = []seda.Runner{raw, parsed, enriched, rejects}
	for _, s := range p.stages {
		p.d.Register(s)
	}
	return p, nil
}

// Start constructs every stage on the dispatcher and, if enabled, starts the
// adjuster.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.New("pipeline: already started")
	}
	p.d.Construction()
	if p.cfg.Adjust.Enabled {
		p.d.StartAdjust(p.cfg.Adjust.Interval())
	}
	p.started = true

	p.logger.Info("pipeline started",
		"min_pool", p.cfg.Stage.MinPoolSize,
		"max_pool", p.cfg.Stage.MaxPoolSize,
		"max_delay", p.cfg.Stage.MaxTolerableDelay(),
		"adjust", p.cfg.Adjust.Enabled,
	)
	return nil
}

// Dispatcher returns the dispatcher the pipeline is registered with.
func (p *Pipeline) Dispatcher() *seda.Dispatcher { return p.d }

// Submit wraps payload in a RawRecord and dispatches it. It reports whether
// the raw stage was registered to receive it.
func (p *Pipeline) Submit(payload []byte) bool {
	rec := &RawRecord{
		ID:         uuid.New(),
		Seq:        p.seq.Add(1),
		Payload:    payload,
		ReceivedAt: time.Now(),
	}
	if !p.d.Dispatch(rec) {
		return false
	}
	p.submitted.Add(1)
	return true
}

// Produce submits generated payloads at up to perSecond messages per second
// (unlimited if perSecond is 0). It stops after n messages, or when ctx ends
// if n is 0, and returns the number submitted.
func (p *Pipeline) Produce(ctx context.Context, n, perSecond int) (int, error) {
	var limiter *rate.Limiter
	if perSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, perSecond/10))
	}

	sent := 0
	for n == 0 || sent < n {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return sent, err
			}
		} else if err := ctx.Err(); err != nil {
			return sent, err
		}
		if p.Submit(fmt.Appendf(nil, "k%d=v%d", sent%NumShards, sent)) {
			sent++
		}
	}
	return sent, nil
}

// Summary returns the pipeline's message accounting so far.
func (p *Pipeline) Summary() Summary {
	return Summary{
		Submitted:  p.submitted.Load(),
		Delivered:  p.sink.delivered.Load(),
		Rejected:   p.rejects.snapshot(),
		AvgLatency: p.sink.avgLatency(),
	}
}

// Wait blocks until every submitted message is delivered or rejected, or ctx
// ends.
func (p *Pipeline) Wait(ctx context.Context) error {
	ticker := time.NewTicker(settlePollInterval)
	defer ticker.Stop()

	for !p.Summary().Settled() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Stats returns a snapshot of every stage on the pipeline's dispatcher.
func (p *Pipeline) Stats() []seda.Stats {
	return p.d.Stats()
}

// Reconfigure applies the settings that can change while running: the
// adjust interval and the log level.
func (p *Pipeline) Reconfigure(cfg *config.Config) {
	if adj := p.d.Adjuster(); adj != nil {
		adj.SetInterval(cfg.Adjust.Interval())
	}
	if cfg.Logging.Level != "" {
		p.logger.SetLevel(cfg.Logging.Level)
	}
	p.logger.Info("pipeline reconfigured",
		"adjust_interval", cfg.Adjust.Interval(),
		"log_level", cfg.Logging.Level,
	)
}

// Shutdown shuts the stages down upstream first so that each drains into a
// still running successor, waiting for each to terminate, then shuts down
// the rest of the dispatcher.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	for _, s := range p.stages {
		s.Shutdown()
		if err := s.AwaitTermination(ctx); err != nil {
			return fmt.Errorf("pipeline: await %s: %w", s.Name(), err)
		}
	}
	p.d.Shutdown()

	sum := p.Summary()
	p.logger.Info("pipeline stopped",
		"submitted", sum.Submitted,
		"delivered", sum.Delivered,
		"rejected", sum.RejectedTotal(),
	)
	return nil
}
