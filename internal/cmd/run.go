package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/seda/internal/config"
	"github.com/Iron-Ham/seda/internal/event"
	"github.com/Iron-Ham/seda/internal/logging"
	"github.com/Iron-Ham/seda/internal/natsbridge"
	"github.com/Iron-Ham/seda/internal/pipeline"
	"github.com/Iron-Ham/seda/internal/scaling"
	"github.com/Iron-Ham/seda/internal/seda"
	"github.com/Iron-Ham/seda/internal/tui"
)

// shutdownTimeout bounds how long run waits for stages to drain on exit.
const shutdownTimeout = 30 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the demo pipeline",
	Long: `Run the demo pipeline (parse → enrich → sink) with a reject counter.

A local producer submits generated "key=value" payloads. With --nats-url
the pipeline also consumes payloads from a NATS subject and publishes
rejections to nats.reject_subject.

The run ends when every produced message is delivered or rejected, when
--duration elapses, or on interrupt. A per-stage summary is printed at the
end; --watch shows it live instead.`,
	RunE: runRun,
}

func init() {
	defaults := config.Default()
	f := runCmd.Flags()
	f.Int("messages", defaults.Demo.Messages, "messages to produce (0 = until --duration)")
	f.Int("rate", defaults.Demo.Rate, "producer rate in messages per second (0 = unlimited)")
	f.Int("work", defaults.Demo.WorkMs, "simulated work per message in milliseconds")
	f.Int("fail-every", defaults.Demo.FailEvery, "fail every Nth message (0 = never)")
	f.Int("duration", defaults.Demo.DurationSec, "stop after this many seconds (0 = when drained)")
	f.Bool("watch", false, "show a live stage monitor (requires a terminal)")
	f.String("nats-url", defaults.NATS.URL, "NATS server URL; enables the NATS bridge")
	f.String("subject", defaults.NATS.Subject, "NATS subject to consume payloads from")

	bindFlag("demo.messages", f, "messages")
	bindFlag("demo.rate", f, "rate")
	bindFlag("demo.work_ms", f, "work")
	bindFlag("demo.fail_every", f, "fail-every")
	bindFlag("demo.duration_sec", f, "duration")
	bindFlag("nats.url", f, "nats-url")
	bindFlag("nats.subject", f, "subject")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	watch, _ := cmd.Flags().GetBool("watch")
	useTUI := watch && isTerminal(os.Stdout)
	if watch && !useTUI {
		fmt.Fprintln(cmd.ErrOrStderr(), "--watch needs a terminal; printing a summary instead")
	}

	// Log lines would corrupt the monitor, so they go to the log dir or nowhere.
	var logOut io.Writer = cmd.ErrOrStderr()
	if useTUI {
		logOut = nil
	}
	logger, err := newLogger(cfg, logOut)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d := cfg.Demo.Duration(); d > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, d)
		defer cancelTimeout()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bus := event.NewBus(event.WithLogger(logger))
	monitor := scaling.NewMonitor(bus, scaling.DefaultHistorySize)
	monitor.OnDecision(func(r scaling.Record) {
		logger.Debug("pool resized",
			"stage", r.Stage,
			"from", r.PoolBefore,
			"to", r.PoolAfter,
			"reason", r.Decision.Reason,
		)
	})
	var monitorWG conc.WaitGroup
	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	monitorWG.Go(func() { monitor.Start(monitorCtx) })
	defer func() {
		stopMonitor()
		monitorWG.Wait()
	}()

	d := seda.NewDispatcher(seda.WithDispatcherLogger(logger))
	opts := []pipeline.Option{
		pipeline.WithDispatcher(d),
		pipeline.WithLogger(logger),
		pipeline.WithEventBus(bus),
	}

	var bridge *natsBridge
	if cfg.NATS.Enabled() {
		bridge, err = connectBridge(cfg, d, logger)
		if err != nil {
			return err
		}
		defer bridge.close()
		if bridge.rejects != nil {
			opts = append(opts, pipeline.WithRejectForward(natsbridge.RejectPublisherStage))
		}
	}

	p, err := pipeline.New(cfg, opts...)
	if err != nil {
		return err
	}
	if err := p.Start(); err != nil {
		return err
	}
	if bridge != nil {
		if err := bridge.startSource(cfg, p, logger); err != nil {
			shutdownPipeline(p, bridge, logger)
			return err
		}
	}

	config.Watch(func(next *config.Config, err error) {
		if err != nil {
			logger.Warn("config reload rejected", "error", err)
			return
		}
		p.Reconfigure(next)
	})

	// The local producer runs unless the NATS bridge is the only input.
	var producer conc.WaitGroup
	produced := make(chan struct{})
	if cfg.Demo.Messages > 0 || !cfg.NATS.Enabled() {
		producer.Go(func() {
			defer close(produced)
			n, err := p.Produce(ctx, cfg.Demo.Messages, cfg.Demo.Rate)
			if err != nil && ctx.Err() == nil {
				logger.Warn("producer stopped", "error", err)
			}
			logger.Info("producer finished", "messages", n)
		})
	} else {
		close(produced)
	}

	if useTUI {
		err = tui.Run(ctx, tui.Options{
			Title:   "seda run",
			Stats:   p.Stats,
			Footer:  func() string { return formatSummary(p.Summary()) },
			Monitor: monitor,
		})
		if err != nil {
			logger.Warn("monitor exited", "error", err)
		}
	} else {
		waitForRun(ctx, cfg, p, produced)
	}

	cancel()
	producer.Wait()
	shutdownPipeline(p, bridge, logger)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, tui.RenderStats(p.Stats(), monitor))
	printSummary(out, p.Summary())
	return nil
}

// waitForRun blocks until the local producer is done and its messages have
// settled. With the NATS bridge it keeps consuming until ctx ends.
func waitForRun(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, produced <-chan struct{}) {
	select {
	case <-produced:
	case <-ctx.Done():
		return
	}
	if cfg.NATS.Enabled() {
		<-ctx.Done()
		return
	}
	_ = p.Wait(ctx)
}

func shutdownPipeline(p *pipeline.Pipeline, bridge *natsBridge, logger *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if bridge != nil {
		bridge.stopSource(logger)
	}
	if err := p.Shutdown(ctx); err != nil {
		logger.Warn("pipeline shutdown incomplete", "error", err)
	}
	if bridge != nil && bridge.rejects != nil {
		if err := bridge.rejects.AwaitTermination(ctx); err != nil {
			logger.Warn("reject publisher did not terminate", "error", err)
		}
		logger.Info("rejects published", "count", bridge.publisher.Published())
	}
}

// natsBridge holds the NATS side of a run.
type natsBridge struct {
	nc        *nats.Conn
	source    *natsbridge.Source
	publisher *natsbridge.RejectPublisher
	rejects   *seda.Stage[*seda.RejectMessage]
}

func connectBridge(cfg *config.Config, d *seda.Dispatcher, logger *logging.Logger) (*natsBridge, error) {
	nc, err := natsbridge.Connect(cfg.NATS.URL, logger)
	if err != nil {
		return nil, err
	}
	b := &natsBridge{nc: nc}

	if cfg.NATS.RejectSubject != "" {
		b.publisher, b.rejects, err = natsbridge.RegisterRejectPublisher(d, nc, cfg.NATS.RejectSubject,
			seda.WithPoolSize(cfg.Stage.MinPoolSize, cfg.Stage.MaxPoolSize),
			seda.WithMaxTolerableDelay(cfg.Stage.MaxTolerableDelay()),
			seda.WithLogger(logger),
		)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to create reject publisher: %w", err)
		}
	}
	return b, nil
}

func (b *natsBridge) startSource(cfg *config.Config, p *pipeline.Pipeline, logger *logging.Logger) error {
	src, err := natsbridge.NewSource(b.nc, cfg.NATS.Subject, p.Submit,
		natsbridge.WithSourceLogger(logger),
		natsbridge.WithQueueGroup("seda"),
	)
	if err != nil {
		return err
	}
	if err := src.Start(); err != nil {
		return err
	}
	b.source = src
	return nil
}

func (b *natsBridge) stopSource(logger *logging.Logger) {
	if b.source == nil {
		return
	}
	if err := b.source.Stop(); err != nil {
		logger.Warn("nats source stop failed", "error", err)
	}
}

func (b *natsBridge) close() {
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// formatSummary renders a one-line summary for the live monitor.
func formatSummary(sum pipeline.Summary) string {
	return fmt.Sprintf("submitted %d · delivered %d · rejected %d%s · avg latency %s",
		sum.Submitted, sum.Delivered, sum.RejectedTotal(), formatRejects(sum.Rejected), sum.AvgLatency)
}

func formatRejects(rejected map[string]int64) string {
	if len(rejected) == 0 {
		return ""
	}
	types := make([]string, 0, len(rejected))
	for t := range rejected {
		types = append(types, t)
	}
	sort.Strings(types)

	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = fmt.Sprintf("%s %d", t, rejected[t])
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func printSummary(w io.Writer, sum pipeline.Summary) {
	fmt.Fprintf(w, "%-12s %d\n", "submitted", sum.Submitted)
	fmt.Fprintf(w, "%-12s %d\n", "delivered", sum.Delivered)
	fmt.Fprintf(w, "%-12s %d%s\n", "rejected", sum.RejectedTotal(), formatRejects(sum.Rejected))
	fmt.Fprintf(w, "%-12s %s\n", "avg latency", sum.AvgLatency)
}
