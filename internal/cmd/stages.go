package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/seda/internal/config"
	"github.com/Iron-Ham/seda/internal/pipeline"
	"github.com/Iron-Ham/seda/internal/seda"
	"github.com/Iron-Ham/seda/internal/tui"
)

// stagesRunTimeout bounds the short run behind `seda stages`.
const stagesRunTimeout = time.Minute

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "Run a short demo and print per-stage statistics",
	Long: `Run the demo pipeline for a fixed number of messages and print the
statistics of every stage once the messages have settled.

Use --match to limit the table to stages whose names match a glob pattern,
e.g. --match 'demo.*'.`,
	RunE: runStages,
}

var (
	stagesMatch    string
	stagesMessages int
)

func init() {
	stagesCmd.Flags().StringVar(&stagesMatch, "match", "*", "glob pattern of stage names to show")
	stagesCmd.Flags().IntVar(&stagesMessages, "messages", 2000, "messages to run through the pipeline")
	rootCmd.AddCommand(stagesCmd)
}

func runStages(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if stagesMessages <= 0 {
		return fmt.Errorf("--messages must be positive, got %d", stagesMessages)
	}
	cfg.Demo.Messages = stagesMessages

	d := seda.NewDispatcher()
	p, err := pipeline.New(cfg, pipeline.WithDispatcher(d))
	if err != nil {
		return err
	}
	// Validate the pattern before doing any work.
	if _, err := d.Select(stagesMatch); err != nil {
		d.Shutdown()
		return err
	}
	if err := p.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), stagesRunTimeout)
	defer cancel()
	if _, err := p.Produce(ctx, cfg.Demo.Messages, cfg.Demo.Rate); err == nil {
		_ = p.Wait(ctx)
	}

	selected, _ := d.Select(stagesMatch)
	stats := make([]seda.Stats, len(selected))
	for i, s := range selected {
		stats[i] = s.Stats()
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := p.Shutdown(shutdownCtx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(stats) == 0 {
		fmt.Fprintf(out, "No stages match %q\n", stagesMatch)
		return nil
	}
	fmt.Fprintln(out, tui.RenderStats(stats, nil))
	printSummary(out, p.Summary())
	return nil
}
