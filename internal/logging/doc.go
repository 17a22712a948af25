// Package logging provides structured logging for seda pipelines.
//
// This package wraps Go's log/slog. Output is human-readable key=value text
// by default; JSON is available for machine ingestion.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/seda", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Warn("messages dropped", "count", 120)
//
// # Context Propagation
//
// Stages and workers attach their identity to every line they log:
//
//	stageLogger := logger.WithStage("enrich")
//	workerLogger := stageLogger.WithWorker("enrich-3")
//	workerLogger.Error("process failed", "error", err)
//
// Output:
//
//	time=... level=ERROR msg="process failed" stage=enrich worker=enrich-3 error="..."
//
// # Testing
//
// Use [NopLogger] to discard output, or [NewWriterLogger] to capture it in a
// buffer and assert on it.
package logging
