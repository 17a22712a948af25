package pipeline

import (
	"github.com/Iron-Ham/seda/internal/event"
	"github.com/Iron-Ham/seda/internal/logging"
	"github.com/Iron-Ham/seda/internal/seda"
)

// Option configures a Pipeline.
type Option func(*pipelineConfig)

// pipelineConfig holds optional settings for the Pipeline.
type pipelineConfig struct {
	dispatcher    *seda.Dispatcher
	logger        *logging.Logger
	bus           *event.Bus
	rejectForward string
}

// WithDispatcher runs the pipeline on d instead of DefaultDispatcher.
func WithDispatcher(d *seda.Dispatcher) Option {
	return func(c *pipelineConfig) {
		c.dispatcher = d
	}
}

// WithLogger sets the logger for every pipeline stage.
func WithLogger(l *logging.Logger) Option {
	return func(c *pipelineConfig) {
		c.logger = l
	}
}

// WithEventBus publishes stage lifecycle and adjustment events to b.
func WithEventBus(b *event.Bus) Option {
	return func(c *pipelineConfig) {
		c.bus = b
	}
}

// WithRejectForward forwards every counted rejection to the stage registered
// under name, e.g. a NATS reject publisher.
func WithRejectForward(name string) Option {
	return func(c *pipelineConfig) {
		c.rejectForward = name
	}
}
