package natsbridge

import (
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/Iron-Ham/seda/internal/errors"
	"github.com/Iron-Ham/seda/internal/logging"
)

// Handler receives the payload of each NATS message and reports whether it
// was accepted, typically by dispatching it into a stage.
type Handler func(data []byte) bool

// Source feeds messages from a NATS subject into a Handler. The handler runs
// on the connection's delivery goroutine and must not block; dispatching
// into a stage never does.
type Source struct {
	nc      *nats.Conn
	subject string
	queue   string
	handler Handler
	logger  *logging.Logger

	mu  sync.Mutex
	sub *nats.Subscription

	received atomic.Int64
	refused  atomic.Int64
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithQueueGroup makes the source join a queue group so that several
// processes share the subject's messages.
func WithQueueGroup(group string) SourceOption {
	return func(s *Source) {
		s.queue = group
	}
}

// WithSourceLogger sets the logger used for refused messages.
func WithSourceLogger(l *logging.Logger) SourceOption {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSource creates a stopped Source.
func NewSource(nc *nats.Conn, subject string, handler Handler, opts ...SourceOption) (*Source, error) {
	switch {
	case nc == nil:
		return nil, errors.NewValidationError("nats connection is required").WithField("conn")
	case subject == "":
		return nil, errors.NewValidationError("subject cannot be empty").WithField("subject")
	case handler == nil:
		return nil, errors.NewValidationError("handler is required").WithField("handler")
	}

	s := &Source{
		nc:      nc,
		subject: subject,
		handler: handler,
		logger:  logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "nats_source", "subject", subject)
	return s, nil
}

// Start subscribes to the subject. It is a no-op if already started.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		return nil
	}

	sub, err := s.nc.QueueSubscribe(s.subject, s.queue, s.deliver)
	if err != nil {
		return errors.Wrapf(err, "subscribe %s", s.subject)
	}
	if err := s.nc.FlushTimeout(DefaultFlushTimeout); err != nil {
		_ = sub.Unsubscribe()
		return errors.Wrap(err, "flush subscription")
	}
	s.sub = sub
	s.logger.Info("nats source started", "queue_group", s.queue)
	return nil
}

// Stop drains the subscription, delivering messages already received. It is
// a no-op if not started.
func (s *Source) Stop() error {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub == nil {
		return nil
	}
	if err := sub.Drain(); err != nil {
		return errors.Wrapf(err, "drain %s", s.subject)
	}
	s.logger.Info("nats source stopped", "received", s.received.Load(), "refused", s.refused.Load())
	return nil
}

// Received returns the number of messages delivered to the handler.
func (s *Source) Received() int64 { return s.received.Load() }

// Refused returns the number of messages the handler did not accept.
func (s *Source) Refused() int64 { return s.refused.Load() }

func (s *Source) deliver(m *nats.Msg) {
	s.received.Add(1)
	if !s.handler(m.Data) {
		s.refused.Add(1)
		s.logger.Warn("message refused", "bytes", len(m.Data))
	}
}
