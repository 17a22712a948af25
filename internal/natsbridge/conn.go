package natsbridge

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Iron-Ham/seda/internal/logging"
)

// Connection defaults.
const (
	DefaultClientName     = "seda"
	DefaultConnectTimeout = 2 * time.Second
	DefaultReconnectWait  = 250 * time.Millisecond
	DefaultFlushTimeout   = 2 * time.Second
)

// Connect dials url with reconnects enabled and connection state changes
// logged to logger.
func Connect(url string, logger *logging.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	log := logger.With("component", "nats")

	nc, err := nats.Connect(url,
		nats.Name(DefaultClientName),
		nats.Timeout(DefaultConnectTimeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(DefaultReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", "error", err)
			} else {
				log.Warn("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) { log.Info("nats reconnected", "url", nc.ConnectedUrl()) }),
		nats.ClosedHandler(func(_ *nats.Conn) { log.Info("nats connection closed") }),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	if err := nc.FlushTimeout(DefaultFlushTimeout); err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats initial flush: %w", err)
	}
	return nc, nil
}
