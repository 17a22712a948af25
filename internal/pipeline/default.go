package pipeline

import (
	"sync"

	"github.com/Iron-Ham/seda/internal/seda"
)

var (
	defaultOnce       sync.Once
	defaultDispatcher *seda.Dispatcher
)

// DefaultDispatcher returns the process-wide dispatcher used when a Pipeline
// is created without WithDispatcher. Library code should take a dispatcher
// explicitly instead.
func DefaultDispatcher() *seda.Dispatcher {
	defaultOnce.Do(func() {
		defaultDispatcher = seda.NewDispatcher()
	})
	return defaultDispatcher
}
