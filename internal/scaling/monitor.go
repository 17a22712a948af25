package scaling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Iron-Ham/seda/internal/event"
)

// DefaultHistorySize is the number of ticks kept per stage.
const DefaultHistorySize = 60

// Record is one control tick as observed on the event bus.
type Record struct {
	Time        time.Time
	Stage       string
	InputRate   float64
	ConsumeRate float64
	ProcessRate float64
	QueueSize   int
	Dropped     int
	PoolBefore  int
	PoolAfter   int
	Decision    Decision
}

// Monitor listens for stage adjustment events on the event bus and keeps a
// bounded history of them per stage.
type Monitor struct {
	mu       sync.Mutex
	bus      *event.Bus
	size     int
	history  map[string][]Record
	handlers []func(Record)
	subID    string
	cancel   context.CancelFunc
}

// NewMonitor creates a Monitor keeping up to historySize records per stage.
// Non-positive sizes use DefaultHistorySize.
func NewMonitor(bus *event.Bus, historySize int) *Monitor {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Monitor{
		bus:     bus,
		size:    historySize,
		history: make(map[string][]Record),
	}
}

// OnDecision registers a callback that is invoked for every tick that
// resized a pool. Multiple handlers may be registered.
func (m *Monitor) OnDecision(handler func(Record)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

// Start subscribes to adjustment events.
// It blocks until the context is cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	subID := m.bus.Subscribe(event.TypeStageAdjusted, func(e event.Event) {
		ae, ok := e.(event.StageAdjustedEvent)
		if !ok {
			return
		}
		m.record(ae)
	})

	m.mu.Lock()
	m.subID = subID
	m.mu.Unlock()

	<-ctx.Done()

	m.bus.Unsubscribe(subID)
}

// Stop unsubscribes from events and cancels the monitor.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	subID := m.subID
	m.subID = ""
	m.mu.Unlock()

	if subID != "" {
		m.bus.Unsubscribe(subID)
	}
	if cancel != nil {
		cancel()
	}
}

func (m *Monitor) record(ae event.StageAdjustedEvent) {
	rec := Record{
		Time:        ae.Timestamp(),
		Stage:       ae.Stage,
		InputRate:   ae.InputRate,
		ConsumeRate: ae.ConsumeRate,
		ProcessRate: ae.ProcessRate,
		QueueSize:   ae.QueueSize,
		Dropped:     ae.Dropped,
		PoolBefore:  ae.PoolBefore,
		PoolAfter:   ae.PoolAfter,
		Decision: Decision{
			Action: Action(ae.Action),
			Delta:  ae.PoolAfter - ae.PoolBefore,
			Load:   ae.Load,
			Reason: ae.Reason,
		},
	}

	m.mu.Lock()
	h := append(m.history[rec.Stage], rec)
	if len(h) > m.size {
		h = h[len(h)-m.size:]
	}
	m.history[rec.Stage] = h
	handlers := make([]func(Record), len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	if rec.Decision.Delta == 0 {
		return
	}
	for _, fn := range handlers {
		fn(rec)
	}
}

// History returns a copy of the records kept for stage, oldest first.
func (m *Monitor) History(stage string) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.history[stage]
	out := make([]Record, len(h))
	copy(out, h)
	return out
}

// Latest returns the most recent record for stage.
func (m *Monitor) Latest(stage string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.history[stage]
	if len(h) == 0 {
		return Record{}, false
	}
	return h[len(h)-1], true
}

// Stages returns the names of all stages seen so far, sorted.
func (m *Monitor) Stages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.history))
	for name := range m.history {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
