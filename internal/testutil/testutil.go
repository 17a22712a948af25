// Package testutil provides testing utilities for seda tests.
package testutil

import (
	"sync"
	"testing"
	"time"

	nserver "github.com/nats-io/nats-server/v2/server"
)

// DefaultWait bounds Eventually when no timeout is given.
const DefaultWait = 5 * time.Second

// Eventually polls cond every few milliseconds until it returns true or
// timeout elapses, and fails the test in the latter case.
func Eventually(t testing.TB, timeout time.Duration, cond func() bool, msgAndArgs ...any) {
	t.Helper()

	if timeout <= 0 {
		timeout = DefaultWait
	}
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			if len(msgAndArgs) > 0 {
				if format, ok := msgAndArgs[0].(string); ok {
					t.Fatalf("condition not met within %s: "+format, append([]any{timeout}, msgAndArgs[1:]...)...)
				}
			}
			t.Fatalf("condition not met within %s", timeout)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Clock is a manually advanced time source for control ticks.
// It is safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a Clock starting at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// StartNATS runs an embedded NATS server on a random local port and returns
// its client URL. The server is shut down when the test completes.
func StartNATS(t testing.TB) string {
	t.Helper()

	opts := &nserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoSigs: true,
		NoLog:  true,
	}
	srv, err := nserver.NewServer(opts)
	if err != nil {
		t.Fatalf("failed to create nats server: %v", err)
	}
	go srv.Start()
	t.Cleanup(func() {
		srv.Shutdown()
		srv.WaitForShutdown()
	})

	// ClientURL reads listener state written by the accept loop, so it is
	// only safe once the server reports ready.
	if !srv.ReadyForConnections(10 * time.Second) {
		t.Fatalf("nats server not ready")
	}
	return srv.ClientURL()
}
