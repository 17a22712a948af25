package scaling

import (
	"math"
	"testing"
	"time"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestNewController_Defaults(t *testing.T) {
	c := NewController(1, 10, time.Second)
	if c.ProcessRate() != InitialProcessRate {
		t.Errorf("ProcessRate() = %v, want %v", c.ProcessRate(), InitialProcessRate)
	}
	if c.LastAction() != ActionNone {
		t.Errorf("LastAction() = %q, want none", c.LastAction())
	}
	if c.LastQueueSize() != 0 {
		t.Errorf("LastQueueSize() = %d, want 0", c.LastQueueSize())
	}

	c.SetProcessRate(0)
	c.SetProcessRate(-3)
	if c.ProcessRate() != InitialProcessRate {
		t.Error("non-positive rates should be ignored")
	}
}

func TestController_Estimate(t *testing.T) {
	c := NewController(1, 10, time.Second)
	est := c.Estimate(Sample{
		QueueSize:   100,
		Processed:   50,
		ProcessTime: 50 * time.Millisecond,
		Elapsed:     time.Second,
	}, 1)

	if !approx(est.ProcessRate, 1.0) || !approx(c.ProcessRate(), 1.0) {
		t.Errorf("ProcessRate = %v, want 1.0", est.ProcessRate)
	}
	if !approx(est.InputRate, 0.15) {
		t.Errorf("InputRate = %v, want 0.15", est.InputRate)
	}
	if !approx(est.ConsumeRate, 0.05) {
		t.Errorf("ConsumeRate = %v, want 0.05", est.ConsumeRate)
	}
	if est.MaxQueueSize != 2000 {
		t.Errorf("MaxQueueSize = %d, want 2000", est.MaxQueueSize)
	}
	if est.Overloaded {
		t.Error("queue of 100 should not be overloaded")
	}
}

func TestController_EstimateKeepsRateWithoutProcessTime(t *testing.T) {
	c := NewController(1, 10, time.Second)
	c.SetProcessRate(0.5)

	tests := []struct {
		name   string
		sample Sample
	}{
		{"nothing processed", Sample{QueueSize: 3, Elapsed: time.Second}},
		{"processed but no time measured", Sample{Processed: 4, Elapsed: time.Second}},
		{"sub-microsecond processing", Sample{Processed: 4, ProcessTime: 500 * time.Nanosecond, Elapsed: time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est := c.Estimate(tt.sample, 1)
			if est.ProcessRate != 0.5 {
				t.Errorf("ProcessRate = %v, want 0.5", est.ProcessRate)
			}
		})
	}
}

func TestController_EstimateClampsElapsed(t *testing.T) {
	c := NewController(1, 10, time.Second)
	est := c.Estimate(Sample{QueueSize: 10}, 1)
	if !approx(est.InputRate, 10) {
		t.Errorf("InputRate = %v, want 10 with a 1ms floor on elapsed", est.InputRate)
	}
}

func TestController_Overload(t *testing.T) {
	c := NewController(1, 10, 100*time.Millisecond)
	c.SetProcessRate(1.0)

	est := c.Estimate(Sample{QueueSize: 1000, Elapsed: time.Second}, 2)
	if est.MaxQueueSize != 400 {
		t.Fatalf("MaxQueueSize = %d, want 400", est.MaxQueueSize)
	}
	if !est.Overloaded {
		t.Fatal("expected overload")
	}
	if est.KeepCount != 100 {
		t.Errorf("KeepCount = %d, want 100", est.KeepCount)
	}

	c.Decide(est, 1000, 900, 2)
	if c.LastQueueSize() != 100 {
		t.Errorf("LastQueueSize() = %d, want 100", c.LastQueueSize())
	}

	next := c.Estimate(Sample{QueueSize: 150, Processed: 50, ProcessTime: 50 * time.Millisecond, Elapsed: time.Second}, 2)
	if !approx(next.InputRate, 0.1) {
		t.Errorf("InputRate after drop = %v, want 0.1", next.InputRate)
	}
}

func TestController_Decide(t *testing.T) {
	tests := []struct {
		name       string
		min, max   int
		lastAction Action
		inputRate  float64
		queueSize  int
		pool       int
		wantAction Action
		wantDelta  int
	}{
		{"grow proportionally", 1, 10, ActionNone, 5.0, 0, 1, ActionGrow, 3},
		{"grow damped after shrink", 1, 10, ActionShrink, 8.0, 0, 2, ActionGrow, 3},
		{"grow undamped", 1, 10, ActionNone, 8.0, 0, 2, ActionGrow, 4},
		{"grow at least one", 1, 10, ActionGrow, 2.7, 0, 2, ActionGrow, 1},
		{"hysteresis band", 1, 10, ActionNone, 2.5, 0, 2, ActionNone, 0},
		{"small load with backlog grows", 1, 10, ActionNone, 2.5, 3000, 2, ActionGrow, 1},
		{"grow capped at max", 1, 5, ActionNone, 20.0, 0, 4, ActionGrow, 1},
		{"grow at max is a no-op", 1, 5, ActionNone, 20.0, 0, 5, ActionGrow, 0},
		{"shrink", 1, 10, ActionNone, 1.0, 0, 4, ActionShrink, -3},
		{"shrink damped after grow", 1, 10, ActionGrow, 1.0, 0, 4, ActionShrink, -2},
		{"shrink truncates toward zero", 1, 10, ActionNone, 0.15, 0, 1, ActionShrink, 0},
		{"shrink floored at min", 2, 10, ActionNone, 0, 0, 3, ActionShrink, -1},
		{"just above shrink threshold", 1, 10, ActionNone, 2.3, 0, 3, ActionNone, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(tt.min, tt.max, time.Second)
			c.SetProcessRate(1.0)
			c.lastAction = tt.lastAction

			d := c.Decide(Estimate{InputRate: tt.inputRate}, tt.queueSize, 0, tt.pool)
			if d.Action != tt.wantAction {
				t.Errorf("Action = %q, want %q (load %.2f)", d.Action, tt.wantAction, d.Load)
			}
			if d.Delta != tt.wantDelta {
				t.Errorf("Delta = %d, want %d (load %.2f)", d.Delta, tt.wantDelta, d.Load)
			}
			if d.Reason == "" {
				t.Error("Reason should not be empty")
			}
			if c.LastAction() != tt.wantAction {
				t.Errorf("LastAction() = %q, want %q", c.LastAction(), tt.wantAction)
			}
			if got := tt.pool + d.Delta; got < tt.min || got > tt.max {
				t.Errorf("resulting pool %d outside [%d, %d]", got, tt.min, tt.max)
			}
		})
	}
}

// simulate drives a controller with a constant arrival count per one-second
// tick. Each worker processes 1000 messages per tick.
func simulate(c *Controller, pool int, arrivals []int) []int {
	queue := 0
	pools := make([]int, 0, len(arrivals))
	for _, n := range arrivals {
		queue += n
		processed := min(queue, pool*1000)
		queue -= processed

		est := c.Estimate(Sample{
			QueueSize:   queue,
			Processed:   int64(processed),
			ProcessTime: time.Duration(processed) * time.Millisecond,
			Elapsed:     time.Second,
		}, pool)

		before := queue
		dropped := 0
		if est.Overloaded {
			dropped = queue - est.KeepCount
			queue = est.KeepCount
		}
		d := c.Decide(est, before, dropped, pool)
		pool += d.Delta
		pools = append(pools, pool)
	}
	return pools
}

func TestController_ConvergesUnderSteadyLoad(t *testing.T) {
	c := NewController(1, 10, time.Second)

	arrivals := make([]int, 10)
	for i := range arrivals {
		arrivals[i] = 3000
	}
	pools := simulate(c, 1, arrivals)

	want := []int{2, 3, 3, 3, 3, 3, 3, 3, 3, 3}
	for i := range want {
		if pools[i] != want[i] {
			t.Fatalf("pool sizes = %v, want %v", pools, want)
		}
	}
}

func TestController_ShrinksWhenLoadStops(t *testing.T) {
	c := NewController(1, 10, time.Second)

	pools := simulate(c, 1, []int{3000, 3000, 3000, 0, 0, 0})
	if pools[2] != 3 {
		t.Fatalf("pool before idle = %d, want 3 (sizes %v)", pools[2], pools)
	}
	if last := pools[len(pools)-1]; last != 1 {
		t.Errorf("pool after idle = %d, want 1 (sizes %v)", last, pools)
	}
	for i, p := range pools {
		if p < 1 || p > 10 {
			t.Errorf("tick %d pool %d outside bounds", i, p)
		}
	}
}
