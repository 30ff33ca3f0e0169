package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/dlshle/gommon/async"
	"github.com/lightningnetwork/lnd/clock"
)

var testStart = time.Unix(1700000000, 0)

func TestManualOnce(t *testing.T) {
	m := NewManual(testStart)
	var firedAt []time.Time
	m.Once(100*time.Millisecond, func() {
		firedAt = append(firedAt, m.Now())
	})

	m.Advance(50 * time.Millisecond)
	if len(firedAt) != 0 {
		t.Fatal("fired before its deadline")
	}

	m.Advance(60 * time.Millisecond)
	if len(firedAt) != 1 {
		t.Fatalf("expected exactly one firing, got %d", len(firedAt))
	}
	// The callback observes the virtual clock at its own deadline, not the
	// advance target.
	if want := testStart.Add(100 * time.Millisecond); !firedAt[0].Equal(want) {
		t.Errorf("expected firing at %v, got %v", want, firedAt[0])
	}
	if !m.Now().Equal(testStart.Add(110 * time.Millisecond)) {
		t.Errorf("expected clock at advance target, got %v", m.Now())
	}
	if m.Pending() != 0 {
		t.Errorf("expected no pending tasks, got %d", m.Pending())
	}
}

func TestManualCancel(t *testing.T) {
	m := NewManual(testStart)
	fired := false
	h := m.Once(100*time.Millisecond, func() { fired = true })

	if !h.Cancel() {
		t.Error("expected first cancel to succeed")
	}
	if h.Cancel() {
		t.Error("expected second cancel to report already cancelled")
	}
	m.Advance(time.Second)
	if fired {
		t.Error("cancelled task fired")
	}

	h = m.Once(10*time.Millisecond, func() {})
	m.Advance(10 * time.Millisecond)
	if h.Cancel() {
		t.Error("expected cancel after firing to report false")
	}
}

func TestManualEvery(t *testing.T) {
	m := NewManual(testStart)
	count := 0
	h := m.Every(100*time.Millisecond, func() { count++ })

	m.Advance(350 * time.Millisecond)
	if count != 3 {
		t.Fatalf("expected 3 ticks in 350ms, got %d", count)
	}

	h.Cancel()
	m.Advance(time.Second)
	if count != 3 {
		t.Errorf("ticked after cancel, count %d", count)
	}
}

// A callback may schedule more work; anything landing inside the remaining
// advance window fires in the same Advance call.
func TestManualReentrantScheduling(t *testing.T) {
	m := NewManual(testStart)
	var order []string
	m.Once(100*time.Millisecond, func() {
		order = append(order, "outer")
		m.Once(50*time.Millisecond, func() {
			order = append(order, "inner")
		})
	})

	m.Advance(200 * time.Millisecond)
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Fatalf("expected [outer inner], got %v", order)
	}
}

func TestManualSameInstantFiresInArmingOrder(t *testing.T) {
	m := NewManual(testStart)
	var order []int
	m.Once(100*time.Millisecond, func() { order = append(order, 1) })
	m.Once(100*time.Millisecond, func() { order = append(order, 2) })

	m.Advance(100 * time.Millisecond)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected [1 2], got %v", order)
	}
}

func TestOnceWithTestClock(t *testing.T) {
	c := clock.NewTestClock(testStart)
	s := New(c)

	fired := make(chan struct{})
	s.Once(time.Minute, func() { close(fired) })

	select {
	case <-fired:
		t.Fatal("fired before the clock moved")
	case <-time.After(20 * time.Millisecond):
	}

	c.SetTime(testStart.Add(time.Minute))
	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("expected firing once the clock passed the deadline")
	}
}

func TestOnceCancelled(t *testing.T) {
	c := clock.NewTestClock(testStart)
	s := New(c)

	var fired atomic.Bool
	h := s.Once(time.Minute, func() { fired.Store(true) })
	if !h.Cancel() {
		t.Fatal("expected cancel to succeed while armed")
	}
	if h.Cancel() {
		t.Error("expected second cancel to report false")
	}

	c.SetTime(testStart.Add(2 * time.Minute))
	time.Sleep(50 * time.Millisecond)
	if fired.Load() {
		t.Error("cancelled callback fired")
	}
}

func TestEveryTicks(t *testing.T) {
	s := NewDefault()

	var count atomic.Int32
	h := s.Every(20*time.Millisecond, func() { count.Add(1) })
	time.Sleep(130 * time.Millisecond)
	if !h.Cancel() {
		t.Error("expected cancel to succeed")
	}
	if h.Cancel() {
		t.Error("expected second cancel to report false")
	}

	got := count.Load()
	if got < 2 {
		t.Fatalf("expected at least 2 ticks in 130ms, got %d", got)
	}

	time.Sleep(60 * time.Millisecond)
	if count.Load() != got {
		t.Error("ticked after cancel")
	}
}

func TestExecutorDispatch(t *testing.T) {
	c := clock.NewTestClock(testStart)
	s := New(c, WithExecutor(async.NewGoRoutineExecutor))

	fired := make(chan struct{})
	s.Once(time.Second, func() { close(fired) })

	c.SetTime(testStart.Add(time.Second))
	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("expected callback dispatched through the executor")
	}
}

func TestNow(t *testing.T) {
	s := NewDefault()
	before := time.Now()
	now := s.Now()
	if now.Before(before.Add(-time.Second)) || now.After(before.Add(time.Second)) {
		t.Errorf("default scheduler time %v too far from wall clock %v", now, before)
	}

	m := NewManual(testStart)
	if !m.Now().Equal(testStart) {
		t.Errorf("expected manual clock at start time, got %v", m.Now())
	}
}
