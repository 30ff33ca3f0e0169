package scheduler

import "time"

// Manual is a deterministic Scheduler for tests. Nothing fires on its own;
// Advance moves the virtual clock and runs every due callback synchronously
// on the calling goroutine, in deadline order. Callbacks may freely schedule
// or cancel further tasks mid-advance; tasks that land inside the remaining
// window fire in the same Advance call.
//
// Two tasks due at the same instant fire in arming order. Callers must not
// rely on that order; it merely keeps test runs reproducible.
//
// Manual is not safe for concurrent use.
type Manual struct {
	now   time.Time
	seq   uint64
	tasks []*manualTask
}

type manualTask struct {
	at       time.Time
	interval time.Duration // 0 for one-shot
	fn       func()
	seq      uint64
	fired    bool
	dead     bool
}

func (t *manualTask) Cancel() bool {
	if t.dead || t.fired {
		return false
	}
	t.dead = true
	return true
}

// NewManual returns a Manual scheduler whose clock reads start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	return m.now
}

func (m *Manual) Once(d time.Duration, fn func()) Handle {
	return m.schedule(m.now.Add(d), 0, fn)
}

func (m *Manual) Every(d time.Duration, fn func()) Handle {
	return m.schedule(m.now.Add(d), d, fn)
}

func (m *Manual) schedule(at time.Time, interval time.Duration, fn func()) Handle {
	m.seq++
	t := &manualTask{at: at, interval: interval, fn: fn, seq: m.seq}
	m.tasks = append(m.tasks, t)
	return t
}

// Pending reports how many tasks are still armed.
func (m *Manual) Pending() int {
	n := 0
	for _, t := range m.tasks {
		if !t.dead && !t.fired {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d, firing due callbacks as it goes.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	for {
		// Re-scan every round: callbacks re-enter the scheduler.
		t := m.nextDue(target)
		if t == nil {
			break
		}
		m.now = t.at
		if t.interval > 0 {
			t.at = t.at.Add(t.interval)
		} else {
			t.fired = true
		}
		t.fn()
	}
	m.now = target
	m.compact()
}

func (m *Manual) nextDue(target time.Time) *manualTask {
	var due *manualTask
	for _, t := range m.tasks {
		if t.dead || t.fired || t.at.After(target) {
			continue
		}
		if due == nil || t.at.Before(due.at) || (t.at.Equal(due.at) && t.seq < due.seq) {
			due = t
		}
	}
	return due
}

func (m *Manual) compact() {
	live := m.tasks[:0]
	for _, t := range m.tasks {
		if !t.dead && !t.fired {
			live = append(live, t)
		}
	}
	m.tasks = live
}
