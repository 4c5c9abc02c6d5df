package session

import (
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestArmFires(t *testing.T) {
	var fired atomic.Int32
	sch := NewScheduler(func(userID string) {
		if userID == "u1" {
			fired.Add(1)
		}
	})
	defer sch.StopAll()

	sch.Arm("u1", 10*time.Millisecond)
	waitFor(t, time.Second, func() bool { return fired.Load() == 1 })

	if sch.Armed("u1") {
		t.Fatalf("timer should be gone after firing")
	}
}

func TestRearmReplacesTimer(t *testing.T) {
	var fired atomic.Int32
	sch := NewScheduler(func(userID string) { fired.Add(1) })
	defer sch.StopAll()

	sch.Arm("u1", 20*time.Millisecond)
	sch.Arm("u1", 20*time.Millisecond)
	sch.Arm("u1", 20*time.Millisecond)

	waitFor(t, time.Second, func() bool { return fired.Load() >= 1 })
	time.Sleep(50 * time.Millisecond)

	if got := fired.Load(); got != 1 {
		t.Fatalf("re-arming should keep a single timer, fired %d times", got)
	}
}

func TestCancel(t *testing.T) {
	var fired atomic.Int32
	sch := NewScheduler(func(userID string) { fired.Add(1) })
	defer sch.StopAll()

	sch.Arm("u1", 20*time.Millisecond)
	if !sch.Cancel("u1") {
		t.Fatalf("cancel should report an armed timer")
	}
	if sch.Cancel("u1") {
		t.Fatalf("second cancel should report nothing armed")
	}

	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("cancelled timer must not fire")
	}
}

func TestArmUntilPastDeadlineFiresImmediately(t *testing.T) {
	var fired atomic.Int32
	sch := NewScheduler(func(userID string) { fired.Add(1) })
	defer sch.StopAll()

	sch.ArmUntil("u1", time.Now().Add(-time.Hour))
	waitFor(t, time.Second, func() bool { return fired.Load() == 1 })
}
