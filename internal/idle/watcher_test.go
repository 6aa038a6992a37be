package idle

import (
	"strings"
	"sync"
	"testing"
	"time"
)

type alertRecorder struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *alertRecorder) record(a Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

func (r *alertRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

func TestPollBelowThresholdIsQuiet(t *testing.T) {
	rec := &alertRecorder{}
	lastActivity := time.Now()
	w := NewWatcher(time.Second, 5*time.Minute, 10*time.Minute, false,
		func() time.Time { return lastActivity },
		func() bool { return false },
		rec.record)

	w.poll(lastActivity.Add(time.Minute))
	if rec.count() != 0 {
		t.Errorf("No alert expected below threshold, got %d", rec.count())
	}
}

func TestPollFiresPastThreshold(t *testing.T) {
	rec := &alertRecorder{}
	lastActivity := time.Now()
	w := NewWatcher(time.Second, 5*time.Minute, 10*time.Minute, false,
		func() time.Time { return lastActivity },
		func() bool { return true },
		rec.record)

	w.poll(lastActivity.Add(6 * time.Minute))
	if rec.count() != 1 {
		t.Fatalf("Expected 1 alert, got %d", rec.count())
	}

	alert := rec.alerts[0]
	if alert.IdleSeconds != 360 {
		t.Errorf("Expected 360 idle seconds, got %d", alert.IdleSeconds)
	}
	if alert.FocusState != "locked" {
		t.Errorf("Expected locked focus state, got %q", alert.FocusState)
	}
}

func TestCooldownSuppressesRepeats(t *testing.T) {
	rec := &alertRecorder{}
	lastActivity := time.Now()
	w := NewWatcher(time.Second, 5*time.Minute, 10*time.Minute, false,
		func() time.Time { return lastActivity },
		func() bool { return false },
		rec.record)

	w.poll(lastActivity.Add(6 * time.Minute))
	w.poll(lastActivity.Add(7 * time.Minute))
	if rec.count() != 1 {
		t.Errorf("Cooldown should suppress the second alert, got %d", rec.count())
	}

	// past the cooldown it fires again
	w.poll(lastActivity.Add(17 * time.Minute))
	if rec.count() != 2 {
		t.Errorf("Expected a second alert after cooldown, got %d", rec.count())
	}
}

func TestFocusOnlySkipsUnlockedSessions(t *testing.T) {
	rec := &alertRecorder{}
	lastActivity := time.Now()
	locked := false
	w := NewWatcher(time.Second, 5*time.Minute, 10*time.Minute, true,
		func() time.Time { return lastActivity },
		func() bool { return locked },
		rec.record)

	w.poll(lastActivity.Add(6 * time.Minute))
	if rec.count() != 0 {
		t.Fatalf("focus_only must skip unlocked sessions, got %d alerts", rec.count())
	}

	locked = true
	w.poll(lastActivity.Add(7 * time.Minute))
	if rec.count() != 1 {
		t.Errorf("focus_only should alert while locked, got %d", rec.count())
	}
}

func TestAlertMessage(t *testing.T) {
	a := Alert{IdleSeconds: 372, ActiveWindow: "firefox (42% cpu)", FocusState: "locked"}
	msg := a.Message()
	if !strings.HasPrefix(msg, "[IDLE_ALERT]") {
		t.Errorf("Message must carry the alert prefix: %q", msg)
	}
	for _, want := range []string{"~6m", "firefox (42% cpu)", "locked"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Message missing %q: %s", want, msg)
		}
	}
}

func TestStartStopIdempotent(t *testing.T) {
	w := NewWatcher(time.Hour, time.Hour, time.Hour, false,
		time.Now, func() bool { return false }, nil)

	w.Start()
	w.Start() // second start is a no-op
	w.Stop()
	w.Stop() // second stop must not double-close
}
