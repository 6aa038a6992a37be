// Package idle detects when the user has drifted away from the
// assistant and emits a nudge. Activity is defined by routed turns;
// the foreground process probe only adds color to the alert text.
package idle

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/vthunder/timebox/internal/logging"
	"github.com/vthunder/timebox/internal/router"
)

// Alert describes one idle detection.
type Alert struct {
	IdleSeconds  int
	ActiveWindow string
	FocusState   string
}

// Message renders the alert as synthetic router input.
func (a Alert) Message() string {
	return fmt.Sprintf("%s idle for ~%dm. Foreground: %s. Session: %s.",
		router.IdleAlertPrefix, a.IdleSeconds/60, a.ActiveWindow, a.FocusState)
}

// Watcher polls the router's last-activity timestamp and fires the
// callback when the user has been quiet past the threshold. A cooldown
// prevents nagging; focusOnly restricts alerts to locked sessions.
type Watcher struct {
	mu sync.Mutex

	interval  time.Duration
	threshold time.Duration
	cooldown  time.Duration
	focusOnly bool

	lastActivity func() time.Time
	focused      func() bool
	onIdle       func(Alert)

	lastAlert time.Time
	stopChan  chan struct{}
	running   bool
}

func NewWatcher(interval, threshold, cooldown time.Duration, focusOnly bool,
	lastActivity func() time.Time, focused func() bool, onIdle func(Alert)) *Watcher {
	return &Watcher{
		interval:     interval,
		threshold:    threshold,
		cooldown:     cooldown,
		focusOnly:    focusOnly,
		lastActivity: lastActivity,
		focused:      focused,
		onIdle:       onIdle,
		stopChan:     make(chan struct{}),
	}
}

// Start begins polling in a background goroutine.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopChan = make(chan struct{})
	w.mu.Unlock()

	go w.watchLoop()
	logging.Info("idle", "started (interval=%v, threshold=%v, cooldown=%v, focus_only=%v)",
		w.interval, w.threshold, w.cooldown, w.focusOnly)
}

// Stop halts polling.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		close(w.stopChan)
		w.running = false
	}
}

func (w *Watcher) watchLoop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.poll(time.Now())
		}
	}
}

func (w *Watcher) poll(now time.Time) {
	idle := now.Sub(w.lastActivity())
	if idle < w.threshold {
		return
	}

	inFocus := w.focused != nil && w.focused()
	if w.focusOnly && !inFocus {
		return
	}

	w.mu.Lock()
	if now.Sub(w.lastAlert) < w.cooldown {
		w.mu.Unlock()
		return
	}
	w.lastAlert = now
	w.mu.Unlock()

	state := "unlocked"
	if inFocus {
		state = "locked"
	}
	alert := Alert{
		IdleSeconds:  int(idle.Seconds()),
		ActiveWindow: foregroundHint(),
		FocusState:   state,
	}
	logging.Debug("idle", "alert after %v idle (foreground=%s)", idle.Truncate(time.Second), alert.ActiveWindow)
	if w.onIdle != nil {
		w.onIdle(alert)
	}
}

// foregroundHint guesses what the user is doing from the busiest
// process. There is no portable active-window API, so the top CPU
// consumer stands in for it.
func foregroundHint() string {
	procs, err := process.Processes()
	if err != nil || len(procs) == 0 {
		return "unknown"
	}

	type candidate struct {
		name string
		cpu  float64
	}
	var candidates []candidate
	for _, p := range procs {
		cpu, err := p.CPUPercent()
		if err != nil || cpu <= 0 {
			continue
		}
		name, err := p.Name()
		if err != nil || name == "" {
			continue
		}
		candidates = append(candidates, candidate{name: name, cpu: cpu})
	}
	if len(candidates) == 0 {
		return "unknown"
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].cpu > candidates[j].cpu })
	top := candidates[0]
	return fmt.Sprintf("%s (%.0f%% cpu)", strings.TrimSpace(top.name), top.cpu)
}
