// Package app assembles the assistant's subsystems. Every binary
// (CLI, HTTP server, MCP) builds the same core and attaches its own
// surface to it.
package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vthunder/timebox/internal/calendar"
	"github.com/vthunder/timebox/internal/config"
	"github.com/vthunder/timebox/internal/handlers"
	"github.com/vthunder/timebox/internal/idle"
	"github.com/vthunder/timebox/internal/journal"
	"github.com/vthunder/timebox/internal/logging"
	"github.com/vthunder/timebox/internal/mirror"
	"github.com/vthunder/timebox/internal/ollama"
	"github.com/vthunder/timebox/internal/parking"
	"github.com/vthunder/timebox/internal/plan"
	"github.com/vthunder/timebox/internal/router"
)

// App holds the wired core subsystems.
type App struct {
	Config  *config.Config
	Journal *journal.Journal
	Store   *plan.Store
	Parking *parking.Service
	Router  *router.Router
}

// Build wires the core from configuration. The calendar mirror is
// optional; everything else always comes up.
func Build(cfg *config.Config) (*App, error) {
	if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	jrnl := journal.New(cfg.StateDir)
	store := plan.NewStore(cfg.StateDir)

	var capability mirror.Capability
	if cfg.Calendar.CredentialsFile != "" {
		client, err := calendar.NewClient(calendar.Config{
			CredentialsFile: cfg.Calendar.CredentialsFile,
			CalendarID:      cfg.Calendar.CalendarID,
		})
		if err != nil {
			// the planner works without a mirror, so degrade instead of failing
			logging.Warn("app", "calendar mirror disabled: %v", err)
		} else {
			capability = client
			logging.Info("app", "calendar mirror enabled")
		}
	}
	store.SetMirror(mirror.New(capability))

	searchModel := ollama.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.SearchModel)
	parkingSvc := parking.NewService(cfg.StateDir, ollama.NewSearcher(searchModel), cfg.ParkingWorkers)

	classifierModel := ollama.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.ClassifierModel)
	handlerModel := ollama.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.HandlerModel)

	rt := router.New(handlers.NewIntentClassifier(classifierModel), jrnl)
	rt.Register(handlers.NewPlannerHandler(handlerModel))
	rt.Register(handlers.NewFocusHandler(handlerModel, parkingSvc))
	rt.Register(handlers.NewParkingHandler(parkingSvc))
	rt.SetContextProvider("PLANNER", func() string {
		return store.CurrentContext("today")
	})

	a := &App{
		Config:  cfg,
		Journal: jrnl,
		Store:   store,
		Parking: parkingSvc,
		Router:  rt,
	}
	rt.AddFixedIntent(router.FixedIntent{
		Phrases: []string{"end my day", "结束今天"},
		Respond: a.endOfDay,
	})
	return a, nil
}

// Start brings up background workers.
func (a *App) Start() {
	a.Parking.Start()
}

// Stop drains background workers.
func (a *App) Stop() {
	a.Parking.Stop()
}

// NewIdleWatcher builds an idle watcher that feeds alerts back through
// the router and emits the reply on the given sink.
func (a *App) NewIdleWatcher(emit func(string)) *idle.Watcher {
	ic := a.Config.Idle
	return idle.NewWatcher(
		time.Duration(ic.IntervalSec)*time.Second,
		time.Duration(ic.ThresholdSec)*time.Second,
		time.Duration(ic.CooldownSec)*time.Second,
		ic.FocusOnly,
		a.Router.LastActivity,
		a.Router.Locked,
		func(alert idle.Alert) {
			a.Journal.LogIdle(alert.IdleSeconds, alert.ActiveWindow)
			reply := a.Router.RouteBackground(alert.Message())
			if reply != "" && emit != nil {
				emit(reply)
			}
		},
	)
}

// endOfDay wraps up: today's plan overview plus whatever was parked in
// a still-open focus session.
func (a *App) endOfDay() string {
	var parts []string

	list := a.Store.List("today")
	parts = append(parts, list.Message)

	if a.Parking.ActiveSession() != "" {
		report := a.Parking.EndSession()
		if !strings.HasPrefix(report, "📭") {
			parts = append(parts, report)
		}
	}

	parts = append(parts, "🌙 Day closed. See you tomorrow.")
	return strings.Join(parts, "\n\n")
}
