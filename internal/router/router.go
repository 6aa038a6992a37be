package router

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vthunder/timebox/internal/journal"
	"github.com/vthunder/timebox/internal/logging"
)

// Envelope statuses. Anything that is not CONTINUE is treated as
// FINISHED after normalization.
const (
	StatusContinue = "CONTINUE"
	StatusFinished = "FINISHED"
)

// IdleAlertPrefix marks synthetic inputs generated by the idle watcher.
// They may pass through to the locked handler but can never extend a lock.
const IdleAlertPrefix = "[IDLE_ALERT]"

// Envelope is the uniform handler return shape.
type Envelope struct {
	Content string
	Status  string
}

// Handler is a conversational capability the router can dispatch to.
type Handler interface {
	Name() string
	Handle(ctx context.Context, input string) (Envelope, error)
}

// Classifier produces a raw routing decision for one user turn.
type Classifier interface {
	Classify(ctx context.Context, input string) (string, error)
}

// FixedIntent short-circuits classification for a small set of exact
// phrases (e.g. "end my day" flows that must never depend on the model).
type FixedIntent struct {
	Phrases []string
	Respond func() string
}

var defaultEscapeWords = []string{
	"退出", "exit", "stop", "解锁", "unlock", "终止", "结束",
}

// Router owns the session lock state machine. At most one handler holds
// the lock; while held, every turn is forwarded to it without
// classification until it returns FINISHED or the user says an escape
// word.
type Router struct {
	classifier Classifier
	jrnl       *journal.Journal

	handlers     map[string]Handler
	contextFor   map[string]func() string
	escapeWords  []string
	fixedIntents []FixedIntent

	mu           sync.Mutex
	locked       Handler
	lastActivity time.Time
}

func New(classifier Classifier, jrnl *journal.Journal) *Router {
	return &Router{
		classifier:   classifier,
		jrnl:         jrnl,
		handlers:     make(map[string]Handler),
		contextFor:   make(map[string]func() string),
		escapeWords:  defaultEscapeWords,
		lastActivity: time.Now(),
	}
}

// Register makes a handler dispatchable under its own name.
func (r *Router) Register(h Handler) {
	r.handlers[strings.ToUpper(h.Name())] = h
}

// SetContextProvider attaches a system-state snapshot to a handler.
// When set, the handler receives the user input and the snapshot in
// delimited blocks instead of the bare input.
func (r *Router) SetContextProvider(target string, fn func() string) {
	r.contextFor[strings.ToUpper(target)] = fn
}

// AddFixedIntent registers a phrase set that bypasses classification.
// Fixed intents are only consulted when no handler holds the lock.
func (r *Router) AddFixedIntent(fi FixedIntent) {
	r.fixedIntents = append(r.fixedIntents, fi)
}

// Locked reports whether a handler currently holds the session lock.
func (r *Router) Locked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locked != nil
}

// LastActivity returns the time of the most recent routed turn. The
// idle watcher compares against this.
func (r *Router) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}

// Route processes one turn of user input and returns the reply text.
func (r *Router) Route(ctx context.Context, input string) string {
	trimmed := strings.TrimSpace(input)
	normalized := strings.ToLower(trimmed)
	idleAlert := strings.HasPrefix(trimmed, IdleAlertPrefix)

	r.mu.Lock()
	if !idleAlert {
		// synthetic alerts must not count as user activity
		r.lastActivity = time.Now()
	}
	locked := r.locked
	r.mu.Unlock()

	if locked != nil {
		if r.isEscape(normalized) {
			r.setLocked(nil)
			r.jrnl.LogUnlock("escape word")
			logging.Info("router", "lock released by escape word")
			return "🔓 Session lock released."
		}
		env := r.safeHandle(ctx, locked, input, idleAlert)
		r.applyLock(locked, env)
		return env.Content
	}

	if idleAlert {
		// nothing is locked, so there is no session to nudge
		return "👋 Still around? Say the word when you want to plan or focus."
	}

	for _, fi := range r.fixedIntents {
		if matchesAny(normalized, fi.Phrases) {
			r.jrnl.LogRoute(trimmed, "FIXED", "fixed intent")
			return fi.Respond()
		}
	}

	raw, err := r.classifier.Classify(ctx, input)
	if err != nil {
		r.jrnl.LogError("CLASSIFIER", err.Error())
		logging.Warn("router", "classification failed: %v", err)
		return "⚠️ I couldn't process that right now. Please try again."
	}

	decision := DecodeDecision(raw)
	switch decision.Kind {
	case DecisionCall:
		h, ok := r.handlers[decision.Target]
		if !ok {
			r.jrnl.LogError(decision.Target, "no such handler")
			return fmt.Sprintf("No handler for %s is implemented yet.", decision.Target)
		}
		r.jrnl.LogRoute(trimmed, decision.Target, decision.Reason)
		logging.Debug("router", "CALL %s: %s", decision.Target, logging.Truncate(decision.Reason, 80))
		env := r.safeHandle(ctx, h, input, idleAlert)
		r.applyLock(h, env)
		return env.Content
	case DecisionReply:
		r.jrnl.LogRoute(trimmed, "REPLY", "")
		return decision.Text
	default:
		r.jrnl.LogRoute(trimmed, "REPLY", "malformed decision")
		logging.Debug("router", "malformed decision: %s", logging.Truncate(raw, 120))
		return decision.Text
	}
}

// RouteBackground routes a turn that did not come from the user, such
// as an idle alert. An empty reply means nothing needs to be surfaced.
func (r *Router) RouteBackground(input string) string {
	return r.Route(context.Background(), input)
}

// safeHandle invokes a handler with context injection and converts
// every failure mode, including panics, into a FINISHED envelope so a
// broken handler can never wedge the lock.
func (r *Router) safeHandle(ctx context.Context, h Handler, input string, idleAlert bool) (env Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			r.jrnl.LogError(h.Name(), fmt.Sprintf("panic: %v", rec))
			logging.Warn("router", "%s panicked: %v", h.Name(), rec)
			env = Envelope{
				Content: fmt.Sprintf("[%s error] internal failure, session released", h.Name()),
				Status:  StatusFinished,
			}
		}
	}()

	payload := input
	if provide, ok := r.contextFor[strings.ToUpper(h.Name())]; ok && provide != nil {
		payload = injectContext(input, provide())
	}

	env, err := h.Handle(ctx, payload)
	if err != nil {
		r.jrnl.LogError(h.Name(), err.Error())
		logging.Warn("router", "%s failed: %v", h.Name(), err)
		return Envelope{
			Content: fmt.Sprintf("[%s error] %v", h.Name(), err),
			Status:  StatusFinished,
		}
	}

	env.Status = normalizeStatus(env.Status)
	if idleAlert {
		// idle nudges never extend a lock
		env.Status = StatusFinished
	}
	return env
}

func (r *Router) applyLock(h Handler, env Envelope) {
	if env.Status == StatusContinue {
		r.setLocked(h)
	} else {
		r.setLocked(nil)
	}
	r.jrnl.LogHandler(h.Name(), env.Status, logging.Truncate(env.Content, 120))
}

func (r *Router) setLocked(h Handler) {
	r.mu.Lock()
	r.locked = h
	r.mu.Unlock()
}

func (r *Router) isEscape(normalized string) bool {
	for _, w := range r.escapeWords {
		if strings.Contains(normalized, w) {
			return true
		}
	}
	return false
}

func matchesAny(normalized string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(normalized, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func normalizeStatus(status string) string {
	if strings.EqualFold(strings.TrimSpace(status), StatusContinue) {
		return StatusContinue
	}
	return StatusFinished
}

func injectContext(input, state string) string {
	if strings.TrimSpace(state) == "" {
		return input
	}
	return fmt.Sprintf("<User_Input>\n%s\n</User_Input>\n\n<System_State>\n%s\n</System_State>", input, state)
}
