package plan

import "strings"

// Task statuses. Consumers treat done/complete/completed as equivalent
// finished states, see IsFinished.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// DefaultType is the task category used when none is given
const DefaultType = "work"

// Task is one time-boxed entry in a daily plan. Start and End are stored
// normalized to "YYYY-MM-DD HH:MM" in the local zone.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	CalendarRef string `json:"calendar_reference,omitempty"`
}

// Key returns the identity used for merge-upserts: the ID when present,
// the title otherwise.
func (t *Task) Key() string {
	if t.ID != "" {
		return t.ID
	}
	return t.Title
}

// Label returns a human-readable name for messages
func (t *Task) Label() string {
	if t.Title != "" {
		return t.Title
	}
	if t.ID != "" {
		return t.ID
	}
	return "untitled task"
}

// IsFinished reports whether a status counts as a finished state
func IsFinished(status string) bool {
	switch strings.ToLower(status) {
	case "done", "completed", "complete", "finished":
		return true
	}
	return false
}

// SyncAction is a calendar mirror operation
type SyncAction string

const (
	SyncCreate SyncAction = "create"
	SyncUpdate SyncAction = "update"
	SyncDelete SyncAction = "delete"
)

// SyncOutcome reports one mirror attempt. An unconfigured mirror returns
// OK=false with an empty note; that is a silent no-op, not an error.
type SyncOutcome struct {
	OK         bool
	ExternalID string
	Note       string
}

// Mirror replicates a task to an external calendar, best effort. It must
// never panic or return out-of-band errors; everything is in the outcome.
type Mirror interface {
	Mirror(task *Task, action SyncAction) SyncOutcome
}

// FailureKind classifies why a plan operation was rejected
type FailureKind string

const (
	FailNone          FailureKind = ""
	FailValidation    FailureKind = "validation"
	FailDateAmbiguity FailureKind = "date_ambiguity"
	FailConflict      FailureKind = "conflict"
	FailNotFound      FailureKind = "not_found"
	FailPersistence   FailureKind = "persistence"
)
