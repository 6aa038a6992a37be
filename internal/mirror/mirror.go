// Package mirror bridges plan tasks to an external calendar capability.
// Replication is best effort: failures become notes on the caller's
// result, never errors, and a missing capability degrades to a silent
// no-op so the assistant works with zero calendar integration.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vthunder/timebox/internal/logging"
	"github.com/vthunder/timebox/internal/plan"
)

// ErrUnsupported is returned by capabilities that lack an optional
// operation (update or delete).
var ErrUnsupported = errors.New("calendar operation not supported")

// Capability is the narrow contract the adapter consumes. Create is
// mandatory; Update and Delete may return ErrUnsupported.
type Capability interface {
	CreateEvent(ctx context.Context, title string, start, end time.Time) (string, error)
	UpdateEvent(ctx context.Context, eventRef, title string, start, end time.Time) (string, error)
	DeleteEvent(ctx context.Context, eventRef string) error
}

// Unconfigured is the capability variant used when no calendar is set
// up. Every operation reports ErrUnsupported; the adapter translates
// that into a silent no-op.
type Unconfigured struct{}

func (Unconfigured) CreateEvent(context.Context, string, time.Time, time.Time) (string, error) {
	return "", ErrUnsupported
}

func (Unconfigured) UpdateEvent(context.Context, string, string, time.Time, time.Time) (string, error) {
	return "", ErrUnsupported
}

func (Unconfigured) DeleteEvent(context.Context, string) error {
	return ErrUnsupported
}

// Adapter implements plan.Mirror over a Capability
type Adapter struct {
	capability Capability
	timeout    time.Duration
}

// New creates an adapter. A nil capability means unconfigured.
func New(capability Capability) *Adapter {
	if capability == nil {
		capability = Unconfigured{}
	}
	return &Adapter{
		capability: capability,
		timeout:    30 * time.Second,
	}
}

// Mirror replicates one task change to the external calendar. Update
// falls back to create when the capability cannot update or the update
// fails; the fresh event ID then replaces the task's stored reference.
// Delete without a stored reference is a silent no-op. Panics from the
// capability are contained here.
func (a *Adapter) Mirror(task *plan.Task, action plan.SyncAction) (outcome plan.SyncOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = plan.SyncOutcome{Note: fmt.Sprintf("calendar capability panicked: %v", r)}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if action == plan.SyncDelete {
		if task.CalendarRef == "" {
			return plan.SyncOutcome{}
		}
		err := a.capability.DeleteEvent(ctx, task.CalendarRef)
		if errors.Is(err, ErrUnsupported) {
			return plan.SyncOutcome{}
		}
		if err != nil {
			return plan.SyncOutcome{Note: "calendar delete failed: " + err.Error()}
		}
		return plan.SyncOutcome{OK: true}
	}

	start, sok := plan.NormalizeTimestamp(task.Start, "")
	end, eok := plan.NormalizeTimestamp(task.End, "")
	if !sok || !eok {
		return plan.SyncOutcome{Note: fmt.Sprintf("cannot format %q -> %q for the calendar", task.Start, task.End)}
	}

	if action == plan.SyncUpdate && task.CalendarRef != "" {
		ref, err := a.capability.UpdateEvent(ctx, task.CalendarRef, task.Title, start, end)
		if err == nil {
			if ref == "" {
				ref = task.CalendarRef
			}
			return plan.SyncOutcome{OK: true, ExternalID: ref}
		}
		if !errors.Is(err, ErrUnsupported) {
			logging.Debug("mirror", "update of %s failed (%v), recreating", task.CalendarRef, err)
		}
		// treat update failure as recoverable via recreate
	}

	ref, err := a.capability.CreateEvent(ctx, task.Title, start, end)
	if errors.Is(err, ErrUnsupported) {
		return plan.SyncOutcome{}
	}
	if err != nil {
		return plan.SyncOutcome{Note: "calendar sync failed: " + err.Error()}
	}
	return plan.SyncOutcome{OK: true, ExternalID: ref}
}
