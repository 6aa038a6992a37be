// Package handlers provides the conversational capabilities the router
// dispatches to: a planner over the daily schedule, a focus-session
// companion, and a thought-parking intake.
package handlers

import (
	"context"
	"strings"
)

// FinishedMarker is the sentinel a model appends when it considers the
// conversation turn complete. It is stripped before the reply reaches
// the user and demotes the envelope status to FINISHED.
const FinishedMarker = "<<FINISHED>>"

// ModelClient generates text from a prompt. Satisfied by ollama.Client.
type ModelClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// StripMarker removes the finished sentinel from model output and
// reports whether it was present.
func StripMarker(raw string) (string, bool) {
	if !strings.Contains(raw, FinishedMarker) {
		return strings.TrimSpace(raw), false
	}
	cleaned := strings.ReplaceAll(raw, FinishedMarker, "")
	return strings.TrimSpace(cleaned), true
}
