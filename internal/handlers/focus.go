package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/vthunder/timebox/internal/logging"
	"github.com/vthunder/timebox/internal/parking"
	"github.com/vthunder/timebox/internal/router"
)

const focusPrompt = `You are a focus-session companion. The user is doing deep work; keep
them on task with brief, calm replies. If they report a distraction or a
stray thought, acknowledge it in one line, it has already been captured
for later. When the user wants to wrap up the session, or an [IDLE_ALERT]
message shows they have drifted away, close with a one-line send-off and
append %s on its own line. Otherwise end without the marker so the
session stays open.

%s`

// FocusHandler runs a focus session. Entering it opens a parking
// session; leaving it closes the session and appends the parked-thought
// report to the farewell message.
type FocusHandler struct {
	model   ModelClient
	parking *parking.Service
}

func NewFocusHandler(model ModelClient, svc *parking.Service) *FocusHandler {
	return &FocusHandler{model: model, parking: svc}
}

func (h *FocusHandler) Name() string { return "FOCUS" }

func (h *FocusHandler) Handle(ctx context.Context, input string) (router.Envelope, error) {
	if h.parking.ActiveSession() == "" {
		id := h.parking.StartSession()
		logging.Debug("focus", "parking session %s opened", id)
	}

	idleAlert := strings.HasPrefix(strings.TrimSpace(input), router.IdleAlertPrefix)

	raw, err := h.model.Generate(ctx, fmt.Sprintf(focusPrompt, FinishedMarker, input))
	if err != nil {
		// still close out the parking session so items are not orphaned
		h.parking.EndSession()
		return router.Envelope{}, err
	}

	content, finished := StripMarker(raw)
	if !finished && !idleAlert {
		return router.Envelope{Content: content, Status: router.StatusContinue}, nil
	}

	report := h.parking.EndSession()
	if !strings.HasPrefix(report, "📭") {
		content = content + "\n\n---\n" + report
	}
	return router.Envelope{Content: content, Status: router.StatusFinished}, nil
}
