package handlers

import (
	"context"
	"fmt"

	"github.com/vthunder/timebox/internal/router"
)

const plannerPrompt = `You are a pragmatic day-planning assistant. The user's message may
arrive inside a <User_Input> block together with a <System_State> block
that shows the live schedule; ground every answer in that state instead
of guessing. Help the user arrange, adjust and review their day. Keep
answers short and concrete. When the planning exchange is complete,
append %s on its own line; while you still need input from the user,
end without the marker.

%s`

// PlannerHandler holds a multi-turn scheduling conversation. It keeps
// the session lock as long as the model asks follow-up questions.
type PlannerHandler struct {
	model ModelClient
}

func NewPlannerHandler(model ModelClient) *PlannerHandler {
	return &PlannerHandler{model: model}
}

func (h *PlannerHandler) Name() string { return "PLANNER" }

func (h *PlannerHandler) Handle(ctx context.Context, input string) (router.Envelope, error) {
	raw, err := h.model.Generate(ctx, fmt.Sprintf(plannerPrompt, FinishedMarker, input))
	if err != nil {
		return router.Envelope{}, err
	}
	content, finished := StripMarker(raw)
	status := router.StatusContinue
	if finished {
		status = router.StatusFinished
	}
	return router.Envelope{Content: content, Status: status}, nil
}
