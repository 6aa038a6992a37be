package handlers

import (
	"context"
	"fmt"
)

const classifierPrompt = `You are a routing layer for a personal productivity assistant.
Decide who should handle the user's message. Respond with EXACTLY ONE line
in one of these two formats and nothing else:

CALL: <TARGET> | <one short reason>
REPLY: <a direct answer to the user>

Available targets:
- PLANNER: scheduling, rescheduling, reviewing or asking about the daily plan.
- FOCUS: starting, running or ending a focus/deep-work session.
- PARKING: capturing a stray thought, question or todo to deal with later.

Rules:
- Use CALL only for the targets listed above, spelled exactly as shown.
- Use REPLY for greetings, small talk and anything no target covers.
- Never output both formats. Never add explanations outside the line.

User message:
%s`

// IntentClassifier asks a model for a one-line routing decision.
type IntentClassifier struct {
	model ModelClient
}

func NewIntentClassifier(model ModelClient) *IntentClassifier {
	return &IntentClassifier{model: model}
}

func (c *IntentClassifier) Classify(ctx context.Context, input string) (string, error) {
	return c.model.Generate(ctx, fmt.Sprintf(classifierPrompt, input))
}
