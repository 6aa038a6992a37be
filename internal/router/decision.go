package router

import "strings"

// DecisionKind tags the decoded classifier output
type DecisionKind int

const (
	// DecisionCall hands the turn to a named handler
	DecisionCall DecisionKind = iota
	// DecisionReply answers the user directly
	DecisionReply
	// DecisionMalformed is classifier output with neither prefix; the
	// router treats it as an implicit reply
	DecisionMalformed
)

// Decision is the tagged union decoded from the classifier's raw reply.
// Expected shapes: "CALL: <TARGET> | <reason>" or "REPLY: <text>".
type Decision struct {
	Kind   DecisionKind
	Target string
	Reason string
	Text   string
}

// DecodeDecision parses raw classifier output. Parsing fragility lives
// here, isolated from the router's state machine.
func DecodeDecision(raw string) Decision {
	trimmed := strings.TrimSpace(raw)

	if rest, ok := strings.CutPrefix(trimmed, "CALL:"); ok {
		target, reason, _ := strings.Cut(rest, "|")
		target = strings.ToUpper(strings.TrimSpace(target))
		if target == "" {
			return Decision{Kind: DecisionMalformed, Text: trimmed}
		}
		return Decision{
			Kind:   DecisionCall,
			Target: target,
			Reason: strings.TrimSpace(reason),
		}
	}

	if rest, ok := strings.CutPrefix(trimmed, "REPLY:"); ok {
		return Decision{Kind: DecisionReply, Text: strings.TrimSpace(rest)}
	}

	return Decision{Kind: DecisionMalformed, Text: trimmed}
}
