package models

import (
	"time"

	dErrors "sphere/pkg/domain-errors"
)

// Transition is a terminal status change. Stores apply it only to entities
// that are still pending.
type Transition struct {
	To                  Status
	FailureReason       string
	DisclosedAttributes map[string]any
	At                  time.Time
}

func Posted(attrs map[string]any, at time.Time) Transition {
	return Transition{To: StatusPosted, DisclosedAttributes: attrs, At: at}
}

func Failed(reason string, at time.Time) Transition {
	return Transition{To: StatusFailed, FailureReason: reason, At: at}
}

// Validate checks the transition against the entity's current status.
func (t Transition) Validate(from Status) error {
	if !from.CanTransitionTo(t.To) {
		return dErrors.New(dErrors.CodeInvariantViolation, "illegal status transition "+string(from)+" -> "+string(t.To))
	}
	if t.To == StatusFailed && t.FailureReason == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "failed transition requires a reason")
	}
	return nil
}
