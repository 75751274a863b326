package models

import (
	dErrors "sphere/pkg/domain-errors"
)

// Status is the verification lifecycle of a post or comment.
//
// Transitions: pending → posted, pending → failed. Posted and failed are
// terminal; nothing re-enters pending.
type Status string

const (
	StatusPending Status = "pending"
	StatusPosted  Status = "posted"
	StatusFailed  Status = "failed"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusPosted, StatusFailed:
		return Status(s), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown status: "+s)
	}
}

func (s Status) String() string { return string(s) }

func (s Status) IsTerminal() bool {
	return s == StatusPosted || s == StatusFailed
}

// CanTransitionTo reports whether s → next is a legal transition.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && next.IsTerminal()
}

// Kind tells posts and comments apart where they share machinery.
type Kind string

const (
	KindPost    Kind = "post"
	KindComment Kind = "comment"
)

// Failure reasons recorded on entities that end in StatusFailed. Eligibility
// denials record the restriction's deny reason instead.
const (
	FailureSuperseded        = "superseded"
	FailureExpired           = "expired"
	FailureProofInvalid      = "proof_invalid"
	FailureVerifierError     = "verifier_error"
	FailureInvalidClaim      = "invalid_claim"
	FailureSessionMissing    = "session_missing"
	FailureSessionStoreError = "session_store_error"
)
