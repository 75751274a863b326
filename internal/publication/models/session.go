package models

import (
	"encoding/json"
	"time"

	"sphere/internal/identity"
	id "sphere/pkg/domain"
)

// VerifierConfig is what the external verifier is asked to enforce and
// reveal for one proof. It is handed to the client to render the QR code and
// replayed to the verifier on callback.
type VerifierConfig struct {
	Scope             string          `json:"scope"`
	Endpoint          string          `json:"endpoint"`
	Token             string          `json:"token"`
	MinimumAge        int             `json:"minimumAge,omitempty"`
	Nationality       string          `json:"nationality,omitempty"`
	ExcludedCountries []string        `json:"excludedCountries,omitempty"`
	OFAC              bool            `json:"ofac"`
	Disclosures       map[string]bool `json:"disclosures"`
}

// VerificationSession ties a correlation token to the entity it will
// publish. It is minted when the pending entity is created and dropped once
// the entity reaches a terminal status.
type VerificationSession struct {
	Token     string         `json:"token"`
	Kind      Kind           `json:"kind"`
	PostID    id.PostID      `json:"post_id"`
	CommentID id.CommentID   `json:"comment_id,omitempty"`
	AuthorID  id.UserID      `json:"author_id"`
	Config    VerifierConfig `json:"config"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

func (s *VerificationSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Callback is the verifier's proof submission.
type Callback struct {
	Proof         json.RawMessage
	PublicSignals []string
}

// VerifyRequest is sent to the verifier port.
type VerifyRequest struct {
	Proof         json.RawMessage
	PublicSignals []string
	Config        VerifierConfig
}

// VerificationResult is the verifier's answer. It is untrusted: callers
// re-check the claim against their own rules.
type VerificationResult struct {
	IsValid           bool
	IsValidDetails    json.RawMessage
	CredentialSubject identity.Claim
}
