package restriction

import (
	"bytes"
	"encoding/json"
	"fmt"

	"sphere/internal/identity"
	dErrors "sphere/pkg/domain-errors"
)

const maxMinimumAge = 150

// Validate checks the rule set's shape. It accepts any number of countries;
// see ValidateForCreate for the narrower rule applied to new posts.
func (r CommentRestriction) Validate() error {
	if n := r.Nationality; n != nil {
		if n.Mode != NationalityInclude && n.Mode != NationalityExclude {
			return dErrors.New(dErrors.CodeValidation, "nationality mode must be include or exclude")
		}
		if len(n.Countries) == 0 {
			return dErrors.New(dErrors.CodeValidation, "nationality restriction requires at least one country")
		}
		for _, c := range n.Countries {
			if !isCountryCode(c) {
				return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid country code %q", c))
			}
		}
	}
	switch r.Gender {
	case "", identity.GenderMale, identity.GenderFemale, identity.GenderUnspecified:
	default:
		return dErrors.New(dErrors.CodeValidation, "gender restriction must be one of M, F, X")
	}
	if r.MinimumAge < 0 || r.MinimumAge > maxMinimumAge {
		return dErrors.New(dErrors.CodeValidation, "minimum age out of range")
	}
	if r.IssuingState != "" && !isCountryCode(r.IssuingState) {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid issuing state %q", r.IssuingState))
	}
	return nil
}

// ValidateForCreate applies Validate plus the product rule that an allow-list
// names a single country, which is what the verifier can enforce itself.
func (r CommentRestriction) ValidateForCreate() error {
	if err := r.Validate(); err != nil {
		return err
	}
	if n := r.Nationality; n != nil && n.Mode == NationalityInclude && len(n.Countries) > 1 {
		return dErrors.New(dErrors.CodeValidation, "nationality allow-list may hold at most one country")
	}
	return nil
}

// Decode parses the persisted allowed_commenters document. SQL NULL, an empty
// document and JSON null all decode to nil, meaning unrestricted. Unknown
// fields and invalid shapes are rejected so bad data surfaces at the store
// boundary rather than at evaluation time.
func Decode(raw []byte) (*CommentRestriction, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()

	var r CommentRestriction
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decode comment restriction: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("decode comment restriction: %w", err)
	}
	if r.IsEmpty() {
		return nil, nil
	}
	return &r, nil
}

// Encode produces the persisted document. A nil or empty restriction encodes
// to nil so the column stays NULL.
func Encode(r *CommentRestriction) ([]byte, error) {
	if r == nil || r.IsEmpty() {
		return nil, nil
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(r)
}

func isCountryCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}
