// Package restriction holds the rule set a post author attaches to gate who
// may comment, and the pure evaluator that checks a commenter's claim
// against it.
package restriction

// NationalityMode selects allow-list or deny-list semantics.
type NationalityMode string

const (
	NationalityInclude NationalityMode = "include"
	NationalityExclude NationalityMode = "exclude"
)

// NationalityRule matches claim.nationality against a set of ISO 3166
// alpha-3 codes.
type NationalityRule struct {
	Mode      NationalityMode `json:"mode"`
	Countries []string        `json:"countries"`
}

// Contains reports whether code is in the rule's country set.
func (r NationalityRule) Contains(code string) bool {
	for _, c := range r.Countries {
		if c == code {
			return true
		}
	}
	return false
}

// CommentRestriction is the set of predicates a commenter must satisfy.
// A predicate is active when its field is set; active predicates combine
// with AND. The zero value allows everyone.
type CommentRestriction struct {
	Nationality  *NationalityRule `json:"nationality,omitempty"`
	Gender       string           `json:"gender,omitempty"`
	MinimumAge   int              `json:"minimumAge,omitempty"`
	IssuingState string           `json:"issuing_state,omitempty"`
}

// IsEmpty reports whether no predicate is active.
func (r CommentRestriction) IsEmpty() bool {
	return r.Nationality == nil && r.Gender == "" && r.MinimumAge <= 0 && r.IssuingState == ""
}

// AllowedNationality returns the single allow-listed country, which the
// verifier can enforce natively.
func (r CommentRestriction) AllowedNationality() (string, bool) {
	if r.Nationality == nil || r.Nationality.Mode != NationalityInclude || len(r.Nationality.Countries) != 1 {
		return "", false
	}
	return r.Nationality.Countries[0], true
}

// ExcludedCountries returns the deny-list, if the nationality rule is one.
func (r CommentRestriction) ExcludedCountries() []string {
	if r.Nationality == nil || r.Nationality.Mode != NationalityExclude {
		return nil
	}
	return append([]string(nil), r.Nationality.Countries...)
}

// DenyReason names the first predicate a claim failed.
type DenyReason string

const (
	ReasonNone                  DenyReason = ""
	ReasonNationalityNotAllowed DenyReason = "nationality_not_allowed"
	ReasonGenderMismatch        DenyReason = "gender_mismatch"
	ReasonAgeBelowMinimum       DenyReason = "age_below_minimum"
	ReasonInvalidDateOfBirth    DenyReason = "invalid_date_of_birth"
	ReasonIssuingStateMismatch  DenyReason = "issuing_state_mismatch"
	ReasonClaimNotDisclosed     DenyReason = "claim_not_disclosed"
)

// Decision is the evaluator's result. Denial is a value, not an error.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func Allow() Decision { return Decision{Allowed: true} }

func Deny(reason DenyReason) Decision { return Decision{Reason: reason} }

// MissingClaimPolicy decides what an active predicate does when the claim
// lacks the attribute it checks.
type MissingClaimPolicy int

const (
	// MissingClaimDeny fails the predicate with ReasonClaimNotDisclosed.
	MissingClaimDeny MissingClaimPolicy = iota
	// MissingClaimAllow skips the predicate.
	MissingClaimAllow
)

func (p MissingClaimPolicy) String() string {
	if p == MissingClaimAllow {
		return "allow"
	}
	return "deny"
}
