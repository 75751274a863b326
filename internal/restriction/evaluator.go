package restriction

import (
	"time"

	"sphere/internal/identity"
)

// Evaluate checks claim against every active predicate of r, in the order
// nationality, gender, minimum age, issuing state, and returns the first
// failure. It is pure: now is the only clock it reads.
func Evaluate(r CommentRestriction, claim identity.Claim, now time.Time, policy MissingClaimPolicy) Decision {
	if n := r.Nationality; n != nil {
		nationality, ok := claim.Value(identity.AttrNationality)
		switch {
		case !ok:
			if policy == MissingClaimDeny {
				return Deny(ReasonClaimNotDisclosed)
			}
		case n.Mode == NationalityExclude && n.Contains(nationality):
			return Deny(ReasonNationalityNotAllowed)
		case n.Mode != NationalityExclude && !n.Contains(nationality):
			return Deny(ReasonNationalityNotAllowed)
		}
	}

	if r.Gender != "" {
		gender, ok := claim.Value(identity.AttrGender)
		switch {
		case !ok:
			if policy == MissingClaimDeny {
				return Deny(ReasonClaimNotDisclosed)
			}
		case gender != r.Gender:
			return Deny(ReasonGenderMismatch)
		}
	}

	if r.MinimumAge > 0 {
		dob, ok := claim.Value(identity.AttrDateOfBirth)
		if !ok {
			if policy == MissingClaimDeny {
				return Deny(ReasonClaimNotDisclosed)
			}
		} else {
			age, err := identity.AgeAt(dob, now)
			if err != nil {
				return Deny(ReasonInvalidDateOfBirth)
			}
			if age < r.MinimumAge {
				return Deny(ReasonAgeBelowMinimum)
			}
		}
	}

	if r.IssuingState != "" {
		state, ok := claim.Value(identity.AttrIssuingState)
		switch {
		case !ok:
			if policy == MissingClaimDeny {
				return Deny(ReasonClaimNotDisclosed)
			}
		case state != r.IssuingState:
			return Deny(ReasonIssuingStateMismatch)
		}
	}

	return Allow()
}

// EvaluateOptional treats a nil restriction as unrestricted.
func EvaluateOptional(r *CommentRestriction, claim identity.Claim, now time.Time, policy MissingClaimPolicy) Decision {
	if r == nil {
		return Allow()
	}
	return Evaluate(*r, claim, now, policy)
}
