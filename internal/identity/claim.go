// Package identity models the identity attributes an external verifier
// asserts about a person, and the author-controlled view of them that may be
// published.
package identity

import (
	dErrors "sphere/pkg/domain-errors"
)

// Attribute names a claim field using the verifier's wire name.
type Attribute string

const (
	AttrNationality    Attribute = "nationality"
	AttrGender         Attribute = "gender"
	AttrDateOfBirth    Attribute = "date_of_birth"
	AttrIssuingState   Attribute = "issuing_state"
	AttrName           Attribute = "name"
	AttrExpiryDate     Attribute = "expiry_date"
	AttrPassportNumber Attribute = "passport_number"
)

// Attributes lists every recognized attribute in a stable order.
var Attributes = []Attribute{
	AttrNationality,
	AttrGender,
	AttrDateOfBirth,
	AttrIssuingState,
	AttrName,
	AttrExpiryDate,
	AttrPassportNumber,
}

func (a Attribute) Valid() bool {
	for _, known := range Attributes {
		if a == known {
			return true
		}
	}
	return false
}

// Gender codes as printed in the passport MRZ.
const (
	GenderMale        = "M"
	GenderFemale      = "F"
	GenderUnspecified = "X"
)

// Claim is the credential subject returned by the verifier. Every field is
// independently optional: nil or empty means the attribute was not disclosed,
// never that it is false. DateOfBirth and ExpiryDate keep the verifier's raw
// DD-MM-YY form.
type Claim struct {
	Nationality    *string `json:"nationality,omitempty"`
	Gender         *string `json:"gender,omitempty"`
	DateOfBirth    *string `json:"date_of_birth,omitempty"`
	IssuingState   *string `json:"issuing_state,omitempty"`
	Name           *string `json:"name,omitempty"`
	ExpiryDate     *string `json:"expiry_date,omitempty"`
	PassportNumber *string `json:"passport_number,omitempty"`
}

// Value returns the attribute and whether it is present.
func (c Claim) Value(a Attribute) (string, bool) {
	var v *string
	switch a {
	case AttrNationality:
		v = c.Nationality
	case AttrGender:
		v = c.Gender
	case AttrDateOfBirth:
		v = c.DateOfBirth
	case AttrIssuingState:
		v = c.IssuingState
	case AttrName:
		v = c.Name
	case AttrExpiryDate:
		v = c.ExpiryDate
	case AttrPassportNumber:
		v = c.PassportNumber
	}
	if v == nil || *v == "" {
		return "", false
	}
	return *v, true
}

// Validate checks the shape of the fields that have a closed domain. It does
// not require any field to be present.
func (c Claim) Validate() error {
	if g, ok := c.Value(AttrGender); ok {
		switch g {
		case GenderMale, GenderFemale, GenderUnspecified:
		default:
			return dErrors.New(dErrors.CodeInvalidInput, "claim gender must be one of M, F, X")
		}
	}
	if dob, ok := c.Value(AttrDateOfBirth); ok {
		if _, err := ParseBirthDate(dob); err != nil {
			return err
		}
	}
	return nil
}

// Str returns a pointer to s, for building claims in code.
func Str(s string) *string { return &s }
