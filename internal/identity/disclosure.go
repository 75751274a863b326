package identity

import (
	"time"

	dErrors "sphere/pkg/domain-errors"
)

// NotDisclosed replaces withheld attributes in the response view.
const NotDisclosed = "Not disclosed"

// AttrAge is the derived attribute published alongside date_of_birth.
const AttrAge = "age"

// DisclosurePreferences records which attributes the author allows to be
// published. Missing keys are false.
type DisclosurePreferences map[Attribute]bool

// DefaultDisclosurePreferences discloses nationality only.
func DefaultDisclosurePreferences() DisclosurePreferences {
	return DisclosurePreferences{AttrNationality: true}
}

// ParseDisclosurePreferences validates attribute names from client input.
func ParseDisclosurePreferences(raw map[string]bool) (DisclosurePreferences, error) {
	if raw == nil {
		return DefaultDisclosurePreferences(), nil
	}
	prefs := make(DisclosurePreferences, len(raw))
	for name, enabled := range raw {
		attr := Attribute(name)
		if !attr.Valid() {
			return nil, dErrors.New(dErrors.CodeValidation, "unknown disclosure attribute: "+name)
		}
		prefs[attr] = enabled
	}
	return prefs, nil
}

func (p DisclosurePreferences) Enabled(a Attribute) bool {
	return p[a]
}

// Map returns the preferences keyed by wire name with every attribute present.
func (p DisclosurePreferences) Map() map[string]bool {
	out := make(map[string]bool, len(Attributes))
	for _, a := range Attributes {
		out[string(a)] = p[a]
	}
	return out
}

// PublicAttributes is the disclosure-gated subset of a claim.
type PublicAttributes struct {
	values map[Attribute]string
	age    *int
}

// FilterForPublication keeps an attribute iff the author disclosed it and the
// claim carries it. A disclosed, well-formed date of birth also yields the
// derived age at now.
func FilterForPublication(c Claim, p DisclosurePreferences, now time.Time) PublicAttributes {
	out := PublicAttributes{values: make(map[Attribute]string)}
	for _, a := range Attributes {
		if !p.Enabled(a) {
			continue
		}
		v, ok := c.Value(a)
		if !ok {
			continue
		}
		out.values[a] = v
	}
	if dob, ok := out.values[AttrDateOfBirth]; ok {
		if age, err := AgeAt(dob, now); err == nil {
			out.age = &age
		}
	}
	return out
}

func (pa PublicAttributes) Get(a Attribute) (string, bool) {
	v, ok := pa.values[a]
	return v, ok
}

func (pa PublicAttributes) Age() (int, bool) {
	if pa.age == nil {
		return 0, false
	}
	return *pa.age, true
}

func (pa PublicAttributes) Len() int { return len(pa.values) }

// Persisted returns the stored view: withheld attributes are omitted.
func (pa PublicAttributes) Persisted() map[string]any {
	out := make(map[string]any, len(pa.values)+1)
	for a, v := range pa.values {
		out[string(a)] = v
	}
	if pa.age != nil {
		out[AttrAge] = *pa.age
	}
	return out
}

// RedactForResponse returns the callback response view: every attribute the
// author withheld reads NotDisclosed, disclosed ones carry the claim value,
// and disclosed-but-absent ones are left out.
func RedactForResponse(c Claim, p DisclosurePreferences) map[string]string {
	out := make(map[string]string, len(Attributes))
	for _, a := range Attributes {
		if !p.Enabled(a) {
			out[string(a)] = NotDisclosed
			continue
		}
		if v, ok := c.Value(a); ok {
			out[string(a)] = v
		}
	}
	return out
}
