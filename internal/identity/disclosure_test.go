package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "sphere/pkg/domain-errors"
)

func fullClaim() Claim {
	return Claim{
		Nationality:    Str("JPN"),
		Gender:         Str("M"),
		DateOfBirth:    Str("15-06-00"),
		IssuingState:   Str("JPN"),
		Name:           Str("TARO YAMADA"),
		ExpiryDate:     Str("01-01-30"),
		PassportNumber: Str("TK1234567"),
	}
}

func TestFilterForPublication_OnlyDisclosedAndPresent(t *testing.T) {
	claim := Claim{Nationality: Str("JPN"), Gender: Str("M")}
	prefs := DisclosurePreferences{AttrNationality: true, AttrGender: false}

	got := FilterForPublication(claim, prefs, date(2024, time.June, 15)).Persisted()

	assert.Equal(t, map[string]any{"nationality": "JPN"}, got)
}

func TestFilterForPublication_NeverIncludesWithheld(t *testing.T) {
	claim := fullClaim()
	for _, withheld := range Attributes {
		prefs := DisclosurePreferences{}
		for _, a := range Attributes {
			prefs[a] = a != withheld
		}
		pub := FilterForPublication(claim, prefs, date(2024, time.June, 15))

		_, ok := pub.Get(withheld)
		assert.False(t, ok, "withheld %s leaked", withheld)
		assert.NotContains(t, pub.Persisted(), string(withheld))
		if withheld == AttrDateOfBirth {
			assert.NotContains(t, pub.Persisted(), AttrAge)
		}
	}
}

func TestFilterForPublication_NeverFabricates(t *testing.T) {
	prefs := DisclosurePreferences{}
	for _, a := range Attributes {
		prefs[a] = true
	}
	pub := FilterForPublication(Claim{Gender: Str("F"), Name: Str("")}, prefs, date(2024, time.June, 15))

	assert.Equal(t, map[string]any{"gender": "F"}, pub.Persisted())
	_, ok := pub.Age()
	assert.False(t, ok)
}

func TestFilterForPublication_DerivesAge(t *testing.T) {
	prefs := DisclosurePreferences{AttrDateOfBirth: true}

	pub := FilterForPublication(Claim{DateOfBirth: Str("15-06-00")}, prefs, date(2024, time.June, 14))
	age, ok := pub.Age()
	require.True(t, ok)
	assert.Equal(t, 23, age)
	assert.Equal(t, 23, pub.Persisted()[AttrAge])
	assert.Equal(t, "15-06-00", pub.Persisted()["date_of_birth"])

	t.Run("malformed birth date keeps raw value without age", func(t *testing.T) {
		pub := FilterForPublication(Claim{DateOfBirth: Str("garbage!")}, prefs, date(2024, time.June, 14))
		_, ok := pub.Age()
		assert.False(t, ok)
		assert.Equal(t, "garbage!", pub.Persisted()["date_of_birth"])
	})
}

func TestRedactForResponse(t *testing.T) {
	prefs := DisclosurePreferences{AttrNationality: true, AttrName: true}
	got := RedactForResponse(Claim{Nationality: Str("FRA"), Gender: Str("F")}, prefs)

	assert.Equal(t, "FRA", got["nationality"])
	assert.Equal(t, NotDisclosed, got["gender"])
	assert.Equal(t, NotDisclosed, got["passport_number"])
	assert.NotContains(t, got, "name", "disclosed but absent attributes are omitted")
	assert.Len(t, got, len(Attributes)-1)
}

func TestParseDisclosurePreferences(t *testing.T) {
	t.Run("nil falls back to nationality only", func(t *testing.T) {
		prefs, err := ParseDisclosurePreferences(nil)
		require.NoError(t, err)
		assert.True(t, prefs.Enabled(AttrNationality))
		assert.False(t, prefs.Enabled(AttrGender))
	})

	t.Run("unknown attribute", func(t *testing.T) {
		_, err := ParseDisclosurePreferences(map[string]bool{"shoe_size": true})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("round trips through Map", func(t *testing.T) {
		prefs, err := ParseDisclosurePreferences(map[string]bool{"gender": true})
		require.NoError(t, err)
		m := prefs.Map()
		assert.Len(t, m, len(Attributes))
		assert.True(t, m["gender"])
		assert.False(t, m["nationality"])
	})
}

func TestClaim_Validate(t *testing.T) {
	require.NoError(t, Claim{}.Validate())
	require.NoError(t, fullClaim().Validate())
	require.Error(t, Claim{Gender: Str("male")}.Validate())
	require.Error(t, Claim{DateOfBirth: Str("2000-01-01")}.Validate())
}
