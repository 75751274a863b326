package identity

import (
	"strconv"
	"time"

	dErrors "sphere/pkg/domain-errors"
)

// centuryPivot splits two-digit years: below it is 20YY, at or above is 19YY.
const centuryPivot = 50

// BirthDate is a calendar date parsed from the verifier's DD-MM-YY form.
type BirthDate struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseBirthDate parses a DD-MM-YY string. Two-digit years below 50 map to
// 20YY and the rest to 19YY.
func ParseBirthDate(s string) (BirthDate, error) {
	if len(s) != 8 || s[2] != '-' || s[5] != '-' {
		return BirthDate{}, dErrors.New(dErrors.CodeInvalidInput, "date of birth must be DD-MM-YY")
	}
	day, err1 := twoDigits(s[0:2])
	month, err2 := twoDigits(s[3:5])
	yy, err3 := twoDigits(s[6:8])
	if err1 != nil || err2 != nil || err3 != nil {
		return BirthDate{}, dErrors.New(dErrors.CodeInvalidInput, "date of birth must be DD-MM-YY")
	}

	year := 1900 + yy
	if yy < centuryPivot {
		year = 2000 + yy
	}
	if month < 1 || month > 12 || day < 1 {
		return BirthDate{}, dErrors.New(dErrors.CodeInvalidInput, "date of birth is not a calendar date")
	}
	// time.Date normalizes overflow, so a mismatch means the day does not exist.
	if t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC); t.Day() != day {
		return BirthDate{}, dErrors.New(dErrors.CodeInvalidInput, "date of birth is not a calendar date")
	}
	return BirthDate{Year: year, Month: time.Month(month), Day: day}, nil
}

func twoDigits(s string) (int, error) {
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, strconv.ErrSyntax
	}
	return strconv.Atoi(s)
}

// AgeAt returns completed years at now, using now's calendar fields as-is.
// A birth date in the future yields a negative age.
func (b BirthDate) AgeAt(now time.Time) int {
	age := now.Year() - b.Year
	if now.Month() < b.Month || (now.Month() == b.Month && now.Day() < b.Day) {
		age--
	}
	return age
}

// AgeAt parses dob and returns the age at now.
func AgeAt(dob string, now time.Time) (int, error) {
	b, err := ParseBirthDate(dob)
	if err != nil {
		return 0, err
	}
	return b.AgeAt(now), nil
}
