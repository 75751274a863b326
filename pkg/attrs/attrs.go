// Package attrs reads values back out of slog-style key/value slices so one
// attribute list can feed both the structured log line and the audit event.
package attrs

import (
	"fmt"

	id "sphere/pkg/domain"
)

// Lookup returns the value paired with key in a slice formatted as
// [key1, value1, key2, value2, ...].
func Lookup(attrs []any, key string) (any, bool) {
	for i := 0; i < len(attrs)-1; i += 2 {
		k, ok := attrs[i].(string)
		if !ok {
			continue
		}
		if k == key {
			return attrs[i+1], true
		}
	}
	return nil, false
}

// ExtractString returns the value for key as a string. Stringers (IDs,
// statuses) are rendered. Returns empty string if the key is absent.
func ExtractString(attrs []any, key string) string {
	v, ok := Lookup(attrs, key)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return ""
	}
}

// ExtractUserID returns the user ID stored under key, accepting either an
// id.UserID or its string form. Returns the nil ID otherwise.
func ExtractUserID(attrs []any, key string) id.UserID {
	v, ok := Lookup(attrs, key)
	if !ok {
		return id.UserID{}
	}
	switch t := v.(type) {
	case id.UserID:
		return t
	case string:
		parsed, err := id.ParseUserID(t)
		if err != nil {
			return id.UserID{}
		}
		return parsed
	default:
		return id.UserID{}
	}
}
