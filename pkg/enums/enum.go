// Package enums holds the string enums shared by the API, the services and the
// Postgres schema. Values match the database enum labels exactly.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

func oneOf[T ~string](v T, all []T) bool {
	return slices.Contains(all, v)
}

// parse matches raw exactly against all. Some enums normalize first.
func parse[T ~string](kind, raw string, all []T, normalize func(string) string) (T, error) {
	candidate := raw
	if normalize != nil {
		candidate = normalize(raw)
	}
	if v := T(candidate); oneOf(v, all) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, raw)
}

func lowerTrim(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func upperTrim(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
