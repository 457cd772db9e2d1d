// Package enums holds the closed string sets stored in the database and
// exchanged with clients. Values are compared case-sensitively.
package enums

import (
	"fmt"
	"slices"
)

func parse[T ~string](set []T, kind, raw string) (T, error) {
	if v := T(raw); slices.Contains(set, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
