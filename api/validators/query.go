package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
)

// ParseQueryInt reads an integer query parameter bounded to [lo, hi],
// returning fallback when the parameter is absent.
func ParseQueryInt(r *http.Request, key string, fallback, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		return 0, queryError(key, "must be an integer", nil)
	case n < lo || n > hi:
		return 0, queryError(key, "out of range", map[string]any{"min": lo, "max": hi})
	}
	return n, nil
}

func queryError(key, problem string, extra map[string]any) error {
	details := map[string]any{"field": key}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, key+" "+problem).WithDetails(details)
}
