package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/gigbridge/gigbridge-backend/pkg/errors"
)

// QueryInt reads an integer query parameter bounded to [lo, hi]. A missing
// parameter yields def.
func QueryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	raw, ok := queryValue(r, key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be an integer").
			WithDetails(map[string]any{"field": key})
	}
	if n < lo || n > hi {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").
			WithDetails(map[string]any{"field": key, "min": lo, "max": hi})
	}
	return n, nil
}

// QueryBool reads a boolean flag such as ?refresh=true. Missing means false.
func QueryBool(r *http.Request, key string) (bool, error) {
	raw, ok := queryValue(r, key)
	if !ok {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be a boolean").
			WithDetails(map[string]any{"field": key})
	}
	return b, nil
}

func queryValue(r *http.Request, key string) (string, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	return raw, raw != ""
}
