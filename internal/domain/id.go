package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NormalizeID converts an identifier received from a client into its
// canonical string form. Strings are trimmed; integral numbers (including
// JSON numbers decoded as float64 or json.Number) are formatted in base 10.
// Anything else is rejected with ErrInvalid.
func NormalizeID(v any) (string, error) {
	var s string
	switch id := v.(type) {
	case string:
		s = strings.TrimSpace(id)
	case json.Number:
		if n, err := id.Int64(); err == nil {
			s = strconv.FormatInt(n, 10)
			break
		}
		f, err := id.Float64()
		if err != nil {
			return "", fmt.Errorf("identifier %q is not an integer: %w", id.String(), ErrInvalid)
		}
		return NormalizeID(f)
	case float64:
		if math.IsNaN(id) || math.IsInf(id, 0) || id != math.Trunc(id) {
			return "", fmt.Errorf("identifier %v is not an integer: %w", id, ErrInvalid)
		}
		s = strconv.FormatFloat(id, 'f', 0, 64)
	case int:
		s = strconv.Itoa(id)
	case int64:
		s = strconv.FormatInt(id, 10)
	case int32:
		s = strconv.FormatInt(int64(id), 10)
	case uint64:
		s = strconv.FormatUint(id, 10)
	default:
		return "", fmt.Errorf("identifier of type %T is not supported: %w", v, ErrInvalid)
	}

	if s == "" {
		return "", fmt.Errorf("identifier must not be empty: %w", ErrInvalid)
	}
	return s, nil
}
