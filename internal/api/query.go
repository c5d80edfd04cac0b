package api

import (
	"fmt"
	"net/url"
	"strconv"
)

// BuildQuery serializes a filter map to a query string (with leading "?").
// Nil values are dropped; falsy-but-valid values such as 0, false, and ""
// are preserved. Returns "" for an empty result.
func BuildQuery(filters map[string]any) string {
	if len(filters) == 0 {
		return ""
	}
	params := url.Values{}
	for key, value := range filters {
		if value == nil {
			continue
		}
		params.Set(key, formatQueryValue(value))
	}
	if len(params) == 0 {
		return ""
	}
	return "?" + params.Encode()
}

func formatQueryValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		// JSON numbers decode as float64; render integers without a
		// trailing ".0" so 0 serializes as "0".
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
