package docstore

import (
	"encoding/json"
	"math"
)

// isTruthy reports whether a decoded JSON value counts as "present":
// null, false, empty strings, zero and NaN do not. Empty objects and lists do.
func isTruthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return v != ""
		}
		return f != 0 && !math.IsNaN(f)
	case float64:
		return v != 0 && !math.IsNaN(v)
	case float32:
		return v != 0 && !math.IsNaN(float64(v))
	case int:
		return v != 0
	case int64:
		return v != 0
	case map[string]any:
		return v != nil
	case []any:
		return v != nil
	}

	return true
}
