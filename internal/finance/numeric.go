package finance

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ToFinite converts v to a finite float64. ok is false for nil, booleans,
// unparsable strings, NaN and ±Inf.
func ToFinite(v any) (f float64, ok bool) {
	switch x := v.(type) {
	case nil, bool:
		return 0, false
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case *float64:
		if x == nil {
			return 0, false
		}
		f = *x
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = p
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// finiteOr returns the finite value of p or def.
func finiteOr(p *float64, def float64) float64 {
	if v, ok := ToFinite(p); ok {
		return v
	}
	return def
}

func isFinite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
