package workflow

import (
	"strconv"
	"strings"
)

// ── Type coercion ──────────────────────────────────────────
// Bidirectional string↔number conversion used by the transform
// evaluator. Both directions operate on Unicode text as code-point
// sequences; nothing here truncates or re-encodes bytes.
//
// Policy for the directions the calculation examples leave open:
//   - Bool stringifies as "true"/"false".
//   - Null never coerces: both directions fail with a ConversionError
//     naming the field, rather than silently producing "" or 0.

// ToNumber coerces a Value to a float64. The field name is carried
// into the error message for row-scoped reporting.
func ToNumber(field string, v Value) (float64, error) {
	switch v.Kind() {
	case KindNumber:
		return v.Num(), nil
	case KindString:
		s := strings.TrimSpace(v.Str())
		if s == "" {
			return 0, convertStringErr(field, v.Str())
		}
		// ParseFloat also accepts "Inf", "NaN", hex floats, and
		// Go-literal digit underscores; only plain signed decimal /
		// scientific literals count as numeric.
		if strings.ContainsAny(s, "xXnNiI_") {
			return 0, convertStringErr(field, v.Str())
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, convertStringErr(field, v.Str())
		}
		return f, nil
	case KindNull:
		return 0, nullNumberErr(field)
	case KindBool:
		return 0, boolNumberErr(field)
	default:
		return 0, &ConversionError{Field: field, Reason: ": cannot convert " + v.Kind().String() + " to number"}
	}
}

// ToString coerces a Value to its string form.
// Numbers render in minimal decimal notation: integral values carry no
// decimal point, fractional values keep exactly the digits needed to
// round-trip, and scientific notation is never used.
func ToString(field string, v Value) (string, error) {
	switch v.Kind() {
	case KindString:
		return v.Str(), nil
	case KindNumber:
		return FormatNumber(v.Num()), nil
	case KindBool:
		if v.BoolVal() {
			return "true", nil
		}
		return "false", nil
	case KindNull:
		return "", nullStringErr(field)
	default:
		return "", &ConversionError{Field: field, Reason: ": cannot convert " + v.Kind().String() + " to string"}
	}
}

// FormatNumber renders a float64 the way record fields expect:
// 100.0 → "100", 100.5 → "100.5", -15.5 → "-15.5", 7800000000 →
// "7800000000". Always plain decimal, across the full double range.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
