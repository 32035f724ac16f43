package schema

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// decimalRegex accepts plain decimal notation with optional sign and exponent.
// Thousand separators, currency symbols and percent signs are rejected.
var decimalRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// ToNumber coerces a string or numeric value into a finite float.
//
// Whitespace is trimmed and an empty string is 0. Unsigned 0x/0o/0b integer
// literals are accepted. Anything unparsable, NaN or infinite yields 0.
// The bool result is false only for types that are neither strings nor numbers.
func ToNumber(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case string:
		f = parseNumber(t)
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case int32:
		f = float64(t)
	case uint:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		f = parseNumber(t.String())
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, true
	}
	return f, true
}

func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			if strings.ContainsRune(s, '_') {
				return 0
			}
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return 0
			}
			return float64(n)
		}
	}
	if !decimalRegex.MatchString(s) {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Out of range parses to ±Inf, which is not finite.
		return 0
	}
	return f
}

func toString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
