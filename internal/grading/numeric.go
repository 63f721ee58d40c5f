package grading

import (
	"strconv"
	"strings"
)

// numericEqual reports whether key and resp are both numbers and equal
// once currency symbols and thousands separators are dropped, so "£1,250"
// matches "1250". A trailing unit must agree unless one side is a bare
// number: "10 am" matches "10" but not "10 pm".
func numericEqual(key, resp string) bool {
	kv, kUnit, kOK := parseNumber(key)
	rv, rUnit, rOK := parseNumber(resp)
	if !kOK || !rOK || kv != rv {
		return false
	}
	return kUnit == "" || rUnit == "" || kUnit == rUnit
}

// parseNumber splits s into a leading number and the normalised text after
// it.
func parseNumber(s string) (float64, string, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "£$€")
	s = strings.ReplaceAll(s, ",", "")
	unit := ""
	if f := strings.Fields(s); len(f) > 0 {
		s = f[0]
		unit = normalize(strings.Join(f[1:], " "))
	}
	s = strings.TrimRight(s, "%")
	if s == "" {
		return 0, "", false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, "", false
	}
	return v, unit, true
}
