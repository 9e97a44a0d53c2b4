package report

import (
	"math"
	"strconv"
	"strings"
)

// LeadingInt coerces a loosely typed stored value. Surrounding whitespace is
// ignored, then the run of leading ASCII digits is parsed ("4 stars" -> 4,
// "4.5" -> 4). NULL, empty, and values without a leading digit report false.
func LeadingInt(p *string) (int, bool) {
	if p == nil {
		return 0, false
	}
	s := strings.TrimSpace(*p)
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	if n == 0 {
		return 0, false
	}
	v, err := strconv.Atoi(s[:n])
	if err != nil { // overflow
		return 0, false
	}
	return v, true
}

var monthNames = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,
}

// Month coerces a stored month: numeric 1..12, or an English month name or
// its three-letter abbreviation.
func Month(p *string) (int, bool) {
	if m, ok := LeadingInt(p); ok {
		return m, m >= 1 && m <= 12
	}
	if p == nil {
		return 0, false
	}
	s := strings.ToLower(strings.TrimSpace(*p))
	if m, ok := monthNames[s]; ok {
		return m, true
	}
	if len(s) == 3 {
		for name, m := range monthNames {
			if strings.HasPrefix(name, s) {
				return m, true
			}
		}
	}
	return 0, false
}

// IsVerified reads a Y/N style verified-purchase flag.
func IsVerified(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "Y", "YES", "TRUE", "1":
		return true
	}
	return false
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
