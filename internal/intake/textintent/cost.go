package textintent

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Optional "$", a number with optional thousands separators and decimals, optional k/m suffix.
// The number must stand alone: no digit, comma or dot glued to either side, so "3000usd" reads
// as 3000 and "1,2345" reads as nothing.
var costPattern = regexp.MustCompile(`(?:^|[^\d,.])\$?\s?(\d{1,3}(?:,\d{3})+|\d+)(\.\d+)?(?:\s?([km])\b)?(?:[^\d,.]|[.,](?:\D|$)|$)`)

// ParseApproxAnnualCost reads the first currency-shaped number in text as a whole-unit amount.
// "$19k/yr" is 19000, "4,200" is 4200. ok is false when no number is present.
func ParseApproxAnnualCost(text string) (float64, bool) {
	m := costPattern.FindStringSubmatch(Normalize(text))
	if m == nil {
		return 0, false
	}

	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "")+m[2], 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}

	switch m[3] {
	case "k":
		v *= 1_000
	case "m":
		v *= 1_000_000
	}
	return math.Round(v), true
}

var seatWordPattern = regexp.MustCompile(`\b(?:seats?|users?|licen[cs]es?|people|members?)\b`)

// MentionsSeats reports whether text talks about seat counts rather than cost.
func MentionsSeats(text string) bool {
	return seatWordPattern.MatchString(Normalize(text))
}
