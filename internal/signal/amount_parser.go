package signal

import (
	"regexp"
	"strconv"
	"strings"
)

// amountMatch is one currency figure found in a document. USDM is nil
// when the figure carried no recognizable magnitude.
type amountMatch struct {
	Raw  string
	USDM *float64
}

// Matches "$160M", "$4.3 million", "$30bn", "$82b", "$500k" and bare
// "$1,200". Magnitude alternatives are ordered longest-first so "bn"
// wins over "b".
var amountRe = regexp.MustCompile(`(?i)\$\s?(\d{1,3}(?:,\d{3})*(?:\.\d+)?|\d+(?:\.\d+)?)\s*(thousand|million|billion|bn|k|m|b)?\b`)

// parseAmounts scans text for currency amounts in document order and
// normalizes each to millions USD where the magnitude is recognizable.
func parseAmounts(text string) []amountMatch {
	var out []amountMatch
	for _, m := range amountRe.FindAllStringSubmatch(text, -1) {
		raw := strings.TrimSpace(m[0])
		match := amountMatch{Raw: raw}
		if v, ok := normalizeUSDM(m[1], m[2]); ok {
			match.USDM = &v
		}
		out = append(out, match)
	}
	return out
}

// normalizeUSDM converts a numeric string plus magnitude suffix to
// millions USD. A missing or unknown magnitude returns ok=false so the
// caller keeps the raw text without inventing a number.
func normalizeUSDM(num, magnitude string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(magnitude) {
	case "k", "thousand":
		return v / 1000, true
	case "m", "million":
		return v, true
	case "b", "bn", "billion":
		return v * 1000, true
	}
	return 0, false
}
