package gist

import (
	"regexp"
	"strconv"
	"time"
)

const (
	dateConfidenceFound    = 0.8
	dateConfidenceFallback = 0.35
)

// ISO-like dates (year first) are unambiguous and tried before localized
// day-first ones. The localized pattern is read day-before-month, the
// convention on South Asian receipts; two-digit years map into 2000+.
var (
	reDateISO       = regexp.MustCompile(`(\d{4})[-/](\d{1,2})[-/](\d{1,2})`)
	reDateLocalized = regexp.MustCompile(`(\d{1,2})[-/](\d{1,2})[-/](\d{2,4})`)
)

type dateGuess struct {
	value      string
	confidence float64
}

// findDate scans lines in order and returns the first token that parses
// to a real calendar date, formatted YYYY-MM-DD. Without one it falls
// back to the current date at low confidence.
func findDate(lines []string, now time.Time) dateGuess {
	for _, line := range lines {
		if m := reDateISO.FindStringSubmatch(line); m != nil {
			if d, ok := buildDate(m[1], m[2], m[3]); ok {
				return dateGuess{value: d, confidence: dateConfidenceFound}
			}
		}
		if m := reDateLocalized.FindStringSubmatch(line); m != nil {
			if d, ok := buildDate(m[3], m[2], m[1]); ok {
				return dateGuess{value: d, confidence: dateConfidenceFound}
			}
		}
	}

	return dateGuess{
		value:      now.Format("2006-01-02"),
		confidence: dateConfidenceFallback,
	}
}

// buildDate validates year/month/day strings as a calendar date.
// time.Date normalizes overflow (month 13, day 45), so a round-trip
// comparison catches tokens that only look like dates.
func buildDate(year, month, day string) (string, bool) {
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)

	if y < 100 {
		y += 2000
	}

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || t.Month() != time.Month(m) || t.Day() != d {
		return "", false
	}
	return t.Format("2006-01-02"), true
}
