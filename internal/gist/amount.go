package gist

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Plausible bounds for a single receipt total, in rupees. Values outside
// are far more likely to be phone numbers, IDs or misreads.
const (
	minAmount = 1
	maxAmount = 500000
)

var (
	// Currency-tolerant numeric token: optional Rs./Rs/NPR/रू marker, then
	// either a thousands-grouped number or a plain decimal. The grouped
	// alternative requires at least one comma group so an unseparated
	// digit run always matches whole via the plain alternative; the long
	// ID guard below depends on seeing the full run.
	reAmountToken = regexp.MustCompile(`(?i)(?:rs\.?|npr|रू)?\s*(\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)`)

	// A labeled total line is more trustworthy than an arbitrary larger
	// number elsewhere on the receipt.
	reTotalKeyword = regexp.MustCompile(`(?i)\b(total|net payable|grand total|amount due|paid|payment)\b`)

	reLongDigitRun = regexp.MustCompile(`\d{7,}`)
)

// amountCandidate is a numeric token that survived the plausibility
// filters, tied back to the line it was found on. Transient per call.
type amountCandidate struct {
	value          float64
	sourceLine     int
	keywordBoosted bool
}

// findAmounts scans every usable line for currency-like tokens and
// returns the surviving candidates, best first: keyword-boosted before
// unboosted, higher value first within the same tier.
func findAmounts(lines []string) []amountCandidate {
	var candidates []amountCandidate

	for i, line := range lines {
		boosted := reTotalKeyword.MatchString(line)

		// Administrative lines (tax IDs, invoice and phone numbers) are
		// the main source of absurd amount candidates. A total keyword
		// overrides the skip: "Total (incl. VAT) 500" is still a total.
		if !boosted && reAdminNoise.MatchString(line) {
			continue
		}

		for _, match := range reAmountToken.FindAllStringSubmatch(line, -1) {
			raw := match[1]
			digits := strings.ReplaceAll(raw, ",", "")
			if reLongDigitRun.MatchString(digits) {
				continue
			}
			value, err := strconv.ParseFloat(digits, 64)
			if err != nil {
				continue
			}
			if value < minAmount || value > maxAmount {
				continue
			}
			candidates = append(candidates, amountCandidate{
				value:          value,
				sourceLine:     i,
				keywordBoosted: boosted,
			})
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].keywordBoosted != candidates[b].keywordBoosted {
			return candidates[a].keywordBoosted
		}
		return candidates[a].value > candidates[b].value
	})

	return candidates
}

func formatAmount(value float64) string {
	return fmt.Sprintf("%.2f", value)
}
