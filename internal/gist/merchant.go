package gist

import (
	"regexp"
	"unicode/utf8"
)

const (
	merchantConfidenceFound    = 0.7
	merchantConfidenceNotFound = 0.25

	// Receipt headers put the merchant name within the first few lines;
	// looking further mostly picks up line items. Empirical constant.
	merchantWindow = 6
)

// Administrative text that typically surrounds a merchant name on a
// receipt header. Shared with the amount scanner.
var (
	reAdminNoise   = regexp.MustCompile(`(?i)(pan|vat|invoice|bill no|tax|tel|phone)`)
	reFourDigitRun = regexp.MustCompile(`\d{4,}`)
)

type merchantGuess struct {
	value      string
	confidence float64
}

// findMerchant picks a merchant name out of the receipt header: the
// first few lines that are neither administrative noise nor too short,
// preferring one without a long digit run (a phone or invoice number
// that slipped past the noise filter).
func findMerchant(lines []string) merchantGuess {
	var window []string
	for _, line := range lines {
		if utf8.RuneCountInString(line) <= 2 {
			continue
		}
		if reAdminNoise.MatchString(line) {
			continue
		}
		window = append(window, line)
		if len(window) == merchantWindow {
			break
		}
	}

	merchant := ""
	for _, line := range window {
		if !reFourDigitRun.MatchString(line) {
			merchant = line
			break
		}
	}
	if merchant == "" && len(window) > 0 {
		merchant = window[0]
	}

	confidence := merchantConfidenceNotFound
	if merchant != "" {
		confidence = merchantConfidenceFound
	}
	return merchantGuess{value: merchant, confidence: confidence}
}
