// Package gist infers a structured expense draft (amount, date, merchant)
// from noisy receipt OCR text. It is the offline rule engine behind the
// scan-and-review flow: every field carries a confidence label so the
// review step can highlight what needs human correction.
package gist

import (
	"strings"
	"time"
)

// Level is a three-step trust label attached to each inferred field.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// Record-level confidence is amount-centric: a wrong date or merchant is
// an annoyance, a wrong amount corrupts the ledger.
const (
	confidenceBoosted   = 0.92
	confidenceUnboosted = 0.62
	confidenceNoAmount  = 0.18
)

// OCRResult is the text handed over by an OCR engine. Lines takes
// precedence as the working representation; when absent it is derived by
// splitting FullText on newlines.
type OCRResult struct {
	FullText string   `json:"fullText"`
	Lines    []string `json:"lines"`
}

// FieldConfidence labels each inferred field. All three keys are always
// present in the JSON encoding.
type FieldConfidence struct {
	Amount   Level `json:"amount"`
	Date     Level `json:"date"`
	Merchant Level `json:"merchant"`
}

// ExpenseDraft is the best-effort guess produced for one receipt. Amount
// is fixed two-decimal formatting or empty, Date is always a populated
// YYYY-MM-DD string, Merchant may be empty. OCRText passes the original
// full text through unchanged for audit.
type ExpenseDraft struct {
	Amount          string          `json:"amount"`
	Date            string          `json:"date"`
	Merchant        string          `json:"merchant"`
	OCRText         string          `json:"ocrText"`
	Confidence      float64         `json:"confidence"`
	FieldConfidence FieldConfidence `json:"fieldConfidence"`
}

// Extract converts OCR output into a confidence-annotated expense draft.
// It is total: any input, including empty, yields a well-formed draft.
// Missing data degrades confidence instead of failing.
func Extract(in OCRResult) ExpenseDraft {
	return ExtractAt(in, time.Now())
}

// ExtractAt is Extract with a pinned clock for the no-date fallback.
func ExtractAt(in OCRResult, now time.Time) ExpenseDraft {
	lines := normalizeLines(in)

	candidates := findAmounts(lines)
	date := findDate(lines, now)
	merchant := findMerchant(lines)

	draft := ExpenseDraft{
		Date:     date.value,
		Merchant: merchant.value,
		OCRText:  in.FullText,
		FieldConfidence: FieldConfidence{
			Amount:   LevelLow,
			Date:     LevelLow,
			Merchant: LevelLow,
		},
	}

	if date.confidence >= 0.7 {
		draft.FieldConfidence.Date = LevelHigh
	}
	if merchant.confidence >= 0.65 {
		draft.FieldConfidence.Merchant = LevelMedium
	}

	switch {
	case len(candidates) == 0:
		draft.Confidence = confidenceNoAmount
	case candidates[0].keywordBoosted:
		draft.Amount = formatAmount(candidates[0].value)
		draft.Confidence = confidenceBoosted
		draft.FieldConfidence.Amount = LevelHigh
	default:
		draft.Amount = formatAmount(candidates[0].value)
		draft.Confidence = confidenceUnboosted
		draft.FieldConfidence.Amount = LevelMedium
	}

	return draft
}

// normalizeLines returns the trimmed, non-empty working line list.
func normalizeLines(in OCRResult) []string {
	src := in.Lines
	if len(src) == 0 && in.FullText != "" {
		src = strings.Split(in.FullText, "\n")
	}

	lines := make([]string, 0, len(src))
	for _, line := range src {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
