package ocr

import "strings"

// transcriptPrompt asks a vision model for a verbatim transcription.
// Field inference happens on-device afterwards, so the model is told not
// to interpret anything.
const transcriptPrompt = `You are transcribing a photographed receipt or invoice.

Read ALL visible text in the image, top to bottom, and return it as plain
text with one receipt line per output line. Preserve the original wording,
numbers, currency markers and dates exactly as printed.

Important:
- Do not summarize, interpret, or reorder anything
- Do not add labels, commentary, or fields of your own
- Do not use markdown code blocks
- If no text is readable, return an empty response`

// normalizeTranscript cleans a model transcript into the Result shape:
// markdown fences stripped, lines trimmed, empty lines dropped.
func normalizeTranscript(text string) *Result {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```text")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}

	return &Result{FullText: text, Lines: lines}
}
