// Package ocr turns receipt images into plain text through a ranked list
// of recognition providers. Providers are best-effort: the cascade tries
// each in order and degrades to "no text" when none are available, so
// callers never have to distinguish between a blank receipt and a
// missing OCR backend.
package ocr

import (
	"context"
	"log/slog"
)

// EngineNone is the provenance tag used when every provider failed.
const EngineNone = "none"

// Result is the recognized text for a single image. Lines are cleaned
// (trimmed, empties dropped); FullText preserves the raw transcript.
type Result struct {
	FullText string   `json:"fullText"`
	Lines    []string `json:"lines"`
	Engine   string   `json:"engine"`
}

// Provider recognizes text in one receipt image.
type Provider interface {
	// Name identifies the provider in logs and result provenance.
	Name() string
	// Recognize extracts text from an image. Input may be JPEG, PNG,
	// GIF, HEIC/HEIF or PDF; providers normalize internally.
	Recognize(ctx context.Context, image []byte, contentType string) (*Result, error)
	// Close releases provider resources.
	Close() error
}

// Cascade tries providers in order until one succeeds.
type Cascade struct {
	providers []Provider
}

// NewCascade builds a cascade over the given providers. Order is rank:
// earlier providers are preferred.
func NewCascade(providers ...Provider) *Cascade {
	return &Cascade{providers: providers}
}

// Recognize runs the first provider that succeeds and stamps the result
// with its name. When all providers fail the cascade returns an empty
// Result tagged EngineNone rather than an error; downstream extraction
// treats missing text as a low-confidence draft, not a failure.
func (c *Cascade) Recognize(ctx context.Context, image []byte, contentType string) (*Result, error) {
	for _, p := range c.providers {
		res, err := p.Recognize(ctx, image, contentType)
		if err != nil {
			slog.Warn("OCR provider unavailable", "engine", p.Name(), "error", err)
			continue
		}
		res.Engine = p.Name()
		return res, nil
	}

	return &Result{Engine: EngineNone}, nil
}

// Close closes every provider, returning the first error seen.
func (c *Cascade) Close() error {
	var firstErr error
	for _, p := range c.providers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
