package ocr

import (
	"fmt"
	"log/slog"
	"strings"
)

// Options carries per-engine settings for Build.
type Options struct {
	GeminiKey     string
	GeminiModel   string
	OllamaURL     string
	OllamaModel   string
	TesseractBin  string
	TesseractLang string
}

// Build turns a comma-separated engine list into providers in
// preference order. Valid engine names are gemini, ollama and
// tesseract.
func Build(engines string, opts Options) ([]Provider, error) {
	var providers []Provider
	for _, name := range strings.Split(engines, ",") {
		name = strings.TrimSpace(name)
		switch name {
		case "":
			continue
		case "gemini":
			if opts.GeminiKey == "" {
				return nil, fmt.Errorf("gemini engine requires an API key")
			}
			slog.Info("Initializing Gemini engine...", "model", opts.GeminiModel)
			p, err := NewGemini(opts.GeminiKey, opts.GeminiModel)
			if err != nil {
				return nil, fmt.Errorf("initializing gemini: %w", err)
			}
			providers = append(providers, p)
		case "ollama":
			slog.Info("Initializing Ollama engine...", "url", opts.OllamaURL, "model", opts.OllamaModel)
			p, err := NewOllama(opts.OllamaURL, opts.OllamaModel)
			if err != nil {
				return nil, fmt.Errorf("initializing ollama: %w", err)
			}
			providers = append(providers, p)
		case "tesseract":
			slog.Info("Initializing Tesseract engine...", "binary", opts.TesseractBin, "lang", opts.TesseractLang)
			providers = append(providers, NewTesseract(opts.TesseractBin, opts.TesseractLang))
		default:
			return nil, fmt.Errorf("unknown OCR engine %q, valid engines are gemini, ollama, tesseract", name)
		}
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one OCR engine is required")
	}
	return providers, nil
}
