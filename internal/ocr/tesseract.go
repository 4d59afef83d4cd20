package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Runner executes external commands; tests stub it.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	err := cmd.Run()
	return out.Bytes(), errb.Bytes(), err
}

// Tesseract transcribes receipts with a local tesseract binary. It needs
// no API key or network, which makes it the usual last real provider
// before the cascade gives up.
type Tesseract struct {
	binary string
	lang   string
	runner Runner
}

// NewTesseract creates a Tesseract provider. Empty arguments fall back
// to the "tesseract" binary on PATH and English traineddata.
func NewTesseract(binary, lang string) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	if lang == "" {
		lang = "eng"
	}
	return &Tesseract{binary: binary, lang: lang, runner: execRunner{}}
}

// Name implements Provider.
func (t *Tesseract) Name() string { return "tesseract" }

// Recognize writes the normalized image to a temp file and runs
// tesseract against it, reading the transcript from stdout.
func (t *Tesseract) Recognize(ctx context.Context, image []byte, contentType string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	pngData, err := preparePNG(image, contentType)
	if err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp("", "kharcha-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	in := filepath.Join(tmpDir, "receipt.png")
	if err := os.WriteFile(in, pngData, 0o600); err != nil {
		return nil, fmt.Errorf("writing temp image: %w", err)
	}

	stdout, stderr, err := t.runner.Run(ctx, t.binary, in, "stdout", "-l", t.lang)
	if err != nil {
		return nil, fmt.Errorf("running tesseract: %w (stderr: %s)", err, truncate(string(stderr), 512))
	}

	return normalizeTranscript(string(stdout)), nil
}

// Close is a no-op; tesseract holds no resources between runs.
func (t *Tesseract) Close() error {
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
