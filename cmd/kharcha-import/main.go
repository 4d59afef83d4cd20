// Command kharcha-import walks a directory of receipt images and runs
// each one through the scan pipeline, leaving the resulting drafts in
// the database for later review.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kharcha-app/kharcha-scan/internal/draft"
	"github.com/kharcha-app/kharcha-scan/internal/logging"
	"github.com/kharcha-app/kharcha-scan/internal/ocr"
)

func main() {
	fs := ff.NewFlagSet("kharcha-import")
	var (
		dir          = fs.StringLong("dir", "", "Directory of receipt images to import (required)")
		dbPath       = fs.StringLong("db", "kharcha-scan.db", "Database file path")
		storagePath  = fs.StringLong("storage", "./scans", "Scan image storage directory")
		engines      = fs.StringLong("engines", "tesseract", "Comma-separated OCR engines in preference order: gemini, ollama, tesseract")
		geminiKey    = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel  = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL    = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel  = fs.StringLong("ollama-model", "llava", "Ollama model name")
		tesseractBin = fs.StringLong("tesseract-bin", "tesseract", "Tesseract binary path")
		tesseractLng = fs.StringLong("tesseract-lang", "eng", "Tesseract language code")
		workers      = fs.IntLong("workers", 4, "Concurrent scan workers")
		scansPerSec  = fs.IntLong("rate", 2, "Maximum scans started per second")
		logLevel     = fs.StringLong("log-level", "info", "Log level: debug, info, warn, error")
		logJSON      = fs.BoolLong("log-json", "Emit logs as JSON")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("KHARCHA_SCAN"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{Level: logging.ParseLevel(*logLevel), JSON: *logJSON})

	if *dir == "" {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintln(os.Stderr, "error: --dir is required")
		os.Exit(1)
	}

	files, err := collectImages(*dir)
	if err != nil {
		slog.Error("Failed to read import directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		slog.Info("No receipt images found", "dir", *dir)
		return
	}

	db, err := draft.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	apiKey := *geminiKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	providers, err := ocr.Build(*engines, ocr.Options{
		GeminiKey:     apiKey,
		GeminiModel:   *geminiModel,
		OllamaURL:     *ollamaURL,
		OllamaModel:   *ollamaModel,
		TesseractBin:  *tesseractBin,
		TesseractLang: *tesseractLng,
	})
	if err != nil {
		slog.Error("Failed to initialize OCR engines", "error", err)
		os.Exit(1)
	}
	cascade := ocr.NewCascade(providers...)
	defer cascade.Close()

	store, err := draft.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	service := draft.NewService(db, cascade, store, nil, nil)

	limiter := rate.NewLimiter(rate.Limit(float64(*scansPerSec)), 1)

	var imported, failed atomic.Int64
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(*workers)

	slog.Info("Importing receipts", "dir", *dir, "count", len(files), "workers", *workers)

	for _, path := range files {
		g.Go(func() error {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}

			data, err := os.ReadFile(path)
			if err != nil {
				slog.Error("Failed to read file", "path", path, "error", err)
				failed.Add(1)
				return nil
			}

			d, err := service.ProcessScan(ctx, filepath.Base(path), data, contentTypeFor(path))
			if err != nil {
				slog.Error("Failed to process scan", "path", path, "error", err)
				failed.Add(1)
				return nil
			}

			slog.Info("Imported receipt",
				"path", path,
				"id", d.ID,
				"amount", d.Amount,
				"merchant", d.Merchant,
				"engine", d.Engine,
			)
			imported.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("Import aborted", "error", err)
		os.Exit(1)
	}

	slog.Info("Import finished", "imported", imported.Load(), "failed", failed.Load())
	if failed.Load() > 0 {
		os.Exit(1)
	}
}

// collectImages returns the receipt files directly under dir
func collectImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png", ".pdf", ".heic", ".heif":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}
