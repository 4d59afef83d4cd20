package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/kharcha-app/kharcha-scan/internal/draft"
	"github.com/kharcha-app/kharcha-scan/internal/kharcha"
	"github.com/kharcha-app/kharcha-scan/internal/logging"
	"github.com/kharcha-app/kharcha-scan/internal/metrics"
	"github.com/kharcha-app/kharcha-scan/internal/ocr"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("kharcha-scan")
	var (
		port         = fs.IntLong("port", 8080, "HTTP server port")
		dbPath       = fs.StringLong("db", "kharcha-scan.db", "Database file path")
		storagePath  = fs.StringLong("storage", "./scans", "Scan image storage directory")
		engines      = fs.StringLong("engines", "tesseract", "Comma-separated OCR engines in preference order: gemini, ollama, tesseract")
		geminiKey    = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel  = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL    = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel  = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, bakllava, qwen2-vl)")
		tesseractBin = fs.StringLong("tesseract-bin", "tesseract", "Tesseract binary path")
		tesseractLng = fs.StringLong("tesseract-lang", "eng", "Tesseract language code")
		backendURL   = fs.StringLong("backend-url", "", "Kharcha backend base URL (submission disabled when empty)")
		backendToken = fs.StringLong("backend-token", "", "Kharcha backend bearer token")
		authUser     = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass     = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logLevel     = fs.StringLong("log-level", "info", "Log level: debug, info, warn, error")
		logJSON      = fs.BoolLong("log-json", "Emit logs as JSON")
		showVersion  = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("KHARCHA_SCAN"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	logging.Setup(logging.Config{Level: logging.ParseLevel(*logLevel), JSON: *logJSON})

	slog.Info("Initializing database...")
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

	slog.Info("Initializing storage...")
	store, err := draft.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	var backend draft.ExpenseAPI
	if *backendURL != "" {
		backend = kharcha.NewClient(kharcha.Config{
			BaseURL: *backendURL,
			Token:   *backendToken,
		})
		slog.Info("Backend submission enabled", "url", *backendURL)
	} else {
		slog.Warn("No backend URL configured, draft submission is disabled")
	}

	scanMetrics := metrics.NewScanMetrics()

	service := draft.NewService(db, cascade, store, backend, scanMetrics)

	basicAuth := draft.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := draft.NewServer(service, basicAuth, scanMetrics.Handler())

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
