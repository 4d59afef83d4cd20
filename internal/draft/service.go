package draft

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kharcha-app/kharcha-scan/internal/gist"
	"github.com/kharcha-app/kharcha-scan/internal/kharcha"
	"github.com/kharcha-app/kharcha-scan/internal/ocr"
)

// IDGenerator generates unique IDs for drafts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Recognizer turns a receipt image into OCR text. Satisfied by
// ocr.Cascade.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, contentType string) (*ocr.Result, error)
}

// ExpenseAPI is the slice of the Kharcha backend the service submits
// through. Satisfied by kharcha.Client.
type ExpenseAPI interface {
	CreateExpense(ctx context.Context, sub kharcha.ExpenseSubmission) (*kharcha.Expense, error)
}

// Metrics receives scan and submission outcomes. Satisfied by
// metrics.ScanMetrics.
type Metrics interface {
	ObserveScan(engine string, confidence float64)
	ObserveScanFailure()
	ObserveSubmission(outcome string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveScan(string, float64) {}
func (noopMetrics) ObserveScanFailure()         {}
func (noopMetrics) ObserveSubmission(string)    {}

// Review carries the human corrections applied to a draft at submit
// time. Empty fields fall back to the extracted values.
type Review struct {
	Amount        string `json:"amount"`
	Merchant      string `json:"merchant"`
	Date          string `json:"date"`
	Description   string `json:"description"`
	CategoryID    string `json:"category_id"`
	PaymentMethod string `json:"payment_method"`
	SourceType    string `json:"source_type"`
	Note          string `json:"note"`
	SplitType     string `json:"split_type"`
}

// Service handles draft operations
type Service struct {
	db          DB
	recognizer  Recognizer
	storage     Storage
	backend     ExpenseAPI
	metrics     Metrics
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, recognizer Recognizer, storage Storage, backend ExpenseAPI, m Metrics) *Service {
	if m == nil {
		m = noopMetrics{}
	}
	return &Service{
		db:          db,
		recognizer:  recognizer,
		storage:     storage,
		backend:     backend,
		metrics:     m,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, recognizer Recognizer, storage Storage, backend ExpenseAPI, m Metrics, idGen IDGenerator, timeSrc TimeSource) *Service {
	if m == nil {
		m = noopMetrics{}
	}
	return &Service{
		db:          db,
		recognizer:  recognizer,
		storage:     storage,
		backend:     backend,
		metrics:     m,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	// Keep only alphanumeric, spaces, hyphens, and underscores
	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")

	base = strings.TrimSpace(base)

	// Phone cameras generate very long names
	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "scan"
	}

	return base + ext
}

// ProcessScan stores a receipt image, runs OCR and gist extraction on
// it, and persists the resulting draft. OCR producing no text is not an
// error: the draft comes back with low-confidence fallbacks for the
// reviewer to fill in.
func (s *Service) ProcessScan(ctx context.Context, filename string, data []byte, contentType string) (*Draft, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	cleanFilename := sanitizeFilename(filename)

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, cleanFilename), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	result, err := s.recognizer.Recognize(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to recognize scan",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.metrics.ObserveScanFailure()
		// Clean up the saved file since recognition failed
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("recognizing scan: %w", err)
	}

	extracted := gist.ExtractAt(gist.OCRResult{
		FullText: result.FullText,
		Lines:    result.Lines,
	}, now)

	draft := &Draft{
		ID:           id,
		ExpenseDraft: extracted,
		Engine:       result.Engine,
		Filename:     savedPath,
		ContentType:  contentType,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.db.SaveDraft(draft); err != nil {
		// Clean up file if database save fails
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving draft to database: %w", err)
	}

	s.metrics.ObserveScan(result.Engine, extracted.Confidence)

	return draft, nil
}

// ExtractText runs gist extraction on already-recognized text without
// creating a draft
func (s *Service) ExtractText(in gist.OCRResult) gist.ExpenseDraft {
	return gist.ExtractAt(in, s.timeSource.Now())
}

// SubmitDraft merges the reviewer's corrections into a draft, posts
// the finalized expense to the Kharcha backend, and marks the draft
// submitted
func (s *Service) SubmitDraft(ctx context.Context, id string, review Review) (*Draft, error) {
	if s.backend == nil {
		return nil, fmt.Errorf("no backend configured")
	}

	draft, err := s.db.GetDraft(id)
	if err != nil {
		return nil, fmt.Errorf("getting draft: %w", err)
	}
	if draft.Status == StatusSubmitted {
		return nil, fmt.Errorf("draft %s is already submitted", id)
	}

	amount := review.Amount
	if amount == "" {
		amount = draft.Amount
	}
	if _, err := strconv.ParseFloat(amount, 64); err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}

	date := review.Date
	if date == "" {
		date = draft.Date
	}
	merchant := review.Merchant
	if merchant == "" {
		merchant = draft.Merchant
	}
	description := review.Description
	if description == "" {
		description = merchant
	}
	if description == "" {
		description = "Scanned receipt"
	}
	sourceType := review.SourceType
	if sourceType == "" {
		sourceType = "receipt_scan"
	}

	sub := kharcha.ExpenseSubmission{
		Amount:        amount,
		Description:   description,
		Merchant:      merchant,
		Date:          date,
		CategoryID:    review.CategoryID,
		PaymentMethod: review.PaymentMethod,
		SourceType:    sourceType,
		Note:          review.Note,
		SplitType:     review.SplitType,
		OCRText:       draft.OCRText,
		AIConfidence:  fmt.Sprintf("%.2f", draft.Confidence*100),
		EngineUsed:    draft.Engine,
		AIAmount:      draft.Amount,
		AIDate:        draft.Date,
		AIMerchant:    draft.Merchant,
	}

	// The receipt image rides along when we still have it; a missing
	// file is not fatal to submission
	if image, err := s.storage.Get(draft.Filename); err == nil {
		sub.ImageName = draft.Filename
		sub.ImageType = draft.ContentType
		sub.Image = image
	} else {
		slog.Warn("Submitting draft without image", "id", id, "filename", draft.Filename, "error", err)
	}

	expense, err := s.backend.CreateExpense(ctx, sub)
	if err != nil {
		s.metrics.ObserveSubmission("error")
		return nil, fmt.Errorf("creating expense: %w", err)
	}

	draft.Status = StatusSubmitted
	draft.ExpenseID = expense.ID
	draft.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveDraft(draft); err != nil {
		// The expense exists on the backend at this point, so surface
		// the inconsistency instead of hiding it
		s.metrics.ObserveSubmission("error")
		return nil, fmt.Errorf("marking draft submitted (expense %d created): %w", expense.ID, err)
	}

	s.metrics.ObserveSubmission("ok")
	return draft, nil
}

// GetDraft retrieves a draft by ID
func (s *Service) GetDraft(id string) (*Draft, error) {
	draft, err := s.db.GetDraft(id)
	if err != nil {
		return nil, fmt.Errorf("getting draft: %w", err)
	}
	return draft, nil
}

// ListDrafts returns drafts filtered by status
func (s *Service) ListDrafts(status string) ([]*Draft, error) {
	drafts, err := s.db.ListDrafts(status)
	if err != nil {
		return nil, fmt.Errorf("listing drafts: %w", err)
	}
	return drafts, nil
}

// DiscardDraft removes a draft and its stored image
func (s *Service) DiscardDraft(id string) error {
	draft, err := s.db.GetDraft(id)
	if err != nil {
		return fmt.Errorf("getting draft for discard: %w", err)
	}

	if err := s.storage.Delete(draft.Filename); err != nil {
		// Log error but continue with database deletion
		slog.Warn("Failed to delete file", "filename", draft.Filename, "error", err)
	}

	if err := s.db.DeleteDraft(id); err != nil {
		return fmt.Errorf("deleting draft from database: %w", err)
	}
	return nil
}

// GetScanImage retrieves the stored image for a draft
func (s *Service) GetScanImage(id string) ([]byte, string, error) {
	draft, err := s.db.GetDraft(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting draft: %w", err)
	}

	data, err := s.storage.Get(draft.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting scan image: %w", err)
	}

	return data, draft.ContentType, nil
}
