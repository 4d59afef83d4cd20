// Package kharcha is a thin client for the Kharcha backend REST API,
// limited to what the scan flow needs: submitting a reviewed expense and
// listing categories. All ledger logic lives server-side.
package kharcha

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"golang.org/x/time/rate"
)

// ExpenseSubmission is the finalized, human-reviewed expense posted to
// the backend, together with the extraction provenance fields the ledger
// stores for auditing (ocr_text, ai_*, engine_used).
type ExpenseSubmission struct {
	Amount        string
	Description   string
	Merchant      string
	Date          string // YYYY-MM-DD
	CategoryID    string
	PaymentMethod string
	SourceType    string // manual | receipt_scan | screenshot
	Note          string
	SplitType     string

	OCRText      string
	AIConfidence string // percent, two decimals
	EngineUsed   string
	AIAmount     string
	AIDate       string
	AIMerchant   string

	ImageName string
	ImageType string
	Image     []byte
}

// Expense is the backend's created-expense response, reduced to the
// fields the scan flow reads back.
type Expense struct {
	ID          int64  `json:"id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	ExpenseDate string `json:"expense_date"`
	SourceType  string `json:"source_type"`
}

// Category is one expense category offered by the backend.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// APIError is a non-2xx backend response.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kharcha API error (status %d): %s", e.StatusCode, e.Detail)
}

// Config holds client settings. Zero values get sensible defaults.
type Config struct {
	BaseURL string
	Token   string

	HTTPTimeout       time.Duration // default 30s
	RequestsPerSecond float64       // default 5
	RetryAttempts     uint          // default 2
	RetryDelay        time.Duration // default 2s
}

// Client calls the Kharcha backend. Requests are paced by a rate
// limiter and retried on transient failures.
type Client struct {
	baseURL       string
	token         string
	httpClient    *http.Client
	limiter       *rate.Limiter
	retryAttempts uint
	retryDelay    time.Duration
}

// NewClient creates a backend client.
func NewClient(cfg Config) *Client {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 2
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	return &Client{
		baseURL:       cfg.BaseURL,
		token:         cfg.Token,
		httpClient:    &http.Client{Timeout: cfg.HTTPTimeout},
		limiter:       rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay,
	}
}

// CreateExpense posts a reviewed expense as a multipart form. Empty
// fields are omitted, matching what the backend expects from clients.
func (c *Client) CreateExpense(ctx context.Context, sub ExpenseSubmission) (*Expense, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	body, contentType, err := encodeExpenseForm(sub)
	if err != nil {
		return nil, err
	}

	var expense Expense
	err = retry.Do(
		func() error {
			req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/expenses", bytes.NewReader(body))
			if reqErr != nil {
				return reqErr
			}
			req.Header.Set("Content-Type", contentType)
			c.authorize(req)
			return c.doJSON(req, &expense)
		},
		retry.RetryIf(retryable),
		retry.Attempts(c.retryAttempts),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("creating expense: %w", err)
	}
	return &expense, nil
}

// ListCategories fetches the category pick-list for review UIs.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/categories", nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	var categories []Category
	if err := c.doJSON(req, &categories); err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return categories, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// doJSON performs the request and decodes a 2xx body into out. Non-2xx
// responses become APIError with the backend's detail message.
func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(data, resp.Status)}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// errorDetail extracts the backend's {"detail": ...} envelope, falling
// back to the raw body.
func errorDetail(body []byte, status string) string {
	var envelope struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Detail != "" {
		return envelope.Detail
	}
	if len(body) > 0 {
		return string(body)
	}
	return status
}

// retryable reports whether an error is worth another attempt: network
// failures and 5xx yes, 4xx no.
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return true
}

// encodeExpenseForm builds the multipart body once so retries can reuse
// it.
func encodeExpenseForm(sub ExpenseSubmission) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"amount":         sub.Amount,
		"description":    sub.Description,
		"merchant":       sub.Merchant,
		"expense_date":   sub.Date,
		"date":           sub.Date,
		"category_id":    sub.CategoryID,
		"payment_method": sub.PaymentMethod,
		"source_type":    sub.SourceType,
		"note":           sub.Note,
		"split_type":     sub.SplitType,
		"ocr_text":       sub.OCRText,
		"ai_confidence":  sub.AIConfidence,
		"engine_used":    sub.EngineUsed,
		"ai_amount":      sub.AIAmount,
		"ai_date":        sub.AIDate,
		"ai_merchant":    sub.AIMerchant,
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := w.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("encoding form field %s: %w", key, err)
		}
	}

	if len(sub.Image) > 0 {
		name := sub.ImageName
		if name == "" {
			name = "receipt.jpg"
		}
		part, err := w.CreateFormFile("image", name)
		if err != nil {
			return nil, "", fmt.Errorf("encoding image part: %w", err)
		}
		if _, err := part.Write(sub.Image); err != nil {
			return nil, "", fmt.Errorf("writing image part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("finalizing form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
