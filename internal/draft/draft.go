// Package draft owns the scan-draft lifecycle: a receipt image comes
// in, the OCR cascade and gist extractor turn it into a reviewable
// expense draft, and a human-reviewed draft goes out to the Kharcha
// backend as a finalized expense.
package draft

import (
	"time"

	"github.com/kharcha-app/kharcha-scan/internal/gist"
)

// Draft statuses.
const (
	StatusPending   = "pending"
	StatusSubmitted = "submitted"
)

// Draft is one scanned receipt awaiting (or past) human review. The
// extracted fields embed gist.ExpenseDraft unchanged; Engine records
// which OCR provider produced the text, attached here rather than by
// the extractor, which is provenance-agnostic.
type Draft struct {
	ID string `json:"id"`

	gist.ExpenseDraft

	Engine      string    `json:"engine"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Status      string    `json:"status"`
	ExpenseID   int64     `json:"expense_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
