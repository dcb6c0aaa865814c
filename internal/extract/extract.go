// Package extract converts raw per-page document text into normalized
// transaction records.
//
// Two document families are supported: CAR statements, where transaction
// lines live in a table bounded by a header row and a totals row and the
// cardholder context is carried forward across pages, and receipt
// collections, where each page is parsed as one candidate transaction.
//
// Extraction recovers locally from unparseable pages and lines; only a
// failure to read the document at all surfaces as an ExtractionError.
package extract

import (
	"fmt"

	"github.com/carrecon/carrecon/internal/model"
)

// PageTextSource supplies plain text for each page of a document.
// Page numbers are 1-indexed.
type PageTextSource interface {
	PageCount() int
	PageText(pageNum int) (string, error)
}

// ExtractionError indicates a document could not be opened or parsed.
type ExtractionError struct {
	Err error
	Msg string
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Extractor parses document text into transaction records.
type Extractor struct{}

// NewExtractor creates a new extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract pulls transaction records out of a document, dispatching on the
// document family. Pages that fail to parse are skipped, not fatal.
func (e *Extractor) Extract(src PageTextSource, family model.DocumentFamily) ([]model.ExtractedRecord, error) {
	switch family {
	case model.FamilyCAR:
		return e.extractCAR(src)
	case model.FamilyReceipt:
		return e.extractReceipts(src)
	default:
		return nil, &ExtractionError{Msg: fmt.Sprintf("invalid document family: %q", family)}
	}
}
