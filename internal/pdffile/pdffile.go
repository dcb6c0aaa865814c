// Package pdffile reads uploaded PDF documents: structural validation,
// page counting, and per-page plain-text extraction for the extractor.
package pdffile

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Upload limits.
const (
	MaxFileSizeMB = 300
	MaxPageCount  = 1500
	MinPageCount  = 1

	// A text-based PDF should have at least this many characters across
	// its first few pages; less means a scanned image we cannot parse.
	minProbeTextChars = 50
	probePages        = 3
)

// ValidationError indicates an uploaded file failed validation. The message
// is safe to show to the user.
type ValidationError struct {
	Err error
	Msg string
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Document is an open PDF exposing page count and per-page text.
// Page numbers are 1-indexed.
type Document struct {
	file      *os.File
	reader    *pdf.Reader
	path      string
	pageCount int
}

// Open opens a PDF for reading. The returned document must be closed.
func Open(path string) (*Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, &ValidationError{
			Msg: "unable to read PDF; ensure the file is not corrupted or password-protected",
			Err: err,
		}
	}

	return &Document{
		path:      path,
		file:      f,
		reader:    reader,
		pageCount: reader.NumPage(),
	}, nil
}

// Close releases the underlying file.
func (d *Document) Close() error {
	return d.file.Close()
}

// Path returns the file path the document was opened from.
func (d *Document) Path() string {
	return d.path
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return d.pageCount
}

// PageText extracts the plain text of one page. An empty string with no
// error means the page carries no extractable text.
func (d *Document) PageText(pageNum int) (string, error) {
	if pageNum < 1 || pageNum > d.pageCount {
		return "", fmt.Errorf("page %d out of range for PDF with %d pages", pageNum, d.pageCount)
	}

	page := d.reader.Page(pageNum)
	if page.V.IsNull() {
		return "", nil
	}

	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from page %d: %w", pageNum, err)
	}
	return text, nil
}

// Validate runs the full upload checks against a PDF on disk and returns
// its page count and size in bytes.
func Validate(path string) (int, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, &ValidationError{Msg: "unable to access file", Err: err}
	}

	size := info.Size()
	if size > MaxFileSizeMB*1024*1024 {
		return 0, 0, &ValidationError{
			Msg: fmt.Sprintf("file size (%.1f MB) exceeds maximum %d MB", float64(size)/1024/1024, MaxFileSizeMB),
		}
	}

	pageCount, err := api.PageCountFile(path)
	if err != nil {
		return 0, 0, &ValidationError{
			Msg: "unable to read PDF; ensure the file is not corrupted or password-protected",
			Err: err,
		}
	}

	if pageCount < MinPageCount {
		return 0, 0, &ValidationError{Msg: fmt.Sprintf("PDF must have at least %d page", MinPageCount)}
	}
	if pageCount > MaxPageCount {
		return 0, 0, &ValidationError{
			Msg: fmt.Sprintf("PDF exceeds maximum %d pages; split it into smaller files", MaxPageCount),
		}
	}

	if err := validateTextExtractable(path, pageCount); err != nil {
		return 0, 0, err
	}

	return pageCount, size, nil
}

// validateTextExtractable probes the first pages for extractable text.
func validateTextExtractable(path string, pageCount int) error {
	doc, err := Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = doc.Close() }()

	probe := probePages
	if pageCount < probe {
		probe = pageCount
	}

	totalChars := 0
	for pageNum := 1; pageNum <= probe; pageNum++ {
		text, err := doc.PageText(pageNum)
		if err != nil {
			continue
		}
		totalChars += len(text)
	}

	if totalChars < minProbeTextChars {
		return &ValidationError{
			Msg: "no parseable text found; verify the PDF contains text, not scanned images",
		}
	}
	return nil
}
