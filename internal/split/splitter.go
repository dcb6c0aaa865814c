// Package split extracts pages from source PDFs and recomposes them into
// combined export documents for matched transactions.
package split

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpumodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// SplittingError indicates a page extraction or document combination failure.
type SplittingError struct {
	Err error
	Msg string
}

func (e *SplittingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *SplittingError) Unwrap() error {
	return e.Err
}

// Splitter splits and combines PDFs. Output documents land in exportDir.
type Splitter struct {
	conf      *pdfcpumodel.Configuration
	exportDir string
}

// NewSplitter creates a splitter writing into exportDir, creating the
// directory if needed.
func NewSplitter(exportDir string) (*Splitter, error) {
	if err := os.MkdirAll(exportDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	return &Splitter{
		exportDir: exportDir,
		conf:      pdfcpumodel.NewDefaultConfiguration(),
	}, nil
}

// ExportDir returns the directory export documents are written to.
func (s *Splitter) ExportDir() string {
	return s.exportDir
}

// PageCount returns the number of pages in a PDF.
func (s *Splitter) PageCount(path string) (int, error) {
	count, err := api.PageCountFile(path)
	if err != nil {
		return 0, &SplittingError{Msg: fmt.Sprintf("failed to read %s", filepath.Base(path)), Err: err}
	}
	return count, nil
}

// ExtractPages copies the given 1-indexed pages of srcPath, in the order
// requested, into a new PDF at outPath.
func (s *Splitter) ExtractPages(srcPath string, pages []int, outPath string) error {
	if len(pages) == 0 {
		return &SplittingError{Msg: "no pages requested"}
	}

	count, err := s.PageCount(srcPath)
	if err != nil {
		return err
	}
	for _, page := range pages {
		if page < 1 || page > count {
			return &SplittingError{
				Msg: fmt.Sprintf("page %d out of range for PDF with %d pages", page, count),
			}
		}
	}

	tmpDir, err := os.MkdirTemp("", "carrecon-split-*")
	if err != nil {
		return &SplittingError{Msg: "failed to create temp directory", Err: err}
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	// One trim per page keeps the requested order and allows repeats;
	// trimming a whole selection at once would reorder to document order.
	parts := make([]string, 0, len(pages))
	for i, page := range pages {
		part := filepath.Join(tmpDir, fmt.Sprintf("page_%d.pdf", i))
		if err := api.TrimFile(srcPath, part, []string{strconv.Itoa(page)}, s.conf); err != nil {
			return &SplittingError{Msg: fmt.Sprintf("failed to extract page %d", page), Err: err}
		}
		parts = append(parts, part)
	}

	if err := api.MergeCreateFile(parts, outPath, false, s.conf); err != nil {
		return &SplittingError{Msg: "failed to combine extracted pages", Err: err}
	}
	return nil
}

// Combine concatenates whole PDFs into a single document at outPath.
func (s *Splitter) Combine(paths []string, outPath string) error {
	if len(paths) == 0 {
		return &SplittingError{Msg: "no documents to combine"}
	}
	if err := api.MergeCreateFile(paths, outPath, false, s.conf); err != nil {
		return &SplittingError{Msg: "failed to combine documents", Err: err}
	}
	return nil
}

// ExportItem names the source documents and page lists for one match.
type ExportItem struct {
	MatchID      string
	CARPath      string
	ReceiptPath  string
	CARPages     []int
	ReceiptPages []int
}

// ExportMatch builds the combined PDF for one match: statement pages first,
// then receipt pages. Returns the output path and total page count.
func (s *Splitter) ExportMatch(item ExportItem) (string, int, error) {
	tmpDir, err := os.MkdirTemp("", "carrecon-export-*")
	if err != nil {
		return "", 0, &SplittingError{Msg: "failed to create temp directory", Err: err}
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	carPart := filepath.Join(tmpDir, "car.pdf")
	if err := s.ExtractPages(item.CARPath, item.CARPages, carPart); err != nil {
		return "", 0, err
	}

	receiptPart := filepath.Join(tmpDir, "receipt.pdf")
	if err := s.ExtractPages(item.ReceiptPath, item.ReceiptPages, receiptPart); err != nil {
		return "", 0, err
	}

	timestamp := time.Now().Format("20060102_150405")
	outPath := filepath.Join(s.exportDir, fmt.Sprintf("match_%s_%s.pdf", item.MatchID, timestamp))

	if err := s.Combine([]string{carPart, receiptPart}, outPath); err != nil {
		return "", 0, err
	}

	return outPath, len(item.CARPages) + len(item.ReceiptPages), nil
}

// BatchResult is the per-match outcome of a batch export.
type BatchResult struct {
	Err        error
	MatchID    string
	OutputPath string
	PageCount  int
}

// ExportBatch produces one combined PDF per match. A failing match is
// recorded and skipped; it never aborts the rest of the batch.
func (s *Splitter) ExportBatch(items []ExportItem) []BatchResult {
	results := make([]BatchResult, 0, len(items))

	for _, item := range items {
		outPath, pageCount, err := s.ExportMatch(item)
		if err != nil {
			slog.Error("Failed to export match",
				"match_id", item.MatchID,
				"error", err)
			results = append(results, BatchResult{MatchID: item.MatchID, Err: err})
			continue
		}
		results = append(results, BatchResult{
			MatchID:    item.MatchID,
			OutputPath: outPath,
			PageCount:  pageCount,
		})
	}

	return results
}

// ExportAllInOne concatenates every match's statement-then-receipt page
// groups, in input order, into a single document. Returns the output path
// and the accumulated page count.
func (s *Splitter) ExportAllInOne(items []ExportItem, filename string) (string, int, error) {
	if len(items) == 0 {
		return "", 0, &SplittingError{Msg: "no matches to export"}
	}

	tmpDir, err := os.MkdirTemp("", "carrecon-export-*")
	if err != nil {
		return "", 0, &SplittingError{Msg: "failed to create temp directory", Err: err}
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	var parts []string
	totalPages := 0

	for i, item := range items {
		carPart := filepath.Join(tmpDir, fmt.Sprintf("car_%d.pdf", i))
		if err := s.ExtractPages(item.CARPath, item.CARPages, carPart); err != nil {
			return "", 0, err
		}

		receiptPart := filepath.Join(tmpDir, fmt.Sprintf("receipt_%d.pdf", i))
		if err := s.ExtractPages(item.ReceiptPath, item.ReceiptPages, receiptPart); err != nil {
			return "", 0, err
		}

		parts = append(parts, carPart, receiptPart)
		totalPages += len(item.CARPages) + len(item.ReceiptPages)
	}

	if filename == "" {
		filename = fmt.Sprintf("all_matches_%s.pdf", time.Now().Format("20060102_150405"))
	}
	outPath := filepath.Join(s.exportDir, filename)

	if err := s.Combine(parts, outPath); err != nil {
		return "", 0, err
	}

	return outPath, totalPages, nil
}

// DeleteExport removes a produced export file. Returns whether the file
// existed.
func (s *Splitter) DeleteExport(path string) (bool, error) {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete export: %w", err)
	}
	return true, nil
}
