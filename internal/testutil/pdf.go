// Package testutil provides shared test fixtures.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WritePDF writes a minimal but structurally valid PDF with the given number
// of pages to path and returns the path. Each page carries an empty content
// stream; the fixture exists for page-level structure tests, not for text
// extraction.
func WritePDF(t *testing.T, path string, pageCount int) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("failed to create fixture directory: %v", err)
	}
	if err := os.WriteFile(path, BuildPDF(pageCount), 0o600); err != nil {
		t.Fatalf("failed to write fixture PDF: %v", err)
	}
	return path
}

// BuildPDF assembles the raw bytes of a minimal pageCount-page PDF,
// computing the cross-reference table offsets as it goes.
func BuildPDF(pageCount int) []byte {
	var buf strings.Builder
	offsets := make([]int, 0, 2+2*pageCount)

	write := func(s string) { buf.WriteString(s) }
	object := func(body string) {
		offsets = append(offsets, buf.Len())
		write(body)
	}

	write("%PDF-1.4\n")

	// Object 1: catalog.
	object("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	// Object 2: page tree. Pages are objects 3..2+n, content streams
	// 3+n..2+2n.
	kids := make([]string, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		kids = append(kids, fmt.Sprintf("%d 0 R", 3+i))
	}
	object(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n",
		strings.Join(kids, " "), pageCount))

	for i := 0; i < pageCount; i++ {
		object(fmt.Sprintf(
			"%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R >>\nendobj\n",
			3+i, 3+pageCount+i))
	}

	for i := 0; i < pageCount; i++ {
		object(fmt.Sprintf("%d 0 obj\n<< /Length 0 >>\nstream\n\nendstream\nendobj\n", 3+pageCount+i))
	}

	xrefOffset := buf.Len()
	write(fmt.Sprintf("xref\n0 %d\n", len(offsets)+1))
	write("0000000000 65535 f \n")
	for _, off := range offsets {
		write(fmt.Sprintf("%010d 00000 n \n", off))
	}
	write(fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xrefOffset))

	return []byte(buf.String())
}
