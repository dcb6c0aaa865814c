package split

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrecon/carrecon/internal/testutil"
)

func newTestSplitter(t *testing.T) *Splitter {
	t.Helper()
	s, err := NewSplitter(filepath.Join(t.TempDir(), "exports"))
	require.NoError(t, err)
	return s
}

func TestSplitter_PageCount(t *testing.T) {
	s := newTestSplitter(t)
	src := testutil.WritePDF(t, filepath.Join(t.TempDir(), "five.pdf"), 5)

	count, err := s.PageCount(src)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestSplitter_ExtractPages_RoundTrip(t *testing.T) {
	s := newTestSplitter(t)
	dir := t.TempDir()
	src := testutil.WritePDF(t, filepath.Join(dir, "five.pdf"), 5)
	out := filepath.Join(dir, "out.pdf")

	require.NoError(t, s.ExtractPages(src, []int{2, 5}, out))

	count, err := s.PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "extracting pages {2,5} yields a 2-page document")
}

func TestSplitter_ExtractPages_OutOfRange(t *testing.T) {
	s := newTestSplitter(t)
	dir := t.TempDir()
	src := testutil.WritePDF(t, filepath.Join(dir, "three.pdf"), 3)
	out := filepath.Join(dir, "out.pdf")

	tests := []struct {
		name string
		page int
	}{
		{name: "zero", page: 0},
		{name: "negative", page: -1},
		{name: "past the end", page: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ExtractPages(src, []int{tt.page}, out)
			require.Error(t, err)

			var splitErr *SplittingError
			require.True(t, errors.As(err, &splitErr))
			assert.Contains(t, splitErr.Error(), "out of range")
		})
	}
}

func TestSplitter_ExportMatch_OrderAndCount(t *testing.T) {
	s := newTestSplitter(t)
	dir := t.TempDir()
	car := testutil.WritePDF(t, filepath.Join(dir, "car.pdf"), 4)
	receipt := testutil.WritePDF(t, filepath.Join(dir, "receipt.pdf"), 3)

	outPath, pageCount, err := s.ExportMatch(ExportItem{
		MatchID:      "m1",
		CARPath:      car,
		CARPages:     []int{1, 2},
		ReceiptPath:  receipt,
		ReceiptPages: []int{3},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, pageCount)
	assert.Contains(t, filepath.Base(outPath), "match_m1_")

	count, err := s.PageCount(outPath)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSplitter_ExportBatch_ContinuesPastFailures(t *testing.T) {
	s := newTestSplitter(t)
	dir := t.TempDir()
	car := testutil.WritePDF(t, filepath.Join(dir, "car.pdf"), 4)
	receipt := testutil.WritePDF(t, filepath.Join(dir, "receipt.pdf"), 2)

	items := []ExportItem{
		{MatchID: "ok-1", CARPath: car, CARPages: []int{1}, ReceiptPath: receipt, ReceiptPages: []int{1}},
		// Receipt page 9 exceeds the 2-page receipt document.
		{MatchID: "bad", CARPath: car, CARPages: []int{2}, ReceiptPath: receipt, ReceiptPages: []int{9}},
		{MatchID: "ok-2", CARPath: car, CARPages: []int{3}, ReceiptPath: receipt, ReceiptPages: []int{2}},
	}

	results := s.ExportBatch(items)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, 2, results[0].PageCount)

	require.Error(t, results[1].Err)
	var splitErr *SplittingError
	assert.True(t, errors.As(results[1].Err, &splitErr))

	assert.NoError(t, results[2].Err, "a failed match must not abort the rest of the batch")
	assert.Equal(t, 2, results[2].PageCount)
}

func TestSplitter_ExportAllInOne(t *testing.T) {
	s := newTestSplitter(t)
	dir := t.TempDir()
	car := testutil.WritePDF(t, filepath.Join(dir, "car.pdf"), 4)
	receipt := testutil.WritePDF(t, filepath.Join(dir, "receipt.pdf"), 3)

	items := []ExportItem{
		{MatchID: "m1", CARPath: car, CARPages: []int{1}, ReceiptPath: receipt, ReceiptPages: []int{1}},
		{MatchID: "m2", CARPath: car, CARPages: []int{2, 3}, ReceiptPath: receipt, ReceiptPages: []int{2}},
	}

	outPath, totalPages, err := s.ExportAllInOne(items, "combined.pdf")
	require.NoError(t, err)
	assert.Equal(t, 5, totalPages)
	assert.Equal(t, "combined.pdf", filepath.Base(outPath))

	count, err := s.PageCount(outPath)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestSplitter_DeleteExport(t *testing.T) {
	s := newTestSplitter(t)
	src := testutil.WritePDF(t, filepath.Join(s.ExportDir(), "doomed.pdf"), 1)

	existed, err := s.DeleteExport(src)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = s.DeleteExport(src)
	require.NoError(t, err)
	assert.False(t, existed)
}
