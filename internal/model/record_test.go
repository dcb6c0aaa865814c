package model

import (
	"testing"
	"time"
)

func strPtr(s string) *string       { return &s }
func floatPtr(f float64) *float64   { return &f }
func datePtr(t time.Time) *time.Time { return &t }

func TestFingerprint_Deterministic(t *testing.T) {
	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	rec := ExtractedRecord{
		Family:     FamilyCAR,
		Date:       datePtr(date),
		Amount:     floatPtr(100.00),
		EmployeeID: strPtr("EMP001"),
	}

	first := rec.GenerateFingerprint()
	for i := 0; i < 10; i++ {
		if got := rec.GenerateFingerprint(); got != first {
			t.Fatalf("fingerprint not deterministic: %s != %s", got, first)
		}
	}
	if len(first) != 64 {
		t.Fatalf("expected 64-char hex digest, got %d chars", len(first))
	}
}

func TestFingerprint_NormalizedRepresentation(t *testing.T) {
	// A date at midnight and the same date with a time-of-day component
	// carry the same calendar day, so they must fingerprint identically.
	d1 := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 1, 15, 17, 30, 12, 0, time.UTC)

	fp1 := Fingerprint(datePtr(d1), floatPtr(100.0), strPtr("EMP001"), FamilyCAR)
	fp2 := Fingerprint(datePtr(d2), floatPtr(100.0), strPtr("EMP001"), FamilyCAR)
	if fp1 != fp2 {
		t.Errorf("same calendar day fingerprinted differently")
	}

	// Extra trailing precision rounds to the same 2-decimal form.
	fp3 := Fingerprint(datePtr(d1), floatPtr(100.001), strPtr("EMP001"), FamilyCAR)
	if fp1 != fp3 {
		t.Errorf("100.00 and 100.001 should share a fingerprint after 2-decimal normalization")
	}
}

func TestFingerprint_Sensitivity(t *testing.T) {
	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	otherDate := time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC)

	base := Fingerprint(datePtr(date), floatPtr(100.00), strPtr("EMP001"), FamilyCAR)

	tests := []struct {
		name string
		got  string
	}{
		{"different date", Fingerprint(datePtr(otherDate), floatPtr(100.00), strPtr("EMP001"), FamilyCAR)},
		{"different amount", Fingerprint(datePtr(date), floatPtr(100.02), strPtr("EMP001"), FamilyCAR)},
		{"different employee", Fingerprint(datePtr(date), floatPtr(100.00), strPtr("EMP002"), FamilyCAR)},
		{"different family", Fingerprint(datePtr(date), floatPtr(100.00), strPtr("EMP001"), FamilyReceipt)},
		{"missing date", Fingerprint(nil, floatPtr(100.00), strPtr("EMP001"), FamilyCAR)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got == base {
				t.Errorf("expected a different fingerprint")
			}
		})
	}
}

func TestFingerprint_MerchantExcluded(t *testing.T) {
	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	a := ExtractedRecord{
		Family:     FamilyReceipt,
		Date:       datePtr(date),
		Amount:     floatPtr(42.50),
		EmployeeID: strPtr("1234"),
		Merchant:   strPtr("ACME CORP"),
	}
	b := a
	b.Merchant = strPtr("TOTALLY DIFFERENT VENDOR")

	if a.GenerateFingerprint() != b.GenerateFingerprint() {
		t.Errorf("merchant must not participate in the business key")
	}
}

func TestTransaction_FromRecord(t *testing.T) {
	date := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	rec := ExtractedRecord{
		Family:     FamilyCAR,
		Date:       datePtr(date),
		Amount:     floatPtr(768.22),
		EmployeeID: strPtr("12345"),
		Merchant:   strPtr("OVERHEAD DOOR COM"),
		PageNumber: 3,
		RawText:    "03/03/2025 03/04/2025 N 000425061 OVERHEAD DOOR COM KEMAH, TX $768.22",
		Confidence: 1.0,
	}

	txn := FromRecord("txn-1", "doc-1", rec)

	if txn.ID != "txn-1" || txn.DocumentID != "doc-1" {
		t.Fatalf("identity fields not carried over: %+v", txn)
	}
	if txn.Fingerprint != rec.GenerateFingerprint() {
		t.Errorf("fingerprint mismatch")
	}
	if txn.Matched || txn.IsDuplicate {
		t.Errorf("new transactions must start unmatched and non-duplicate")
	}
}
