// Package model defines the core domain types shared across the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// DocumentFamily identifies which kind of source document a record came from.
type DocumentFamily string

// Document families.
const (
	// FamilyCAR is a corporate card statement (Corporate American Express Report).
	FamilyCAR DocumentFamily = "car"
	// FamilyReceipt is a scanned receipt collection.
	FamilyReceipt DocumentFamily = "receipt"
)

// Valid reports whether the family is one of the known document families.
func (f DocumentFamily) Valid() bool {
	return f == FamilyCAR || f == FamilyReceipt
}

// ExtractedRecord is a single transaction pulled out of document text.
// Optional fields are nil when the extractor could not find them; nil means
// "unknown", never zero. Records are created once and never mutated.
type ExtractedRecord struct {
	Date         *time.Time
	Amount       *float64
	EmployeeID   *string
	EmployeeName *string
	Merchant     *string
	CardNumber   *string
	Family       DocumentFamily
	RawText      string
	PageNumber   int
	Confidence   float64
}

// GenerateFingerprint hashes the record's business key for duplicate detection.
func (r *ExtractedRecord) GenerateFingerprint() string {
	return Fingerprint(r.Date, r.Amount, r.EmployeeID, r.Family)
}

// Fingerprint computes the content fingerprint over the normalized business
// key (date, amount, employee ID, family). The merchant is deliberately
// excluded: records differing only in merchant text are considered the same
// submission. Two records with equal business keys fingerprint identically
// regardless of representation, so the date is serialized as an ISO calendar
// string and the amount is formatted to exactly two decimal places.
func Fingerprint(date *time.Time, amount *float64, employeeID *string, family DocumentFamily) string {
	dateStr := ""
	if date != nil {
		dateStr = date.Format("2006-01-02")
	}

	amountStr := ""
	if amount != nil {
		amountStr = fmt.Sprintf("%.2f", *amount)
	}

	empID := ""
	if employeeID != nil {
		empID = *employeeID
	}

	key := fmt.Sprintf("%s|%s|%s|%s", dateStr, amountStr, empID, family)
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", hash)
}
