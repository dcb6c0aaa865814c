package model

import "time"

// Transaction is a persisted transaction record. It carries the extracted
// fields plus identity, provenance, and duplicate/match bookkeeping.
type Transaction struct {
	Date          *time.Time
	Amount        *float64
	EmployeeID    *string
	EmployeeName  *string
	Merchant      *string
	CardNumber    *string
	DuplicateOfID *string
	ID            string
	DocumentID    string
	Fingerprint   string
	RawText       string
	Family        DocumentFamily
	PageNumber    int
	Confidence    float64
	Matched       bool
	IsDuplicate   bool
	CreatedAt     time.Time
}

// GenerateFingerprint computes the business-key fingerprint for this
// transaction. Used when the stored fingerprint has not been set yet.
func (t *Transaction) GenerateFingerprint() string {
	return Fingerprint(t.Date, t.Amount, t.EmployeeID, t.Family)
}

// FromRecord builds a Transaction from an extracted record.
func FromRecord(id, documentID string, rec ExtractedRecord) Transaction {
	return Transaction{
		ID:           id,
		DocumentID:   documentID,
		Family:       rec.Family,
		Date:         rec.Date,
		Amount:       rec.Amount,
		EmployeeID:   rec.EmployeeID,
		EmployeeName: rec.EmployeeName,
		Merchant:     rec.Merchant,
		CardNumber:   rec.CardNumber,
		PageNumber:   rec.PageNumber,
		RawText:      rec.RawText,
		Confidence:   rec.Confidence,
		Fingerprint:  rec.GenerateFingerprint(),
	}
}
