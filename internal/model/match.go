package model

import "time"

// MatchStatus tracks a match through review and export.
type MatchStatus string

// Match statuses.
const (
	MatchPending  MatchStatus = "pending"
	MatchApproved MatchStatus = "approved"
	MatchRejected MatchStatus = "rejected"
	MatchExported MatchStatus = "exported"
)

// Valid reports whether the status is a known match status.
func (s MatchStatus) Valid() bool {
	switch s {
	case MatchPending, MatchApproved, MatchRejected, MatchExported:
		return true
	}
	return false
}

// MatchCandidate is a scored pairing of one CAR transaction with one receipt
// transaction. The four sub-scores are retained for transparency so a
// reviewer can see why a pair was (or was not) accepted.
type MatchCandidate struct {
	CARTransactionID     string
	ReceiptTransactionID string
	Confidence           float64
	DateScore            float64
	AmountScore          float64
	EmployeeScore        float64
	MerchantScore        float64
}

// Match is a persisted match between a CAR transaction and a receipt
// transaction, created from a MatchCandidate by a matching run.
type Match struct {
	ReviewedAt           *time.Time
	ExportedAt           *time.Time
	ExportPath           *string
	ID                   string
	CARTransactionID     string
	ReceiptTransactionID string
	ReviewNote           string
	Status               MatchStatus
	Confidence           float64
	DateScore            float64
	AmountScore          float64
	EmployeeScore        float64
	MerchantScore        float64
	CreatedAt            time.Time
}
