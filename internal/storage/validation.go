// Package storage provides the data persistence layer for the carrecon
// application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/carrecon/carrecon/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidStatus      = errors.New("invalid match status")
	ErrInvalidDocument    = errors.New("invalid document")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidMatch       = errors.New("invalid match")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateDocument validates a document prior to insert.
func validateDocument(doc *model.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document", ErrNilParameter)
	}
	if doc.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidDocument)
	}
	if !doc.Family.Valid() {
		return fmt.Errorf("%w: unknown family %q", ErrInvalidDocument, doc.Family)
	}
	if doc.FileHash == "" {
		return fmt.Errorf("%w: missing file hash", ErrInvalidDocument)
	}
	if doc.OriginalFilename == "" {
		return fmt.Errorf("%w: missing filename", ErrInvalidDocument)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i, txn := range transactions {
		if err := validateTransaction(&txn); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.DocumentID == "" {
		return fmt.Errorf("%w: missing document ID", ErrInvalidTransaction)
	}
	if !txn.Family.Valid() {
		return fmt.Errorf("%w: unknown family %q", ErrInvalidTransaction, txn.Family)
	}
	if txn.Fingerprint == "" {
		return fmt.Errorf("%w: missing fingerprint", ErrInvalidTransaction)
	}
	return nil
}

// validateMatches validates a slice of matches prior to insert.
func validateMatches(matches []model.Match) error {
	if matches == nil {
		return fmt.Errorf("%w: matches", ErrNilParameter)
	}
	if len(matches) == 0 {
		return fmt.Errorf("%w: matches", ErrEmptySlice)
	}

	for i, m := range matches {
		if err := validateMatch(&m); err != nil {
			return fmt.Errorf("match at index %d: %w", i, err)
		}
	}
	return nil
}

// validateMatch validates a single match.
func validateMatch(m *model.Match) error {
	if m == nil {
		return fmt.Errorf("%w: match", ErrNilParameter)
	}
	if m.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidMatch)
	}
	if m.CARTransactionID == "" {
		return fmt.Errorf("%w: missing CAR transaction ID", ErrInvalidMatch)
	}
	if m.ReceiptTransactionID == "" {
		return fmt.Errorf("%w: missing receipt transaction ID", ErrInvalidMatch)
	}
	if !m.Status.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, m.Status)
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidMatch)
	}
	return nil
}
