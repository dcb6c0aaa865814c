// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/carrecon/carrecon/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	Family     *model.DocumentFamily
	DocumentID *string
	Matched    *bool
	Duplicates *bool
	Limit      int
	Offset     int
}

// MatchFilter defines filtering options for match queries.
type MatchFilter struct {
	Status *model.MatchStatus
	Limit  int
	Offset int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Document operations
	SaveDocument(ctx context.Context, doc *model.Document) error
	GetDocumentByID(ctx context.Context, id string) (*model.Document, error)
	GetDocumentByHash(ctx context.Context, fileHash string) (*model.Document, error)
	ListDocuments(ctx context.Context, family *model.DocumentFamily) ([]model.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactionByFingerprint(ctx context.Context, fingerprint string) (*model.Transaction, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	GetAllTransactions(ctx context.Context) ([]model.Transaction, error)
	GetUnmatchedTransactions(ctx context.Context, family model.DocumentFamily) ([]model.Transaction, error)
	MarkTransactionDuplicate(ctx context.Context, id, duplicateOfID string) error
	DeleteTransaction(ctx context.Context, id string, force bool) error

	// Match operations
	CreateMatches(ctx context.Context, matches []model.Match) error
	GetMatchByID(ctx context.Context, id string) (*model.Match, error)
	ListMatches(ctx context.Context, filter MatchFilter) ([]model.Match, error)
	ReviewMatch(ctx context.Context, id string, status model.MatchStatus, note string) error
	MarkMatchExported(ctx context.Context, id, exportPath string) error
	DeleteMatch(ctx context.Context, id string) error

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// ReconciliationStats shows the results of a matching run.
type ReconciliationStats struct {
	CARTransactions     int
	ReceiptTransactions int
	Matched             int
	UnmatchedCAR        int
	UnmatchedReceipts   int
	Duration            time.Duration
}
