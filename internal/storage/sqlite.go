package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/carrecon/carrecon/internal/model"
	"github.com/carrecon/carrecon/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	// Validate input
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite doesn't benefit from multiple connections
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Transaction methods delegate to the main storage with the transaction.
func (t *sqliteTransaction) SaveDocument(ctx context.Context, doc *model.Document) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateDocument(doc); err != nil {
		return err
	}
	return t.storage.saveDocumentTx(ctx, t.tx, doc)
}

func (t *sqliteTransaction) GetDocumentByID(ctx context.Context, id string) (*model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getDocumentByIDTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetDocumentByHash(ctx context.Context, fileHash string) (*model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(fileHash, "fileHash"); err != nil {
		return nil, err
	}
	return t.storage.getDocumentByHashTx(ctx, t.tx, fileHash)
}

func (t *sqliteTransaction) ListDocuments(ctx context.Context, family *model.DocumentFamily) ([]model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listDocumentsTx(ctx, t.tx, family)
}

func (t *sqliteTransaction) DeleteDocument(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.storage.deleteDocumentTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}
	return t.storage.saveTransactionsTx(ctx, t.tx, transactions)
}

func (t *sqliteTransaction) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getTransactionByIDTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetTransactionByFingerprint(ctx context.Context, fingerprint string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(fingerprint, "fingerprint"); err != nil {
		return nil, err
	}
	return t.storage.getTransactionByFingerprintTx(ctx, t.tx, fingerprint)
}

func (t *sqliteTransaction) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getTransactionsTx(ctx, t.tx, filter)
}

func (t *sqliteTransaction) GetAllTransactions(ctx context.Context) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getTransactionsTx(ctx, t.tx, service.TransactionFilter{})
}

func (t *sqliteTransaction) GetUnmatchedTransactions(ctx context.Context, family model.DocumentFamily) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getUnmatchedTransactionsTx(ctx, t.tx, family)
}

func (t *sqliteTransaction) MarkTransactionDuplicate(ctx context.Context, id, duplicateOfID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.markTransactionDuplicateTx(ctx, t.tx, id, duplicateOfID)
}

func (t *sqliteTransaction) DeleteTransaction(ctx context.Context, id string, force bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.storage.deleteTransactionTx(ctx, t.tx, id, force)
}

func (t *sqliteTransaction) CreateMatches(ctx context.Context, matches []model.Match) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMatches(matches); err != nil {
		return err
	}
	return t.storage.createMatchesTx(ctx, t.tx, matches)
}

func (t *sqliteTransaction) GetMatchByID(ctx context.Context, id string) (*model.Match, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getMatchByIDTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) ListMatches(ctx context.Context, filter service.MatchFilter) ([]model.Match, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listMatchesTx(ctx, t.tx, filter)
}

func (t *sqliteTransaction) ReviewMatch(ctx context.Context, id string, status model.MatchStatus, note string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.reviewMatchTx(ctx, t.tx, id, status, note)
}

func (t *sqliteTransaction) MarkMatchExported(ctx context.Context, id, exportPath string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.markMatchExportedTx(ctx, t.tx, id, exportPath)
}

func (t *sqliteTransaction) DeleteMatch(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.storage.deleteMatchTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}
