package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/carrecon/carrecon/internal/common"
	"github.com/carrecon/carrecon/internal/model"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so query helpers can run
// inside or outside an explicit transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SaveDocument persists an uploaded document.
func (s *SQLiteStorage) SaveDocument(ctx context.Context, doc *model.Document) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateDocument(doc); err != nil {
		return err
	}
	return s.saveDocumentTx(ctx, s.db, doc)
}

func (s *SQLiteStorage) saveDocumentTx(ctx context.Context, q dbtx, doc *model.Document) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO documents (
			id, family, original_filename, stored_path,
			file_hash, page_count, file_size_bytes
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.Family, doc.OriginalFilename, doc.StoredPath,
		doc.FileHash, doc.PageCount, doc.FileSizeBytes)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("document with hash %s: %w", doc.FileHash, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// GetDocumentByID retrieves a document by its ID.
func (s *SQLiteStorage) GetDocumentByID(ctx context.Context, id string) (*model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getDocumentByIDTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getDocumentByIDTx(ctx context.Context, q dbtx, id string) (*model.Document, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, family, original_filename, stored_path,
		       file_hash, page_count, file_size_bytes, uploaded_at
		FROM documents WHERE id = ?
	`, id)
	return scanDocument(row)
}

// GetDocumentByHash retrieves a document by its file content hash.
func (s *SQLiteStorage) GetDocumentByHash(ctx context.Context, fileHash string) (*model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(fileHash, "fileHash"); err != nil {
		return nil, err
	}
	return s.getDocumentByHashTx(ctx, s.db, fileHash)
}

func (s *SQLiteStorage) getDocumentByHashTx(ctx context.Context, q dbtx, fileHash string) (*model.Document, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, family, original_filename, stored_path,
		       file_hash, page_count, file_size_bytes, uploaded_at
		FROM documents WHERE file_hash = ?
	`, fileHash)
	return scanDocument(row)
}

// ListDocuments returns stored documents, optionally limited to one family,
// newest first.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, family *model.DocumentFamily) ([]model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listDocumentsTx(ctx, s.db, family)
}

func (s *SQLiteStorage) listDocumentsTx(ctx context.Context, q dbtx, family *model.DocumentFamily) ([]model.Document, error) {
	query := `
		SELECT id, family, original_filename, stored_path,
		       file_hash, page_count, file_size_bytes, uploaded_at
		FROM documents
	`
	var args []any
	if family != nil {
		query += " WHERE family = ?"
		args = append(args, *family)
	}
	query += " ORDER BY uploaded_at DESC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []model.Document
	for rows.Next() {
		doc, scanErr := scanDocumentRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document and its extracted transactions.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.deleteDocumentTx(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) deleteDocumentTx(ctx context.Context, q dbtx, id string) error {
	// Matches referencing this document's transactions go first, then the
	// transactions, then the document itself.
	_, err := q.ExecContext(ctx, `
		DELETE FROM matches WHERE car_transaction_id IN
			(SELECT id FROM transactions WHERE document_id = ?)
		OR receipt_transaction_id IN
			(SELECT id FROM transactions WHERE document_id = ?)
	`, id, id)
	if err != nil {
		return fmt.Errorf("failed to delete document matches: %w", err)
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM transactions WHERE document_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete document transactions: %w", err)
	}

	result, err := q.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row *sql.Row) (*model.Document, error) {
	doc, err := scanDocumentRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return doc, err
}

func scanDocumentRow(row rowScanner) (*model.Document, error) {
	var doc model.Document
	err := row.Scan(&doc.ID, &doc.Family, &doc.OriginalFilename, &doc.StoredPath,
		&doc.FileHash, &doc.PageCount, &doc.FileSizeBytes, &doc.UploadedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	return &doc, nil
}

// isUniqueViolation reports whether an error came from a UNIQUE constraint.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
