package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carrecon/carrecon/internal/common"
	"github.com/carrecon/carrecon/internal/model"
	"github.com/carrecon/carrecon/internal/service"
)

// CreateMatches persists a matching run's results and flags the paired
// transactions as matched, atomically. A transaction already consumed by an
// earlier match rejects the whole batch.
func (s *SQLiteStorage) CreateMatches(ctx context.Context, matches []model.Match) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMatches(matches); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.createMatchesTx(ctx, tx, matches); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) createMatchesTx(ctx context.Context, q dbtx, matches []model.Match) error {
	for _, m := range matches {
		for _, txnID := range []string{m.CARTransactionID, m.ReceiptTransactionID} {
			txn, err := s.getTransactionByIDTx(ctx, q, txnID)
			if err != nil {
				return fmt.Errorf("match %s references transaction %s: %w", m.ID, txnID, err)
			}
			if txn.Matched {
				return fmt.Errorf("transaction %s: %w", txnID, common.ErrTransactionMatched)
			}
		}

		_, err := q.ExecContext(ctx, `
			INSERT INTO matches (
				id, car_transaction_id, receipt_transaction_id, status,
				confidence, date_score, amount_score, employee_score, merchant_score
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, m.ID, m.CARTransactionID, m.ReceiptTransactionID, m.Status,
			m.Confidence, m.DateScore, m.AmountScore, m.EmployeeScore, m.MerchantScore)
		if err != nil {
			return fmt.Errorf("failed to save match %s: %w", m.ID, err)
		}

		_, err = q.ExecContext(ctx, `
			UPDATE transactions SET matched = 1 WHERE id IN (?, ?)
		`, m.CARTransactionID, m.ReceiptTransactionID)
		if err != nil {
			return fmt.Errorf("failed to flag matched transactions for %s: %w", m.ID, err)
		}
	}
	return nil
}

// GetMatchByID retrieves a match by its ID.
func (s *SQLiteStorage) GetMatchByID(ctx context.Context, id string) (*model.Match, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getMatchByIDTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getMatchByIDTx(ctx context.Context, q dbtx, id string) (*model.Match, error) {
	row := q.QueryRowContext(ctx, matchSelect+` WHERE id = ?`, id)
	m, err := scanMatchRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return m, err
}

// ListMatches returns matches sorted by descending confidence.
func (s *SQLiteStorage) ListMatches(ctx context.Context, filter service.MatchFilter) ([]model.Match, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listMatchesTx(ctx, s.db, filter)
}

func (s *SQLiteStorage) listMatchesTx(ctx context.Context, q dbtx, filter service.MatchFilter) ([]model.Match, error) {
	query := matchSelect + ` WHERE 1=1`
	var args []any

	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}

	query += " ORDER BY confidence DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []model.Match
	for rows.Next() {
		m, scanErr := scanMatchRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

// ReviewMatch records a review decision. Rejecting a match releases both
// transactions back into the unmatched pool.
func (s *SQLiteStorage) ReviewMatch(ctx context.Context, id string, status model.MatchStatus, note string) error {
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

	if err := s.reviewMatchTx(ctx, tx, id, status, note); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) reviewMatchTx(ctx context.Context, q dbtx, id string, status model.MatchStatus, note string) error {
	if status != model.MatchApproved && status != model.MatchRejected {
		return fmt.Errorf("%w: review decision must be approved or rejected, got %s", ErrInvalidStatus, status)
	}

	m, err := s.getMatchByIDTx(ctx, q, id)
	if err != nil {
		return err
	}
	if m.Status == model.MatchExported {
		return fmt.Errorf("match %s has already been exported and cannot be re-reviewed", id)
	}

	now := time.Now().UTC()
	_, err = q.ExecContext(ctx, `
		UPDATE matches SET status = ?, review_note = ?, reviewed_at = ? WHERE id = ?
	`, status, note, now, id)
	if err != nil {
		return fmt.Errorf("failed to review match: %w", err)
	}

	if status == model.MatchRejected {
		_, err = q.ExecContext(ctx, `
			UPDATE transactions SET matched = 0 WHERE id IN (?, ?)
		`, m.CARTransactionID, m.ReceiptTransactionID)
		if err != nil {
			return fmt.Errorf("failed to release rejected transactions: %w", err)
		}
	}
	return nil
}

// MarkMatchExported records where the combined PDF for a match was written.
// Only approved matches can be exported.
func (s *SQLiteStorage) MarkMatchExported(ctx context.Context, id, exportPath string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.markMatchExportedTx(ctx, s.db, id, exportPath)
}

func (s *SQLiteStorage) markMatchExportedTx(ctx context.Context, q dbtx, id, exportPath string) error {
	m, err := s.getMatchByIDTx(ctx, q, id)
	if err != nil {
		return err
	}
	if m.Status != model.MatchApproved && m.Status != model.MatchExported {
		return fmt.Errorf("match %s is %s; only approved matches can be exported", id, m.Status)
	}

	now := time.Now().UTC()
	_, err = q.ExecContext(ctx, `
		UPDATE matches SET status = ?, exported_at = ?, export_path = ? WHERE id = ?
	`, model.MatchExported, now, exportPath, id)
	if err != nil {
		return fmt.Errorf("failed to mark match exported: %w", err)
	}
	return nil
}

// DeleteMatch removes a match and releases its transactions.
func (s *SQLiteStorage) DeleteMatch(ctx context.Context, id string) error {
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

	if err := s.deleteMatchTx(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) deleteMatchTx(ctx context.Context, q dbtx, id string) error {
	m, err := s.getMatchByIDTx(ctx, q, id)
	if err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM matches WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete match: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		UPDATE transactions SET matched = 0 WHERE id IN (?, ?)
	`, m.CARTransactionID, m.ReceiptTransactionID)
	if err != nil {
		return fmt.Errorf("failed to release transactions of deleted match: %w", err)
	}
	return nil
}

const matchSelect = `
	SELECT id, car_transaction_id, receipt_transaction_id, status,
	       confidence, date_score, amount_score, employee_score, merchant_score,
	       review_note, reviewed_at, exported_at, export_path, created_at
	FROM matches
`

func scanMatchRow(row rowScanner) (*model.Match, error) {
	var (
		m          model.Match
		reviewNote sql.NullString
		reviewedAt sql.NullTime
		exportedAt sql.NullTime
		exportPath sql.NullString
	)

	err := row.Scan(&m.ID, &m.CARTransactionID, &m.ReceiptTransactionID, &m.Status,
		&m.Confidence, &m.DateScore, &m.AmountScore, &m.EmployeeScore, &m.MerchantScore,
		&reviewNote, &reviewedAt, &exportedAt, &exportPath, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan match: %w", err)
	}

	if reviewNote.Valid {
		m.ReviewNote = reviewNote.String
	}
	if reviewedAt.Valid {
		m.ReviewedAt = &reviewedAt.Time
	}
	if exportedAt.Valid {
		m.ExportedAt = &exportedAt.Time
	}
	if exportPath.Valid {
		m.ExportPath = &exportPath.String
	}
	return &m, nil
}
