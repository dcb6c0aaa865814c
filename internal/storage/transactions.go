package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carrecon/carrecon/internal/common"
	"github.com/carrecon/carrecon/internal/model"
	"github.com/carrecon/carrecon/internal/service"
)

// SaveTransactions saves extracted transactions. Rows with an already-stored
// ID are skipped silently; duplicate business keys are the duplicate
// detector's concern, not a storage constraint.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	// Validate inputs
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveTransactionsTx(ctx, tx, transactions); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) saveTransactionsTx(ctx context.Context, tx *sql.Tx, transactions []model.Transaction) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transactions (
			id, document_id, fingerprint, family, date, amount,
			employee_id, employee_name, merchant, card_number,
			page_number, raw_text, confidence
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, txn := range transactions {
		_, err := stmt.ExecContext(ctx,
			txn.ID, txn.DocumentID, txn.Fingerprint, txn.Family,
			txn.Date, txn.Amount, txn.EmployeeID, txn.EmployeeName,
			txn.Merchant, txn.CardNumber, txn.PageNumber, txn.RawText,
			txn.Confidence)
		if err != nil {
			return fmt.Errorf("failed to save transaction %s: %w", txn.ID, err)
		}
	}
	return nil
}

// GetTransactionByID retrieves a transaction by its ID.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getTransactionByIDTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getTransactionByIDTx(ctx context.Context, q dbtx, id string) (*model.Transaction, error) {
	row := q.QueryRowContext(ctx, transactionSelect+` WHERE id = ?`, id)
	return scanTransaction(row)
}

// GetTransactionByFingerprint retrieves the oldest transaction carrying the
// given business-key fingerprint.
func (s *SQLiteStorage) GetTransactionByFingerprint(ctx context.Context, fingerprint string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(fingerprint, "fingerprint"); err != nil {
		return nil, err
	}
	return s.getTransactionByFingerprintTx(ctx, s.db, fingerprint)
}

func (s *SQLiteStorage) getTransactionByFingerprintTx(ctx context.Context, q dbtx, fingerprint string) (*model.Transaction, error) {
	row := q.QueryRowContext(ctx,
		transactionSelect+` WHERE fingerprint = ? ORDER BY rowid LIMIT 1`, fingerprint)
	return scanTransaction(row)
}

// GetTransactions returns transactions matching the filter, oldest first.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getTransactionsTx(ctx, s.db, filter)
}

func (s *SQLiteStorage) getTransactionsTx(ctx context.Context, q dbtx, filter service.TransactionFilter) ([]model.Transaction, error) {
	query := transactionSelect + ` WHERE 1=1`
	var args []any

	if filter.Family != nil {
		query += " AND family = ?"
		args = append(args, *filter.Family)
	}
	if filter.DocumentID != nil {
		query += " AND document_id = ?"
		args = append(args, *filter.DocumentID)
	}
	if filter.Matched != nil {
		query += " AND matched = ?"
		args = append(args, *filter.Matched)
	}
	if filter.Duplicates != nil {
		query += " AND is_duplicate = ?"
		args = append(args, *filter.Duplicates)
	}

	// rowid preserves insertion order; created_at only has second resolution.
	query += " ORDER BY rowid"
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
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectTransactions(rows)
}

// GetAllTransactions returns every stored transaction.
func (s *SQLiteStorage) GetAllTransactions(ctx context.Context) ([]model.Transaction, error) {
	return s.GetTransactions(ctx, service.TransactionFilter{})
}

// GetUnmatchedTransactions returns the transactions of one family that are
// neither matched nor flagged as duplicates. This is the matching engine's
// candidate pool.
func (s *SQLiteStorage) GetUnmatchedTransactions(ctx context.Context, family model.DocumentFamily) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getUnmatchedTransactionsTx(ctx, s.db, family)
}

func (s *SQLiteStorage) getUnmatchedTransactionsTx(ctx context.Context, q dbtx, family model.DocumentFamily) ([]model.Transaction, error) {
	rows, err := q.QueryContext(ctx, transactionSelect+`
		WHERE family = ? AND matched = 0 AND is_duplicate = 0
		ORDER BY rowid
	`, family)
	if err != nil {
		return nil, fmt.Errorf("failed to query unmatched transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectTransactions(rows)
}

// MarkTransactionDuplicate flags a transaction as a duplicate of another.
func (s *SQLiteStorage) MarkTransactionDuplicate(ctx context.Context, id, duplicateOfID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.markTransactionDuplicateTx(ctx, s.db, id, duplicateOfID)
}

func (s *SQLiteStorage) markTransactionDuplicateTx(ctx context.Context, q dbtx, id, duplicateOfID string) error {
	var dupOf *string
	if duplicateOfID != "" {
		dupOf = &duplicateOfID
	}

	result, err := q.ExecContext(ctx, `
		UPDATE transactions SET is_duplicate = 1, duplicate_of_id = ? WHERE id = ?
	`, dupOf, id)
	if err != nil {
		return fmt.Errorf("failed to mark transaction duplicate: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// DeleteTransaction removes a transaction. A matched transaction is refused
// unless force is set; forcing also removes the matches it participates in.
func (s *SQLiteStorage) DeleteTransaction(ctx context.Context, id string, force bool) error {
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

	if err := s.deleteTransactionTx(ctx, tx, id, force); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) deleteTransactionTx(ctx context.Context, q dbtx, id string, force bool) error {
	txn, err := s.getTransactionByIDTx(ctx, q, id)
	if err != nil {
		return err
	}

	if txn.Matched {
		if !force {
			return fmt.Errorf("transaction %s: %w", id, common.ErrTransactionMatched)
		}

		// Release the counterpart of every match this transaction is in.
		_, err = q.ExecContext(ctx, `
			UPDATE transactions SET matched = 0 WHERE id IN (
				SELECT car_transaction_id FROM matches
					WHERE car_transaction_id = ? OR receipt_transaction_id = ?
				UNION
				SELECT receipt_transaction_id FROM matches
					WHERE car_transaction_id = ? OR receipt_transaction_id = ?
			)
		`, id, id, id, id)
		if err != nil {
			return fmt.Errorf("failed to release matched transactions: %w", err)
		}

		_, err = q.ExecContext(ctx, `
			DELETE FROM matches WHERE car_transaction_id = ? OR receipt_transaction_id = ?
		`, id, id)
		if err != nil {
			return fmt.Errorf("failed to delete transaction matches: %w", err)
		}
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

const transactionSelect = `
	SELECT id, document_id, fingerprint, family, date, amount,
	       employee_id, employee_name, merchant, card_number,
	       page_number, raw_text, confidence, matched,
	       is_duplicate, duplicate_of_id, created_at
	FROM transactions
`

func scanTransaction(row *sql.Row) (*model.Transaction, error) {
	txn, err := scanTransactionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return txn, err
}

func scanTransactionRow(row rowScanner) (*model.Transaction, error) {
	var (
		txn          model.Transaction
		date         sql.NullTime
		amount       sql.NullFloat64
		employeeID   sql.NullString
		employeeName sql.NullString
		merchant     sql.NullString
		cardNumber   sql.NullString
		rawText      sql.NullString
		dupOfID      sql.NullString
	)

	err := row.Scan(&txn.ID, &txn.DocumentID, &txn.Fingerprint, &txn.Family,
		&date, &amount, &employeeID, &employeeName, &merchant, &cardNumber,
		&txn.PageNumber, &rawText, &txn.Confidence, &txn.Matched,
		&txn.IsDuplicate, &dupOfID, &txn.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	if date.Valid {
		txn.Date = &date.Time
	}
	if amount.Valid {
		txn.Amount = &amount.Float64
	}
	if employeeID.Valid {
		txn.EmployeeID = &employeeID.String
	}
	if employeeName.Valid {
		txn.EmployeeName = &employeeName.String
	}
	if merchant.Valid {
		txn.Merchant = &merchant.String
	}
	if cardNumber.Valid {
		txn.CardNumber = &cardNumber.String
	}
	if rawText.Valid {
		txn.RawText = rawText.String
	}
	if dupOfID.Valid {
		txn.DuplicateOfID = &dupOfID.String
	}
	return &txn, nil
}

func collectTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	var txns []model.Transaction
	for rows.Next() {
		txn, err := scanTransactionRow(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}
	return txns, rows.Err()
}
