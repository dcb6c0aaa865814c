package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema: documents and transactions",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS documents (
					id TEXT PRIMARY KEY,
					family TEXT NOT NULL,
					original_filename TEXT NOT NULL,
					stored_path TEXT NOT NULL,
					file_hash TEXT UNIQUE NOT NULL,
					page_count INTEGER NOT NULL,
					file_size_bytes INTEGER NOT NULL,
					uploaded_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_documents_family ON documents(family)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					document_id TEXT NOT NULL,
					fingerprint TEXT NOT NULL,
					family TEXT NOT NULL,
					date DATETIME,
					amount REAL,
					employee_id TEXT,
					employee_name TEXT,
					merchant TEXT,
					card_number TEXT,
					page_number INTEGER NOT NULL,
					raw_text TEXT,
					confidence REAL DEFAULT 0,
					matched BOOLEAN DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (document_id) REFERENCES documents(id)
				)`,
				`CREATE INDEX idx_transactions_fingerprint ON transactions(fingerprint)`,
				`CREATE INDEX idx_transactions_document ON transactions(document_id)`,
				`CREATE INDEX idx_transactions_family_matched ON transactions(family, matched)`,
				`CREATE INDEX idx_transactions_business_key ON transactions(date, amount, employee_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add matches table",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS matches (
					id TEXT PRIMARY KEY,
					car_transaction_id TEXT NOT NULL,
					receipt_transaction_id TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'pending',
					confidence REAL NOT NULL,
					date_score REAL DEFAULT 0,
					amount_score REAL DEFAULT 0,
					employee_score REAL DEFAULT 0,
					merchant_score REAL DEFAULT 0,
					review_note TEXT,
					reviewed_at DATETIME,
					exported_at DATETIME,
					export_path TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (car_transaction_id) REFERENCES transactions(id),
					FOREIGN KEY (receipt_transaction_id) REFERENCES transactions(id)
				)`,
				`CREATE INDEX idx_matches_status ON matches(status)`,
				`CREATE INDEX idx_matches_car_txn ON matches(car_transaction_id)`,
				`CREATE INDEX idx_matches_receipt_txn ON matches(receipt_transaction_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Track duplicate transactions",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE transactions ADD COLUMN is_duplicate BOOLEAN DEFAULT 0`,
				`ALTER TABLE transactions ADD COLUMN duplicate_of_id TEXT`,
				`CREATE INDEX idx_transactions_duplicate ON transactions(is_duplicate)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate brings the database schema up to the expected version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
