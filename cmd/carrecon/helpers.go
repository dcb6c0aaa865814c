package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/carrecon/carrecon/internal/common"
	"github.com/carrecon/carrecon/internal/config"
	"github.com/carrecon/carrecon/internal/model"
	"github.com/carrecon/carrecon/internal/service"
	"github.com/carrecon/carrecon/internal/storage"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	// Get database path from config
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}
	dbPath = config.ExpandPath(dbPath)

	// Initialize storage
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("failed to open database at %s", dbPath), err)
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// documentsDir returns the directory uploaded PDFs are copied into.
func documentsDir() string {
	dir := viper.GetString("storage.documents_dir")
	if dir == "" {
		dir = config.DefaultDocumentsDir()
	}
	return config.ExpandPath(dir)
}

// exportDir returns the directory combined match PDFs are written to.
func exportDir() string {
	dir := viper.GetString("storage.export_dir")
	if dir == "" {
		dir = config.DefaultExportDir()
	}
	return config.ExpandPath(dir)
}

// parseFamily converts the user-facing family flag value.
func parseFamily(s string) (model.DocumentFamily, error) {
	family := model.DocumentFamily(s)
	if !family.Valid() {
		return "", fmt.Errorf("invalid document family %q (expected %q or %q)",
			s, model.FamilyCAR, model.FamilyReceipt)
	}
	return family, nil
}

// formatDate renders a nullable date for table output.
func formatDate(d *time.Time) string {
	if d == nil {
		return "-"
	}
	return d.Format("2006-01-02")
}

// formatOptional renders a nullable field for table output.
func formatOptional(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

// formatAmount renders a nullable amount for table output.
func formatAmount(amount *float64) string {
	if amount == nil {
		return "-"
	}
	return fmt.Sprintf("$%.2f", *amount)
}
