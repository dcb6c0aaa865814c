package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/carrecon/carrecon/internal/cli"
	"github.com/carrecon/carrecon/internal/dedup"
	"github.com/carrecon/carrecon/internal/extract"
	"github.com/carrecon/carrecon/internal/model"
	"github.com/carrecon/carrecon/internal/pdffile"
)

func uploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload [files...]",
		Short: "Upload statement or receipt PDFs",
		Long: `Validate, register, and extract PDF documents for reconciliation.

Each file is checked for size, page count, and extractable text, copied
into the document store, and its transactions extracted immediately.
A file whose content was already uploaded is skipped; re-uploading is
never an error. Use --force to re-run extraction on such a file.

Examples:
  # Upload a card statement
  carrecon upload --family car ~/Downloads/march_statement.pdf

  # Upload a batch of receipt scans
  carrecon upload --family receipt ~/Downloads/receipts_*.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: runUpload,
	}

	cmd.Flags().StringP("family", "f", "", "document family: car or receipt (required)")
	cmd.Flags().Bool("force", false, "re-extract a document whose content was already uploaded")
	_ = cmd.MarkFlagRequired("family")

	return cmd
}

func runUpload(cmd *cobra.Command, args []string) error {
	familyFlag, _ := cmd.Flags().GetString("family")
	force, _ := cmd.Flags().GetBool("force")
	family, err := parseFamily(familyFlag)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	detector := dedup.NewDetector(store)
	extractor := extract.NewExtractor()
	destDir := documentsDir()
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return fmt.Errorf("failed to create documents directory: %w", err)
	}

	uploaded, skipped, totalNew := 0, 0, 0
	for _, path := range args {
		doc, isNew, uploadErr := uploadOne(cmd, detector, family, path, destDir, force)
		if uploadErr != nil {
			return uploadErr
		}
		if doc == nil {
			skipped++
			continue
		}

		if isNew {
			if saveErr := store.SaveDocument(ctx, doc); saveErr != nil {
				return fmt.Errorf("failed to register %s: %w", filepath.Base(path), saveErr)
			}
			uploaded++
			slog.Info("Uploaded document",
				"id", doc.ID,
				"file", doc.OriginalFilename,
				"family", doc.Family,
				"pages", doc.PageCount)
		}

		newCount, _, extractErr := extractDocument(ctx, store, detector, extractor, *doc)
		if extractErr != nil {
			return fmt.Errorf("failed to extract %s: %w", doc.OriginalFilename, extractErr)
		}
		totalNew += newCount
	}

	cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf(
		"Uploaded %d document(s), skipped %d duplicate(s), %d new transaction(s)",
		uploaded, skipped, totalNew)))
	return nil
}

// uploadOne validates and stages a single file. A nil document means the file
// content is already stored and no re-extract was requested; with force, the
// existing document is returned (isNew false) for re-extraction.
func uploadOne(cmd *cobra.Command, detector *dedup.Detector, family model.DocumentFamily, path, destDir string, force bool) (doc *model.Document, isNew bool, err error) {
	pageCount, size, err := pdffile.Validate(path)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	hash, err := dedup.HashFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to hash %s: %w", filepath.Base(path), err)
	}

	existing, err := detector.CheckDocument(cmd.Context(), hash)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if force {
			cmd.Println(cli.InfoStyle.Render(fmt.Sprintf(
				"%s already uploaded as %s; re-extracting",
				filepath.Base(path), existing.ID)))
			return existing, false, nil
		}
		cmd.Println(cli.WarningStyle.Render(fmt.Sprintf(
			"%s already uploaded as %s (%s); skipping",
			filepath.Base(path), existing.ID, existing.OriginalFilename)))
		return nil, false, nil
	}

	id := uuid.New().String()
	storedPath := filepath.Join(destDir, id+".pdf")
	if err := copyFile(path, storedPath); err != nil {
		return nil, false, fmt.Errorf("failed to store %s: %w", filepath.Base(path), err)
	}

	return &model.Document{
		ID:               id,
		Family:           family,
		OriginalFilename: filepath.Base(path),
		StoredPath:       storedPath,
		FileHash:         hash,
		PageCount:        pageCount,
		FileSizeBytes:    size,
	}, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
