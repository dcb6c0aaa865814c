package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/carrecon/carrecon/internal/cli"
	"github.com/carrecon/carrecon/internal/dedup"
	"github.com/carrecon/carrecon/internal/extract"
	"github.com/carrecon/carrecon/internal/model"
	"github.com/carrecon/carrecon/internal/pdffile"
	"github.com/carrecon/carrecon/internal/service"
)

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract transactions from uploaded documents",
		Long: `Parse uploaded PDFs into transaction records.

Statement documents are parsed line by line with employee context carried
across pages; receipt documents are parsed one receipt per page. Records
whose business key is already stored are skipped silently.

Examples:
  # Extract every uploaded document
  carrecon extract --all

  # Extract a single document
  carrecon extract --document 4f2c...`,
		RunE: runExtract,
	}

	cmd.Flags().String("document", "", "extract only this document ID")
	cmd.Flags().Bool("all", false, "extract every uploaded document")

	return cmd
}

func runExtract(cmd *cobra.Command, _ []string) error {
	docID, _ := cmd.Flags().GetString("document")
	all, _ := cmd.Flags().GetBool("all")

	if (docID == "") == !all {
		return fmt.Errorf("specify exactly one of --document or --all")
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var docs []model.Document
	if docID != "" {
		doc, getErr := store.GetDocumentByID(ctx, docID)
		if getErr != nil {
			return fmt.Errorf("document %s: %w", docID, getErr)
		}
		docs = []model.Document{*doc}
	} else {
		docs, err = store.ListDocuments(ctx, nil)
		if err != nil {
			return err
		}
	}

	if len(docs) == 0 {
		cmd.Println(cli.WarningStyle.Render("No documents to extract; upload some first"))
		return nil
	}

	bar := progressbar.Default(int64(len(docs)), "Extracting")
	detector := dedup.NewDetector(store)
	extractor := extract.NewExtractor()

	totalNew, totalDup := 0, 0
	for _, doc := range docs {
		newCount, dupCount, extractErr := extractDocument(ctx, store, detector, extractor, doc)
		_ = bar.Add(1)
		if extractErr != nil {
			slog.Error("Failed to extract document",
				"document_id", doc.ID,
				"file", doc.OriginalFilename,
				"error", extractErr)
			continue
		}
		totalNew += newCount
		totalDup += dupCount
	}

	cmd.Println(cli.SuccessStyle.Render(
		fmt.Sprintf("Extracted %d new transaction(s), %d duplicate(s) skipped", totalNew, totalDup)))
	return nil
}

func extractDocument(ctx context.Context, store service.Storage, detector *dedup.Detector, extractor *extract.Extractor, doc model.Document) (int, int, error) {
	pdf, err := pdffile.Open(doc.StoredPath)
	if err != nil {
		return 0, 0, &extract.ExtractionError{Msg: "failed to open document for extraction", Err: err}
	}
	defer func() { _ = pdf.Close() }()

	records, err := extractor.Extract(pdf, doc.Family)
	if err != nil {
		return 0, 0, err
	}
	if len(records) == 0 {
		slog.Warn("No transactions found in document",
			"document_id", doc.ID,
			"file", doc.OriginalFilename)
		return 0, 0, nil
	}

	fresh, duplicates, err := detector.FilterNew(ctx, records)
	if err != nil {
		return 0, 0, err
	}

	if len(fresh) > 0 {
		txns := make([]model.Transaction, 0, len(fresh))
		for _, rec := range fresh {
			txns = append(txns, model.FromRecord(uuid.New().String(), doc.ID, rec))
		}
		if err := store.SaveTransactions(ctx, txns); err != nil {
			return 0, 0, err
		}
	}

	slog.Info("Extracted document",
		"document_id", doc.ID,
		"file", doc.OriginalFilename,
		"records", len(records),
		"new", len(fresh),
		"duplicates", len(duplicates))
	return len(fresh), len(duplicates), nil
}
