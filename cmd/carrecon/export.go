package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/carrecon/carrecon/internal/cli"
	"github.com/carrecon/carrecon/internal/model"
	"github.com/carrecon/carrecon/internal/service"
	"github.com/carrecon/carrecon/internal/split"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [match-ids...]",
		Short: "Export combined PDFs for approved matches",
		Long: `Build combined PDF packets for approved matches: the statement page(s)
followed by the receipt page(s) for each match.

A match that fails to export is logged and skipped; it never aborts the
rest of the batch.

Examples:
  # Export every approved match, one PDF per match
  carrecon export --all

  # Export specific matches
  carrecon export 7d1a... 9c3f...

  # Export everything into a single document
  carrecon export --all --all-in-one reconciliation_march.pdf`,
		RunE: runExport,
	}

	cmd.Flags().Bool("all", false, "export every approved match")
	cmd.Flags().String("all-in-one", "", "combine all matches into one PDF with this filename")
	cmd.Flags().String("output", "", "export directory (default from config)")

	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	allInOne, _ := cmd.Flags().GetString("all-in-one")
	output, _ := cmd.Flags().GetString("output")

	if all == (len(args) > 0) {
		return fmt.Errorf("specify match IDs or --all, not both")
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	matches, err := collectExportableMatches(ctx, store, all, args)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		cmd.Println(cli.WarningStyle.Render("No approved matches to export"))
		return nil
	}

	if output == "" {
		output = exportDir()
	}
	splitter, err := split.NewSplitter(output)
	if err != nil {
		return err
	}

	items := make([]split.ExportItem, 0, len(matches))
	for _, m := range matches {
		item, buildErr := buildExportItem(ctx, store, m)
		if buildErr != nil {
			return buildErr
		}
		items = append(items, item)
	}

	if allInOne != "" {
		outPath, pages, exportErr := splitter.ExportAllInOne(items, allInOne)
		if exportErr != nil {
			return exportErr
		}
		for _, m := range matches {
			if markErr := store.MarkMatchExported(ctx, m.ID, outPath); markErr != nil {
				return markErr
			}
		}
		cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf(
			"Exported %d match(es), %d page(s) to %s", len(matches), pages, outPath)))
		return nil
	}

	results := splitter.ExportBatch(items)
	exported, failed := 0, 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			continue
		}
		if markErr := store.MarkMatchExported(ctx, res.MatchID, res.OutputPath); markErr != nil {
			slog.Error("Exported PDF but failed to record it",
				"match_id", res.MatchID,
				"path", res.OutputPath,
				"error", markErr)
			failed++
			continue
		}
		exported++
	}

	cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf("Exported %d match(es) to %s", exported, output)))
	if failed > 0 {
		cmd.Println(cli.ErrorStyle.Render(fmt.Sprintf("%d match(es) failed; see the log for details", failed)))
	}
	return nil
}

// collectExportableMatches resolves the requested matches and checks they are
// approved.
func collectExportableMatches(ctx context.Context, store service.Storage, all bool, ids []string) ([]model.Match, error) {
	if all {
		approved := model.MatchApproved
		return store.ListMatches(ctx, service.MatchFilter{Status: &approved})
	}

	matches := make([]model.Match, 0, len(ids))
	for _, id := range ids {
		m, err := store.GetMatchByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("match %s: %w", id, err)
		}
		if m.Status != model.MatchApproved {
			return nil, fmt.Errorf("match %s is %s; approve it before exporting", id, m.Status)
		}
		matches = append(matches, *m)
	}
	return matches, nil
}

// buildExportItem resolves a match's transactions and source documents into
// page selections.
func buildExportItem(ctx context.Context, store service.Storage, m model.Match) (split.ExportItem, error) {
	car, err := store.GetTransactionByID(ctx, m.CARTransactionID)
	if err != nil {
		return split.ExportItem{}, fmt.Errorf("match %s statement transaction: %w", m.ID, err)
	}
	receipt, err := store.GetTransactionByID(ctx, m.ReceiptTransactionID)
	if err != nil {
		return split.ExportItem{}, fmt.Errorf("match %s receipt transaction: %w", m.ID, err)
	}

	carDoc, err := store.GetDocumentByID(ctx, car.DocumentID)
	if err != nil {
		return split.ExportItem{}, fmt.Errorf("match %s statement document: %w", m.ID, err)
	}
	receiptDoc, err := store.GetDocumentByID(ctx, receipt.DocumentID)
	if err != nil {
		return split.ExportItem{}, fmt.Errorf("match %s receipt document: %w", m.ID, err)
	}

	return split.ExportItem{
		MatchID:      m.ID,
		CARPath:      carDoc.StoredPath,
		CARPages:     []int{car.PageNumber},
		ReceiptPath:  receiptDoc.StoredPath,
		ReceiptPages: []int{receipt.PageNumber},
	}, nil
}
