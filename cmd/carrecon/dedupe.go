package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/carrecon/carrecon/internal/cli"
	"github.com/carrecon/carrecon/internal/dedup"
)

func dedupeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Find and flag duplicate transactions",
		Long: `Scan stored transactions for groups sharing the same business key
(date, amount, employee, family).

Without --apply the groups are only reported. With --apply, each group
keeps its oldest member and flags the rest as duplicates, removing them
from the matching pool.`,
		RunE: runDedupe,
	}

	cmd.Flags().Bool("apply", false, "flag duplicates instead of just reporting them")

	return cmd
}

func runDedupe(cmd *cobra.Command, _ []string) error {
	apply, _ := cmd.Flags().GetBool("apply")

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	detector := dedup.NewDetector(store)
	groups, err := detector.FindAllDuplicates(ctx)
	if err != nil {
		return err
	}

	if len(groups) == 0 {
		cmd.Println(cli.SuccessStyle.Render("No duplicate transactions found"))
		return nil
	}

	cmd.Println(cli.TitleStyle.Render(fmt.Sprintf("%d duplicate group(s)", len(groups))))

	flagged := 0
	for _, group := range groups {
		cmd.Println(cli.SubtleStyle.Render(fmt.Sprintf("fingerprint %.12s…", group.Fingerprint)))
		for i, txn := range group.Transactions {
			marker := "keep"
			if i > 0 {
				marker = "duplicate"
			}
			cmd.Printf("  [%s] %s  %s  %s  %s\n",
				marker, txn.ID, formatDate(txn.Date), formatAmount(txn.Amount), formatOptional(txn.Merchant))
		}

		if !apply {
			continue
		}

		// Oldest member wins; the rest get flagged against it.
		original := group.Transactions[0]
		for _, txn := range group.Transactions[1:] {
			if markErr := detector.MarkDuplicate(ctx, txn.ID, original.ID); markErr != nil {
				slog.Error("Failed to flag duplicate",
					"transaction_id", txn.ID,
					"original_id", original.ID,
					"error", markErr)
				continue
			}
			flagged++
		}
	}

	if apply {
		cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf("Flagged %d duplicate transaction(s)", flagged)))
	} else {
		cmd.Println(cli.InfoStyle.Render("Run again with --apply to flag duplicates"))
	}
	return nil
}
