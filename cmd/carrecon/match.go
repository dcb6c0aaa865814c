package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/carrecon/carrecon/internal/cli"
	"github.com/carrecon/carrecon/internal/match"
	"github.com/carrecon/carrecon/internal/model"
	"github.com/carrecon/carrecon/internal/service"
)

func matchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match statement transactions to receipts",
		Long: `Run the matching engine over unmatched transactions.

Every unmatched statement line is scored against every unmatched receipt
on date, amount, employee, and merchant. Pairs above the confidence
threshold are paired greedily, best first, with each transaction used at
most once. Created matches start in pending status for review.`,
		RunE: runMatch,
	}

	cmd.Flags().Float64("min-confidence", 0, "override the confidence threshold (default 0.70)")
	cmd.Flags().Int("date-tolerance", 0, "override the date tolerance in days (default 1)")

	return cmd
}

func runMatch(cmd *cobra.Command, _ []string) error {
	minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")
	dateTolerance, _ := cmd.Flags().GetInt("date-tolerance")

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	start := time.Now()

	cars, err := store.GetUnmatchedTransactions(ctx, model.FamilyCAR)
	if err != nil {
		return err
	}
	receipts, err := store.GetUnmatchedTransactions(ctx, model.FamilyReceipt)
	if err != nil {
		return err
	}

	if len(cars) == 0 || len(receipts) == 0 {
		cmd.Println(cli.WarningStyle.Render(fmt.Sprintf(
			"Nothing to match: %d unmatched statement line(s), %d unmatched receipt(s)",
			len(cars), len(receipts))))
		return nil
	}

	conf := match.DefaultConfig()
	if dateTolerance > 0 {
		conf.DateToleranceDays = dateTolerance
	}
	matcher := match.NewMatcher(conf)

	candidates := matcher.FindBestMatches(cars, receipts, minConfidence)

	if len(candidates) > 0 {
		matches := make([]model.Match, 0, len(candidates))
		for _, c := range candidates {
			matches = append(matches, model.Match{
				ID:                   uuid.New().String(),
				CARTransactionID:     c.CARTransactionID,
				ReceiptTransactionID: c.ReceiptTransactionID,
				Status:               model.MatchPending,
				Confidence:           c.Confidence,
				DateScore:            c.DateScore,
				AmountScore:          c.AmountScore,
				EmployeeScore:        c.EmployeeScore,
				MerchantScore:        c.MerchantScore,
			})
		}
		if err := store.CreateMatches(ctx, matches); err != nil {
			return fmt.Errorf("failed to save matches: %w", err)
		}

		for _, c := range candidates {
			confidence := cli.ConfidenceStyle(c.Confidence).Render(fmt.Sprintf("%.0f%%", c.Confidence*100))
			cmd.Printf("%s  %s <-> %s\n", confidence, c.CARTransactionID, c.ReceiptTransactionID)
			cmd.Println(cli.SubtleStyle.Render(fmt.Sprintf(
				"     date %.2f  amount %.2f  employee %.2f  merchant %.2f",
				c.DateScore, c.AmountScore, c.EmployeeScore, c.MerchantScore)))
		}
	}

	stats := service.ReconciliationStats{
		CARTransactions:     len(cars),
		ReceiptTransactions: len(receipts),
		Matched:             len(candidates),
		UnmatchedCAR:        len(cars) - len(candidates),
		UnmatchedReceipts:   len(receipts) - len(candidates),
		Duration:            time.Since(start),
	}

	cmd.Println(cli.TitleStyle.Render("Matching complete"))
	cmd.Printf("  Statement lines: %d\n", stats.CARTransactions)
	cmd.Printf("  Receipts:        %d\n", stats.ReceiptTransactions)
	cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf("  Matched:         %d", stats.Matched)))
	cmd.Printf("  Unmatched:       %d statement line(s), %d receipt(s)\n",
		stats.UnmatchedCAR, stats.UnmatchedReceipts)
	cmd.Println(cli.SubtleStyle.Render(fmt.Sprintf("  Took %s", stats.Duration.Round(time.Millisecond))))

	if stats.Matched > 0 {
		cmd.Println(cli.InfoStyle.Render("Review pending matches with: carrecon review"))
	}
	return nil
}
