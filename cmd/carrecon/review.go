package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carrecon/carrecon/internal/cli"
	"github.com/carrecon/carrecon/internal/model"
	"github.com/carrecon/carrecon/internal/service"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review [match-id]",
		Short: "List and review matches",
		Long: `Without arguments, list matches awaiting review with their confidence
breakdowns. With a match ID and a decision flag, record the review.

Rejecting a match releases both transactions back into the matching pool.

Examples:
  # List pending matches
  carrecon review

  # List everything, including reviewed matches
  carrecon review --status all

  # Approve a match
  carrecon review 7d1a... --approve

  # Reject with a note
  carrecon review 7d1a... --reject --note "receipt belongs to a different trip"`,
		Args: cobra.MaximumNArgs(1),
		RunE: runReview,
	}

	cmd.Flags().Bool("approve", false, "approve the given match")
	cmd.Flags().Bool("reject", false, "reject the given match")
	cmd.Flags().String("note", "", "review note to record with the decision")
	cmd.Flags().String("status", "pending", "filter listed matches: pending, approved, rejected, exported, all")

	return cmd
}

func runReview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if len(args) == 0 {
		statusFlag, _ := cmd.Flags().GetString("status")
		return listMatches(ctx, cmd, store, statusFlag)
	}
	return decideMatch(ctx, cmd, store, args[0])
}

func listMatches(ctx context.Context, cmd *cobra.Command, store service.Storage, statusFlag string) error {
	filter := service.MatchFilter{}
	if statusFlag != "all" {
		status := model.MatchStatus(statusFlag)
		if !status.Valid() {
			return fmt.Errorf("invalid status %q", statusFlag)
		}
		filter.Status = &status
	}

	matches, err := store.ListMatches(ctx, filter)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		cmd.Println(cli.InfoStyle.Render("No matches to show"))
		return nil
	}

	cmd.Println(cli.TitleStyle.Render(fmt.Sprintf("%d match(es)", len(matches))))
	for _, m := range matches {
		if err := printMatch(ctx, cmd, store, m); err != nil {
			return err
		}
	}
	return nil
}

func printMatch(ctx context.Context, cmd *cobra.Command, store service.Storage, m model.Match) error {
	car, err := store.GetTransactionByID(ctx, m.CARTransactionID)
	if err != nil {
		return fmt.Errorf("match %s statement transaction: %w", m.ID, err)
	}
	receipt, err := store.GetTransactionByID(ctx, m.ReceiptTransactionID)
	if err != nil {
		return fmt.Errorf("match %s receipt transaction: %w", m.ID, err)
	}

	confidence := cli.ConfidenceStyle(m.Confidence).Render(fmt.Sprintf("%.0f%%", m.Confidence*100))
	cmd.Printf("%s  %s  [%s]\n", cli.BoldStyle.Render(m.ID), confidence, m.Status)
	cmd.Printf("  statement: %s  %s  %s\n",
		formatDate(car.Date), formatAmount(car.Amount), formatOptional(car.Merchant))
	cmd.Printf("  receipt:   %s  %s  %s\n",
		formatDate(receipt.Date), formatAmount(receipt.Amount), formatOptional(receipt.Merchant))
	cmd.Println(cli.SubtleStyle.Render(fmt.Sprintf(
		"  scores: date %.2f  amount %.2f  employee %.2f  merchant %.2f",
		m.DateScore, m.AmountScore, m.EmployeeScore, m.MerchantScore)))
	if m.ReviewNote != "" {
		cmd.Println(cli.SubtleStyle.Render("  note: " + m.ReviewNote))
	}
	return nil
}

func decideMatch(ctx context.Context, cmd *cobra.Command, store service.Storage, id string) error {
	approve, _ := cmd.Flags().GetBool("approve")
	reject, _ := cmd.Flags().GetBool("reject")
	note, _ := cmd.Flags().GetString("note")

	if approve == reject {
		return fmt.Errorf("specify exactly one of --approve or --reject")
	}

	status := model.MatchApproved
	if reject {
		status = model.MatchRejected
	}

	if err := store.ReviewMatch(ctx, id, status, note); err != nil {
		return err
	}

	if approve {
		cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf("Approved match %s", id)))
	} else {
		cmd.Println(cli.WarningStyle.Render(fmt.Sprintf(
			"Rejected match %s; its transactions are back in the matching pool", id)))
	}
	return nil
}
