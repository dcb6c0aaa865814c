package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carrecon/carrecon/internal/cli"
	"github.com/carrecon/carrecon/internal/model"
	"github.com/carrecon/carrecon/internal/service"
)

func documentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Manage uploaded documents",
	}

	cmd.AddCommand(documentsListCmd())
	cmd.AddCommand(documentsDeleteCmd())

	return cmd
}

func documentsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List uploaded documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			familyFlag, _ := cmd.Flags().GetString("family")

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var family *model.DocumentFamily
			if familyFlag != "" {
				parsed, parseErr := parseFamily(familyFlag)
				if parseErr != nil {
					return parseErr
				}
				family = &parsed
			}

			docs, err := store.ListDocuments(ctx, family)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				cmd.Println(cli.InfoStyle.Render("No documents uploaded"))
				return nil
			}

			cmd.Println(cli.TableHeaderStyle.Render(fmt.Sprintf(
				"%-36s  %-8s  %5s  %-19s  %s", "ID", "FAMILY", "PAGES", "UPLOADED", "FILE")))
			for _, doc := range docs {
				cmd.Printf("%-36s  %-8s  %5d  %-19s  %s\n",
					doc.ID, doc.Family, doc.PageCount,
					doc.UploadedAt.Format("2006-01-02 15:04:05"),
					doc.OriginalFilename)
			}
			return nil
		},
	}

	cmd.Flags().StringP("family", "f", "", "only show one family: car or receipt")
	return cmd
}

func documentsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [document-id]",
		Short: "Delete a document and its extracted transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteDocument(ctx, args[0]); err != nil {
				return err
			}
			cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf("Deleted document %s", args[0])))
			return nil
		},
	}
}

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "Manage extracted transactions",
	}

	cmd.AddCommand(transactionsListCmd())
	cmd.AddCommand(transactionsDeleteCmd())

	return cmd
}

func transactionsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List extracted transactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			familyFlag, _ := cmd.Flags().GetString("family")
			unmatchedOnly, _ := cmd.Flags().GetBool("unmatched")
			limit, _ := cmd.Flags().GetInt("limit")

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			filter := service.TransactionFilter{Limit: limit}
			if familyFlag != "" {
				family, parseErr := parseFamily(familyFlag)
				if parseErr != nil {
					return parseErr
				}
				filter.Family = &family
			}
			if unmatchedOnly {
				matched := false
				filter.Matched = &matched
				noDuplicates := false
				filter.Duplicates = &noDuplicates
			}

			txns, err := store.GetTransactions(ctx, filter)
			if err != nil {
				return err
			}
			if len(txns) == 0 {
				cmd.Println(cli.InfoStyle.Render("No transactions to show"))
				return nil
			}

			cmd.Println(cli.TableHeaderStyle.Render(fmt.Sprintf(
				"%-36s  %-8s  %-10s  %10s  %-8s  %s", "ID", "FAMILY", "DATE", "AMOUNT", "EMPLOYEE", "MERCHANT")))
			for _, txn := range txns {
				flags := ""
				if txn.Matched {
					flags = " [matched]"
				}
				if txn.IsDuplicate {
					flags += " [duplicate]"
				}
				cmd.Printf("%-36s  %-8s  %-10s  %10s  %-8s  %s%s\n",
					txn.ID, txn.Family, formatDate(txn.Date), formatAmount(txn.Amount),
					formatOptional(txn.EmployeeID), formatOptional(txn.Merchant),
					cli.SubtleStyle.Render(flags))
			}
			return nil
		},
	}

	cmd.Flags().StringP("family", "f", "", "only show one family: car or receipt")
	cmd.Flags().Bool("unmatched", false, "only show unmatched, non-duplicate transactions")
	cmd.Flags().Int("limit", 0, "limit the number of rows")
	return cmd
}

func transactionsDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete [transaction-id]",
		Short: "Delete a transaction",
		Long: `Delete an extracted transaction. A transaction that participates in a
match is refused unless --force is given; forcing also removes its
matches and releases their counterparts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteTransaction(ctx, args[0], force); err != nil {
				return err
			}
			cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf("Deleted transaction %s", args[0])))
			return nil
		},
	}

	cmd.Flags().Bool("force", false, "delete even if the transaction is matched")
	return cmd
}
