package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"smartasset/internal/core"
)

var listLimit int

func init() {
	transactionsListCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum rows to print (0 for all)")
	transactionsCmd.AddCommand(transactionsListCmd, transactionsDeleteCmd)
	rootCmd.AddCommand(transactionsCmd)
}

var transactionsCmd = &cobra.Command{
	Use:     "transactions",
	Aliases: []string{"tx"},
	Short:   "Inspect and remove ledger records",
}

var transactionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List records, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openLedger(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer closeSession(cmd, s)

		txs, err := s.ledger.ListAll(cmd.Context())
		if err != nil {
			return err
		}
		if listLimit > 0 && len(txs) > listLimit {
			txs = txs[:listLimit]
		}
		return printTransactions(cmd.OutOrStdout(), txs)
	},
}

var transactionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete records by id",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]int64, len(args))
		for i, a := range args {
			id, err := strconv.ParseInt(a, 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid id %q", a)
			}
			ids[i] = id
		}

		s, err := openLedger(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer closeSession(cmd, s)

		for _, id := range ids {
			if err := s.ledger.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("delete %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d\n", id)
		}
		return nil
	},
}

func printTransactions(out io.Writer, txs []core.Transaction) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tITEM\tCATEGORY\tTYPE\tAMOUNT\tNOTE")
	for _, tx := range txs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.ID, tx.Date, tx.Item, tx.Category, tx.Type, tx.Amount.StringFixed(2), tx.Note)
	}
	return tw.Flush()
}
