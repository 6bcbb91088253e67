package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"smartasset/internal/core"
)

var (
	reportYear  int
	reportMonth int
)

func init() {
	now := time.Now()
	reportCmd.Flags().IntVar(&reportYear, "year", now.Year(), "report year")
	reportCmd.Flags().IntVar(&reportMonth, "month", int(now.Month()), "report month, 0 for the whole year")
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print income, expense and category totals for a window",
	Long: `Print the same summary the web report shows.

Examples:
  # Current month
  ledgerctl report

  # Whole of 2024
  ledgerctl report --year 2024 --month 0`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openLedger(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer closeSession(cmd, s)

		r, err := s.ledger.Report(cmd.Context(), core.Window{Year: reportYear, Month: reportMonth})
		if err != nil {
			return err
		}
		return printReport(cmd.OutOrStdout(), r)
	},
}

func printReport(out io.Writer, r core.Report) error {
	period := fmt.Sprintf("%d", r.Window.Year)
	if !r.Window.WholeYear() {
		period = fmt.Sprintf("%s %d", time.Month(r.Window.Month), r.Window.Year)
	}
	fmt.Fprintf(out, "%s (%d records)\n", period, r.Count)
	fmt.Fprintf(out, "  Income   %s\n", core.FormatAmount(r.Income))
	fmt.Fprintf(out, "  Expense  %s\n", core.FormatAmount(r.Expense))
	fmt.Fprintf(out, "  Balance  %s\n", core.FormatAmount(r.Balance))
	if len(r.ByCategory) == 0 {
		return nil
	}

	fmt.Fprintln(out, "\nExpense by category")
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	for _, ca := range r.ByCategory {
		fmt.Fprintf(tw, "  %s\t%s\t\n", ca.Name, core.FormatAmount(ca.Amount))
	}
	return tw.Flush()
}
