package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"smartasset/internal/core"
	"smartasset/internal/receipt"
	"smartasset/internal/reconcile"
)

var (
	scanConfirm bool
	timeNow     = time.Now
)

func init() {
	scanCmd.Flags().BoolVar(&scanConfirm, "confirm", false, "coerce and write the rows instead of only printing them")
	rootCmd.AddCommand(scanCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan <image>",
	Short: "Read a receipt photo with the model",
	Long: `Send one receipt image to the model and print the draft rows it read.
With --confirm the rows are coerced and appended to the ledger in one batch,
exactly as confirming them in the web UI would.

Examples:
  # Preview
  ledgerctl scan receipt.jpg

  # Preview and store
  ledgerctl scan receipt.jpg --confirm`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	img, err := receipt.NewImage(data)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	s, err := openLedger(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer closeSession(cmd, s)

	interpreter, err := receipt.NewGeminiInterpreter(cmd.Context(), receipt.GeminiConfig{
		APIKey:   s.cfg.GoogleAPIKey,
		Model:    s.cfg.GeminiModel,
		Timeout:  s.cfg.InterpretTimeout,
		Fallback: s.cfg.FallbackCategory,
	}, s.logger)
	if err != nil {
		return err
	}
	return scanWith(cmd.Context(), cmd.OutOrStdout(), interpreter, s, img)
}

func scanWith(ctx context.Context, out io.Writer, interpreter receipt.Interpreter, s *session, img receipt.Image) error {
	categories, err := s.ledger.CategoryNames(ctx)
	if err != nil {
		return err
	}
	drafts, err := interpreter.Interpret(ctx, img, categories)
	if err != nil {
		return err
	}
	if err := printDrafts(out, drafts); err != nil {
		return err
	}
	if !scanConfirm {
		return nil
	}

	buf := reconcile.NewBuffer()
	buf.Replace(drafts)
	coercer := core.NewCoercer(s.cfg.PlaceholderItem, s.cfg.FallbackCategory)
	res, err := buf.Confirm(ctx, s.ledger, coercer, core.DateOf(timeNow()))
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	fmt.Fprintf(out, "Saved %d rows\n", len(res.IDs))
	return nil
}

func printDrafts(out io.Writer, drafts []core.Draft) error {
	if len(drafts) == 0 {
		fmt.Fprintln(out, "No line items found")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tDATE\tITEM\tCATEGORY\tTYPE\tAMOUNT")
	for i, d := range drafts {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", i+1, d.Date, d.Item, d.Category, d.Type, d.Amount)
	}
	return tw.Flush()
}
