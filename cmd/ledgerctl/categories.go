package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	categoriesCmd.AddCommand(categoriesListCmd, categoriesAddCmd, categoriesDeleteCmd)
	rootCmd.AddCommand(categoriesCmd)
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Manage the category registry",
}

var categoriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openLedger(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer closeSession(cmd, s)

		cats, err := s.ledger.Categories(cmd.Context())
		if err != nil {
			return err
		}
		for _, c := range cats {
			fmt.Fprintln(cmd.OutOrStdout(), c.Name)
		}
		return nil
	},
}

var categoriesAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openLedger(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer closeSession(cmd, s)

		cat, err := s.ledger.AddCategory(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("add category %q: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", cat.Name)
		return nil
	},
}

var categoriesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a category; records using it keep the name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openLedger(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer closeSession(cmd, s)

		if err := s.ledger.DeleteCategory(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("delete category %q: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}
