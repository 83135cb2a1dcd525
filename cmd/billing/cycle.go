package main

import (
	"github.com/spf13/cobra"

	"github.com/carlosmourajunior/minhasfinancas/internal/billing"
)

func newCycleCmd() *cobra.Command {
	var date string
	var closing, due int

	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Print the most recent cycle closed on or before a date",
		Example: `  billing cycle --date 2025-09-26 --closing 25 --due 1
  2025-08-26..2025-09-25  closing 2025-09-25  due 2025-10-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateDays(closing, due); err != nil {
				return err
			}
			ref, err := parseDay("date", date)
			if err != nil {
				return err
			}
			printCycle(cmd, billing.ComputeCycle(ref, closing, due))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Reference date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&closing, "closing", 0, "Card closing day (1-31)")
	cmd.Flags().IntVar(&due, "due", 0, "Card due day (1-31)")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("closing")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}
