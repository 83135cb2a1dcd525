package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carlosmourajunior/minhasfinancas/internal/billing"
)

func newActiveCmd() *cobra.Command {
	var today, cutoff string
	var closing, due int
	defaults := billing.DefaultPolicy()
	policy := defaults

	cmd := &cobra.Command{
		Use:   "active",
		Short: "Print the cycles that need a statement on a given day",
		Long:  `Applies the alert window policy to a card and prints its active cycles, most recent first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateDays(closing, due); err != nil {
				return err
			}
			day, err := parseDay("today", today)
			if err != nil {
				return err
			}
			if cutoff != "" {
				c, err := parseDay("cutoff", cutoff)
				if err != nil {
					return err
				}
				policy.Cutoff = &c
			}

			cycles := policy.ActiveCycles(day, closing, due)
			if len(cycles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no active cycles")
				return nil
			}
			for _, c := range cycles {
				printCycle(cmd, c)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&today, "today", "", "Day to evaluate (YYYY-MM-DD)")
	cmd.Flags().IntVar(&closing, "closing", 0, "Card closing day (1-31)")
	cmd.Flags().IntVar(&due, "due", 0, "Card due day (1-31)")
	cmd.Flags().IntVar(&policy.LookbackCycles, "lookback", defaults.LookbackCycles, "Months scanned backwards, the current one included")
	cmd.Flags().IntVar(&policy.GraceMonths, "grace", defaults.GraceMonths, "Months a cycle keeps alerting after its due date")
	cmd.Flags().StringVar(&cutoff, "cutoff", "", "Ignore cycles due before this date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("today")
	_ = cmd.MarkFlagRequired("closing")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}
