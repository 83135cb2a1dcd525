package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/carlosmourajunior/minhasfinancas/internal/billing"
	"github.com/carlosmourajunior/minhasfinancas/internal/config"
	"github.com/carlosmourajunior/minhasfinancas/internal/database"
	"github.com/carlosmourajunior/minhasfinancas/internal/services"
)

// storeFunc opens the database used by commands that need one. The returned
// func releases it.
type storeFunc func() (*gorm.DB, services.BillingOptions, func(), error)

func newRootCmd(store storeFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "billing",
		Short:        "Card cycle and obligation tooling",
		Long:         `Computes card statement cycles, shows which cycles need a statement today and imports obligation spreadsheets.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(newCycleCmd(), newActiveCmd(), newImportCmd(store))
	return cmd
}

// openStore connects to the configured PostgreSQL database.
func openStore() (*gorm.DB, services.BillingOptions, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, services.BillingOptions{}, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	manager, err := database.NewManager(database.ConfigFrom(cfg))
	if err != nil {
		return nil, services.BillingOptions{}, nil, err
	}
	opts := services.BillingOptions{
		Clock:        billing.SystemClock{Location: cfg.Location},
		Alerts:       cfg.Billing.Alerts(),
		SeriesLength: cfg.Billing.RecurringSeriesLength,
	}
	return manager.DB(), opts, func() { _ = manager.Close() }, nil
}

func parseDay(flag, value string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD: %w", flag, err)
	}
	return billing.DayOf(t), nil
}

func validateDays(closing, due int) error {
	if closing < 1 || closing > 31 {
		return fmt.Errorf("--closing must be between 1 and 31, got %d", closing)
	}
	if due < 1 || due > 31 {
		return fmt.Errorf("--due must be between 1 and 31, got %d", due)
	}
	return nil
}

func printCycle(cmd *cobra.Command, c billing.Cycle) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s..%s  closing %s  due %s\n",
		c.PeriodStart.Format(time.DateOnly),
		c.PeriodEnd.Format(time.DateOnly),
		c.ClosingDate.Format(time.DateOnly),
		c.DueDate.Format(time.DateOnly))
}
