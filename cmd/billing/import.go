package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/carlosmourajunior/minhasfinancas/internal/logger"
	"github.com/carlosmourajunior/minhasfinancas/internal/services"
)

func newImportCmd(store storeFunc) *cobra.Command {
	var email, path string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import obligations from an .xlsx spreadsheet",
		Long: `Imports one simple obligation per spreadsheet row for the given user.
Missing categories are created; cards must already exist. Nothing is imported
when any row fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open spreadsheet: %w", err)
			}
			defer file.Close()

			db, opts, release, err := store()
			if err != nil {
				return err
			}
			defer release()

			user, err := services.NewUserService(db).GetUserByEmail(email)
			if err != nil {
				return fmt.Errorf("user %s: %w", email, err)
			}

			result, err := services.NewImportService(db, opts).ImportXLSX(user.ID, file)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(result.Errors) > 0 {
				for _, rowErr := range result.Errors {
					fmt.Fprintln(out, rowErr.Error())
				}
				return fmt.Errorf("import rejected: %d row(s) failed", len(result.Errors))
			}

			fmt.Fprintf(out, "imported %d obligation(s)\n", result.Imported)
			for _, name := range result.CreatedCategories {
				fmt.Fprintf(out, "created category %s\n", name)
			}
			logger.Get().Infow("spreadsheet imported from cli", "user_id", user.ID, "file", path, "imported", result.Imported)
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "user", "u", "", "Email of the user owning the obligations")
	cmd.Flags().StringVarP(&path, "file", "f", "", "Path to the .xlsx spreadsheet")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
