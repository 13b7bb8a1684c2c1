package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rpggio/cbsbilling/internal/repository"
)

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Replace the SQLite form archive with the CSV form exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			src, err := a.formSource()
			if err != nil {
				return err
			}
			archive, err := a.openArchive(true)
			if err != nil {
				return err
			}
			if _, err := repository.Copy(ctx, src, archive); err != nil {
				return err
			}
			imp, err := archive.LastImport(ctx)
			if err != nil {
				return err
			}
			a.logger.Info("imported forms",
				"import_id", imp.ID,
				"db", a.cfg.Source.SQLitePath,
				"account_requests", imp.AccountRequests,
				"account_updates", imp.AccountUpdates,
				"pi_requests", imp.PIRequests,
				"pi_updates", imp.PIUpdates)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d form rows into %s\n",
				imp.AccountRequests+imp.AccountUpdates+imp.PIRequests+imp.PIUpdates,
				a.cfg.Source.SQLitePath)
			return nil
		},
	}
}
