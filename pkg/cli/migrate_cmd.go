package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	internaldb "geoadmin-control/internal/db"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending catalog schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()
			if err := a.openDB(); err != nil {
				return err
			}
			v, err := internaldb.MigrationVersion(a.writeDB)
			if err != nil {
				return fmt.Errorf("read schema version: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "catalog %s at schema version %d\n", a.cfg.MetaDBPath, v)
			return nil
		},
	}
}
