package cli

import (
	"github.com/casklane/stockfeed/internal/db"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the schema migration command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var migrationsPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			return db.RunMigrations(ctx, a.conn.Pool, migrationsPath)
		},
	}

	cmd.Flags().StringVar(&migrationsPath, "path", "./migrations", "migrations directory")

	return cmd
}
