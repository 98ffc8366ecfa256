package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/saransh1220/wardrobe/internal/shared/infrastructure/config"
	"github.com/saransh1220/wardrobe/internal/shared/infrastructure/logging"
	"github.com/saransh1220/wardrobe/pkg/migration"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(config.Load).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

// newRootCmd builds the CLI. load supplies the configuration; the database
// and migration settings are the same ones the server boots with.
func newRootCmd(load func() config.Config) *cobra.Command {
	var (
		runner *migration.Runner
		dir    string
		table  string
	)

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the wardrobe database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg := load()
			if dir == "" {
				dir = cfg.Migration.Path
			}
			if table == "" {
				table = cfg.Migration.Table
			}
			runner = migration.NewRunner(migration.Config{
				Dir:         dir,
				DatabaseURL: cfg.Database.URL(),
				Table:       table,
				Logger:      logging.New(cfg.Log.Level, cmd.ErrOrStderr()),
			})
		},
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "Migrations directory (default MIGRATIONS_PATH)")
	cmd.PersistentFlags().StringVar(&table, "table", "", "Version table (default MIGRATIONS_TABLE)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runner.Apply()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back applied migrations, one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid steps %q: %w", args[0], err)
				}
				steps = n
			}
			return runner.Down(steps)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Record a version as applied and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return runner.Force(v)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := runner.Status()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d dirty=%t\n", st.Version, st.Dirty)
			return nil
		},
	})
	return cmd
}
