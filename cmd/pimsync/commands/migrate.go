package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pimsync/backend/internal/infrastructure/migration"
)

// MigrateCmd manages the postgres schema
var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the postgres schema",
	Long: `Manage the postgres schema with the SQL migrations embedded in the binary,
or with the migrations under --path. sqlite databases are migrated
automatically by run and serve.

Examples:
  pimsync migrate up
  pimsync migrate down
  pimsync migrate steps -1
  pimsync migrate version
  pimsync migrate force 1`,
}

var migratePathFlag string

func init() {
	MigrateCmd.PersistentFlags().StringVar(&migratePathFlag, "path", "", "Migrations directory, embedded migrations when empty")

	MigrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(m *migration.Migrator, _ []string, _ *zap.Logger) error {
				return m.Up()
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(m *migration.Migrator, _ []string, _ *zap.Logger) error {
				return m.Down()
			}),
		},
		&cobra.Command{
			Use:   "steps N",
			Short: "Apply N migrations, negative N rolls back",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrator(func(m *migration.Migrator, args []string, _ *zap.Logger) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid step count %q", args[0])
				}
				return m.Steps(n)
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(m *migration.Migrator, _ []string, log *zap.Logger) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				log.Info("Schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Set the schema version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrator(func(m *migration.Migrator, args []string, _ *zap.Logger) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return m.Force(v)
			}),
		},
	)
}

var errSQLiteMigrations = errors.New("sqlite databases are migrated automatically; migrate applies to postgres only")

func withMigrator(fn func(m *migration.Migrator, args []string, log *zap.Logger) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Database.Driver == "sqlite" {
			return errSQLiteMigrations
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		m, err := migration.NewFromURL(cfg.Database.DSN(), migratePathFlag, log)
		if err != nil {
			return err
		}
		defer func() { _ = m.Close() }()
		return fn(m, args, log)
	}
}
