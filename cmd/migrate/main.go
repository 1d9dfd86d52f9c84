package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	pgstore "github.com/dwarvesf/paylink-backend/internal/store/postgres"
	"github.com/dwarvesf/paylink-backend/internal/utils/config"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

func newMigrate(db *gorm.DB, dir string) (*migrate.Migrate, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", dir), "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

func main() {
	var (
		dir string
		m   *migrate.Migrate
		log *logger.Logger
	)

	rootCmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply database schema migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			appConfig := config.New()
			log = logger.New(appConfig.Environment)

			var err error
			m, err = newMigrate(pgstore.New(appConfig, log), dir)
			return err
		},
	}
	rootCmd.PersistentFlags().StringVar(&dir, "dir", filepath.Join("migrations", "schema"), "migration source directory")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
					return fmt.Errorf("migration failed: %w", err)
				}
				log.Info("Migrations completed successfully")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down STEPS",
			Short: "Roll back the given number of migrations",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps, err := strconv.Atoi(args[0])
				if err != nil || steps <= 0 {
					return fmt.Errorf("invalid step count %q", args[0])
				}
				if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
					return fmt.Errorf("rollback failed: %w", err)
				}
				log.Info("Rollback completed", map[string]string{"steps": args[0]})
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				version, dirty, err := m.Version()
				if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
					return err
				}
				fmt.Printf("version=%d dirty=%t\n", version, dirty)
				return nil
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		if log != nil {
			log.Error("[main][runMigrations] failed to run migrations", map[string]string{
				"error": err.Error(),
			})
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
