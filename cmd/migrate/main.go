package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"podverse/internal/config"
	"podverse/internal/logging"
)

func main() {
	logging.SetGlobalLogger(logging.New(logging.Config{Level: "info", Format: "text"}))

	app := &cli.Command{
		Name:  "migrate",
		Usage: "Apply playlist service schema migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Path to the migrations directory",
				Value:   "migrations",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Optional .env file to load before reading DATABASE_URL",
				Value: ".env",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Apply all pending migrations",
				Action: runUp,
			},
			{
				Name:   "down",
				Usage:  "Roll back all migrations",
				Action: runDown,
			},
			{
				Name:   "version",
				Usage:  "Print the current schema version",
				Action: runVersion,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
}

func runUp(ctx context.Context, cmd *cli.Command) error {
	return withMigrator(cmd, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("apply migrations: %w", err)
		}
		log.Info().Msg("Migrations applied successfully")
		return nil
	})
}

func runDown(ctx context.Context, cmd *cli.Command) error {
	return withMigrator(cmd, func(m *migrate.Migrate) error {
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("roll back migrations: %w", err)
		}
		log.Info().Msg("Migrations rolled back successfully")
		return nil
	})
}

func runVersion(ctx context.Context, cmd *cli.Command) error {
	return withMigrator(cmd, func(m *migrate.Migrate) error {
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info().Msg("No migrations applied")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read version: %w", err)
		}
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Schema version")
		return nil
	})
}

// withMigrator opens the database named by the service configuration and
// runs fn against a migrator bound to the migrations directory.
func withMigrator(cmd *cli.Command, fn func(*migrate.Migrate) error) error {
	dbConfig, err := config.LoadDatabase(cmd.String("env-file"))
	if err != nil {
		return err
	}

	db, err := sql.Open("postgres", dbConfig.URL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}

	absPath, err := filepath.Abs(cmd.String("dir"))
	if err != nil {
		return fmt.Errorf("resolve migrations path: %w", err)
	}
	sourceURL := fmt.Sprintf("file://%s", filepath.ToSlash(absPath))

	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	return fn(m)
}
