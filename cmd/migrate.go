package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/chatfabric/chat-node/config"
)

func newMigrator(cfg *config.Config) (*migrate.Migrate, error) {
	folder := config.MigrationsDirectory()
	fmt.Println("MIGRATIONS FOLDER", folder)

	m, err := migrate.New("file://"+folder, "mysql://"+cfg.Database.URI)
	if err != nil {
		return nil, fmt.Errorf("open migrator: %w", err)
	}
	return m, nil
}

func runMigrations(cfg *config.Config) error {
	m, err := newMigrator(cfg)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("No pending migrations")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}
	fmt.Println("Migrations applied")
	return nil
}

func rollbackMigration(cfg *config.Config) error {
	m, err := newMigrator(cfg)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if err := m.Steps(-1); err != nil {
		if errors.Is(err, migrate.ErrNoChange) || errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("Nothing to roll back")
			return nil
		}
		return fmt.Errorf("rollback migration: %w", err)
	}
	fmt.Println("Rolled back one migration")
	return nil
}

func closeMigrator(m *migrate.Migrate) {
	sourceErr, dbErr := m.Close()
	if sourceErr != nil {
		slog.Warn("MIGRATOR_SOURCE_CLOSE_FAILED", "err", sourceErr)
	}
	if dbErr != nil {
		slog.Warn("MIGRATOR_DATABASE_CLOSE_FAILED", "err", dbErr)
	}
}
