package storage

import (
	"errors"
	"fmt"
	"os"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"
	migratePostgres "github.com/golang-migrate/migrate/v4/database/postgres"

	// For golang-migrate
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// ErrNoMigrations 目錄中沒有任何 .sql 檔
var ErrNoMigrations = errors.New("no migration files found")

// RunMigrations 以 golang-migrate 套用 postgres 的 SQL 遷移檔
func (db *Database) RunMigrations(dir string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("could not read migration directory: %w", err)
	}

	found := false
	for _, file := range files {
		if strings.HasSuffix(file.Name(), ".sql") {
			found = true
			break
		}
	}
	if !found {
		return ErrNoMigrations
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}

	driver, err := migratePostgres.WithInstance(sqlDB, &migratePostgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
