package sqlite

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

type migration struct {
	version     int
	description string
	sql         string
}

// migrations are applied in order; append new entries, never edit applied ones
var migrations = []migration{
	{version: 1, description: "initial schema", sql: schemaSQL},
}

// Migrator manages database schema migrations
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a new database migrator
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Migrate applies all pending database migrations
func (m *Migrator) Migrate() error {
	if err := m.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("create migrations table failed: %w", err)
	}

	current, err := m.Version()
	if err != nil {
		return fmt.Errorf("check schema version failed: %w", err)
	}

	for _, mg := range migrations {
		if mg.version <= current {
			continue
		}
		if err := m.apply(mg); err != nil {
			return fmt.Errorf("apply migration %d failed: %w", mg.version, err)
		}
	}
	return nil
}

func (m *Migrator) ensureMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			description TEXT
		);
	`
	_, err := m.db.Exec(query)
	return err
}

func (m *Migrator) apply(mg migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction failed: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range splitSQLStatements(mg.sql) {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("execute statement %d failed: %w\nStatement: %s", i, err, stmt)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO schema_migrations (version, description) VALUES (?, ?)`,
		mg.version, mg.description,
	); err != nil {
		return fmt.Errorf("record migration failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction failed: %w", err)
	}
	return nil
}

// splitSQLStatements splits a SQL file into individual statements
func splitSQLStatements(sql string) []string {
	lines := strings.Split(sql, "\n")
	var cleanLines []string
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		cleanLines = append(cleanLines, line)
	}

	var result []string
	for _, stmt := range strings.Split(strings.Join(cleanLines, "\n"), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			result = append(result, stmt)
		}
	}
	return result
}

// Version returns the highest applied migration, 0 if none
func (m *Migrator) Version() (int, error) {
	var version sql.NullInt64
	err := m.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int(version.Int64), nil
}
