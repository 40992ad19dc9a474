package database

import (
	"fmt"

	"go.uber.org/zap"
)

// Migration represents a schema migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered, compiled-in schema history. The schema is small
// enough that shipping SQL files separately buys nothing.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_invoice_records",
		SQL: `
			CREATE TABLE IF NOT EXISTS invoice_records (
				id TEXT PRIMARY KEY,
				vendor_name TEXT NOT NULL,
				invoice_number TEXT NOT NULL,
				invoice_date DATETIME NOT NULL,
				total_amount REAL NOT NULL,
				currency TEXT NOT NULL DEFAULT 'USD',
				items TEXT NOT NULL DEFAULT '[]',
				uploaded_at DATETIME NOT NULL,
				is_suspicious INTEGER NOT NULL DEFAULT 0,
				risk_score INTEGER,
				anomaly_explanation TEXT NOT NULL DEFAULT '',
				submitted_to_erpnext INTEGER NOT NULL DEFAULT 0,
				erpnext_invoice_name TEXT NOT NULL DEFAULT ''
			);
		`,
	},
	{
		Version: 2,
		Name:    "index_vendor_name",
		SQL: `
			CREATE INDEX IF NOT EXISTS idx_invoice_records_vendor
			ON invoice_records (vendor_name COLLATE NOCASE);
		`,
	},
}

// Migrator applies pending schema migrations
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger,
	}
}

// Run applies all pending migrations in version order.
func (m *Migrator) Run() error {
	if err := m.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.appliedVersions()
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			continue
		}
		m.logger.Info("Applying migration",
			zap.Int("version", migration.Version),
			zap.String("name", migration.Name))

		if _, err := m.db.Exec(migration.SQL); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}
		if _, err := m.db.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			migration.Version, migration.Name,
		); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func (m *Migrator) createMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	_, err := m.db.Exec(query)
	return err
}

func (m *Migrator) appliedVersions() (map[int]bool, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
