package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS export_runs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					generated_at DATETIME NOT NULL,
					rows_requested INTEGER NOT NULL,
					transaction_count INTEGER NOT NULL,
					total_amount REAL NOT NULL,
					mean_amount REAL NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS state_totals (
					run_id INTEGER NOT NULL REFERENCES export_runs(id) ON DELETE CASCADE,
					state TEXT NOT NULL,
					transaction_count INTEGER NOT NULL,
					total_amount REAL NOT NULL,
					mean_amount REAL NOT NULL,
					latitude REAL,
					longitude REAL,
					online INTEGER NOT NULL DEFAULT 0,
					PRIMARY KEY (run_id, state)
				)`,
				`CREATE TABLE IF NOT EXISTS merchant_groups (
					run_id INTEGER NOT NULL REFERENCES export_runs(id) ON DELETE CASCADE,
					merchant_group TEXT NOT NULL,
					transaction_count INTEGER NOT NULL,
					total_amount REAL NOT NULL,
					share REAL NOT NULL,
					PRIMARY KEY (run_id, merchant_group)
				)`,
				`CREATE TABLE IF NOT EXISTS top_merchants (
					run_id INTEGER NOT NULL REFERENCES export_runs(id) ON DELETE CASCADE,
					rank INTEGER NOT NULL,
					merchant_id INTEGER NOT NULL,
					transaction_count INTEGER NOT NULL,
					total_amount REAL NOT NULL,
					PRIMARY KEY (run_id, rank)
				)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Add user summaries and client segments",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS user_summaries (
					run_id INTEGER NOT NULL REFERENCES export_runs(id) ON DELETE CASCADE,
					client_id INTEGER NOT NULL,
					transaction_count INTEGER NOT NULL,
					card_count INTEGER NOT NULL,
					total_amount REAL NOT NULL,
					mean_amount REAL NOT NULL,
					PRIMARY KEY (run_id, client_id)
				)`,
				`CREATE TABLE IF NOT EXISTS client_segments (
					run_id INTEGER NOT NULL REFERENCES export_runs(id) ON DELETE CASCADE,
					client_id INTEGER NOT NULL,
					age_group TEXT NOT NULL,
					transaction_count REAL NOT NULL,
					total_amount REAL NOT NULL,
					segment INTEGER NOT NULL,
					PRIMARY KEY (run_id, client_id)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_client_segments_segment ON client_segments(run_id, segment)`,
			)
		},
	},
	{
		Version:     3,
		Description: "Add hourly activity",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS hourly_activity (
					run_id INTEGER NOT NULL REFERENCES export_runs(id) ON DELETE CASCADE,
					hour INTEGER NOT NULL CHECK (hour BETWEEN 0 AND 23),
					transaction_count INTEGER NOT NULL,
					total_amount REAL NOT NULL,
					PRIMARY KEY (run_id, hour)
				)`,
			)
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		err := s.withTx(ctx, func(tx *sql.Tx) error {
			if upErr := migration.Up(tx); upErr != nil {
				return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
			}
			if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
				return fmt.Errorf("failed to update schema version: %w", execErr)
			}
			return nil
		})
		if err != nil {
			return err
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the applied schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return v, nil
}
