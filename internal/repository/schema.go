package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gymbot/internal/models"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS category (
		id           BIGSERIAL PRIMARY KEY,
		short_name   TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS exercise (
		id          BIGSERIAL PRIMARY KEY,
		short_name  TEXT NOT NULL UNIQUE,
		full_name   TEXT NOT NULL,
		category_id BIGINT NOT NULL REFERENCES category(id)
	)`,
	`CREATE TABLE IF NOT EXISTS log (
		id          BIGSERIAL PRIMARY KEY,
		exercise_id BIGINT NOT NULL REFERENCES exercise(id),
		weight      DOUBLE PRECISION,
		rep         INTEGER,
		duration    DOUBLE PRECISION,
		distance    DOUBLE PRECISION,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS log_exercise_created_idx ON log (exercise_id, created_at)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS category (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		short_name   TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS exercise (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		short_name  TEXT NOT NULL UNIQUE,
		full_name   TEXT NOT NULL,
		category_id INTEGER NOT NULL REFERENCES category(id)
	)`,
	`CREATE TABLE IF NOT EXISTS log (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		exercise_id INTEGER NOT NULL REFERENCES exercise(id),
		weight      REAL,
		rep         INTEGER,
		duration    REAL,
		distance    REAL,
		created_at  TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS log_exercise_created_idx ON log (exercise_id, created_at)`,
}

// Migrate creates the tables for driverName and seeds the configured categories
// together with their default exercises.
func Migrate(ctx context.Context, db *sql.DB, driverName string, categories []models.Category) error {
	stmts := postgresSchema
	if driverName == "sqlite" {
		stmts = sqliteSchema
	}
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement %d: %w", i+1, err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range categories {
		var categoryID int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO category (short_name, display_name)
			VALUES ($1, $2)
			ON CONFLICT (short_name) DO UPDATE SET display_name = excluded.display_name
			RETURNING id`,
			c.Code, c.Name,
		).Scan(&categoryID)
		if err != nil {
			return fmt.Errorf("seed category %s: %w", c.Code, err)
		}

		for _, name := range c.Exercises {
			name = strings.TrimSpace(name)
			key := models.NormalizeKey(name)
			if key == "" {
				continue
			}
			var id int64
			err := tx.QueryRowContext(ctx, `
				INSERT INTO exercise (short_name, full_name, category_id)
				VALUES ($1, $2, $3)
				ON CONFLICT (short_name) DO NOTHING
				RETURNING id`,
				key, name, categoryID,
			).Scan(&id)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("seed exercise %s: %w", key, err)
			}
		}
	}

	return tx.Commit()
}
