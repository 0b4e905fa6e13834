package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gymbot/internal/models"
)

// LogRepository is the append-only training log
type LogRepository struct {
	base
	now func() time.Time
}

// NewLogRepository создаёт репозиторий журнала
func NewLogRepository(db *sql.DB, reg *registry, timeout time.Duration) *LogRepository {
	return &LogRepository{base: base{db: db, reg: reg, timeout: timeout}, now: time.Now}
}

// Append validates m against the exercise's category schema and stores it.
// Nothing is written when validation fails.
func (r *LogRepository) Append(ctx context.Context, exerciseKey string, m models.Measurement) (models.LogEntry, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.LogEntry{}, storeErr("begin append", err)
	}
	defer tx.Rollback()

	var exerciseID int64
	var code string
	err = tx.QueryRowContext(ctx, `
		SELECT e.id, c.short_name
		FROM exercise e
		JOIN category c ON c.id = e.category_id
		WHERE e.short_name = $1`, exerciseKey,
	).Scan(&exerciseID, &code)
	if errors.Is(err, sql.ErrNoRows) {
		return models.LogEntry{}, fmt.Errorf("%w: %q", ErrUnknownExercise, exerciseKey)
	}
	if err != nil {
		return models.LogEntry{}, storeErr("find exercise", err)
	}

	category, err := r.reg.get(code)
	if err != nil {
		return models.LogEntry{}, err
	}
	if !m.Matches(category.Fields) {
		return models.LogEntry{}, fmt.Errorf("%w: %v for %v", ErrSchemaMismatch, m, category.Fields)
	}

	// lock the exercise row so appends to one exercise take their timestamps in turn
	if _, err := tx.ExecContext(ctx, `UPDATE exercise SET full_name = full_name WHERE id = $1`, exerciseID); err != nil {
		return models.LogEntry{}, storeErr("lock exercise", err)
	}

	createdAt := r.now().UTC().Truncate(time.Microsecond)
	var last time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT created_at FROM log
		WHERE exercise_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, exerciseID,
	).Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return models.LogEntry{}, storeErr("last entry", err)
	case createdAt.Before(last):
		createdAt = last.UTC()
	}

	entry := models.LogEntry{ExerciseKey: exerciseKey, Measurement: m, CreatedAt: createdAt}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO log (exercise_id, weight, rep, duration, distance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		exerciseID,
		nullFloat(m, models.FieldWeight),
		nullInt(m, models.FieldReps),
		nullFloat(m, models.FieldDuration),
		nullFloat(m, models.FieldDistance),
		createdAt,
	).Scan(&entry.ID)
	if err != nil {
		return models.LogEntry{}, storeErr("insert log", err)
	}

	if err := tx.Commit(); err != nil {
		return models.LogEntry{}, storeErr("commit append", err)
	}
	return entry, nil
}

// List returns all entries created at or after since, oldest first
func (r *LogRepository) List(ctx context.Context, since time.Time) ([]models.LogRow, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT l.id, e.short_name, e.full_name, c.short_name,
		       l.weight, l.rep, l.duration, l.distance, l.created_at
		FROM log l
		JOIN exercise e ON e.id = l.exercise_id
		JOIN category c ON c.id = e.category_id
		WHERE l.created_at >= $1
		ORDER BY l.created_at, l.id`, since.UTC())
	if err != nil {
		return nil, storeErr("list log", err)
	}
	defer rows.Close()

	var out []models.LogRow
	for rows.Next() {
		var c columns
		var row models.LogRow
		if err := rows.Scan(&row.ID, &row.ExerciseKey, &row.ExerciseName, &row.CategoryCode,
			&c.weight, &c.rep, &c.duration, &c.distance, &row.CreatedAt); err != nil {
			return nil, storeErr("scan log", err)
		}
		row.Measurement = c.measurement()
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list log", err)
	}
	return out, nil
}

// columns are the nullable measurement columns of a log row
type columns struct {
	weight, duration, distance sql.NullFloat64
	rep                        sql.NullInt64
}

func (c columns) measurement() models.Measurement {
	m := models.Measurement{}
	if c.weight.Valid {
		m[models.FieldWeight] = c.weight.Float64
	}
	if c.rep.Valid {
		m[models.FieldReps] = float64(c.rep.Int64)
	}
	if c.duration.Valid {
		m[models.FieldDuration] = c.duration.Float64
	}
	if c.distance.Valid {
		m[models.FieldDistance] = c.distance.Float64
	}
	return m
}

func nullFloat(m models.Measurement, f models.Field) sql.NullFloat64 {
	v, ok := m[f]
	return sql.NullFloat64{Float64: v, Valid: ok}
}

func nullInt(m models.Measurement, f models.Field) sql.NullInt64 {
	v, ok := m[f]
	return sql.NullInt64{Int64: int64(v), Valid: ok}
}
