package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gymbot/internal/models"
)

// ExerciseRepository is the exercise catalog: configured categories plus
// the exercises stored for them
type ExerciseRepository struct {
	base
}

// NewExerciseRepository создаёт репозиторий упражнений
func NewExerciseRepository(db *sql.DB, reg *registry, timeout time.Duration) *ExerciseRepository {
	return &ExerciseRepository{base{db: db, reg: reg, timeout: timeout}}
}

// Categories returns the configured categories in menu order
func (r *ExerciseRepository) Categories() []models.Category {
	return r.reg.ordered
}

// Category returns the category with the given code
func (r *ExerciseRepository) Category(code string) (models.Category, error) {
	return r.reg.get(code)
}

// CategorySchema returns the ordered measurement fields of a category
func (r *ExerciseRepository) CategorySchema(code string) ([]models.Field, error) {
	c, err := r.reg.get(code)
	if err != nil {
		return nil, err
	}
	return c.Fields, nil
}

// ListExercises returns the exercises of a category in insertion order,
// followed by the "New exercise" entry
func (r *ExerciseRepository) ListExercises(ctx context.Context, code string) ([]models.Exercise, error) {
	if _, err := r.reg.get(code); err != nil {
		return nil, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT e.id, e.short_name, e.full_name, c.short_name
		FROM exercise e
		JOIN category c ON c.id = e.category_id
		WHERE c.short_name = $1
		ORDER BY e.id`, code)
	if err != nil {
		return nil, storeErr("list exercises", err)
	}
	defer rows.Close()

	var exercises []models.Exercise
	for rows.Next() {
		var e models.Exercise
		if err := rows.Scan(&e.ID, &e.Key, &e.Name, &e.CategoryCode); err != nil {
			return nil, storeErr("scan exercise", err)
		}
		exercises = append(exercises, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list exercises", err)
	}
	return append(exercises, models.NewExercise), nil
}

// CreateExercise adds an exercise to a category. The key must be free across
// the whole catalog; the check and the insert happen in one statement.
func (r *ExerciseRepository) CreateExercise(ctx context.Context, code, name string) (models.Exercise, error) {
	if _, err := r.reg.get(code); err != nil {
		return models.Exercise{}, err
	}
	name = strings.TrimSpace(name)
	key := models.NormalizeKey(name)
	if key == "" {
		return models.Exercise{}, ErrInvalidName
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Exercise{}, storeErr("begin create exercise", err)
	}
	defer tx.Rollback()

	var categoryID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM category WHERE short_name = $1`, code).Scan(&categoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Exercise{}, fmt.Errorf("%w: %q is not in the database", ErrUnknownCategory, code)
	}
	if err != nil {
		return models.Exercise{}, storeErr("find category", err)
	}

	e := models.Exercise{Key: key, Name: name, CategoryCode: code}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO exercise (short_name, full_name, category_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (short_name) DO NOTHING
		RETURNING id`,
		key, name, categoryID,
	).Scan(&e.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Exercise{}, fmt.Errorf("%w: %q", ErrDuplicateKey, key)
	}
	if err != nil {
		return models.Exercise{}, storeErr("insert exercise", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Exercise{}, storeErr("commit create exercise", err)
	}
	return e, nil
}

// GetExercise возвращает упражнение по ключу
func (r *ExerciseRepository) GetExercise(ctx context.Context, key string) (models.Exercise, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var e models.Exercise
	err := r.db.QueryRowContext(ctx, `
		SELECT e.id, e.short_name, e.full_name, c.short_name
		FROM exercise e
		JOIN category c ON c.id = e.category_id
		WHERE e.short_name = $1`, key,
	).Scan(&e.ID, &e.Key, &e.Name, &e.CategoryCode)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Exercise{}, fmt.Errorf("%w: %q", ErrUnknownExercise, key)
	}
	if err != nil {
		return models.Exercise{}, storeErr("get exercise", err)
	}
	return e, nil
}

// ResolveCategory returns the category an exercise belongs to
func (r *ExerciseRepository) ResolveCategory(ctx context.Context, key string) (models.Category, error) {
	e, err := r.GetExercise(ctx, key)
	if err != nil {
		return models.Category{}, err
	}
	return r.reg.get(e.CategoryCode)
}
