package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gymbot/internal/models"
)

func countLogs(t *testing.T, repo *Repository) int {
	t.Helper()
	var n int
	if err := repo.Log.db.QueryRow(`SELECT COUNT(*) FROM log`).Scan(&n); err != nil {
		t.Fatalf("count log: %v", err)
	}
	return n
}

func TestAppend(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	m := models.Measurement{models.FieldWeight: 82.5, models.FieldReps: 8}
	entry, err := repo.Log.Append(ctx, "benchpress", m)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if entry.ID == 0 || entry.ExerciseKey != "benchpress" || entry.CreatedAt.IsZero() {
		t.Errorf("Append() = %+v", entry)
	}

	rows, err := repo.Log.List(ctx, time.Time{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(rows) != 1 || rows[0].ID != entry.ID {
		t.Fatalf("List() = %+v, want the appended entry", rows)
	}
	stored := rows[0].Measurement
	if stored[models.FieldWeight] != 82.5 || stored[models.FieldReps] != 8 {
		t.Errorf("stored Measurement = %v, want %v", stored, m)
	}
	if len(stored) != 2 {
		t.Errorf("stored Measurement has %d fields, want 2", len(stored))
	}
}

func TestAppend_SchemaMismatch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tests := []struct {
		name string
		key  string
		m    models.Measurement
	}{
		{"missing reps", "benchpress", models.Measurement{models.FieldWeight: 80}},
		{"wrong field", "running", models.Measurement{models.FieldWeight: 80, models.FieldReps: 5}},
		{"extra field", "steps", models.Measurement{models.FieldDuration: 10, models.FieldDistance: 1}},
		{"fractional reps", "squat", models.Measurement{models.FieldWeight: 100, models.FieldReps: 4.5}},
		{"negative", "steps", models.Measurement{models.FieldDuration: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Log.Append(ctx, tt.key, tt.m)
			if !errors.Is(err, ErrSchemaMismatch) {
				t.Errorf("Append() error = %v, want ErrSchemaMismatch", err)
			}
		})
	}

	if n := countLogs(t, repo); n != 0 {
		t.Errorf("log has %d rows after rejected appends, want 0", n)
	}
}

func TestAppend_UnknownExercise(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Log.Append(context.Background(), "swimming", models.Measurement{models.FieldDuration: 10})
	if !errors.Is(err, ErrUnknownExercise) {
		t.Errorf("Append() error = %v, want ErrUnknownExercise", err)
	}
}

func TestAppend_NonDecreasingTimestamps(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base.Add(-time.Minute), base.Add(time.Minute)}
	i := 0
	repo.Log.now = func() time.Time {
		ts := clock[i]
		i++
		return ts
	}

	var got []time.Time
	for range clock {
		e, err := repo.Log.Append(ctx, "running", models.Measurement{models.FieldDistance: 5, models.FieldDuration: 20})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		got = append(got, e.CreatedAt)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Before(got[i-1]) {
			t.Errorf("entry %d created at %v before entry %d at %v", i, got[i], i-1, got[i-1])
		}
	}
}

func TestAppend_ConcurrentKeepsOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// a clock that jumps back and forth between calls
	base := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	calls := 0
	repo.Log.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls%2 == 0 {
			return base.Add(-time.Duration(calls) * time.Second)
		}
		return base.Add(time.Duration(calls) * time.Second)
	}

	const workers, perWorker = 8, 5
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := repo.Log.Append(ctx, "running", models.Measurement{models.FieldDistance: 5, models.FieldDuration: 20})
				if err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Append() error = %v", err)
	}

	rows, err := repo.Log.db.QueryContext(ctx, `SELECT created_at FROM log ORDER BY id`)
	if err != nil {
		t.Fatalf("query log: %v", err)
	}
	defer rows.Close()
	var prev time.Time
	n := 0
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			t.Fatalf("scan: %v", err)
		}
		if ts.Before(prev) {
			t.Errorf("row %d created at %v before previous %v", n, ts, prev)
		}
		prev = ts
		n++
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	if n != workers*perWorker {
		t.Errorf("log has %d rows, want %d", n, workers*perWorker)
	}
}

func TestList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.Log.Append(ctx, "steps", models.Measurement{models.FieldDuration: 30}); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Log.Append(ctx, "running", models.Measurement{models.FieldDistance: 5, models.FieldDuration: 20}); err != nil {
		t.Fatal(err)
	}

	rows, err := repo.Log.List(ctx, time.Time{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("List() returned %d rows, want 2", len(rows))
	}
	if rows[0].ExerciseName != "Steps" || rows[0].CategoryCode != "collective" {
		t.Errorf("rows[0] = %+v", rows[0])
	}
	if rows[1].Measurement[models.FieldDistance] != 5 {
		t.Errorf("rows[1].Measurement = %v", rows[1].Measurement)
	}
}
