package repository

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"gymbot/internal/models"
)

func TestListExercises(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	got, err := repo.Exercise.ListExercises(ctx, "muscleupper")
	if err != nil {
		t.Fatalf("ListExercises() error = %v", err)
	}
	wantKeys := []string{"benchpress", "shoulderpress", ""}
	if len(got) != len(wantKeys) {
		t.Fatalf("ListExercises() returned %d entries, want %d", len(got), len(wantKeys))
	}
	for i, key := range wantKeys {
		if got[i].Key != key {
			t.Errorf("entry %d key = %q, want %q", i, got[i].Key, key)
		}
	}
	if !got[len(got)-1].IsNew() {
		t.Errorf("last entry = %+v, want New exercise", got[len(got)-1])
	}
	if got[0].Name != "Bench press" || got[0].CategoryCode != "muscleupper" {
		t.Errorf("first entry = %+v", got[0])
	}
}

func TestListExercises_Idempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.Exercise.ListExercises(ctx, "cardio")
	if err != nil {
		t.Fatalf("ListExercises() error = %v", err)
	}
	second, err := repo.Exercise.ListExercises(ctx, "cardio")
	if err != nil {
		t.Fatalf("ListExercises() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("ListExercises() not stable: %v then %v", first, second)
	}
}

func TestListExercises_UnknownCategory(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Exercise.ListExercises(context.Background(), "yoga")
	if !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("ListExercises() error = %v, want ErrUnknownCategory", err)
	}
}

func TestCreateExercise(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e, err := repo.Exercise.CreateExercise(ctx, "musclelower", "  Leg Press ")
	if err != nil {
		t.Fatalf("CreateExercise() error = %v", err)
	}
	if e.Key != "legpress" || e.Name != "Leg Press" || e.CategoryCode != "musclelower" || e.ID == 0 {
		t.Errorf("CreateExercise() = %+v", e)
	}

	list, err := repo.Exercise.ListExercises(ctx, "musclelower")
	if err != nil {
		t.Fatalf("ListExercises() error = %v", err)
	}
	if len(list) != 4 || list[2].Key != "legpress" || !list[3].IsNew() {
		t.Errorf("ListExercises() = %+v, want new exercise before the New entry", list)
	}
}

func TestCreateExercise_DuplicateAcrossCategories(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.Exercise.CreateExercise(ctx, "collective", "Jump Rope"); err != nil {
		t.Fatalf("CreateExercise() error = %v", err)
	}
	_, err := repo.Exercise.CreateExercise(ctx, "cardio", "jumprope")
	if !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("CreateExercise() error = %v, want ErrDuplicateKey", err)
	}

	// seeded "Bench press" collides with "benchpress" in another category
	_, err = repo.Exercise.CreateExercise(ctx, "cardio", "BenchPress")
	if !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("CreateExercise() error = %v, want ErrDuplicateKey", err)
	}
}

func TestCreateExercise_Concurrent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Exercise.CreateExercise(ctx, "musclelower", "Hip Thrust")
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicateKey):
			dup++
		default:
			t.Errorf("CreateExercise() unexpected error = %v", err)
		}
	}
	if ok != 1 || dup != n-1 {
		t.Errorf("created %d, duplicates %d; want 1 and %d", ok, dup, n-1)
	}
}

func TestCreateExercise_Invalid(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.Exercise.CreateExercise(ctx, "cardio", "   "); !errors.Is(err, ErrInvalidName) {
		t.Errorf("CreateExercise(blank) error = %v, want ErrInvalidName", err)
	}
	if _, err := repo.Exercise.CreateExercise(ctx, "yoga", "Sun salutation"); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("CreateExercise(yoga) error = %v, want ErrUnknownCategory", err)
	}
}

func TestResolveCategory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	c, err := repo.Exercise.ResolveCategory(ctx, "running")
	if err != nil {
		t.Fatalf("ResolveCategory() error = %v", err)
	}
	if c.Code != "cardio" {
		t.Errorf("ResolveCategory() = %q, want cardio", c.Code)
	}

	if _, err := repo.Exercise.ResolveCategory(ctx, "swimming"); !errors.Is(err, ErrUnknownExercise) {
		t.Errorf("ResolveCategory(swimming) error = %v, want ErrUnknownExercise", err)
	}
}

func TestCategorySchema(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.Exercise.CategorySchema("cardio")
	if err != nil {
		t.Fatalf("CategorySchema() error = %v", err)
	}
	want := []models.Field{models.FieldDistance, models.FieldDuration}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CategorySchema() = %v, want %v", got, want)
	}

	if _, err := repo.Exercise.CategorySchema("yoga"); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("CategorySchema(yoga) error = %v, want ErrUnknownCategory", err)
	}
}
