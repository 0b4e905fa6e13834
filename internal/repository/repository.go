package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"gymbot/internal/models"
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrUnknownExercise = errors.New("unknown exercise")
	ErrDuplicateKey    = errors.New("exercise already exists")
	ErrInvalidName     = errors.New("invalid exercise name")
	ErrSchemaMismatch  = errors.New("measurement does not match category schema")
	// ErrUnavailable marks timeouts and connection failures; the call may be retried
	ErrUnavailable = errors.New("storage unavailable")
)

// IsRetryable reports whether err came from a timed out or unreachable store
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Repository содержит все репозитории
type Repository struct {
	Exercise *ExerciseRepository
	Log      *LogRepository
}

// New создаёт новый экземпляр Repository
func New(db *sql.DB, categories []models.Category, timeout time.Duration) *Repository {
	reg := newRegistry(categories)
	return &Repository{
		Exercise: NewExerciseRepository(db, reg, timeout),
		Log:      NewLogRepository(db, reg, timeout),
	}
}

// Open connects to postgres or sqlite and checks the connection
func Open(ctx context.Context, driverName, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	if driverName == "sqlite" {
		// one writer at a time; check-then-insert transactions would otherwise hit SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName, err)
	}
	return db, nil
}

// registry is the configured category lookup table
type registry struct {
	ordered []models.Category
	byCode  map[string]models.Category
}

func newRegistry(categories []models.Category) *registry {
	r := &registry{
		ordered: categories,
		byCode:  make(map[string]models.Category, len(categories)),
	}
	for _, c := range categories {
		r.byCode[c.Code] = c
	}
	return r
}

func (r *registry) get(code string) (models.Category, error) {
	c, ok := r.byCode[code]
	if !ok {
		return models.Category{}, fmt.Errorf("%w: %q", ErrUnknownCategory, code)
	}
	return c, nil
}

// base carries what every repository needs for a bounded call
type base struct {
	db      *sql.DB
	reg     *registry
	timeout time.Duration
}

func (b base) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

// storeErr wraps driver failures, marking the retryable ones
func storeErr(op string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.As(err, &netErr):
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
