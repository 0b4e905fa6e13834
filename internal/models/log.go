package models

import (
	"math"
	"time"
)

// Measurement holds the values of one logged sample keyed by field
type Measurement map[Field]float64

// Matches reports whether m carries exactly the fields of schema with valid values
func (m Measurement) Matches(schema []Field) bool {
	if len(schema) == 0 || len(m) != len(schema) {
		return false
	}
	for _, f := range schema {
		v, ok := m[f]
		if !ok || !f.Known() {
			return false
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
		if f.Kind() == KindInteger && v != math.Trunc(v) {
			return false
		}
	}
	return true
}

// LogEntry is one immutable sample recorded for an exercise
type LogEntry struct {
	ID          int64       `json:"id"`
	ExerciseKey string      `json:"exercise_key"`
	Measurement Measurement `json:"measurement"`
	CreatedAt   time.Time   `json:"created_at"`
}

// LogRow is a log entry joined with its exercise and category, used for export
type LogRow struct {
	LogEntry
	ExerciseName string
	CategoryCode string
}
