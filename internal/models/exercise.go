package models

import (
	"strings"
	"unicode"
)

// NewExerciseLabel is the reply token that starts exercise creation
const NewExerciseLabel = "New exercise"

// Exercise represents an exercise from the catalog
type Exercise struct {
	ID           int64  `json:"id"`
	Key          string `json:"key"` // lower case, no spaces, unique across categories
	Name         string `json:"name"`
	CategoryCode string `json:"category_code"`
}

// NewExercise is the sentinel appended to every exercise listing
var NewExercise = Exercise{Name: NewExerciseLabel}

// IsNew reports whether e is the "New exercise" sentinel
func (e Exercise) IsNew() bool {
	return e.Key == "" && e.Name == NewExerciseLabel
}

// NormalizeKey builds the catalog key for a display name
func NormalizeKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
