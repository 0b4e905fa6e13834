package training

import (
	"strings"
	"unicode/utf8"

	"gymbot/internal/models"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

const (
	minExerciseName = 2
	maxExerciseName = 64
)

// ValidateExerciseName validates a user supplied exercise name.
// reserved holds tokens the conversation already gives a meaning to.
func ValidateExerciseName(name string, reserved []string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ValidationError{Field: "exercise_name", Message: "Exercise name cannot be empty"}
	}
	if strings.HasPrefix(name, "/") {
		return ValidationError{Field: "exercise_name", Message: "Exercise name cannot start with /"}
	}
	if n := utf8.RuneCountInString(models.NormalizeKey(name)); n < minExerciseName {
		return ValidationError{Field: "exercise_name", Message: "Exercise name is too short (at least 2 characters)"}
	}
	if utf8.RuneCountInString(name) > maxExerciseName {
		return ValidationError{Field: "exercise_name", Message: "Exercise name is too long (at most 64 characters)"}
	}
	key := models.NormalizeKey(name)
	for _, r := range reserved {
		if models.NormalizeKey(strings.TrimPrefix(r, "/")) == key {
			return ValidationError{Field: "exercise_name", Message: "\"" + name + "\" is reserved, pick another name"}
		}
	}
	return nil
}
