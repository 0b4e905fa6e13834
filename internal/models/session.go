package models

import "time"

// SessionState is a step of the logging conversation
type SessionState string

const (
	StateSelectingCategory SessionState = "selecting_category"
	StateSelectingExercise SessionState = "selecting_exercise"
	StateCreatingExercise  SessionState = "creating_exercise"
	StateLogging           SessionState = "logging"
	StateEnded             SessionState = "ended"
)

// Session is the per-chat conversation state
type Session struct {
	ID       string       `json:"id"`
	State    SessionState `json:"state"`
	Category string       `json:"category,omitempty"`
	Exercise string       `json:"exercise,omitempty"`
	// ExerciseName is kept for echoing entries without another lookup
	ExerciseName string    `json:"exercise_name,omitempty"`
	LastInput    string    `json:"last_input,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Reset clears the selected category and exercise
func (s *Session) Reset() {
	s.Category = ""
	s.ClearExercise()
}

// ClearExercise forgets the selected exercise but keeps the category
func (s *Session) ClearExercise() {
	s.Exercise = ""
	s.ExerciseName = ""
	s.LastInput = ""
}
