package models

// Field is a single numeric value recorded in a log entry
type Field string

const (
	FieldWeight   Field = "weight"
	FieldReps     Field = "reps"
	FieldDuration Field = "duration"
	FieldDistance Field = "distance"
)

// FieldKind tells the parser how a field may be written
type FieldKind int

const (
	KindDecimal FieldKind = iota
	KindInteger
)

var fieldKinds = map[Field]FieldKind{
	FieldWeight:   KindDecimal,
	FieldReps:     KindInteger,
	FieldDuration: KindDecimal,
	FieldDistance: KindDecimal,
}

var fieldUnits = map[Field]string{
	FieldWeight:   "kg",
	FieldReps:     " times",
	FieldDuration: " min",
	FieldDistance: " km",
}

// Known reports whether f is one of the supported fields
func (f Field) Known() bool {
	_, ok := fieldKinds[f]
	return ok
}

// Kind returns the numeric kind of the field
func (f Field) Kind() FieldKind {
	return fieldKinds[f]
}

// Unit returns the suffix used when echoing a value back to the user
func (f Field) Unit() string {
	return fieldUnits[f]
}

// Category groups exercises that share one measurement schema
type Category struct {
	Code      string   `json:"code" yaml:"code"`
	Name      string   `json:"name" yaml:"name"`
	Fields    []Field  `json:"fields" yaml:"fields"`
	Exercises []string `json:"exercises,omitempty" yaml:"exercises"` // seeded on migrate
}

// Token is the chat command that selects the category
func (c Category) Token() string {
	return "/" + c.Code
}

// DefaultCategories returns the built-in catalog
func DefaultCategories() []Category {
	return []Category{
		{
			Code:      "collective",
			Name:      "Collective",
			Fields:    []Field{FieldDuration},
			Exercises: []string{"Steps", "Pilates"},
		},
		{
			Code:      "muscleupper",
			Name:      "Muscle Upper",
			Fields:    []Field{FieldWeight, FieldReps},
			Exercises: []string{"Bench press", "Shoulder press"},
		},
		{
			Code:      "musclelower",
			Name:      "Muscle Lower",
			Fields:    []Field{FieldWeight, FieldReps},
			Exercises: []string{"Squat", "Deadlift"},
		},
		{
			Code:      "cardio",
			Name:      "Cardio",
			Fields:    []Field{FieldDistance, FieldDuration},
			Exercises: []string{"Running", "Cycle"},
		},
	}
}
