package training

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"gymbot/internal/models"
)

// ParseReason classifies why a measurement could not be parsed
type ParseReason string

const (
	NoNumberFound     ParseReason = "no_number_found"
	PatternMismatch   ParseReason = "pattern_mismatch"
	NotInteger        ParseReason = "not_integer"
	OutOfRange        ParseReason = "out_of_range"
	UnsupportedSchema ParseReason = "unsupported_schema"
)

// ParseError is returned for measurement text that does not fit the schema
type ParseError struct {
	Reason ParseReason
	Field  models.Field
	Input  string
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse %q: %s (%s)", e.Input, e.Reason, e.Field)
	}
	return fmt.Sprintf("parse %q: %s", e.Input, e.Reason)
}

var (
	numberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	// "82.5 x 8", "82,5x8", "5 Х 20"
	pairPattern = regexp.MustCompile(`(\d+(?:[.,]\d*)?)\s*[xX×хХ]\s*(\d+(?:[.,]\d+)?)`)
)

// Parse extracts a measurement for schema from free text.
// Numbers map to schema fields by position.
func Parse(schema []models.Field, text string) (models.Measurement, error) {
	var raw []string
	switch len(schema) {
	case 1:
		raw = numberPattern.FindAllString(text, 1)
		if len(raw) == 0 {
			return nil, &ParseError{Reason: NoNumberFound, Input: text}
		}
	case 2:
		matches := pairPattern.FindStringSubmatch(text)
		if matches == nil {
			return nil, &ParseError{Reason: PatternMismatch, Input: text}
		}
		raw = matches[1:]
	default:
		return nil, &ParseError{Reason: UnsupportedSchema, Input: text}
	}

	m := make(models.Measurement, len(schema))
	for i, field := range schema {
		v, err := parseValue(field, raw[i])
		if err != nil {
			reason := NotInteger
			if errors.Is(err, strconv.ErrRange) {
				reason = OutOfRange
			}
			return nil, &ParseError{Reason: reason, Field: field, Input: text}
		}
		m[field] = v
	}
	return m, nil
}

func parseValue(field models.Field, s string) (float64, error) {
	if field.Kind() == models.KindInteger {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, err
		}
		return float64(n), nil
	}
	return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
}

// FormatInput renders m the way the user would type it, e.g. "82.5 x 8"
func FormatInput(schema []models.Field, m models.Measurement) string {
	parts := make([]string, 0, len(schema))
	for _, f := range schema {
		parts = append(parts, formatNumber(m[f]))
	}
	return strings.Join(parts, " x ")
}

// FormatEntry renders the confirmation for a logged sample
func FormatEntry(exercise string, schema []models.Field, m models.Measurement) string {
	parts := make([]string, 0, len(schema))
	for _, f := range schema {
		parts = append(parts, formatNumber(m[f])+f.Unit())
	}
	return fmt.Sprintf("%s: %s", exercise, strings.Join(parts, " x "))
}

// SchemaPrompt describes the expected input, e.g. "*weight* x *reps*"
func SchemaPrompt(schema []models.Field) string {
	if len(schema) == 0 {
		return "*number*"
	}
	parts := make([]string, 0, len(schema))
	for _, f := range schema {
		parts = append(parts, "*"+string(f)+"*")
	}
	return strings.Join(parts, " x ")
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
