// Package validation checks raw form responses against a FormSchema.
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	apperrors "formflow/internal/common/errors"
	"formflow/internal/models"
)

// ErrorKind classifies a field failure.
type ErrorKind string

const (
	KindMissingRequired     ErrorKind = "MISSING_REQUIRED"
	KindTypeMismatch        ErrorKind = "TYPE_MISMATCH"
	KindConstraintViolation ErrorKind = "CONSTRAINT_VIOLATION"
)

// Constraint names used in CONSTRAINT_VIOLATION errors.
const (
	ConstraintMinLength = "minLength"
	ConstraintMaxLength = "maxLength"
	ConstraintPattern   = "pattern"
	ConstraintMin       = "min"
	ConstraintMax       = "max"
)

// EmailPattern replaces any user-supplied pattern on email fields.
const EmailPattern = `[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`

// FieldError is the first failure found for one field.
type FieldError struct {
	Field      string      `json:"field"`
	Kind       ErrorKind   `json:"kind"`
	Constraint string      `json:"constraint,omitempty"`
	Limit      interface{} `json:"limit,omitempty"`
	Message    string      `json:"message"`
}

func (e *FieldError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("%s: %s(%s)", e.Field, e.Kind, e.Constraint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Kind)
}

// Violation converts the error to its transport form.
func (e FieldError) Violation() apperrors.FieldViolation {
	return apperrors.FieldViolation{
		Field:      e.Field,
		Kind:       string(e.Kind),
		Constraint: e.Constraint,
		Limit:      e.Limit,
		Message:    e.Message,
	}
}

// FieldResult is the outcome of a successful field check. Omitted marks an absent optional field.
type FieldResult struct {
	Value   interface{}
	Omitted bool
}

var patternCache sync.Map // pattern -> *regexp.Regexp

// compilePattern anchors p so that it must match the whole value.
func compilePattern(p string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(p); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(`^(?:` + p + `)$`)
	if err != nil {
		return nil, err
	}
	patternCache.Store(p, re)
	return re, nil
}

// ValidateField checks one raw value against its definition.
// The check order is required, type, then constraints in declaration order; the first failure wins.
func ValidateField(field models.FieldDefinition, raw interface{}) (FieldResult, *FieldError) {
	if isEmpty(raw) {
		if field.Required {
			return FieldResult{}, &FieldError{
				Field:   field.Name,
				Kind:    KindMissingRequired,
				Message: fmt.Sprintf("%s is required", field.DisplayName()),
			}
		}
		return FieldResult{Omitted: true}, nil
	}

	rules := field.Validation
	if rules == nil {
		rules = &models.FieldValidation{}
	}

	switch field.Type.Normalize() {
	case models.FieldTypeText, models.FieldTypeTextarea:
		return validateText(field, raw, rules, rules.Pattern)
	case models.FieldTypeEmail:
		return validateText(field, raw, rules, EmailPattern)
	case models.FieldTypeNumber:
		return validateNumber(field, raw, rules)
	case models.FieldTypeFile:
		uploads, ok := raw.([]models.FileUpload)
		if !ok {
			return FieldResult{}, typeMismatch(field, "must be a file")
		}
		return FieldResult{Value: uploads}, nil
	default:
		return FieldResult{Value: raw}, nil
	}
}

func validateText(field models.FieldDefinition, raw interface{}, rules *models.FieldValidation, pattern string) (FieldResult, *FieldError) {
	value, ok := asString(raw)
	if !ok {
		return FieldResult{}, typeMismatch(field, "must be text")
	}

	length := utf8.RuneCountInString(value)
	if rules.MinLength != nil && length < *rules.MinLength {
		return FieldResult{}, violation(field, ConstraintMinLength, *rules.MinLength,
			fmt.Sprintf("%s must be at least %d characters", field.DisplayName(), *rules.MinLength))
	}
	if rules.MaxLength != nil && length > *rules.MaxLength {
		return FieldResult{}, violation(field, ConstraintMaxLength, *rules.MaxLength,
			fmt.Sprintf("%s must be no more than %d characters", field.DisplayName(), *rules.MaxLength))
	}

	if pattern != "" {
		msg := fmt.Sprintf("%s has an invalid format", field.DisplayName())
		if field.Type.Normalize() == models.FieldTypeEmail {
			msg = "Please enter a valid email address"
		}
		re, err := compilePattern(pattern)
		if err != nil || !re.MatchString(value) {
			return FieldResult{}, violation(field, ConstraintPattern, pattern, msg)
		}
	}

	return FieldResult{Value: value}, nil
}

func validateNumber(field models.FieldDefinition, raw interface{}, rules *models.FieldValidation) (FieldResult, *FieldError) {
	n, ok := asNumber(raw)
	if !ok {
		return FieldResult{}, typeMismatch(field, "must be a number")
	}

	if rules.Min != nil && n < *rules.Min {
		return FieldResult{}, violation(field, ConstraintMin, *rules.Min,
			fmt.Sprintf("%s must be at least %s", field.DisplayName(), formatFloat(*rules.Min)))
	}
	if rules.Max != nil && n > *rules.Max {
		return FieldResult{}, violation(field, ConstraintMax, *rules.Max,
			fmt.Sprintf("%s must be no more than %s", field.DisplayName(), formatFloat(*rules.Max)))
	}

	return FieldResult{Value: n}, nil
}

func typeMismatch(field models.FieldDefinition, what string) *FieldError {
	return &FieldError{
		Field:   field.Name,
		Kind:    KindTypeMismatch,
		Message: fmt.Sprintf("%s %s", field.DisplayName(), what),
	}
}

func violation(field models.FieldDefinition, constraint string, limit interface{}, msg string) *FieldError {
	return &FieldError{
		Field:      field.Name,
		Kind:       KindConstraintViolation,
		Constraint: constraint,
		Limit:      limit,
		Message:    msg,
	}
}

func isEmpty(raw interface{}) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []models.FileUpload:
		return len(v) == 0
	default:
		return false
	}
}

func asString(raw interface{}) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return formatFloat(v), true
	case float32:
		return formatFloat(float64(v)), true
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	default:
		return "", false
	}
}

func asNumber(raw interface{}) (float64, bool) {
	var n float64
	switch v := raw.(type) {
	case float64:
		n = v
	case float32:
		n = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		rv := reflect.ValueOf(raw)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n = float64(rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n = float64(rv.Uint())
		default:
			return 0, false
		}
	}

	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
