package core

// validation.go provides structural validation of import rows against a Schema.
//
// Validation is pure: it reads only the rows, the schema and the clock, and
// never touches the store. Every problem in a row is reported, so a single
// preview gives the administrator everything to fix in the spreadsheet.
// Valid rows come back with normalized values (trimmed, case-folded,
// canonical dates and amounts) and keep their original ID and line.

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidationError describes one problem with a row, or with the file when Row is 0.
type ValidationError struct {
	Row      int       `json:"row"`
	RowIndex *int      `json:"rowIndex,omitempty"`
	RowID    string    `json:"rowId,omitempty"`
	Kind     ErrorKind `json:"kind"`
	Field    string    `json:"field"`
	Message  string    `json:"message"`
	Value    string    `json:"value"`
}

func (e ValidationError) Error() string {
	prefix := "file"
	if e.Row > 0 {
		prefix = fmt.Sprintf("row %d", e.Row)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", prefix, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// RowError builds a ValidationError attached to row.
func RowError(row ImportRow, kind ErrorKind, field, message, value string) ValidationError {
	idx := row.Line - 1
	return ValidationError{
		Row:      row.Line,
		RowIndex: &idx,
		RowID:    row.ID,
		Kind:     kind,
		Field:    field,
		Message:  message,
		Value:    value,
	}
}

// FileError builds a file-level ValidationError (Row 0).
func FileError(kind ErrorKind, field, message, value string) ValidationError {
	return ValidationError{
		Kind:    kind,
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// SchemaResult splits rows into those that passed and those that failed.
type SchemaResult struct {
	Valid   []ImportRow
	Invalid []ImportRow
	Errors  []ValidationError
}

// Total returns the number of rows that were validated.
func (r SchemaResult) Total() int {
	return len(r.Valid) + len(r.Invalid)
}

// SchemaValidator checks rows against a schema. Now defaults to time.Now and
// only feeds the "not in the future" date bound.
type SchemaValidator struct {
	Now func() time.Time
}

func (v SchemaValidator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// Validate checks every row and returns normalized valid rows.
func (v SchemaValidator) Validate(rows []ImportRow, schema Schema) SchemaResult {
	today := truncateDay(v.now().UTC())
	var result SchemaResult

	for _, row := range rows {
		values, errs := validateRow(row, schema, today)
		if len(errs) > 0 {
			result.Invalid = append(result.Invalid, row)
			result.Errors = append(result.Errors, errs...)
			continue
		}
		result.Valid = append(result.Valid, ImportRow{ID: row.ID, Line: row.Line, Values: values})
	}

	return result
}

// validateRow returns the normalized values of row, or every error it has.
func validateRow(row ImportRow, schema Schema, today time.Time) (map[string]string, []ValidationError) {
	var errs []ValidationError

	unknown := make([]string, 0)
	for key := range row.Values {
		if _, ok := schema.Field(key); !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		errs = append(errs, RowError(row, ErrorStructural, key,
			fmt.Sprintf("Unknown field: %s", key), row.Values[key]))
	}

	values := make(map[string]string, len(schema.fields))
	for _, spec := range schema.fields {
		raw := CleanCell(row.Values[spec.Name])
		if raw == "" {
			if spec.Required {
				errs = append(errs, RowError(row, ErrorStructural, spec.Name,
					fmt.Sprintf("%s is required", spec.label()), ""))
			}
			continue
		}

		value, msg := normalizeCell(raw, spec, today)
		if msg != "" {
			errs = append(errs, RowError(row, ErrorStructural, spec.Name, msg, raw))
			continue
		}
		values[spec.Name] = value
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return values, nil
}

// normalizeCell validates one non-empty cell. It returns the normalized value,
// or a non-empty message describing why the value was rejected.
func normalizeCell(raw string, spec FieldSpec, today time.Time) (string, string) {
	value := raw
	switch spec.Normalize {
	case NormalizeUpper:
		value = strings.ToUpper(value)
	case NormalizeLower:
		value = strings.ToLower(value)
	}

	n := utf8.RuneCountInString(value)
	if spec.MinLen > 0 && n < spec.MinLen {
		return "", fmt.Sprintf("%s must be at least %d characters", spec.label(), spec.MinLen)
	}
	if spec.MaxLen > 0 && n > spec.MaxLen {
		return "", fmt.Sprintf("%s must be at most %d characters", spec.label(), spec.MaxLen)
	}

	switch spec.Type {
	case FieldEmail:
		value = strings.ToLower(value)
		if err := validate.Var(value, "email"); err != nil {
			return "", failMessage(spec, fmt.Sprintf("Invalid %s", strings.ToLower(spec.label())))
		}

	case FieldPhone:
		value = stripPhone(value)
		pattern := spec.Pattern
		if pattern == nil {
			pattern = PhonePattern
		}
		if !pattern.MatchString(value) {
			return "", failMessage(spec, fmt.Sprintf("%s must be a 10-digit number", spec.label()))
		}
		return value, ""

	case FieldEnum:
		canonical, ok := matchEnum(value, spec.EnumValues)
		if !ok {
			return "", failMessage(spec, fmt.Sprintf("%s must be one of: %s",
				spec.label(), strings.Join(spec.EnumValues, ", ")))
		}
		value = canonical

	case FieldDate:
		t, ok := ParseDate(value, today)
		if !ok {
			return "", failMessage(spec, fmt.Sprintf("Invalid %s format (use YYYY-MM-DD)", strings.ToLower(spec.label())))
		}
		floor := spec.MinDate
		if floor.IsZero() {
			floor = DateFloor
		}
		if t.Before(floor) {
			return "", fmt.Sprintf("%s cannot be before %s", spec.label(), floor.Format("2006-01-02"))
		}
		if spec.NotFuture && t.After(today) {
			return "", fmt.Sprintf("%s cannot be in the future", spec.label())
		}
		value = t.Format("2006-01-02")

	case FieldNumeric:
		d, ok := ParseDecimal(value)
		if !ok {
			return "", failMessage(spec, fmt.Sprintf("Invalid number for %s", strings.ToLower(spec.label())))
		}
		if spec.NonNegative && d.IsNegative() {
			return "", fmt.Sprintf("%s cannot be negative", spec.label())
		}
		value = d.String()
	}

	if spec.Pattern != nil && !spec.Pattern.MatchString(value) {
		return "", failMessage(spec, fmt.Sprintf("%s has an invalid format", spec.label()))
	}

	return value, ""
}

func failMessage(spec FieldSpec, fallback string) string {
	if spec.Message != "" {
		return spec.Message
	}
	return fallback
}

// matchEnum returns the canonical spelling of value among allowed.
func matchEnum(value string, allowed []string) (string, bool) {
	for _, ev := range allowed {
		if strings.EqualFold(ev, value) {
			return ev, true
		}
	}
	return "", false
}
