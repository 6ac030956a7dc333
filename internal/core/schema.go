package core

import (
	"fmt"
	"regexp"
	"time"
)

// FieldType represents the expected data type for an import field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldNumeric
	FieldEmail
	FieldPhone
)

// Normalization is applied to a cell before any other check.
type Normalization int

const (
	NormalizeNone Normalization = iota
	NormalizeUpper
	NormalizeLower
)

// Shared patterns for contact fields.
var (
	PhonePattern   = regexp.MustCompile(`^\d{10}$`)
	PincodePattern = regexp.MustCompile(`^\d{6}$`)
)

// DateFloor is the earliest date any date field accepts.
var DateFloor = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// FieldSpec defines validation rules for a single import field.
type FieldSpec struct {
	Name        string         // Key in the row mapping and template header
	Label       string         // Human name used in messages; defaults to Name
	Type        FieldType      // Expected data type
	Required    bool           // Value must be present and non-empty
	Pattern     *regexp.Regexp // Optional format check after normalization
	MinLen      int            // Minimum length in runes (0 = none)
	MaxLen      int            // Maximum length in runes (0 = none)
	EnumValues  []string       // Allowed values for FieldEnum, canonical spelling
	Normalize   Normalization  // Case normalization
	NotFuture   bool           // FieldDate: reject dates after today
	MinDate     time.Time      // FieldDate: earliest accepted date (zero = DateFloor)
	NonNegative bool           // FieldNumeric: reject values below zero
	Message     string         // Overrides the generic format error message
	Example     string         // Sample value for templates
}

func (f FieldSpec) label() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// Schema is the closed, ordered field set of an entity kind.
// It is built once with NewSchema and never modified afterwards.
type Schema struct {
	fields []FieldSpec
	byName map[string]int
	byKey  map[string]int
}

// NewSchema builds a schema from field specs.
// Panics if a name is empty or declared twice, since schemas are static.
func NewSchema(fields ...FieldSpec) Schema {
	s := Schema{
		fields: make([]FieldSpec, len(fields)),
		byName: make(map[string]int, len(fields)),
		byKey:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if f.Name == "" {
			panic("schema field without name")
		}
		if _, dup := s.byName[f.Name]; dup {
			panic(fmt.Sprintf("schema field declared twice: %s", f.Name))
		}
		if f.Label == "" {
			f.Label = f.Name
		}
		f.EnumValues = append([]string(nil), f.EnumValues...)
		s.fields[i] = f
		s.byName[f.Name] = i
		s.byKey[NormalizeKey(f.Name)] = i
	}
	return s
}

// Fields returns a copy of the field specs in declaration order.
func (s Schema) Fields() []FieldSpec {
	out := make([]FieldSpec, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks up a field by exact name.
func (s Schema) Field(name string) (FieldSpec, bool) {
	i, ok := s.byName[name]
	if !ok {
		return FieldSpec{}, false
	}
	return s.fields[i], true
}

// Label returns the human label of a field, or the name itself when unknown.
func (s Schema) Label(name string) string {
	if f, ok := s.Field(name); ok {
		return f.label()
	}
	return name
}

// Headers returns required fields followed by optional fields, each group in
// declaration order.
func (s Schema) Headers() []string {
	headers := make([]string, 0, len(s.fields))
	headers = append(headers, s.Required()...)
	for _, f := range s.fields {
		if !f.Required {
			headers = append(headers, f.Name)
		}
	}
	return headers
}

// Required returns the names of required fields in declaration order.
func (s Schema) Required() []string {
	var names []string
	for _, f := range s.fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// Canonicalize renames keys that match a field loosely ("Admission Number",
// "admission_number") to the field's exact name. Keys with no match are kept
// so validation can reject them.
func (s Schema) Canonicalize(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		name := k
		if _, exact := s.byName[k]; !exact {
			if i, ok := s.byKey[NormalizeKey(k)]; ok {
				name = s.fields[i].Name
			}
		}
		if existing, taken := out[name]; taken && existing != "" && v == "" {
			continue
		}
		out[name] = v
	}
	return out
}
