package resource

import (
	"fmt"
	"reflect"
	"regexp"
	"unicode/utf8"

	"go.uber.org/multierr"
)

// Type is the declared type of a property.
type Type int

const (
	Any Type = iota
	String
	Number
	Boolean
	Array
	Object
)

func (t Type) String() string {
	switch t {
	case String:
		return "string"
	case Number:
		return "number"
	case Boolean:
		return "boolean"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "any"
	}
}

// Property describes one field of a resource.
type Property struct {
	Name     string
	Type     Type
	Required bool

	// MinLength and MaxLength bound string values; zero means unbounded.
	MinLength int
	MaxLength int

	// Pattern must match string values when set.
	Pattern *regexp.Regexp

	// Enum lists the allowed values when non-empty.
	Enum []any

	// Default is applied by Definition.New when the attribute is absent.
	// Slices are copied per instance.
	Default any
}

// FieldError is a single schema violation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// check validates v against p. present reports whether the attribute exists.
func (p Property) check(v any, present bool) error {
	if !present || v == nil {
		if p.Required {
			return &FieldError{Field: p.Name, Reason: "is required"}
		}
		return nil
	}
	if !p.Type.accepts(v) {
		return &FieldError{Field: p.Name, Reason: fmt.Sprintf("must be of type %s, got %T", p.Type, v)}
	}

	var errs error
	if s, ok := v.(string); ok {
		n := utf8.RuneCountInString(s)
		if p.MinLength > 0 && n < p.MinLength {
			errs = multierr.Append(errs, &FieldError{Field: p.Name, Reason: fmt.Sprintf("is shorter than %d", p.MinLength)})
		}
		if p.MaxLength > 0 && n > p.MaxLength {
			errs = multierr.Append(errs, &FieldError{Field: p.Name, Reason: fmt.Sprintf("is longer than %d", p.MaxLength)})
		}
		if p.Pattern != nil && !p.Pattern.MatchString(s) {
			errs = multierr.Append(errs, &FieldError{Field: p.Name, Reason: fmt.Sprintf("does not match %s", p.Pattern)})
		}
	}
	if len(p.Enum) > 0 && !contains(p.Enum, v) {
		errs = multierr.Append(errs, &FieldError{Field: p.Name, Reason: fmt.Sprintf("must be one of %v", p.Enum)})
	}
	return errs
}

func (t Type) accepts(v any) bool {
	switch t {
	case String:
		_, ok := v.(string)
		return ok
	case Number:
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			return true
		}
		return false
	case Boolean:
		_, ok := v.(bool)
		return ok
	case Array:
		switch v.(type) {
		case []any, []string:
			return true
		}
		return false
	case Object:
		switch v.(type) {
		case map[string]any, Document:
			return true
		}
		return false
	default:
		return true
	}
}

func contains(values []any, v any) bool {
	if !reflect.TypeOf(v).Comparable() {
		return false
	}
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// ValidationError collects every schema violation of one document.
type ValidationError struct {
	Resource string
	Fields   []*FieldError
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%v: %s", ErrValidation, e.Resource)
	for i, f := range e.Fields {
		sep := ", "
		if i == 0 {
			sep = ": "
		}
		msg += sep + f.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// validate checks doc against props and returns a *ValidationError listing
// every violation, or nil.
func validate(resource string, props []Property, doc Document) error {
	var errs error
	for _, p := range props {
		v, ok := doc[p.Name]
		errs = multierr.Append(errs, p.check(v, ok))
	}
	if errs == nil {
		return nil
	}
	verr := &ValidationError{Resource: resource}
	for _, err := range multierr.Errors(errs) {
		if fe, ok := err.(*FieldError); ok {
			verr.Fields = append(verr.Fields, fe)
		}
	}
	return verr
}
