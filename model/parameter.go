package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNotAnInteger   = errors.New("value must be an integer or integer string")
	ErrNotANumber     = errors.New("value must be a number or numeric string")
	ErrBadIdentifier  = errors.New("name must match [A-Za-z_][A-Za-z0-9_]*")
	ErrMissingValue   = errors.New("no value given and the parameter has no default")
	ErrNotAllowed     = errors.New("value is not one of the allowed values")
	ErrBelowMinimum   = errors.New("value is below the declared minimum")
	ErrAboveMaximum   = errors.New("value is above the declared maximum")
	ErrTooShort       = errors.New("value is shorter than the declared minLength")
	ErrTooLong        = errors.New("value is longer than the declared maxLength")
	ErrBadBoundsOrder = errors.New("declared minimum exceeds declared maximum")
)

// PathObjectType constrains what a PATH parameter refers to.
type PathObjectType string

const (
	PathObjectFile      PathObjectType = "FILE"
	PathObjectDirectory PathObjectType = "DIRECTORY"
)

// PathDataFlow declares how the data behind a PATH parameter moves between
// the submitter and the workers.
type PathDataFlow string

const (
	DataFlowNone  PathDataFlow = "NONE"
	DataFlowIn    PathDataFlow = "IN"
	DataFlowOut   PathDataFlow = "OUT"
	DataFlowInOut PathDataFlow = "INOUT"
)

// JobParameterDefinition declares one job-scope parameter: its type, an
// optional default, and the constraints a supplied value must satisfy.
// Numeric bounds apply to INT and FLOAT parameters; length bounds apply to
// STRING and PATH parameters; ObjectType and DataFlow apply to PATH only.
// Definitions are created at template decode time and never mutated.
type JobParameterDefinition struct {
	Name        string
	Type        ParameterValueType
	Description string

	// Default keeps the declared default in its original textual form;
	// nil when the parameter is required.
	Default *string

	AllowedValues []string

	MinValue *decimal.Decimal
	MaxValue *decimal.Decimal

	MinLength *int
	MaxLength *int

	ObjectType PathObjectType
	DataFlow   PathDataFlow

	Origin ParameterScope
}

// Validate checks the internal consistency of the definition itself (not
// of any supplied value).
func (d *JobParameterDefinition) Validate() error {
	var errs ErrorList

	if !IsIdentifier(d.Name) {
		errs.Add(Errorf(KindSchemaViolation, "name", "%q: %w", d.Name, ErrBadIdentifier))
	}
	if !d.Type.valid() {
		errs.Add(Errorf(KindSchemaViolation, "type", "unknown parameter type %q", d.Type))
		return errs.AsError()
	}

	if d.MinValue != nil && d.MaxValue != nil && d.MinValue.GreaterThan(*d.MaxValue) {
		errs.Add(Errorf(KindSchemaViolation, "minValue", "%w (%s > %s)",
			ErrBadBoundsOrder, d.MinValue, d.MaxValue))
	}
	if d.MinLength != nil && d.MaxLength != nil && *d.MinLength > *d.MaxLength {
		errs.Add(Errorf(KindSchemaViolation, "minLength", "%w (%d > %d)",
			ErrBadBoundsOrder, *d.MinLength, *d.MaxLength))
	}

	for i, allowed := range d.AllowedValues {
		if err := d.checkTyped(allowed); err != nil {
			errs.Add(WrapError(KindSchemaViolation, fmt.Sprintf("allowedValues[%d]", i), err))
		}
	}
	if d.Default != nil {
		if err := d.CheckValue(*d.Default); err != nil {
			errs.Add(WrapError(KindSchemaViolation, "default", err))
		}
	}

	return errs.AsError()
}

// checkTyped verifies the value parses as the declared type and satisfies
// the min/max and length bounds, without consulting AllowedValues.
func (d *JobParameterDefinition) checkTyped(value string) error {
	switch d.Type {
	case ParameterTypeInt:
		if _, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err != nil {
			return fmt.Errorf("%w: %q", ErrNotAnInteger, value)
		}
		fallthrough
	case ParameterTypeFloat:
		num, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: %q", ErrNotANumber, value)
		}
		if d.MinValue != nil && num.LessThan(*d.MinValue) {
			return fmt.Errorf("%w: %s < %s", ErrBelowMinimum, value, d.MinValue)
		}
		if d.MaxValue != nil && num.GreaterThan(*d.MaxValue) {
			return fmt.Errorf("%w: %s > %s", ErrAboveMaximum, value, d.MaxValue)
		}
	case ParameterTypeString, ParameterTypePath:
		if d.MinLength != nil && len(value) < *d.MinLength {
			return fmt.Errorf("%w: len(%q) < %d", ErrTooShort, value, *d.MinLength)
		}
		if d.MaxLength != nil && len(value) > *d.MaxLength {
			return fmt.Errorf("%w: len(%q) > %d", ErrTooLong, value, *d.MaxLength)
		}
	}
	return nil
}

// CheckValue verifies a supplied value against every constraint of the
// definition.
func (d *JobParameterDefinition) CheckValue(value string) error {
	if err := d.checkTyped(value); err != nil {
		return err
	}
	if len(d.AllowedValues) > 0 {
		for _, allowed := range d.AllowedValues {
			if d.valuesEqual(value, allowed) {
				return nil
			}
		}
		return fmt.Errorf("%w: %q not in [%s]", ErrNotAllowed, value, strings.Join(d.AllowedValues, ", "))
	}
	return nil
}

// valuesEqual compares two textual values under the parameter's type:
// numerically for INT and FLOAT ("1.50" equals "1.5"), verbatim otherwise.
func (d *JobParameterDefinition) valuesEqual(a, b string) bool {
	switch d.Type {
	case ParameterTypeInt, ParameterTypeFloat:
		da, errA := decimal.NewFromString(strings.TrimSpace(a))
		db, errB := decimal.NewFromString(strings.TrimSpace(b))
		if errA != nil || errB != nil {
			return a == b
		}
		return da.Equal(db)
	default:
		return a == b
	}
}

// Coerce validates the raw textual value against the declared type and
// returns it as a typed ParameterValue. The original text is preserved; a
// FLOAT supplied as "1.50" stays "1.50".
func (d *JobParameterDefinition) Coerce(raw string) (ParameterValue, error) {
	switch d.Type {
	case ParameterTypeInt:
		if _, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err != nil {
			return ParameterValue{}, fmt.Errorf("%w: %q", ErrNotAnInteger, raw)
		}
	case ParameterTypeFloat:
		if _, err := decimal.NewFromString(strings.TrimSpace(raw)); err != nil {
			return ParameterValue{}, fmt.Errorf("%w: %q", ErrNotANumber, raw)
		}
	}
	return ParameterValue{Type: d.Type, Value: raw}, nil
}
