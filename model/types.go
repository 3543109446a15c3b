package model

import (
	"regexp"

	"github.com/openjobspec/openjd/expr"
)

// SpecificationVersion is the versioned schema tag carried in a template's
// specificationVersion field. Decoding selects the template variant by this
// tag before any field-level validation runs.
type SpecificationVersion string

const (
	// VersionJobTemplate2023_09 tags an Open Job Description job template.
	VersionJobTemplate2023_09 SpecificationVersion = "jobtemplate-2023-09"
	// VersionEnvironment2023_09 tags an environment template.
	VersionEnvironment2023_09 SpecificationVersion = "environment-2023-09"
)

// IsJobTemplate reports whether the tag denotes a job template schema.
func (v SpecificationVersion) IsJobTemplate() bool {
	return v == VersionJobTemplate2023_09
}

// IsEnvironmentTemplate reports whether the tag denotes an environment
// template schema.
func (v SpecificationVersion) IsEnvironmentTemplate() bool {
	return v == VersionEnvironment2023_09
}

// ParameterValueType is the declared type of a parameter.
type ParameterValueType string

const (
	ParameterTypeInt    ParameterValueType = "INT"
	ParameterTypeFloat  ParameterValueType = "FLOAT"
	ParameterTypeString ParameterValueType = "STRING"
	ParameterTypePath   ParameterValueType = "PATH"
)

func (t ParameterValueType) valid() bool {
	switch t {
	case ParameterTypeInt, ParameterTypeFloat, ParameterTypeString, ParameterTypePath:
		return true
	}
	return false
}

// ParameterValue is a typed literal bound to a parameter name. The value is
// kept in its original textual form regardless of type; numeric comparison
// happens on an arbitrary-precision decimal representation so that no
// precision is lost between input and output.
type ParameterValue struct {
	Type  ParameterValueType
	Value string
}

// TaskParameterSet maps task parameter names to the values bound for one
// Task.
type TaskParameterSet map[string]ParameterValue

// JobParameterValues maps job parameter names to their bound values.
type JobParameterValues map[string]ParameterValue

// SymbolTable is the namespace→value binding used to resolve format
// strings.
type SymbolTable = expr.SymbolTable

// Namespace prefixes for interpolation expressions. Param holds a job
// parameter's processed value and RawParam its verbatim input; the Task
// variants are bound per Task by the execution engine.
const (
	JobParameterPrefix     = "Param"
	JobParameterRawPrefix  = "RawParam"
	TaskParameterPrefix    = "Task.Param"
	TaskParameterRawPrefix = "Task.RawParam"
)

// ParameterScope tags where a parameter definition was declared.
type ParameterScope string

const (
	ScopeJob         ParameterScope = "JOB"
	ScopeTask        ParameterScope = "TASK"
	ScopeEnvironment ParameterScope = "ENVIRONMENT"
)

var identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsIdentifier reports whether the name matches the identifier grammar
// required of parameter names.
func IsIdentifier(name string) bool { return identifierRegex.MatchString(name) }
