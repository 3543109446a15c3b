package model

import (
	"github.com/openjobspec/openjd/expr"
)

// JobTemplate is the decoded, validated form of a jobtemplate-2023-09
// document. It is immutable after decoding; instantiate it into a Job with
// CreateJob.
type JobTemplate struct {
	SpecificationVersion SpecificationVersion
	Name                 *expr.FormatString
	Description          string
	ParameterDefinitions []JobParameterDefinition
	Steps                []StepTemplate
	JobEnvironments      []Environment
}

// EnvironmentTemplate is the decoded form of an environment-2023-09
// document. It contributes parameter definitions and an environment payload
// shared across jobs.
type EnvironmentTemplate struct {
	SpecificationVersion SpecificationVersion
	ParameterDefinitions []JobParameterDefinition
	Environment          Environment
}

// StepTemplate declares one step of a job template.
type StepTemplate struct {
	Name             string
	Description      string
	Script           StepScript
	HostRequirements *HostRequirementsTemplate
	StepEnvironments []Environment
	ParameterSpace   *StepParameterSpaceDefinition
	Dependencies     []StepDependency
}

// StepDependency declares that the owning step cannot start until the named
// step has completed. Association optionally carries a scheduling keyword
// alongside the reference; the core preserves it without interpreting it.
type StepDependency struct {
	DependsOn   string
	Association string
}

// StepParameterSpaceDefinition is the declaration form of a step's task
// parameter space: the task parameter definitions plus the combination
// expression that describes how their domains combine. When Combination is
// nil the domains form a full cross product in declaration order.
type StepParameterSpaceDefinition struct {
	TaskParameterDefinitions []TaskParameterDefinition
	Combination              *expr.CombinationExpr
}

// TaskParameterDefinition declares one task-scope parameter. Exactly one of
// RangeList and RangeExpr is set: a list of literal values (any type, items
// may contain job-scope format expressions) or a textual integer range
// expression (INT only; the text itself may be a job-scope format
// expression such as "{{Param.Frames}}").
type TaskParameterDefinition struct {
	Name      string
	Type      ParameterValueType
	RangeList []*expr.FormatString
	RangeExpr *expr.FormatString
}

// StepScript is the action payload of a step. Its format strings may
// reference both job-scope and task-scope names; task-scope references are
// left unresolved by CreateJob and bound per Task by the execution engine.
type StepScript struct {
	Actions       StepActions
	EmbeddedFiles []EmbeddedFile
}

type StepActions struct {
	OnRun Action
}

// Action is one command invocation.
type Action struct {
	Command        *expr.FormatString
	Args           []*expr.FormatString
	TimeoutSeconds int
}

// EnvironmentScript is the action payload of an environment.
type EnvironmentScript struct {
	Actions       EnvironmentActions
	EmbeddedFiles []EmbeddedFile
}

type EnvironmentActions struct {
	OnEnter *Action
	OnExit  *Action
}

// EmbeddedFile is a file materialized into the session working directory
// before its owning script runs.
type EmbeddedFile struct {
	Name     string
	Type     string
	Filename string
	Runnable bool
	Data     *expr.FormatString
}

// Environment is setup/teardown behavior shared by the tasks of a step or
// of a whole job. At least one of Script and Variables is present.
type Environment struct {
	Name        string
	Description string
	Script      *EnvironmentScript
	Variables   map[string]*expr.FormatString
}
