package model

import (
	"strconv"

	"github.com/openjobspec/openjd/expr"
)

func intString(v int) string { return strconv.Itoa(v) }

// Job is a fully-resolved instance of a JobTemplate: every job-scope format
// expression substituted, every parameter bound. Jobs are constructed only
// by CreateJob and are immutable afterwards, so concurrent read-only use
// needs no synchronization.
type Job struct {
	Name         string
	Description  string
	Parameters   JobParameterValues
	Steps        []Step
	Environments []Environment
}

// Step is one unit of work within a Job. Script strings that reference
// task-scope names remain unresolved format strings; they are bound per
// Task from the parameter space iterator's output.
type Step struct {
	Name             string
	Description      string
	Script           StepScript
	HostRequirements *HostRequirements
	StepEnvironments []Environment
	ParameterSpace   *StepParameterSpace
	Dependencies     []StepDependency
}

// StepParameterSpace is the instantiated form of a step's parameter space:
// every task parameter's domain resolved to concrete values.
type StepParameterSpace struct {
	TaskParameterDefinitions []TaskParameter
	Combination              *expr.CombinationExpr
}

// TaskParameter is an instantiated task parameter definition. Exactly one
// of Range and RangeExpr is set.
type TaskParameter struct {
	Name      string
	Type      ParameterValueType
	Range     []string
	RangeExpr *expr.IntRangeExpr
}

// DomainLen returns the number of values in the parameter's domain.
func (p *TaskParameter) DomainLen() int {
	if p.RangeExpr != nil {
		return p.RangeExpr.Len()
	}
	return len(p.Range)
}

// DomainAt returns the i-th value of the parameter's domain as a bound
// ParameterValue. i must be in [0, DomainLen()).
func (p *TaskParameter) DomainAt(i int) ParameterValue {
	if p.RangeExpr != nil {
		v, _ := p.RangeExpr.At(i)
		return ParameterValue{Type: p.Type, Value: intString(v)}
	}
	return ParameterValue{Type: p.Type, Value: p.Range[i]}
}

// Step lookup by name; nil when absent.
func (j *Job) Step(name string) *Step {
	for i := range j.Steps {
		if j.Steps[i].Name == name {
			return &j.Steps[i]
		}
	}
	return nil
}
