package model

import (
	"fmt"
	"sort"

	"github.com/openjobspec/openjd/expr"
)

// Reference-scope validation: every {{...}} expression in a decoded template
// must name a symbol that will be defined where the string is resolved.
// Job-scope strings (the job name, environment payloads, task parameter
// ranges) see only Param.* and RawParam.*; step script strings additionally
// see Task.Param.* and Task.RawParam.* for the parameters of that step's own
// parameter space.

type symbolScope struct {
	allowed map[string]bool
	names   []string // sorted, for suggestions
}

func newSymbolScope(names ...string) *symbolScope {
	scope := &symbolScope{allowed: make(map[string]bool, len(names))}
	for _, name := range names {
		scope.allowed[name] = true
	}
	scope.names = append(scope.names, names...)
	sort.Strings(scope.names)
	return scope
}

func (s *symbolScope) extend(names ...string) *symbolScope {
	return newSymbolScope(append(append([]string{}, s.names...), names...)...)
}

func (s *symbolScope) check(fs *expr.FormatString, path string, errs *ErrorList) {
	if fs == nil {
		return
	}
	for _, ref := range fs.References() {
		if !s.allowed[ref.Name] {
			errs.Add(Errorf(KindSymbolResolution, path,
				"unknown symbol {{%s}} at position %d%s",
				ref.Name, ref.Start, expr.Suggestion(s.names, ref.Name)))
		}
	}
}

func jobScopeSymbols(params []JobParameterDefinition) []string {
	var names []string
	for _, p := range params {
		names = append(names,
			JobParameterPrefix+"."+p.Name,
			JobParameterRawPrefix+"."+p.Name)
	}
	return names
}

func taskScopeSymbols(space *StepParameterSpaceDefinition) []string {
	if space == nil {
		return nil
	}
	var names []string
	for _, p := range space.TaskParameterDefinitions {
		names = append(names,
			TaskParameterPrefix+"."+p.Name,
			TaskParameterRawPrefix+"."+p.Name)
	}
	return names
}

func validateReferences(tmpl *JobTemplate) error {
	var errs ErrorList
	jobScope := newSymbolScope(jobScopeSymbols(tmpl.ParameterDefinitions)...)

	jobScope.check(tmpl.Name, "name", &errs)

	for i, env := range tmpl.JobEnvironments {
		checkEnvironmentRefs(&env, jobScope, fmt.Sprintf("jobEnvironments[%d]", i), &errs)
	}

	for i, step := range tmpl.Steps {
		path := fmt.Sprintf("steps[%d]", i)
		stepScope := jobScope.extend(taskScopeSymbols(step.ParameterSpace)...)

		checkActionRefs(&step.Script.Actions.OnRun, stepScope, path+".script.actions.onRun", &errs)
		for j, file := range step.Script.EmbeddedFiles {
			stepScope.check(file.Data, fmt.Sprintf("%s.script.embeddedFiles[%d].data", path, j), &errs)
		}

		// Host requirement names and values are matched against the worker
		// before any task runs, so they see job scope only.
		if step.HostRequirements != nil {
			reqPath := path + ".hostRequirements"
			for j, amount := range step.HostRequirements.Amounts {
				jobScope.check(amount.Name, fmt.Sprintf("%s.amounts[%d].name", reqPath, j), &errs)
			}
			for j, attr := range step.HostRequirements.Attributes {
				attrPath := fmt.Sprintf("%s.attributes[%d]", reqPath, j)
				jobScope.check(attr.Name, attrPath+".name", &errs)
				for k, value := range attr.AnyOf {
					jobScope.check(value, fmt.Sprintf("%s.anyOf[%d]", attrPath, k), &errs)
				}
				for k, value := range attr.AllOf {
					jobScope.check(value, fmt.Sprintf("%s.allOf[%d]", attrPath, k), &errs)
				}
			}
		}

		// Step environments wrap the whole step's session; task parameters
		// are not in scope there.
		for j, env := range step.StepEnvironments {
			checkEnvironmentRefs(&env, jobScope, fmt.Sprintf("%s.stepEnvironments[%d]", path, j), &errs)
		}

		if step.ParameterSpace != nil {
			for j, param := range step.ParameterSpace.TaskParameterDefinitions {
				paramPath := fmt.Sprintf("%s.parameterSpace.taskParameterDefinitions[%d]", path, j)
				jobScope.check(param.RangeExpr, paramPath+".range", &errs)
				for k, item := range param.RangeList {
					jobScope.check(item, fmt.Sprintf("%s.range[%d]", paramPath, k), &errs)
				}
			}
		}
	}
	return errs.AsError()
}

func validateEnvironmentTemplateReferences(tmpl *EnvironmentTemplate) error {
	var errs ErrorList
	scope := newSymbolScope(jobScopeSymbols(tmpl.ParameterDefinitions)...)
	checkEnvironmentRefs(&tmpl.Environment, scope, "environment", &errs)
	return errs.AsError()
}

func checkEnvironmentRefs(env *Environment, scope *symbolScope, path string, errs *ErrorList) {
	if env.Script != nil {
		if env.Script.Actions.OnEnter != nil {
			checkActionRefs(env.Script.Actions.OnEnter, scope, path+".script.actions.onEnter", errs)
		}
		if env.Script.Actions.OnExit != nil {
			checkActionRefs(env.Script.Actions.OnExit, scope, path+".script.actions.onExit", errs)
		}
		for i, file := range env.Script.EmbeddedFiles {
			scope.check(file.Data, fmt.Sprintf("%s.script.embeddedFiles[%d].data", path, i), errs)
		}
	}
	for name, value := range env.Variables {
		scope.check(value, path+".variables."+name, errs)
	}
}

func checkActionRefs(action *Action, scope *symbolScope, path string, errs *ErrorList) {
	scope.check(action.Command, path+".command", errs)
	for i, arg := range action.Args {
		scope.check(arg, fmt.Sprintf("%s.args[%d]", path, i), errs)
	}
}
