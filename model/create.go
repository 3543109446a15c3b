package model

import (
	"fmt"

	"github.com/openjobspec/openjd/expr"
)

// CreateJob instantiates a job template against a full set of bound
// parameter values, normally the output of PreprocessJobParameters.
//
// Every format expression whose references are all satisfiable from the
// job-scope symbol table is substituted now; expressions that reference
// task-scope names are carried into the Job unresolved and bound per Task
// by the consumer. Creation is atomic: any failure yields no Job and the
// full list of violations.
func CreateJob(tmpl *JobTemplate, values JobParameterValues) (*Job, error) {
	var errs ErrorList

	for _, def := range tmpl.ParameterDefinitions {
		value, ok := values[def.Name]
		if !ok {
			errs.Add(WrapError(KindParameterBinding, def.Name, ErrMissingValue))
			continue
		}
		if value.Type != def.Type {
			errs.Add(Errorf(KindParameterBinding, def.Name,
				"bound value has type %s, parameter is declared %s", value.Type, def.Type))
		}
	}
	if errs.HasErrors() {
		return nil, errs.AsError()
	}

	symtab := JobParameterSymbolTable(values)
	job := &Job{
		Description: tmpl.Description,
		Parameters:  values,
	}

	name, err := tmpl.Name.Resolve(symtab)
	if err != nil {
		errs.Add(WrapError(KindSymbolResolution, "name", err))
	}
	job.Name = name

	for i, env := range tmpl.JobEnvironments {
		resolved, err := resolveEnvironment(env, symtab, fmt.Sprintf("jobEnvironments[%d]", i))
		errs.Add(err)
		job.Environments = append(job.Environments, resolved)
	}

	for i, stepTmpl := range tmpl.Steps {
		step, err := createStep(stepTmpl, symtab, fmt.Sprintf("steps[%d]", i))
		errs.Add(err)
		if step != nil {
			job.Steps = append(job.Steps, *step)
		}
	}

	if errs.HasErrors() {
		return nil, errs.AsError()
	}
	return job, nil
}

func createStep(tmpl StepTemplate, symtab SymbolTable, path string) (*Step, error) {
	var errs ErrorList

	step := &Step{
		Name:         tmpl.Name,
		Description:  tmpl.Description,
		Dependencies: append([]StepDependency{}, tmpl.Dependencies...),
	}

	step.Script.Actions.OnRun = resolveAction(tmpl.Script.Actions.OnRun, symtab)
	step.Script.EmbeddedFiles = resolveEmbeddedFiles(tmpl.Script.EmbeddedFiles, symtab)

	if tmpl.HostRequirements != nil {
		req, err := resolveHostRequirements(tmpl.HostRequirements, symtab, path+".hostRequirements")
		errs.Add(err)
		step.HostRequirements = req
	}

	for i, env := range tmpl.StepEnvironments {
		resolved, err := resolveEnvironment(env, symtab, fmt.Sprintf("%s.stepEnvironments[%d]", path, i))
		errs.Add(err)
		step.StepEnvironments = append(step.StepEnvironments, resolved)
	}

	if tmpl.ParameterSpace != nil {
		space, err := createParameterSpace(tmpl.ParameterSpace, symtab, path+".parameterSpace")
		errs.Add(err)
		step.ParameterSpace = space
	}

	if errs.HasErrors() {
		return nil, errs.AsError()
	}
	return step, nil
}

// createParameterSpace resolves every task parameter domain to concrete
// values. Range expression strings interpolate job parameters first, then
// parse; range list items interpolate per item.
func createParameterSpace(def *StepParameterSpaceDefinition, symtab SymbolTable, path string) (*StepParameterSpace, error) {
	var errs ErrorList
	space := &StepParameterSpace{Combination: def.Combination}

	for i, paramDef := range def.TaskParameterDefinitions {
		paramPath := fmt.Sprintf("%s.taskParameterDefinitions[%d]", path, i)
		param := TaskParameter{Name: paramDef.Name, Type: paramDef.Type}

		switch {
		case paramDef.RangeExpr != nil:
			text, err := paramDef.RangeExpr.Resolve(symtab)
			if err != nil {
				errs.Add(WrapError(KindSymbolResolution, paramPath+".range", err))
				continue
			}
			rangeExpr, err := expr.ParseIntRangeExpr(text)
			if err != nil {
				errs.Add(WrapError(KindRangeExpression, paramPath+".range", err))
				continue
			}
			param.RangeExpr = rangeExpr

		default:
			for j, item := range paramDef.RangeList {
				value, err := item.Resolve(symtab)
				if err != nil {
					errs.Add(WrapError(KindSymbolResolution,
						fmt.Sprintf("%s.range[%d]", paramPath, j), err))
					continue
				}
				if err := checkTaskValue(paramDef.Type, value); err != nil {
					errs.Add(WrapError(KindSchemaViolation,
						fmt.Sprintf("%s.range[%d]", paramPath, j), err))
					continue
				}
				param.Range = append(param.Range, value)
			}
		}

		space.TaskParameterDefinitions = append(space.TaskParameterDefinitions, param)
	}

	if errs.HasErrors() {
		return nil, errs.AsError()
	}
	return space, nil
}

func checkTaskValue(t ParameterValueType, value string) error {
	def := JobParameterDefinition{Type: t}
	return def.checkTyped(value)
}

// resolveFormatString substitutes a format string whose references are all
// bound in the symbol table; strings carrying task-scope references are
// returned unchanged for later binding.
func resolveFormatString(fs *expr.FormatString, symtab SymbolTable) *expr.FormatString {
	if fs == nil || !fs.HasReferences() {
		return fs
	}
	for _, ref := range fs.References() {
		if !symtab.Contains(ref.Name) {
			return fs
		}
	}
	resolved, err := fs.Resolve(symtab)
	if err != nil {
		return fs
	}
	return expr.LiteralFormatString(resolved)
}

func resolveAction(action Action, symtab SymbolTable) Action {
	out := Action{
		Command:        resolveFormatString(action.Command, symtab),
		TimeoutSeconds: action.TimeoutSeconds,
	}
	for _, arg := range action.Args {
		out.Args = append(out.Args, resolveFormatString(arg, symtab))
	}
	return out
}

func resolveEmbeddedFiles(files []EmbeddedFile, symtab SymbolTable) []EmbeddedFile {
	var out []EmbeddedFile
	for _, file := range files {
		file.Data = resolveFormatString(file.Data, symtab)
		out = append(out, file)
	}
	return out
}

// resolveEnvironment fully resolves an environment's strings. Environments
// are job-scope, so an unbound reference here is a hard failure rather than
// something deferred to task binding.
func resolveEnvironment(env Environment, symtab SymbolTable, path string) (Environment, error) {
	var errs ErrorList
	out := Environment{Name: env.Name, Description: env.Description}

	if env.Script != nil {
		script := &EnvironmentScript{}
		if env.Script.Actions.OnEnter != nil {
			onEnter := resolveAction(*env.Script.Actions.OnEnter, symtab)
			script.Actions.OnEnter = &onEnter
		}
		if env.Script.Actions.OnExit != nil {
			onExit := resolveAction(*env.Script.Actions.OnExit, symtab)
			script.Actions.OnExit = &onExit
		}
		script.EmbeddedFiles = resolveEmbeddedFiles(env.Script.EmbeddedFiles, symtab)
		out.Script = script
	}

	if len(env.Variables) > 0 {
		out.Variables = make(map[string]*expr.FormatString, len(env.Variables))
		for name, value := range env.Variables {
			resolved, err := value.Resolve(symtab)
			if err != nil {
				errs.Add(WrapError(KindSymbolResolution, path+".variables."+name, err))
				continue
			}
			out.Variables[name] = expr.LiteralFormatString(resolved)
		}
	}

	return out, errs.AsError()
}
