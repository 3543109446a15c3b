package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/openjobspec/openjd/expr"
)

var (
	ErrNameRequired        = errors.New("name is required")
	ErrScriptRequired      = errors.New("script with an onRun action is required")
	ErrStepsRequired       = errors.New("at least one step is required")
	ErrStepNameDuplicate   = errors.New("duplicate step name")
	ErrParamNameDuplicate  = errors.New("duplicate parameter name")
	ErrEnvNameDuplicate    = errors.New("duplicate environment name")
	ErrSelfDependency      = errors.New("a step cannot depend upon itself")
	ErrUnknownDependency   = errors.New("dependsOn references an unknown step")
	ErrDependencyCycle     = errors.New("step dependencies form a cycle")
	ErrScriptOrVariables   = errors.New("environment must have either a script or variables")
	ErrRangeRequired       = errors.New("task parameter must declare a range")
	ErrRangeListForInt     = errors.New("range expression strings are only valid for INT task parameters")
	ErrCombinationCoverage = errors.New("combination expression must reference every task parameter exactly once")
)

// BuilderFn builds one section of a JobTemplate from the raw definition.
type BuilderFn func(def *templateDef, tmpl *JobTemplate) error

var jobTemplateBuilders = []struct {
	name string
	fn   BuilderFn
}{
	{name: "name", fn: buildName},
	{name: "parameterDefinitions", fn: buildParameterDefinitions},
	{name: "steps", fn: buildSteps},
	{name: "jobEnvironments", fn: buildJobEnvironments},
}

// buildJobTemplate converts the raw definition into a validated
// JobTemplate. Errors from independent sections and validation passes are
// collected so a single decode reports everything it can find.
func buildJobTemplate(def *templateDef) (*JobTemplate, error) {
	tmpl := &JobTemplate{
		SpecificationVersion: SpecificationVersion(def.SpecificationVersion),
		Description:          def.Description,
	}

	var errs ErrorList
	for _, builder := range jobTemplateBuilders {
		errs.Add(builder.fn(def, tmpl))
	}

	if !errs.HasErrors() || len(tmpl.Steps) > 0 {
		errs.Add(validateStepDependencies(tmpl))
		errs.Add(validateEnvironmentNames(tmpl))
		errs.Add(validateReferences(tmpl))
	}

	if errs.HasErrors() {
		return nil, errs.AsError()
	}
	return tmpl, nil
}

func buildEnvironmentTemplate(def *templateDef) (*EnvironmentTemplate, error) {
	tmpl := &EnvironmentTemplate{
		SpecificationVersion: SpecificationVersion(def.SpecificationVersion),
	}

	var errs ErrorList

	params, err := buildParameterList(def.ParameterDefinitions, ScopeEnvironment, "parameterDefinitions")
	errs.Add(err)
	tmpl.ParameterDefinitions = params

	if def.Environment == nil {
		errs.Add(Errorf(KindSchemaViolation, "environment", "environment is required"))
	} else {
		env, err := buildEnvironment(*def.Environment, "environment")
		errs.Add(err)
		if env != nil {
			tmpl.Environment = *env
		}
	}

	if !errs.HasErrors() {
		errs.Add(validateEnvironmentTemplateReferences(tmpl))
	}

	if errs.HasErrors() {
		return nil, errs.AsError()
	}
	return tmpl, nil
}

func buildName(def *templateDef, tmpl *JobTemplate) error {
	if def.Name == "" {
		return WrapError(KindSchemaViolation, "name", ErrNameRequired)
	}
	name, err := expr.ParseFormatString(def.Name)
	if err != nil {
		return WrapError(KindSchemaViolation, "name", err)
	}
	tmpl.Name = name
	return nil
}

func buildParameterDefinitions(def *templateDef, tmpl *JobTemplate) error {
	params, err := buildParameterList(def.ParameterDefinitions, ScopeJob, "parameterDefinitions")
	tmpl.ParameterDefinitions = params
	return err
}

func buildParameterList(defs []parameterDef, origin ParameterScope, path string) ([]JobParameterDefinition, error) {
	var errs ErrorList
	var params []JobParameterDefinition
	seen := make(map[string]bool)

	for i, pd := range defs {
		fieldPath := fmt.Sprintf("%s[%d]", path, i)
		param, err := buildParameterDefinition(pd, origin, fieldPath)
		if err != nil {
			errs.Add(err)
			continue
		}
		if seen[param.Name] {
			errs.Add(Errorf(KindSchemaViolation, fieldPath+".name", "%w: %s", ErrParamNameDuplicate, param.Name))
			continue
		}
		seen[param.Name] = true
		params = append(params, param)
	}
	return params, errs.AsError()
}

func buildParameterDefinition(pd parameterDef, origin ParameterScope, path string) (JobParameterDefinition, error) {
	var errs ErrorList

	param := JobParameterDefinition{
		Name:        pd.Name,
		Type:        ParameterValueType(pd.Type),
		Description: pd.Description,
		MinLength:   pd.MinLength,
		MaxLength:   pd.MaxLength,
		Origin:      origin,
	}

	if pd.Default != nil {
		text, ok := anyToString(pd.Default)
		if !ok {
			errs.Add(Errorf(KindSchemaViolation, path+".default", "unsupported value type %T", pd.Default))
		} else {
			param.Default = &text
		}
	}
	for i, allowed := range pd.AllowedValues {
		text, ok := anyToString(allowed)
		if !ok {
			errs.Add(Errorf(KindSchemaViolation, fmt.Sprintf("%s.allowedValues[%d]", path, i),
				"unsupported value type %T", allowed))
			continue
		}
		param.AllowedValues = append(param.AllowedValues, text)
	}

	var err error
	if param.MinValue, err = anyToDecimal(pd.MinValue); err != nil {
		errs.Add(WrapError(KindSchemaViolation, path+".minValue", err))
	}
	if param.MaxValue, err = anyToDecimal(pd.MaxValue); err != nil {
		errs.Add(WrapError(KindSchemaViolation, path+".maxValue", err))
	}

	if pd.ObjectType != "" {
		switch PathObjectType(pd.ObjectType) {
		case PathObjectFile, PathObjectDirectory:
			param.ObjectType = PathObjectType(pd.ObjectType)
		default:
			errs.Add(Errorf(KindSchemaViolation, path+".objectType", "unknown objectType %q", pd.ObjectType))
		}
	}
	if pd.DataFlow != "" {
		switch PathDataFlow(pd.DataFlow) {
		case DataFlowNone, DataFlowIn, DataFlowOut, DataFlowInOut:
			param.DataFlow = PathDataFlow(pd.DataFlow)
		default:
			errs.Add(Errorf(KindSchemaViolation, path+".dataFlow", "unknown dataFlow %q", pd.DataFlow))
		}
	}

	if err := param.Validate(); err != nil {
		errs.Add(prefixErrorPath(err, path))
	}
	return param, errs.AsError()
}

func buildSteps(def *templateDef, tmpl *JobTemplate) error {
	if len(def.Steps) == 0 {
		return WrapError(KindSchemaViolation, "steps", ErrStepsRequired)
	}

	var errs ErrorList
	seen := make(map[string]bool)
	for i, sd := range def.Steps {
		path := fmt.Sprintf("steps[%d]", i)
		step, err := buildStep(sd, path)
		errs.Add(err)
		if step == nil {
			continue
		}
		if seen[step.Name] {
			errs.Add(Errorf(KindSchemaViolation, path+".name", "%w: %s", ErrStepNameDuplicate, step.Name))
			continue
		}
		seen[step.Name] = true
		tmpl.Steps = append(tmpl.Steps, *step)
	}
	return errs.AsError()
}

func buildStep(sd stepDef, path string) (*StepTemplate, error) {
	var errs ErrorList

	step := &StepTemplate{
		Name:        sd.Name,
		Description: sd.Description,
	}
	if sd.Name == "" {
		errs.Add(WrapError(KindSchemaViolation, path+".name", ErrNameRequired))
	}

	if sd.Script == nil || sd.Script.Actions.OnRun == nil {
		errs.Add(WrapError(KindSchemaViolation, path+".script", ErrScriptRequired))
	} else {
		onRun, err := buildAction(*sd.Script.Actions.OnRun, path+".script.actions.onRun")
		errs.Add(err)
		if onRun != nil {
			step.Script.Actions.OnRun = *onRun
		}
		files, err := buildEmbeddedFiles(sd.Script.EmbeddedFiles, path+".script.embeddedFiles")
		errs.Add(err)
		step.Script.EmbeddedFiles = files
	}

	if sd.HostRequirements != nil {
		req, err := buildHostRequirements(*sd.HostRequirements, path+".hostRequirements")
		errs.Add(err)
		step.HostRequirements = req
	}

	for i, ed := range sd.StepEnvironments {
		env, err := buildEnvironment(ed, fmt.Sprintf("%s.stepEnvironments[%d]", path, i))
		errs.Add(err)
		if env != nil {
			step.StepEnvironments = append(step.StepEnvironments, *env)
		}
	}

	for i, dd := range sd.Dependencies {
		depPath := fmt.Sprintf("%s.dependencies[%d]", path, i)
		if dd.DependsOn == "" {
			errs.Add(Errorf(KindSchemaViolation, depPath+".dependsOn", "dependsOn is required"))
			continue
		}
		step.Dependencies = append(step.Dependencies, StepDependency{
			DependsOn:   dd.DependsOn,
			Association: dd.Association,
		})
	}

	if sd.ParameterSpace != nil {
		space, err := buildParameterSpace(*sd.ParameterSpace, path+".parameterSpace")
		errs.Add(err)
		step.ParameterSpace = space
	}

	return step, errs.AsError()
}

func buildParameterSpace(pd parameterSpaceDef, path string) (*StepParameterSpaceDefinition, error) {
	var errs ErrorList
	space := &StepParameterSpaceDefinition{}

	seen := make(map[string]bool)
	var declared []string
	for i, td := range pd.TaskParameterDefinitions {
		paramPath := fmt.Sprintf("%s.taskParameterDefinitions[%d]", path, i)
		param, err := buildTaskParameter(td, paramPath)
		errs.Add(err)
		if param == nil {
			continue
		}
		if seen[param.Name] {
			errs.Add(Errorf(KindSchemaViolation, paramPath+".name", "%w: %s", ErrParamNameDuplicate, param.Name))
			continue
		}
		seen[param.Name] = true
		declared = append(declared, param.Name)
		space.TaskParameterDefinitions = append(space.TaskParameterDefinitions, *param)
	}

	if pd.Combination == "" {
		space.Combination = expr.DefaultCombination(declared)
	} else {
		combination, err := expr.ParseCombinationExpr(pd.Combination)
		if err != nil {
			errs.Add(WrapError(KindCombination, path+".combination", err))
		} else {
			space.Combination = combination
			errs.Add(validateCombinationCoverage(combination, declared, path+".combination"))
		}
	}

	return space, errs.AsError()
}

// validateCombinationCoverage checks the exact-once invariant between the
// combination expression and the declared task parameters: an unknown name
// in the expression is a symbol resolution failure (with a nearest-name
// suggestion), and a declared parameter the expression never references is
// a combination failure.
func validateCombinationCoverage(combination *expr.CombinationExpr, declared []string, path string) error {
	var errs ErrorList

	referenced := make(map[string]bool)
	declaredSet := make(map[string]bool, len(declared))
	for _, name := range declared {
		declaredSet[name] = true
	}

	for _, name := range combination.Names() {
		referenced[name] = true
		if !declaredSet[name] {
			errs.Add(Errorf(KindSymbolResolution, path,
				"unknown task parameter %q%s", name, expr.Suggestion(declared, name)))
		}
	}
	for _, name := range declared {
		if !referenced[name] {
			errs.Add(Errorf(KindCombination, path, "%w: %s is never referenced",
				ErrCombinationCoverage, name))
		}
	}
	return errs.AsError()
}

func buildTaskParameter(td taskParameterDef, path string) (*TaskParameterDefinition, error) {
	var errs ErrorList

	param := &TaskParameterDefinition{
		Name: td.Name,
		Type: ParameterValueType(td.Type),
	}
	if !IsIdentifier(td.Name) {
		errs.Add(Errorf(KindSchemaViolation, path+".name", "%q: %w", td.Name, ErrBadIdentifier))
	}
	if !param.Type.valid() {
		errs.Add(Errorf(KindSchemaViolation, path+".type", "unknown parameter type %q", td.Type))
	}

	switch r := td.Range.(type) {
	case nil:
		errs.Add(WrapError(KindSchemaViolation, path+".range", ErrRangeRequired))

	case string:
		if param.Type.valid() && param.Type != ParameterTypeInt {
			errs.Add(WrapError(KindRangeExpression, path+".range", ErrRangeListForInt))
			break
		}
		fs, err := expr.ParseFormatString(r)
		if err != nil {
			errs.Add(WrapError(KindSchemaViolation, path+".range", err))
			break
		}
		// A static range expression can be validated now; one that
		// interpolates job parameters is checked at job creation.
		if !fs.HasReferences() {
			if _, err := expr.ParseIntRangeExpr(r); err != nil {
				errs.Add(WrapError(KindRangeExpression, path+".range", err))
				break
			}
		}
		param.RangeExpr = fs

	case []any:
		if len(r) == 0 {
			errs.Add(Errorf(KindSchemaViolation, path+".range", "range list cannot be empty"))
			break
		}
		for i, item := range r {
			text, ok := anyToString(item)
			if !ok {
				errs.Add(Errorf(KindSchemaViolation, fmt.Sprintf("%s.range[%d]", path, i),
					"unsupported value type %T", item))
				continue
			}
			fs, err := expr.ParseFormatString(text)
			if err != nil {
				errs.Add(WrapError(KindSchemaViolation, fmt.Sprintf("%s.range[%d]", path, i), err))
				continue
			}
			param.RangeList = append(param.RangeList, fs)
		}

	default:
		errs.Add(Errorf(KindSchemaViolation, path+".range",
			"range must be a value list or a range expression string, got %T", td.Range))
	}

	return param, errs.AsError()
}

func buildAction(ad actionDef, path string) (*Action, error) {
	var errs ErrorList

	action := &Action{TimeoutSeconds: ad.TimeoutSeconds}
	if ad.Command == "" {
		errs.Add(Errorf(KindSchemaViolation, path+".command", "command is required"))
	} else {
		command, err := expr.ParseFormatString(ad.Command)
		if err != nil {
			errs.Add(WrapError(KindSchemaViolation, path+".command", err))
		}
		action.Command = command
	}
	for i, arg := range ad.Args {
		fs, err := expr.ParseFormatString(arg)
		if err != nil {
			errs.Add(WrapError(KindSchemaViolation, fmt.Sprintf("%s.args[%d]", path, i), err))
			continue
		}
		action.Args = append(action.Args, fs)
	}
	return action, errs.AsError()
}

func buildEmbeddedFiles(defs []embeddedFileDef, path string) ([]EmbeddedFile, error) {
	var errs ErrorList
	var files []EmbeddedFile
	for i, fd := range defs {
		filePath := fmt.Sprintf("%s[%d]", path, i)
		file := EmbeddedFile{
			Name:     fd.Name,
			Type:     fd.Type,
			Filename: fd.Filename,
			Runnable: fd.Runnable,
		}
		if fd.Name == "" {
			errs.Add(WrapError(KindSchemaViolation, filePath+".name", ErrNameRequired))
		}
		data, err := expr.ParseFormatString(fd.Data)
		if err != nil {
			errs.Add(WrapError(KindSchemaViolation, filePath+".data", err))
			continue
		}
		file.Data = data
		files = append(files, file)
	}
	return files, errs.AsError()
}

func buildJobEnvironments(def *templateDef, tmpl *JobTemplate) error {
	var errs ErrorList
	for i, ed := range def.JobEnvironments {
		env, err := buildEnvironment(ed, fmt.Sprintf("jobEnvironments[%d]", i))
		errs.Add(err)
		if env != nil {
			tmpl.JobEnvironments = append(tmpl.JobEnvironments, *env)
		}
	}
	return errs.AsError()
}

func buildEnvironment(ed environmentDef, path string) (*Environment, error) {
	var errs ErrorList

	env := &Environment{Name: ed.Name, Description: ed.Description}
	if ed.Name == "" {
		errs.Add(WrapError(KindSchemaViolation, path+".name", ErrNameRequired))
	}
	if ed.Script == nil && len(ed.Variables) == 0 {
		errs.Add(WrapError(KindSchemaViolation, path, ErrScriptOrVariables))
	}

	if ed.Script != nil {
		script := &EnvironmentScript{}
		if ed.Script.Actions.OnEnter != nil {
			onEnter, err := buildAction(*ed.Script.Actions.OnEnter, path+".script.actions.onEnter")
			errs.Add(err)
			script.Actions.OnEnter = onEnter
		}
		if ed.Script.Actions.OnExit != nil {
			onExit, err := buildAction(*ed.Script.Actions.OnExit, path+".script.actions.onExit")
			errs.Add(err)
			script.Actions.OnExit = onExit
		}
		files, err := buildEmbeddedFiles(ed.Script.EmbeddedFiles, path+".script.embeddedFiles")
		errs.Add(err)
		script.EmbeddedFiles = files
		env.Script = script
	}

	if len(ed.Variables) > 0 {
		env.Variables = make(map[string]*expr.FormatString, len(ed.Variables))
		for name, value := range ed.Variables {
			fs, err := expr.ParseFormatString(value)
			if err != nil {
				errs.Add(WrapError(KindSchemaViolation, path+".variables."+name, err))
				continue
			}
			env.Variables[name] = fs
		}
	}

	return env, errs.AsError()
}

// validateStepDependencies checks that every dependsOn target names a
// declared step, that no step depends on itself, and that the dependency
// relation is acyclic.
func validateStepDependencies(tmpl *JobTemplate) error {
	var errs ErrorList

	names := make(map[string]bool, len(tmpl.Steps))
	var declared []string
	for _, step := range tmpl.Steps {
		names[step.Name] = true
		declared = append(declared, step.Name)
	}

	for i, step := range tmpl.Steps {
		for j, dep := range step.Dependencies {
			path := fmt.Sprintf("steps[%d].dependencies[%d].dependsOn", i, j)
			if dep.DependsOn == step.Name {
				errs.Add(Errorf(KindDependencyGraph, path, "%w: %s", ErrSelfDependency, step.Name))
				continue
			}
			if !names[dep.DependsOn] {
				errs.Add(Errorf(KindDependencyGraph, path, "%w: %q%s",
					ErrUnknownDependency, dep.DependsOn, expr.Suggestion(declared, dep.DependsOn)))
			}
		}
	}
	if errs.HasErrors() {
		return errs.AsError()
	}

	if cycle := findDependencyCycle(tmpl.Steps); cycle != nil {
		return Errorf(KindDependencyGraph, "steps", "%w: %s",
			ErrDependencyCycle, joinCycle(cycle))
	}
	return nil
}

// findDependencyCycle runs a depth-first traversal with an in-path marker
// set and returns the step names along the first cycle found, or nil.
func findDependencyCycle(steps []StepTemplate) []string {
	dependsOn := make(map[string][]string, len(steps))
	var order []string
	for _, step := range steps {
		order = append(order, step.Name)
		for _, dep := range step.Dependencies {
			dependsOn[step.Name] = append(dependsOn[step.Name], dep.DependsOn)
		}
	}

	const (
		unvisited = 0
		inPath    = 1
		done      = 2
	)
	state := make(map[string]int, len(steps))
	var path []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		state[name] = inPath
		path = append(path, name)
		for _, dep := range dependsOn[name] {
			switch state[dep] {
			case inPath:
				// Trim the path back to the first occurrence of dep to
				// report only the cycle itself.
				start := 0
				for i, n := range path {
					if n == dep {
						start = i
						break
					}
				}
				cycle = append(append([]string{}, path[start:]...), dep)
				return true
			case unvisited:
				if visit(dep) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		state[name] = done
		return false
	}

	for _, name := range order {
		if state[name] == unvisited && visit(name) {
			return cycle
		}
	}
	return nil
}

func joinCycle(cycle []string) string {
	out := ""
	for i, name := range cycle {
		if i > 0 {
			out += " -> "
		}
		out += name
	}
	return out
}

// validateEnvironmentNames checks that environment names are unique at the
// job level, unique within each step, and that step environments do not
// shadow job environments.
func validateEnvironmentNames(tmpl *JobTemplate) error {
	var errs ErrorList

	jobEnvNames := make(map[string]bool)
	for i, env := range tmpl.JobEnvironments {
		if jobEnvNames[env.Name] {
			errs.Add(Errorf(KindSchemaViolation, fmt.Sprintf("jobEnvironments[%d].name", i),
				"%w: %s", ErrEnvNameDuplicate, env.Name))
		}
		jobEnvNames[env.Name] = true
	}

	for i, step := range tmpl.Steps {
		stepEnvNames := make(map[string]bool)
		for j, env := range step.StepEnvironments {
			path := fmt.Sprintf("steps[%d].stepEnvironments[%d].name", i, j)
			if stepEnvNames[env.Name] {
				errs.Add(Errorf(KindSchemaViolation, path, "%w: %s", ErrEnvNameDuplicate, env.Name))
			}
			stepEnvNames[env.Name] = true
			if jobEnvNames[env.Name] {
				errs.Add(Errorf(KindSchemaViolation, path,
					"environment name %s must differ from the job-level environment names", env.Name))
			}
		}
	}
	return errs.AsError()
}

func anyToString(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}

func anyToDecimal(v any) (*decimal.Decimal, error) {
	if v == nil {
		return nil, nil
	}
	text, ok := anyToString(v)
	if !ok {
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrNotANumber, text)
	}
	return &d, nil
}

// prefixErrorPath prepends a document path segment to every *Error in err.
func prefixErrorPath(err error, prefix string) error {
	switch e := err.(type) {
	case nil:
		return nil
	case *Error:
		path := prefix
		if e.Path != "" {
			path = prefix + "." + e.Path
		}
		return &Error{Kind: e.Kind, Path: path, Err: e.Err}
	case ErrorList:
		out := make(ErrorList, 0, len(e))
		for _, inner := range e {
			out = append(out, prefixErrorPath(inner, prefix))
		}
		return out
	default:
		return &Error{Kind: KindSchemaViolation, Path: prefix, Err: err}
	}
}
