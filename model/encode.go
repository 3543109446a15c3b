package model

import (
	"encoding/json"
)

// Encoding back to generic object trees. The output of encoding a decoded
// template decodes to an equal template; optional fields that were absent
// stay absent rather than appearing with zero values.

// ModelToObject encodes a JobTemplate, EnvironmentTemplate, or Job as a
// generic object tree suitable for JSON or YAML serialization.
func ModelToObject(model any) (map[string]any, error) {
	switch m := model.(type) {
	case *JobTemplate:
		return encodeJobTemplate(m), nil
	case *EnvironmentTemplate:
		return encodeEnvironmentTemplate(m), nil
	case *Job:
		return encodeJob(m), nil
	default:
		return nil, Errorf(KindSchemaViolation, "", "cannot encode a %T", model)
	}
}

func encodeJobTemplate(t *JobTemplate) map[string]any {
	obj := map[string]any{
		"specificationVersion": string(t.SpecificationVersion),
		"name":                 t.Name.String(),
	}
	setIfPresent(obj, "description", t.Description)

	if len(t.ParameterDefinitions) > 0 {
		obj["parameterDefinitions"] = encodeParameterDefinitions(t.ParameterDefinitions)
	}
	steps := make([]any, 0, len(t.Steps))
	for _, step := range t.Steps {
		steps = append(steps, encodeStepTemplate(step))
	}
	obj["steps"] = steps

	if len(t.JobEnvironments) > 0 {
		envs := make([]any, 0, len(t.JobEnvironments))
		for _, env := range t.JobEnvironments {
			envs = append(envs, encodeEnvironment(env))
		}
		obj["jobEnvironments"] = envs
	}
	return obj
}

func encodeEnvironmentTemplate(t *EnvironmentTemplate) map[string]any {
	obj := map[string]any{
		"specificationVersion": string(t.SpecificationVersion),
		"environment":          encodeEnvironment(t.Environment),
	}
	if len(t.ParameterDefinitions) > 0 {
		obj["parameterDefinitions"] = encodeParameterDefinitions(t.ParameterDefinitions)
	}
	return obj
}

func encodeJob(j *Job) map[string]any {
	obj := map[string]any{"name": j.Name}
	setIfPresent(obj, "description", j.Description)

	if len(j.Parameters) > 0 {
		params := make(map[string]any, len(j.Parameters))
		for name, value := range j.Parameters {
			params[name] = map[string]any{
				"type":  string(value.Type),
				"value": typedScalar(value.Type, value.Value),
			}
		}
		obj["parameters"] = params
	}

	steps := make([]any, 0, len(j.Steps))
	for _, step := range j.Steps {
		steps = append(steps, encodeStep(step))
	}
	obj["steps"] = steps

	if len(j.Environments) > 0 {
		envs := make([]any, 0, len(j.Environments))
		for _, env := range j.Environments {
			envs = append(envs, encodeEnvironment(env))
		}
		obj["environments"] = envs
	}
	return obj
}

func encodeParameterDefinitions(defs []JobParameterDefinition) []any {
	out := make([]any, 0, len(defs))
	for _, def := range defs {
		obj := map[string]any{
			"name": def.Name,
			"type": string(def.Type),
		}
		setIfPresent(obj, "description", def.Description)
		if def.Default != nil {
			obj["default"] = typedScalar(def.Type, *def.Default)
		}
		if len(def.AllowedValues) > 0 {
			allowed := make([]any, 0, len(def.AllowedValues))
			for _, v := range def.AllowedValues {
				allowed = append(allowed, typedScalar(def.Type, v))
			}
			obj["allowedValues"] = allowed
		}
		if def.MinValue != nil {
			obj["minValue"] = json.Number(def.MinValue.String())
		}
		if def.MaxValue != nil {
			obj["maxValue"] = json.Number(def.MaxValue.String())
		}
		if def.MinLength != nil {
			obj["minLength"] = *def.MinLength
		}
		if def.MaxLength != nil {
			obj["maxLength"] = *def.MaxLength
		}
		setIfPresent(obj, "objectType", string(def.ObjectType))
		setIfPresent(obj, "dataFlow", string(def.DataFlow))
		out = append(out, obj)
	}
	return out
}

func encodeStepTemplate(step StepTemplate) map[string]any {
	obj := map[string]any{"name": step.Name}
	setIfPresent(obj, "description", step.Description)
	obj["script"] = encodeStepScript(step.Script)

	if step.HostRequirements != nil {
		obj["hostRequirements"] = encodeHostRequirementsTemplate(step.HostRequirements)
	}
	if len(step.StepEnvironments) > 0 {
		envs := make([]any, 0, len(step.StepEnvironments))
		for _, env := range step.StepEnvironments {
			envs = append(envs, encodeEnvironment(env))
		}
		obj["stepEnvironments"] = envs
	}
	if step.ParameterSpace != nil {
		obj["parameterSpace"] = encodeParameterSpaceDefinition(step.ParameterSpace)
	}
	if len(step.Dependencies) > 0 {
		obj["dependencies"] = encodeDependencies(step.Dependencies)
	}
	return obj
}

func encodeStep(step Step) map[string]any {
	obj := map[string]any{"name": step.Name}
	setIfPresent(obj, "description", step.Description)
	obj["script"] = encodeStepScript(step.Script)

	if step.HostRequirements != nil {
		obj["hostRequirements"] = encodeHostRequirements(step.HostRequirements)
	}
	if len(step.StepEnvironments) > 0 {
		envs := make([]any, 0, len(step.StepEnvironments))
		for _, env := range step.StepEnvironments {
			envs = append(envs, encodeEnvironment(env))
		}
		obj["stepEnvironments"] = envs
	}
	if step.ParameterSpace != nil {
		obj["parameterSpace"] = encodeParameterSpace(step.ParameterSpace)
	}
	if len(step.Dependencies) > 0 {
		obj["dependencies"] = encodeDependencies(step.Dependencies)
	}
	return obj
}

func encodeHostRequirementsTemplate(req *HostRequirementsTemplate) map[string]any {
	obj := map[string]any{}
	if len(req.Amounts) > 0 {
		amounts := make([]any, 0, len(req.Amounts))
		for _, amount := range req.Amounts {
			a := map[string]any{"name": amount.Name.String()}
			if amount.Min != nil {
				a["min"] = json.Number(amount.Min.String())
			}
			if amount.Max != nil {
				a["max"] = json.Number(amount.Max.String())
			}
			amounts = append(amounts, a)
		}
		obj["amounts"] = amounts
	}
	if len(req.Attributes) > 0 {
		attrs := make([]any, 0, len(req.Attributes))
		for _, attr := range req.Attributes {
			a := map[string]any{"name": attr.Name.String()}
			if len(attr.AnyOf) > 0 {
				values := make([]any, 0, len(attr.AnyOf))
				for _, v := range attr.AnyOf {
					values = append(values, v.String())
				}
				a["anyOf"] = values
			}
			if len(attr.AllOf) > 0 {
				values := make([]any, 0, len(attr.AllOf))
				for _, v := range attr.AllOf {
					values = append(values, v.String())
				}
				a["allOf"] = values
			}
			attrs = append(attrs, a)
		}
		obj["attributes"] = attrs
	}
	return obj
}

func encodeHostRequirements(req *HostRequirements) map[string]any {
	obj := map[string]any{}
	if len(req.Amounts) > 0 {
		amounts := make([]any, 0, len(req.Amounts))
		for _, amount := range req.Amounts {
			a := map[string]any{"name": amount.Name}
			if amount.Min != nil {
				a["min"] = json.Number(amount.Min.String())
			}
			if amount.Max != nil {
				a["max"] = json.Number(amount.Max.String())
			}
			amounts = append(amounts, a)
		}
		obj["amounts"] = amounts
	}
	if len(req.Attributes) > 0 {
		attrs := make([]any, 0, len(req.Attributes))
		for _, attr := range req.Attributes {
			a := map[string]any{"name": attr.Name}
			if len(attr.AnyOf) > 0 {
				values := make([]any, 0, len(attr.AnyOf))
				for _, v := range attr.AnyOf {
					values = append(values, v)
				}
				a["anyOf"] = values
			}
			if len(attr.AllOf) > 0 {
				values := make([]any, 0, len(attr.AllOf))
				for _, v := range attr.AllOf {
					values = append(values, v)
				}
				a["allOf"] = values
			}
			attrs = append(attrs, a)
		}
		obj["attributes"] = attrs
	}
	return obj
}

func encodeDependencies(deps []StepDependency) []any {
	out := make([]any, 0, len(deps))
	for _, dep := range deps {
		obj := map[string]any{"dependsOn": dep.DependsOn}
		setIfPresent(obj, "association", dep.Association)
		out = append(out, obj)
	}
	return out
}

func encodeParameterSpaceDefinition(space *StepParameterSpaceDefinition) map[string]any {
	params := make([]any, 0, len(space.TaskParameterDefinitions))
	for _, param := range space.TaskParameterDefinitions {
		obj := map[string]any{
			"name": param.Name,
			"type": string(param.Type),
		}
		if param.RangeExpr != nil {
			obj["range"] = param.RangeExpr.String()
		} else {
			items := make([]any, 0, len(param.RangeList))
			for _, item := range param.RangeList {
				if item.HasReferences() {
					items = append(items, item.String())
				} else {
					items = append(items, typedScalar(param.Type, item.String()))
				}
			}
			obj["range"] = items
		}
		params = append(params, obj)
	}
	obj := map[string]any{"taskParameterDefinitions": params}
	if space.Combination != nil {
		obj["combination"] = space.Combination.String()
	}
	return obj
}

func encodeParameterSpace(space *StepParameterSpace) map[string]any {
	params := make([]any, 0, len(space.TaskParameterDefinitions))
	for _, param := range space.TaskParameterDefinitions {
		obj := map[string]any{
			"name": param.Name,
			"type": string(param.Type),
		}
		if param.RangeExpr != nil {
			obj["range"] = param.RangeExpr.String()
		} else {
			items := make([]any, 0, len(param.Range))
			for _, item := range param.Range {
				items = append(items, typedScalar(param.Type, item))
			}
			obj["range"] = items
		}
		params = append(params, obj)
	}
	obj := map[string]any{"taskParameterDefinitions": params}
	if space.Combination != nil {
		obj["combination"] = space.Combination.String()
	}
	return obj
}

func encodeStepScript(script StepScript) map[string]any {
	obj := map[string]any{
		"actions": map[string]any{
			"onRun": encodeAction(script.Actions.OnRun),
		},
	}
	if len(script.EmbeddedFiles) > 0 {
		obj["embeddedFiles"] = encodeEmbeddedFiles(script.EmbeddedFiles)
	}
	return obj
}

func encodeEnvironment(env Environment) map[string]any {
	obj := map[string]any{"name": env.Name}
	setIfPresent(obj, "description", env.Description)

	if env.Script != nil {
		actions := map[string]any{}
		if env.Script.Actions.OnEnter != nil {
			actions["onEnter"] = encodeAction(*env.Script.Actions.OnEnter)
		}
		if env.Script.Actions.OnExit != nil {
			actions["onExit"] = encodeAction(*env.Script.Actions.OnExit)
		}
		script := map[string]any{"actions": actions}
		if len(env.Script.EmbeddedFiles) > 0 {
			script["embeddedFiles"] = encodeEmbeddedFiles(env.Script.EmbeddedFiles)
		}
		obj["script"] = script
	}

	if len(env.Variables) > 0 {
		variables := make(map[string]any, len(env.Variables))
		for name, value := range env.Variables {
			variables[name] = value.String()
		}
		obj["variables"] = variables
	}
	return obj
}

func encodeAction(action Action) map[string]any {
	obj := map[string]any{"command": action.Command.String()}
	if len(action.Args) > 0 {
		args := make([]any, 0, len(action.Args))
		for _, arg := range action.Args {
			args = append(args, arg.String())
		}
		obj["args"] = args
	}
	if action.TimeoutSeconds > 0 {
		obj["timeoutSeconds"] = action.TimeoutSeconds
	}
	return obj
}

func encodeEmbeddedFiles(files []EmbeddedFile) []any {
	out := make([]any, 0, len(files))
	for _, file := range files {
		obj := map[string]any{
			"name": file.Name,
			"data": file.Data.String(),
		}
		setIfPresent(obj, "type", file.Type)
		setIfPresent(obj, "filename", file.Filename)
		if file.Runnable {
			obj["runnable"] = true
		}
		out = append(out, obj)
	}
	return out
}

// typedScalar renders a textual value as the scalar its type implies so
// that encoding preserves the document's original shape. The text is used
// verbatim for numbers, keeping "1.50" as 1.50 rather than 1.5.
func typedScalar(t ParameterValueType, text string) any {
	switch t {
	case ParameterTypeInt, ParameterTypeFloat:
		return json.Number(text)
	default:
		return text
	}
}

func setIfPresent(obj map[string]any, key, value string) {
	if value != "" {
		obj[key] = value
	}
}
