package model

import (
	"fmt"

	"dario.cat/mergo"
)

// MergeJobParameterDefinitions consolidates the parameter definitions of a
// job template and the environment templates applied to it into a single
// definition list. Environment template definitions are folded in first, in
// the order given, then the job template's own definitions; the output
// preserves first-seen declaration order.
//
// Same-name definitions merge by constraint intersection: numeric and
// length bounds tighten toward each other, allowedValues intersect, and
// anything that cannot be reconciled (differing types, differing defaults,
// an empty allowedValues intersection, an unsatisfiable bound pair) is a
// parameter merge conflict naming both sources.
func MergeJobParameterDefinitions(jobTemplate *JobTemplate, envTemplates ...*EnvironmentTemplate) ([]JobParameterDefinition, error) {
	type sourced struct {
		def    JobParameterDefinition
		source string
	}

	var errs ErrorList
	var order []string
	merged := make(map[string]*sourced)

	fold := func(defs []JobParameterDefinition, source string) {
		for _, def := range defs {
			prior, ok := merged[def.Name]
			if !ok {
				order = append(order, def.Name)
				merged[def.Name] = &sourced{def: def, source: source}
				continue
			}
			combined, err := mergeDefinitions(prior.def, def, prior.source, source)
			if err != nil {
				errs.Add(err)
				continue
			}
			prior.def = combined
			prior.source = prior.source + ", " + source
		}
	}

	for i, env := range envTemplates {
		fold(env.ParameterDefinitions, fmt.Sprintf("environment template %d", i+1))
	}
	if jobTemplate != nil {
		fold(jobTemplate.ParameterDefinitions, "job template")
	}

	if errs.HasErrors() {
		return nil, errs.AsError()
	}

	out := make([]JobParameterDefinition, 0, len(order))
	for _, name := range order {
		out = append(out, merged[name].def)
	}
	return out, nil
}

// mergeDefinitions combines two same-name definitions, a being the earlier
// source.
func mergeDefinitions(a, b JobParameterDefinition, sourceA, sourceB string) (JobParameterDefinition, error) {
	var errs ErrorList
	conflict := func(format string, args ...any) {
		errs.Add(Errorf(KindParameterMergeConflict, a.Name,
			"%s (between %s and %s)", fmt.Sprintf(format, args...), sourceA, sourceB))
	}

	if a.Type != b.Type {
		conflict("parameter types differ: %s vs %s", a.Type, b.Type)
		return a, errs.AsError()
	}
	if a.Default != nil && b.Default != nil && !a.valuesEqual(*a.Default, *b.Default) {
		conflict("defaults differ: %q vs %q", *a.Default, *b.Default)
	}
	if a.ObjectType != "" && b.ObjectType != "" && a.ObjectType != b.ObjectType {
		conflict("objectType differs: %s vs %s", a.ObjectType, b.ObjectType)
	}
	if a.DataFlow != "" && b.DataFlow != "" && a.DataFlow != b.DataFlow {
		conflict("dataFlow differs: %s vs %s", a.DataFlow, b.DataFlow)
	}

	out := a
	if len(a.AllowedValues) > 0 && len(b.AllowedValues) > 0 {
		var intersection []string
		for _, v := range a.AllowedValues {
			for _, w := range b.AllowedValues {
				if a.valuesEqual(v, w) {
					intersection = append(intersection, v)
					break
				}
			}
		}
		if len(intersection) == 0 {
			conflict("allowedValues have no value in common")
		}
		out.AllowedValues = intersection
	}

	// Bounds tighten toward each other; an absent bound adopts the other
	// source's.
	if a.MinValue != nil && b.MinValue != nil && b.MinValue.GreaterThan(*a.MinValue) {
		out.MinValue = b.MinValue
	}
	if a.MaxValue != nil && b.MaxValue != nil && b.MaxValue.LessThan(*a.MaxValue) {
		out.MaxValue = b.MaxValue
	}
	if a.MinLength != nil && b.MinLength != nil && *b.MinLength > *a.MinLength {
		out.MinLength = b.MinLength
	}
	if a.MaxLength != nil && b.MaxLength != nil && *b.MaxLength < *a.MaxLength {
		out.MaxLength = b.MaxLength
	}

	// Fold whatever the earlier source left unset (description, default,
	// absent bounds, path attributes) from the later one.
	if err := mergo.Merge(&out, b); err != nil {
		return a, WrapError(KindParameterMergeConflict, a.Name, err)
	}

	if out.MinValue != nil && out.MaxValue != nil && out.MinValue.GreaterThan(*out.MaxValue) {
		conflict("merged bounds are unsatisfiable: minValue %s > maxValue %s", out.MinValue, out.MaxValue)
	}
	if out.MinLength != nil && out.MaxLength != nil && *out.MinLength > *out.MaxLength {
		conflict("merged bounds are unsatisfiable: minLength %d > maxLength %d", *out.MinLength, *out.MaxLength)
	}
	if out.Default != nil {
		if err := out.CheckValue(*out.Default); err != nil {
			conflict("merged constraints reject the default %q: %v", *out.Default, err)
		}
	}

	if errs.HasErrors() {
		return a, errs.AsError()
	}
	return out, nil
}
