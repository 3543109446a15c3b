package model

import (
	"path/filepath"

	"github.com/openjobspec/openjd/expr"
)

// PreprocessJobParameters binds caller-supplied parameter values against the
// given definitions, producing the value set that CreateJob consumes.
//
// Every definition must end up with a value: the supplied one if present,
// the declared default otherwise. Supplied names that match no definition,
// values that fail type coercion or a declared constraint, and required
// parameters left unbound are all reported together as one error list.
//
// Relative PATH values are made absolute before constraint checks: a
// supplied value resolves against currentWorkingDir, a default against
// templateDir. A relative value with no usable base directory is a path
// resolution failure.
func PreprocessJobParameters(
	defs []JobParameterDefinition,
	values map[string]string,
	templateDir string,
	currentWorkingDir string,
) (JobParameterValues, error) {
	var errs ErrorList

	declared := make([]string, 0, len(defs))
	byName := make(map[string]*JobParameterDefinition, len(defs))
	for i := range defs {
		declared = append(declared, defs[i].Name)
		byName[defs[i].Name] = &defs[i]
	}

	for name := range values {
		if _, ok := byName[name]; !ok {
			errs.Add(Errorf(KindParameterBinding, name,
				"no parameter named %q is defined%s", name, expr.Suggestion(declared, name)))
		}
	}

	bound := make(JobParameterValues, len(defs))
	for _, def := range defs {
		raw, supplied := values[def.Name]
		if !supplied {
			if def.Default == nil {
				errs.Add(WrapError(KindParameterBinding, def.Name, ErrMissingValue))
				continue
			}
			raw = *def.Default
		}

		if def.Type == ParameterTypePath && raw != "" && !filepath.IsAbs(raw) {
			base := currentWorkingDir
			if !supplied {
				base = templateDir
			}
			if base == "" {
				errs.Add(Errorf(KindPathResolution, def.Name,
					"relative path %q cannot be resolved: no base directory available", raw))
				continue
			}
			raw = filepath.Clean(filepath.Join(base, raw))
		}

		value, err := def.Coerce(raw)
		if err != nil {
			errs.Add(WrapError(KindParameterBinding, def.Name, err))
			continue
		}
		if err := def.CheckValue(value.Value); err != nil {
			errs.Add(WrapError(KindParameterBinding, def.Name, err))
			continue
		}
		bound[def.Name] = value
	}

	if errs.HasErrors() {
		return nil, errs.AsError()
	}
	return bound, nil
}

// JobParameterSymbolTable builds the job-scope symbol table from bound
// parameter values: Param.X and RawParam.X for each parameter. Path mapping
// between submitter and worker filesystems happens outside this library, so
// both prefixes bind the same value here.
func JobParameterSymbolTable(values JobParameterValues) SymbolTable {
	symtab := make(SymbolTable, 2*len(values))
	for name, value := range values {
		symtab[JobParameterPrefix+"."+name] = value.Value
		symtab[JobParameterRawPrefix+"."+name] = value.Value
	}
	return symtab
}
