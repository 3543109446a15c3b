package model_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openjobspec/openjd/model"
)

func decodeYAML(t *testing.T, doc string) (*model.JobTemplate, error) {
	t.Helper()
	obj, err := model.DocumentToObject([]byte(doc), model.DocumentTypeYAML)
	require.NoError(t, err)
	return model.DecodeJobTemplate(obj)
}

func TestDocumentToObject(t *testing.T) {
	t.Run("JSON", func(t *testing.T) {
		obj, err := model.DocumentToObject([]byte(`{"a": 1}`), model.DocumentTypeJSON)
		require.NoError(t, err)
		assert.Contains(t, obj, "a")
	})
	t.Run("YAML", func(t *testing.T) {
		obj, err := model.DocumentToObject([]byte("a: 1\n"), model.DocumentTypeYAML)
		require.NoError(t, err)
		assert.Contains(t, obj, "a")
	})
	t.Run("NotAnObject", func(t *testing.T) {
		_, err := model.DocumentToObject([]byte(`[1, 2]`), model.DocumentTypeJSON)
		assert.ErrorIs(t, err, model.ErrNotAnObject)
	})
	t.Run("YAMLSequence", func(t *testing.T) {
		_, err := model.DocumentToObject([]byte("- 1\n- 2\n"), model.DocumentTypeYAML)
		assert.ErrorIs(t, err, model.ErrNotAnObject)
	})
	t.Run("JSONScalar", func(t *testing.T) {
		_, err := model.DocumentToObject([]byte(`"hello"`), model.DocumentTypeJSON)
		assert.ErrorIs(t, err, model.ErrNotAnObject)
	})
	t.Run("EmptyYAML", func(t *testing.T) {
		_, err := model.DocumentToObject(nil, model.DocumentTypeYAML)
		assert.ErrorIs(t, err, model.ErrNotAnObject)
	})
	t.Run("UnknownType", func(t *testing.T) {
		_, err := model.DocumentToObject([]byte(`{}`), "XML")
		assert.Error(t, err)
	})
}

func TestDecodeJobTemplate(t *testing.T) {
	const doc = `
specificationVersion: jobtemplate-2023-09
name: "Render {{Param.Scene}}"
parameterDefinitions:
  - name: Scene
    type: STRING
  - name: Frames
    type: STRING
    default: "1-100"
steps:
  - name: Render
    parameterSpace:
      taskParameterDefinitions:
        - name: Frame
          type: INT
          range: "{{Param.Frames}}"
    script:
      actions:
        onRun:
          command: render
          args: ["--scene", "{{Param.Scene}}", "--frame", "{{Task.Param.Frame}}"]
  - name: Composite
    dependencies:
      - dependsOn: Render
    script:
      actions:
        onRun:
          command: composite
          args: ["{{Param.Scene}}"]
jobEnvironments:
  - name: Renderer
    variables:
      SCENE_NAME: "{{Param.Scene}}"
`
	tmpl, err := decodeYAML(t, doc)
	require.NoError(t, err)

	assert.Equal(t, model.VersionJobTemplate2023_09, tmpl.SpecificationVersion)
	assert.Equal(t, "Render {{Param.Scene}}", tmpl.Name.String())
	require.Len(t, tmpl.ParameterDefinitions, 2)
	assert.Equal(t, "Scene", tmpl.ParameterDefinitions[0].Name)
	assert.Equal(t, model.ParameterTypeString, tmpl.ParameterDefinitions[0].Type)
	require.NotNil(t, tmpl.ParameterDefinitions[1].Default)
	assert.Equal(t, "1-100", *tmpl.ParameterDefinitions[1].Default)

	require.Len(t, tmpl.Steps, 2)
	render := tmpl.Steps[0]
	assert.Equal(t, "Render", render.Name)
	require.NotNil(t, render.ParameterSpace)
	require.Len(t, render.ParameterSpace.TaskParameterDefinitions, 1)
	frame := render.ParameterSpace.TaskParameterDefinitions[0]
	assert.Equal(t, "Frame", frame.Name)
	require.NotNil(t, frame.RangeExpr)
	assert.Equal(t, "{{Param.Frames}}", frame.RangeExpr.String())
	require.NotNil(t, render.ParameterSpace.Combination, "implicit combination is filled in")
	assert.Equal(t, []string{"Frame"}, render.ParameterSpace.Combination.Names())

	composite := tmpl.Steps[1]
	require.Len(t, composite.Dependencies, 1)
	assert.Equal(t, "Render", composite.Dependencies[0].DependsOn)

	require.Len(t, tmpl.JobEnvironments, 1)
	assert.Equal(t, "Renderer", tmpl.JobEnvironments[0].Name)
}

func TestDecodeJobTemplateErrors(t *testing.T) {
	t.Run("WrongVersion", func(t *testing.T) {
		_, err := decodeYAML(t, "specificationVersion: jobtemplate-2099-01\nname: x\nsteps: []\n")
		require.Error(t, err)
		assertKind(t, err, model.KindSchemaViolation)
	})
	t.Run("UnknownField", func(t *testing.T) {
		_, err := decodeYAML(t, `
specificationVersion: jobtemplate-2023-09
name: x
notAField: true
steps:
  - name: A
    script: {actions: {onRun: {command: echo}}}
`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "notAField")
	})
	t.Run("EnvironmentActionUnderStepScript", func(t *testing.T) {
		_, err := decodeYAML(t, `
specificationVersion: jobtemplate-2023-09
name: x
steps:
  - name: A
    script:
      actions:
        onRun: {command: echo}
        onEnter: {command: echo}
`)
		require.Error(t, err)
		assertKind(t, err, model.KindSchemaViolation)
		assert.Contains(t, err.Error(), "onEnter")
	})
	t.Run("RunActionUnderEnvironmentScript", func(t *testing.T) {
		_, err := decodeYAML(t, `
specificationVersion: jobtemplate-2023-09
name: x
steps:
  - name: A
    script: {actions: {onRun: {command: echo}}}
jobEnvironments:
  - name: Env
    script:
      actions:
        onRun: {command: echo}
`)
		require.Error(t, err)
		assertKind(t, err, model.KindSchemaViolation)
		assert.Contains(t, err.Error(), "onRun")
	})
	t.Run("MissingName", func(t *testing.T) {
		_, err := decodeYAML(t, `
specificationVersion: jobtemplate-2023-09
steps:
  - name: A
    script: {actions: {onRun: {command: echo}}}
`)
		assert.ErrorIs(t, err, model.ErrNameRequired)
	})
	t.Run("NoSteps", func(t *testing.T) {
		_, err := decodeYAML(t, "specificationVersion: jobtemplate-2023-09\nname: x\n")
		assert.ErrorIs(t, err, model.ErrStepsRequired)
	})
	t.Run("DuplicateStepNames", func(t *testing.T) {
		_, err := decodeYAML(t, `
specificationVersion: jobtemplate-2023-09
name: x
steps:
  - name: A
    script: {actions: {onRun: {command: echo}}}
  - name: A
    script: {actions: {onRun: {command: echo}}}
`)
		assert.ErrorIs(t, err, model.ErrStepNameDuplicate)
	})
	t.Run("UnknownDependencyWithSuggestion", func(t *testing.T) {
		_, err := decodeYAML(t, `
specificationVersion: jobtemplate-2023-09
name: x
steps:
  - name: Render
    script: {actions: {onRun: {command: echo}}}
  - name: Composite
    dependencies:
      - dependsOn: Rendr
    script: {actions: {onRun: {command: echo}}}
`)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrUnknownDependency)
		assert.Contains(t, err.Error(), "did you mean 'Render'?")
		assertKind(t, err, model.KindDependencyGraph)
	})
	t.Run("SelfDependency", func(t *testing.T) {
		_, err := decodeYAML(t, `
specificationVersion: jobtemplate-2023-09
name: x
steps:
  - name: A
    dependencies:
      - dependsOn: A
    script: {actions: {onRun: {command: echo}}}
`)
		assert.ErrorIs(t, err, model.ErrSelfDependency)
	})
	t.Run("DependencyCycle", func(t *testing.T) {
		_, err := decodeYAML(t, `
specificationVersion: jobtemplate-2023-09
name: x
steps:
  - name: A
    dependencies: [{dependsOn: C}]
    script: {actions: {onRun: {command: echo}}}
  - name: B
    dependencies: [{dependsOn: A}]
    script: {actions: {onRun: {command: echo}}}
  - name: C
    dependencies: [{dependsOn: B}]
    script: {actions: {onRun: {command: echo}}}
`)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrDependencyCycle)
		assertKind(t, err, model.KindDependencyGraph)
	})
	t.Run("UnknownSymbolWithSuggestion", func(t *testing.T) {
		_, err := decodeYAML(t, `
specificationVersion: jobtemplate-2023-09
name: "{{Param.Scne}}"
parameterDefinitions:
  - name: Scene
    type: STRING
steps:
  - name: A
    script: {actions: {onRun: {command: echo}}}
`)
		require.Error(t, err)
		assertKind(t, err, model.KindSymbolResolution)
		assert.Contains(t, err.Error(), "did you mean 'Param.Scene'?")
	})
	t.Run("TaskScopeSymbolOutsideStepScript", func(t *testing.T) {
		_, err := decodeYAML(t, `
specificationVersion: jobtemplate-2023-09
name: "{{Task.Param.Frame}}"
steps:
  - name: A
    parameterSpace:
      taskParameterDefinitions:
        - name: Frame
          type: INT
          range: "1-10"
    script: {actions: {onRun: {command: echo}}}
`)
		require.Error(t, err)
		assertKind(t, err, model.KindSymbolResolution)
	})
	t.Run("CombinationMissingParameter", func(t *testing.T) {
		_, err := decodeYAML(t, `
specificationVersion: jobtemplate-2023-09
name: x
steps:
  - name: A
    parameterSpace:
      taskParameterDefinitions:
        - name: Foo
          type: INT
          range: "1-5"
        - name: Bar
          type: INT
          range: "1-5"
      combination: Foo
    script: {actions: {onRun: {command: echo}}}
`)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrCombinationCoverage)
		assertKind(t, err, model.KindCombination)
	})
	t.Run("StaticRangeValidatedAtDecode", func(t *testing.T) {
		_, err := decodeYAML(t, `
specificationVersion: jobtemplate-2023-09
name: x
steps:
  - name: A
    parameterSpace:
      taskParameterDefinitions:
        - name: Frame
          type: INT
          range: "1-5:0"
    script: {actions: {onRun: {command: echo}}}
`)
		require.Error(t, err)
		assertKind(t, err, model.KindRangeExpression)
	})
	t.Run("AllViolationsReported", func(t *testing.T) {
		_, err := decodeYAML(t, `
specificationVersion: jobtemplate-2023-09
parameterDefinitions:
  - name: 1Bad
    type: STRING
  - name: Ok
    type: NOPE
steps: []
`)
		require.Error(t, err)
		msg := err.Error()
		assert.Contains(t, msg, "name is required")
		assert.Contains(t, msg, "1Bad")
		assert.Contains(t, msg, "NOPE")
		assert.Contains(t, msg, "at least one step")
	})
}

func TestDecodeEnvironmentTemplate(t *testing.T) {
	const doc = `
specificationVersion: environment-2023-09
parameterDefinitions:
  - name: CondaEnv
    type: STRING
    default: base
environment:
  name: Conda
  script:
    actions:
      onEnter:
        command: conda
        args: ["activate", "{{Param.CondaEnv}}"]
`
	obj, err := model.DocumentToObject([]byte(doc), model.DocumentTypeYAML)
	require.NoError(t, err)
	tmpl, err := model.DecodeEnvironmentTemplate(obj)
	require.NoError(t, err)

	assert.Equal(t, model.VersionEnvironment2023_09, tmpl.SpecificationVersion)
	require.Len(t, tmpl.ParameterDefinitions, 1)
	assert.Equal(t, model.ScopeEnvironment, tmpl.ParameterDefinitions[0].Origin)
	assert.Equal(t, "Conda", tmpl.Environment.Name)
	require.NotNil(t, tmpl.Environment.Script.Actions.OnEnter)

	t.Run("MissingEnvironment", func(t *testing.T) {
		obj, err := model.DocumentToObject([]byte("specificationVersion: environment-2023-09\n"), model.DocumentTypeYAML)
		require.NoError(t, err)
		_, err = model.DecodeEnvironmentTemplate(obj)
		assert.Error(t, err)
	})
}

func TestDecodeTemplateDispatch(t *testing.T) {
	jobObj := map[string]any{
		"specificationVersion": "jobtemplate-2023-09",
		"name":                 "x",
		"steps": []any{
			map[string]any{
				"name": "A",
				"script": map[string]any{
					"actions": map[string]any{
						"onRun": map[string]any{"command": "echo"},
					},
				},
			},
		},
	}
	decoded, err := model.DecodeTemplate(jobObj)
	require.NoError(t, err)
	_, ok := decoded.(*model.JobTemplate)
	assert.True(t, ok)

	_, err = model.DecodeTemplate(map[string]any{"specificationVersion": "bogus"})
	assert.Error(t, err)
}

// assertKind checks that err is or contains a *model.Error of the given
// kind.
func assertKind(t *testing.T, err error, kind model.Kind) {
	t.Helper()
	for _, inner := range flattenErrors(err) {
		var modelErr *model.Error
		if errors.As(inner, &modelErr) && modelErr.Kind == kind {
			return
		}
	}
	t.Errorf("no error of kind %q in: %v", kind, err)
}

func flattenErrors(err error) []error {
	if list, ok := err.(model.ErrorList); ok {
		return list
	}
	return []error{err}
}
