package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openjobspec/openjd/model"
)

func jobTemplateWithParams(params ...model.JobParameterDefinition) *model.JobTemplate {
	return &model.JobTemplate{ParameterDefinitions: params}
}

func envTemplateWithParams(params ...model.JobParameterDefinition) *model.EnvironmentTemplate {
	return &model.EnvironmentTemplate{ParameterDefinitions: params}
}

func TestMergeJobParameterDefinitions(t *testing.T) {
	t.Run("DisjointNamesConcatenate", func(t *testing.T) {
		merged, err := model.MergeJobParameterDefinitions(
			jobTemplateWithParams(
				model.JobParameterDefinition{Name: "Scene", Type: model.ParameterTypeString},
			),
			envTemplateWithParams(
				model.JobParameterDefinition{Name: "CondaEnv", Type: model.ParameterTypeString},
			),
			envTemplateWithParams(
				model.JobParameterDefinition{Name: "CacheDir", Type: model.ParameterTypePath},
			),
		)
		require.NoError(t, err)
		require.Len(t, merged, 3)
		// Environment templates fold in before the job template.
		assert.Equal(t, "CondaEnv", merged[0].Name)
		assert.Equal(t, "CacheDir", merged[1].Name)
		assert.Equal(t, "Scene", merged[2].Name)
	})
	t.Run("FiveSourcesNothingShared", func(t *testing.T) {
		envs := make([]*model.EnvironmentTemplate, 4)
		for i := range envs {
			envs[i] = envTemplateWithParams(model.JobParameterDefinition{
				Name: string(rune('A' + i)),
				Type: model.ParameterTypeInt,
			})
		}
		merged, err := model.MergeJobParameterDefinitions(
			jobTemplateWithParams(model.JobParameterDefinition{Name: "E", Type: model.ParameterTypeInt}),
			envs...,
		)
		require.NoError(t, err)
		assert.Len(t, merged, 5)
	})
	t.Run("BoundsTighten", func(t *testing.T) {
		merged, err := model.MergeJobParameterDefinitions(
			jobTemplateWithParams(model.JobParameterDefinition{
				Name: "Samples", Type: model.ParameterTypeInt,
				MinValue: decPtr("16"), MaxValue: decPtr("1024"),
			}),
			envTemplateWithParams(model.JobParameterDefinition{
				Name: "Samples", Type: model.ParameterTypeInt,
				MinValue: decPtr("1"), MaxValue: decPtr("256"),
			}),
		)
		require.NoError(t, err)
		require.Len(t, merged, 1)
		assert.Equal(t, "16", merged[0].MinValue.String())
		assert.Equal(t, "256", merged[0].MaxValue.String())
	})
	t.Run("AbsentBoundAdopted", func(t *testing.T) {
		merged, err := model.MergeJobParameterDefinitions(
			jobTemplateWithParams(model.JobParameterDefinition{
				Name: "Samples", Type: model.ParameterTypeInt, MaxValue: decPtr("256"),
			}),
			envTemplateWithParams(model.JobParameterDefinition{
				Name: "Samples", Type: model.ParameterTypeInt, MinValue: decPtr("1"),
			}),
		)
		require.NoError(t, err)
		require.Len(t, merged, 1)
		require.NotNil(t, merged[0].MinValue)
		require.NotNil(t, merged[0].MaxValue)
	})
	t.Run("AllowedValuesIntersect", func(t *testing.T) {
		merged, err := model.MergeJobParameterDefinitions(
			jobTemplateWithParams(model.JobParameterDefinition{
				Name: "Quality", Type: model.ParameterTypeString,
				AllowedValues: []string{"low", "medium", "high"},
			}),
			envTemplateWithParams(model.JobParameterDefinition{
				Name: "Quality", Type: model.ParameterTypeString,
				AllowedValues: []string{"high", "medium"},
			}),
		)
		require.NoError(t, err)
		require.Len(t, merged, 1)
		// First-seen order: the environment template's list wins ordering.
		assert.Equal(t, []string{"high", "medium"}, merged[0].AllowedValues)
	})
	t.Run("DescriptionFoldedWhenUnset", func(t *testing.T) {
		merged, err := model.MergeJobParameterDefinitions(
			jobTemplateWithParams(model.JobParameterDefinition{
				Name: "Scene", Type: model.ParameterTypeString, Description: "scene file",
			}),
			envTemplateWithParams(model.JobParameterDefinition{
				Name: "Scene", Type: model.ParameterTypeString,
			}),
		)
		require.NoError(t, err)
		assert.Equal(t, "scene file", merged[0].Description)
	})

	t.Run("TypeConflict", func(t *testing.T) {
		_, err := model.MergeJobParameterDefinitions(
			jobTemplateWithParams(model.JobParameterDefinition{Name: "X", Type: model.ParameterTypeInt}),
			envTemplateWithParams(model.JobParameterDefinition{Name: "X", Type: model.ParameterTypeString}),
		)
		require.Error(t, err)
		assertKind(t, err, model.KindParameterMergeConflict)
	})
	t.Run("DefaultConflict", func(t *testing.T) {
		_, err := model.MergeJobParameterDefinitions(
			jobTemplateWithParams(model.JobParameterDefinition{
				Name: "X", Type: model.ParameterTypeInt, Default: strPtr("1"),
			}),
			envTemplateWithParams(model.JobParameterDefinition{
				Name: "X", Type: model.ParameterTypeInt, Default: strPtr("2"),
			}),
		)
		require.Error(t, err)
		assertKind(t, err, model.KindParameterMergeConflict)
		assert.Contains(t, err.Error(), "defaults differ")
		assert.Contains(t, err.Error(), "environment template 1")
		assert.Contains(t, err.Error(), "job template")
	})
	t.Run("DefaultAdoptedWhenOnlyOneSourceHasIt", func(t *testing.T) {
		merged, err := model.MergeJobParameterDefinitions(
			jobTemplateWithParams(model.JobParameterDefinition{
				Name: "X", Type: model.ParameterTypeInt, Default: strPtr("5"),
			}),
			envTemplateWithParams(model.JobParameterDefinition{
				Name: "X", Type: model.ParameterTypeInt,
			}),
		)
		require.NoError(t, err)
		require.NotNil(t, merged[0].Default)
		assert.Equal(t, "5", *merged[0].Default)
	})
	t.Run("EqualDefaultsAreFine", func(t *testing.T) {
		merged, err := model.MergeJobParameterDefinitions(
			jobTemplateWithParams(model.JobParameterDefinition{
				Name: "X", Type: model.ParameterTypeFloat, Default: strPtr("1.50"),
			}),
			envTemplateWithParams(model.JobParameterDefinition{
				Name: "X", Type: model.ParameterTypeFloat, Default: strPtr("1.5"),
			}),
		)
		require.NoError(t, err)
		require.NotNil(t, merged[0].Default)
	})
	t.Run("EmptyIntersection", func(t *testing.T) {
		_, err := model.MergeJobParameterDefinitions(
			jobTemplateWithParams(model.JobParameterDefinition{
				Name: "X", Type: model.ParameterTypeString, AllowedValues: []string{"a"},
			}),
			envTemplateWithParams(model.JobParameterDefinition{
				Name: "X", Type: model.ParameterTypeString, AllowedValues: []string{"b"},
			}),
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no value in common")
	})
	t.Run("UnsatisfiableBounds", func(t *testing.T) {
		_, err := model.MergeJobParameterDefinitions(
			jobTemplateWithParams(model.JobParameterDefinition{
				Name: "X", Type: model.ParameterTypeInt, MinValue: decPtr("10"),
			}),
			envTemplateWithParams(model.JobParameterDefinition{
				Name: "X", Type: model.ParameterTypeInt, MaxValue: decPtr("5"),
			}),
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsatisfiable")
	})
}
