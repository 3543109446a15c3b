package model_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openjobspec/openjd/model"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestJobParameterDefinitionValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		def := model.JobParameterDefinition{
			Name:     "Samples",
			Type:     model.ParameterTypeInt,
			Default:  strPtr("64"),
			MinValue: decPtr("1"),
			MaxValue: decPtr("4096"),
		}
		assert.NoError(t, def.Validate())
	})
	t.Run("BadIdentifier", func(t *testing.T) {
		def := model.JobParameterDefinition{Name: "2Fast", Type: model.ParameterTypeInt}
		assert.ErrorIs(t, def.Validate(), model.ErrBadIdentifier)
	})
	t.Run("UnknownType", func(t *testing.T) {
		def := model.JobParameterDefinition{Name: "X", Type: "DOUBLE"}
		assert.Error(t, def.Validate())
	})
	t.Run("BoundsOrder", func(t *testing.T) {
		def := model.JobParameterDefinition{
			Name:     "X",
			Type:     model.ParameterTypeFloat,
			MinValue: decPtr("10"),
			MaxValue: decPtr("1"),
		}
		assert.ErrorIs(t, def.Validate(), model.ErrBadBoundsOrder)
	})
	t.Run("LengthBoundsOrder", func(t *testing.T) {
		def := model.JobParameterDefinition{
			Name:      "X",
			Type:      model.ParameterTypeString,
			MinLength: intPtr(5),
			MaxLength: intPtr(2),
		}
		assert.ErrorIs(t, def.Validate(), model.ErrBadBoundsOrder)
	})
	t.Run("AllowedValuesMustBeTyped", func(t *testing.T) {
		def := model.JobParameterDefinition{
			Name:          "X",
			Type:          model.ParameterTypeInt,
			AllowedValues: []string{"1", "two"},
		}
		assert.ErrorIs(t, def.Validate(), model.ErrNotAnInteger)
	})
	t.Run("DefaultMustSatisfyConstraints", func(t *testing.T) {
		def := model.JobParameterDefinition{
			Name:     "X",
			Type:     model.ParameterTypeInt,
			Default:  strPtr("0"),
			MinValue: decPtr("1"),
		}
		assert.ErrorIs(t, def.Validate(), model.ErrBelowMinimum)
	})
}

func TestCheckValue(t *testing.T) {
	t.Run("NumericBounds", func(t *testing.T) {
		def := model.JobParameterDefinition{
			Name:     "X",
			Type:     model.ParameterTypeFloat,
			MinValue: decPtr("0.5"),
			MaxValue: decPtr("2.5"),
		}
		assert.NoError(t, def.CheckValue("1.0"))
		assert.ErrorIs(t, def.CheckValue("0.25"), model.ErrBelowMinimum)
		assert.ErrorIs(t, def.CheckValue("3"), model.ErrAboveMaximum)
		assert.ErrorIs(t, def.CheckValue("abc"), model.ErrNotANumber)
	})
	t.Run("StringLength", func(t *testing.T) {
		def := model.JobParameterDefinition{
			Name:      "X",
			Type:      model.ParameterTypeString,
			MinLength: intPtr(2),
			MaxLength: intPtr(4),
		}
		assert.NoError(t, def.CheckValue("abc"))
		assert.ErrorIs(t, def.CheckValue("a"), model.ErrTooShort)
		assert.ErrorIs(t, def.CheckValue("abcde"), model.ErrTooLong)
	})
	t.Run("AllowedValues", func(t *testing.T) {
		def := model.JobParameterDefinition{
			Name:          "X",
			Type:          model.ParameterTypeString,
			AllowedValues: []string{"low", "high"},
		}
		assert.NoError(t, def.CheckValue("low"))
		assert.ErrorIs(t, def.CheckValue("medium"), model.ErrNotAllowed)
	})
	t.Run("AllowedValuesCompareNumerically", func(t *testing.T) {
		def := model.JobParameterDefinition{
			Name:          "X",
			Type:          model.ParameterTypeFloat,
			AllowedValues: []string{"1.5"},
		}
		assert.NoError(t, def.CheckValue("1.50"))
	})
}

func TestCoerce(t *testing.T) {
	t.Run("PreservesFloatText", func(t *testing.T) {
		def := model.JobParameterDefinition{Name: "X", Type: model.ParameterTypeFloat}
		v, err := def.Coerce("1.50")
		require.NoError(t, err)
		assert.Equal(t, "1.50", v.Value)
		assert.Equal(t, model.ParameterTypeFloat, v.Type)
	})
	t.Run("IntRejectsFraction", func(t *testing.T) {
		def := model.JobParameterDefinition{Name: "X", Type: model.ParameterTypeInt}
		_, err := def.Coerce("1.5")
		assert.ErrorIs(t, err, model.ErrNotAnInteger)
	})
	t.Run("StringPassesThrough", func(t *testing.T) {
		def := model.JobParameterDefinition{Name: "X", Type: model.ParameterTypeString}
		v, err := def.Coerce("anything at all")
		require.NoError(t, err)
		assert.Equal(t, "anything at all", v.Value)
	})
}
