package model_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openjobspec/openjd/model"
)

func TestDecodeHostRequirements(t *testing.T) {
	const doc = `
specificationVersion: jobtemplate-2023-09
name: x
steps:
  - name: Render
    script: {actions: {onRun: {command: echo}}}
    hostRequirements:
      amounts:
        - name: amount.worker.gpu
          min: 1
        - name: exampleco:amount.worker.gpu.memory
          min: 1024
          max: 4096
      attributes:
        - name: attr.worker.os.family
          anyOf: [linux, macos]
        - name: attr.exampleco.tier
          allOf: [gold]
`
	tmpl, err := decodeYAML(t, doc)
	require.NoError(t, err)

	req := tmpl.Steps[0].HostRequirements
	require.NotNil(t, req)

	require.Len(t, req.Amounts, 2)
	assert.Equal(t, "amount.worker.gpu", req.Amounts[0].Name.String())
	require.NotNil(t, req.Amounts[0].Min)
	assert.Equal(t, "1", req.Amounts[0].Min.String())
	assert.Nil(t, req.Amounts[0].Max)
	assert.Equal(t, "exampleco:amount.worker.gpu.memory", req.Amounts[1].Name.String())
	require.NotNil(t, req.Amounts[1].Max)
	assert.Equal(t, "4096", req.Amounts[1].Max.String())

	require.Len(t, req.Attributes, 2)
	assert.Equal(t, "attr.worker.os.family", req.Attributes[0].Name.String())
	require.Len(t, req.Attributes[0].AnyOf, 2)
	assert.Equal(t, "linux", req.Attributes[0].AnyOf[0].String())
	require.Len(t, req.Attributes[1].AllOf, 1)
	assert.Equal(t, "gold", req.Attributes[1].AllOf[0].String())
}

const hostReqDoc = `
specificationVersion: jobtemplate-2023-09
name: x
steps:
  - name: A
    script: {actions: {onRun: {command: echo}}}
    hostRequirements:
%s`

func TestDecodeHostRequirementsErrors(t *testing.T) {
	decode := func(t *testing.T, req string) error {
		t.Helper()
		_, err := decodeYAML(t, fmt.Sprintf(hostReqDoc, req))
		return err
	}

	t.Run("ReservedScope", func(t *testing.T) {
		err := decode(t, `
      amounts:
        - name: amount.worker.custom
          min: 1
`)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrReservedCapabilityScope)
	})
	t.Run("WrongKindPrefix", func(t *testing.T) {
		err := decode(t, `
      amounts:
        - name: attr.exampleco.gpu
          min: 1
`)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrBadCapabilityName)
	})
	t.Run("MalformedName", func(t *testing.T) {
		err := decode(t, `
      attributes:
        - name: attr.9bad
          anyOf: [x]
`)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrBadCapabilityName)
	})
	t.Run("NoBounds", func(t *testing.T) {
		err := decode(t, `
      amounts:
        - name: amount.exampleco.licenses
`)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrAmountBoundsRequired)
	})
	t.Run("NegativeMin", func(t *testing.T) {
		err := decode(t, `
      amounts:
        - name: amount.worker.gpu
          min: -1
`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "min cannot be negative")
	})
	t.Run("ZeroMax", func(t *testing.T) {
		err := decode(t, `
      amounts:
        - name: amount.worker.gpu
          max: 0
`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max must be positive")
	})
	t.Run("BoundsOutOfOrder", func(t *testing.T) {
		err := decode(t, `
      amounts:
        - name: amount.worker.gpu
          min: 10
          max: 5
`)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrBadBoundsOrder)
	})
	t.Run("NoValues", func(t *testing.T) {
		err := decode(t, `
      attributes:
        - name: attr.exampleco.tier
`)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrAttributeValuesRequired)
	})
	t.Run("MalformedValue", func(t *testing.T) {
		err := decode(t, `
      attributes:
        - name: attr.exampleco.tier
          anyOf: ["not a value"]
`)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrBadAttributeValue)
	})
	t.Run("ValueOutsideStandardSet", func(t *testing.T) {
		err := decode(t, `
      attributes:
        - name: attr.worker.os.family
          anyOf: [solaris]
`)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrBadAttributeValue)
	})
	t.Run("SingleValuedCapabilityAllOf", func(t *testing.T) {
		err := decode(t, `
      attributes:
        - name: attr.worker.cpu.arch
          allOf: [x86_64, arm64]
`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "single value")
	})
	t.Run("TooManyRequirements", func(t *testing.T) {
		var b strings.Builder
		b.WriteString("      amounts:\n")
		for i := 0; i < 51; i++ {
			fmt.Fprintf(&b, "        - name: amount.exampleco.cap%d\n          min: 1\n", i)
		}
		err := decode(t, b.String())
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrTooManyRequirements)
	})
}

func TestCreateJobHostRequirements(t *testing.T) {
	const doc = `
specificationVersion: jobtemplate-2023-09
name: x
parameterDefinitions:
  - name: GpuCap
    type: STRING
  - name: OsFamily
    type: STRING
steps:
  - name: Render
    script: {actions: {onRun: {command: echo}}}
    hostRequirements:
      amounts:
        - name: "{{Param.GpuCap}}"
          min: 1
      attributes:
        - name: attr.worker.os.family
          anyOf: ["{{Param.OsFamily}}"]
`
	tmpl, err := decodeYAML(t, doc)
	require.NoError(t, err)

	t.Run("ExpressionsResolve", func(t *testing.T) {
		values, err := model.PreprocessJobParameters(tmpl.ParameterDefinitions,
			map[string]string{"GpuCap": "amount.worker.gpu", "OsFamily": "linux"}, "", "")
		require.NoError(t, err)
		job, err := model.CreateJob(tmpl, values)
		require.NoError(t, err)

		req := job.Step("Render").HostRequirements
		require.NotNil(t, req)
		require.Len(t, req.Amounts, 1)
		assert.Equal(t, "amount.worker.gpu", req.Amounts[0].Name)
		assert.Equal(t, "1", req.Amounts[0].Min.String())
		require.Len(t, req.Attributes, 1)
		assert.Equal(t, []string{"linux"}, req.Attributes[0].AnyOf)
	})
	t.Run("ResolvedNameValidated", func(t *testing.T) {
		values, err := model.PreprocessJobParameters(tmpl.ParameterDefinitions,
			map[string]string{"GpuCap": "amount.worker.bogus", "OsFamily": "linux"}, "", "")
		require.NoError(t, err)
		_, err = model.CreateJob(tmpl, values)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrReservedCapabilityScope)
	})
	t.Run("ResolvedValueValidated", func(t *testing.T) {
		values, err := model.PreprocessJobParameters(tmpl.ParameterDefinitions,
			map[string]string{"GpuCap": "amount.worker.gpu", "OsFamily": "solaris"}, "", "")
		require.NoError(t, err)
		_, err = model.CreateJob(tmpl, values)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrBadAttributeValue)
	})
}

func TestEncodeHostRequirements(t *testing.T) {
	const doc = `
specificationVersion: jobtemplate-2023-09
name: x
steps:
  - name: Render
    script: {actions: {onRun: {command: echo}}}
    hostRequirements:
      amounts:
        - name: amount.worker.vcpu
          min: 4
          max: 16
      attributes:
        - name: attr.worker.cpu.arch
          anyOf: [arm64]
`
	tmpl, err := decodeYAML(t, doc)
	require.NoError(t, err)

	obj, err := model.ModelToObject(tmpl)
	require.NoError(t, err)
	again, err := model.DecodeJobTemplate(obj)
	require.NoError(t, err)
	assert.Equal(t, tmpl, again)
}
