package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
)

// DocumentType identifies the encoding of a raw template document.
type DocumentType string

const (
	DocumentTypeJSON DocumentType = "JSON"
	DocumentTypeYAML DocumentType = "YAML"
)

var ErrNotAnObject = errors.New("document is not an object of key-value pairs")

// DocumentToObject decodes a JSON or YAML encoded document into a generic
// object tree.
func DocumentToObject(document []byte, docType DocumentType) (map[string]any, error) {
	var root any
	switch docType {
	case DocumentTypeJSON:
		// UseNumber keeps numeric literals in their source text so that a
		// default of 1.50 is not flattened to 1.5 on the way through.
		dec := json.NewDecoder(bytes.NewReader(document))
		dec.UseNumber()
		if err := dec.Decode(&root); err != nil {
			return nil, WrapError(KindSchemaViolation, "", err)
		}
	case DocumentTypeYAML:
		err := yaml.NewDecoder(bytes.NewReader(document)).Decode(&root)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, WrapError(KindSchemaViolation, "", err)
		}
	default:
		return nil, Errorf(KindSchemaViolation, "", "unknown document type %q", docType)
	}
	obj, ok := root.(map[string]any)
	if !ok || obj == nil {
		return nil, WrapError(KindSchemaViolation, "", ErrNotAnObject)
	}
	return obj, nil
}

// DecodeJobTemplate validates a decoded document object tree as a job
// template. All independent violations found in one pass are reported
// together, not just the first.
func DecodeJobTemplate(obj map[string]any) (*JobTemplate, error) {
	def, err := decodeDefinition(obj)
	if err != nil {
		return nil, err
	}
	version := SpecificationVersion(def.SpecificationVersion)
	if !version.IsJobTemplate() {
		return nil, Errorf(KindSchemaViolation, "specificationVersion",
			"unsupported job template schema version %q", def.SpecificationVersion)
	}
	return buildJobTemplate(def)
}

// DecodeEnvironmentTemplate validates a decoded document object tree as an
// environment template.
func DecodeEnvironmentTemplate(obj map[string]any) (*EnvironmentTemplate, error) {
	def, err := decodeDefinition(obj)
	if err != nil {
		return nil, err
	}
	version := SpecificationVersion(def.SpecificationVersion)
	if !version.IsEnvironmentTemplate() {
		return nil, Errorf(KindSchemaViolation, "specificationVersion",
			"unsupported environment template schema version %q", def.SpecificationVersion)
	}
	return buildEnvironmentTemplate(def)
}

// DecodeTemplate dispatches on the document's specificationVersion tag and
// returns either a *JobTemplate or an *EnvironmentTemplate.
func DecodeTemplate(obj map[string]any) (any, error) {
	version, _ := obj["specificationVersion"].(string)
	switch {
	case SpecificationVersion(version).IsJobTemplate():
		return DecodeJobTemplate(obj)
	case SpecificationVersion(version).IsEnvironmentTemplate():
		return DecodeEnvironmentTemplate(obj)
	default:
		return nil, Errorf(KindSchemaViolation, "specificationVersion",
			"unsupported schema version %q", version)
	}
}

// decodeDefinition maps the generic object tree onto the definition
// structs. Unknown fields are a schema violation.
func decodeDefinition(obj map[string]any) (*templateDef, error) {
	def := new(templateDef)
	md, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      def,
	})
	if err != nil {
		return nil, fmt.Errorf("building document decoder: %w", err)
	}
	if err := md.Decode(obj); err != nil {
		return nil, WrapError(KindSchemaViolation, "", err)
	}
	return def, nil
}
