package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rendis/flowcode/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const graphSchemaURL = "https://flowcode.dev/schemas/graph.json"

// graphSchemaJSON is the JSON Schema for editor graph documents. Cells carry
// arbitrary editor fields (position, size, attrs) so extra properties pass.
const graphSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://flowcode.dev/schemas/graph.json",
  "type": "object",
  "required": ["cells"],
  "properties": {
    "cells": {
      "type": "array",
      "items": { "$ref": "#/$defs/cell" }
    }
  },
  "$defs": {
    "cell": {
      "type": "object",
      "required": ["id", "shape"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "shape": { "type": "string", "minLength": 1 }
      },
      "if": { "properties": { "shape": { "const": "edge" } } },
      "then": {
        "required": ["source", "target"],
        "properties": {
          "source": { "$ref": "#/$defs/endpoint" },
          "target": { "$ref": "#/$defs/endpoint" }
        }
      },
      "else": {
        "required": ["data"],
        "properties": {
          "data": { "$ref": "#/$defs/nodeData" }
        }
      }
    },
    "endpoint": {
      "type": "object",
      "required": ["cell"],
      "properties": {
        "cell": { "type": "string", "minLength": 1 },
        "port": { "type": "string" }
      }
    },
    "nodeData": {
      "type": "object",
      "required": ["label", "code"],
      "properties": {
        "label": { "type": "string" },
        "code": { "type": "string" },
        "trigger": { "type": "string" },
        "configData": { "type": "object" },
        "dependencies": { "type": "string" }
      }
    }
  }
}`

// JSONSchemaValidator checks the structure of graph documents against the
// embedded graph schema. It is safe for concurrent use.
type JSONSchemaValidator struct {
	graphSchema *jsonschema.Schema
}

// NewJSONSchemaValidator compiles the embedded graph schema.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(graphSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal graph schema: %w", err)
	}
	if err := c.AddResource(graphSchemaURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("add graph schema resource: %w", err)
	}

	compiled, err := c.Compile(graphSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile graph schema: %w", err)
	}
	return &JSONSchemaValidator{graphSchema: compiled}, nil
}

// ValidateDocument validates a typed document.
func (v *JSONSchemaValidator) ValidateDocument(doc *schema.GraphDocument) error {
	if doc == nil {
		return schema.NewError(schema.ErrCodeValidation, "graph document is nil")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize graph document").WithCause(err)
	}
	return v.ValidateRaw(raw)
}

// ValidateRaw validates JSON bytes as received from the editor, before they
// are decoded into typed cells.
func (v *JSONSchemaValidator) ValidateRaw(raw []byte) error {
	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "malformed graph document").WithCause(err)
	}
	if err := v.graphSchema.Validate(inst); err != nil {
		return toFlowError(err)
	}
	return nil
}

// toFlowError converts a jsonschema.ValidationError into a FlowError listing
// every leaf violation.
func toFlowError(err error) *schema.FlowError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}

	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf messages
// prefixed with their instance location.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
