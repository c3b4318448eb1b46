package validation

import (
	"errors"

	"github.com/rendis/flowcode/pkg/schema"
)

// GraphValidator runs the lint pipeline:
// 1. Structural (JSON Schema)
// 2. Cells (unique ids, dangling edges, code and dependency hygiene)
// 3. DAG (cycles, reachability)
type GraphValidator struct {
	jsonSchema *JSONSchemaValidator
}

// NewGraphValidator creates a GraphValidator.
func NewGraphValidator() (*GraphValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &GraphValidator{jsonSchema: jsv}, nil
}

// Validate runs the full pipeline and returns an aggregated result.
// Structural errors short-circuit the later stages.
func (gv *GraphValidator) Validate(doc *schema.GraphDocument) *schema.ValidationResult {
	if doc == nil {
		r := &schema.ValidationResult{}
		r.AddError("/", schema.ErrCodeValidation, "graph document is nil")
		return r
	}

	result := structural(gv.jsonSchema.ValidateDocument(doc))
	if !result.Valid() {
		return result
	}

	result.Merge(validateCells(doc))

	// Dangling edges or duplicate ids make graph analysis unreliable.
	if result.Valid() {
		result.Merge(validateDAG(doc))
	}
	return result
}

// ValidateRaw validates undecoded editor JSON. Decoding happens only after
// the structural stage passes.
func (gv *GraphValidator) ValidateRaw(raw []byte) (*schema.GraphDocument, *schema.ValidationResult) {
	result := structural(gv.jsonSchema.ValidateRaw(raw))
	if !result.Valid() {
		return nil, result
	}
	doc, err := schema.ParseGraphDocument(raw)
	if err != nil {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return nil, result
	}
	return doc, gv.Validate(doc)
}

// ValidateDocument satisfies the Validator interface.
func (gv *GraphValidator) ValidateDocument(doc *schema.GraphDocument) error {
	return gv.Validate(doc).ToError()
}

// structural converts a JSONSchemaValidator error into a ValidationResult.
func structural(err error) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if err == nil {
		return result
	}

	var fe *schema.FlowError
	if !errors.As(err, &fe) {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return result
	}

	if violations, ok := fe.Details["violations"].([]string); ok {
		for _, v := range violations {
			result.AddError("/", schema.ErrCodeValidation, v)
		}
		return result
	}
	result.AddError("/", schema.ErrCodeValidation, fe.Message)
	return result
}

var (
	_ Validator = (*GraphValidator)(nil)
	_ Validator = (*JSONSchemaValidator)(nil)
)
