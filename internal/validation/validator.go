package validation

import "github.com/rendis/flowcode/pkg/schema"

// Validator checks graph documents before they are compiled.
type Validator interface {
	ValidateDocument(doc *schema.GraphDocument) error
}
