package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/rendis/flowcode/pkg/schema"
)

// Hash returns the hex SHA-256 of the document's JSON encoding. Snapshots and
// cached compile artifacts are keyed by it.
func Hash(doc *schema.GraphDocument) (string, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", schema.NewError(schema.ErrCodeValidation, "encode graph document").WithCause(err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
