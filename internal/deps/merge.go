// Package deps collects the npm dependencies declared on graph nodes.
package deps

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/rendis/flowcode/pkg/schema"
)

// Map is package name -> version range, in declaration order.
type Map = orderedmap.OrderedMap[string, string]

// NewMap returns an empty Map.
func NewMap() *Map {
	return orderedmap.New[string, string]()
}

// Parse decodes one node's dependencies field. An empty field yields an empty
// map; anything that is not a JSON object of strings is a DEPENDENCY_PARSE
// error.
func Parse(raw string) (*Map, error) {
	m := NewMap()
	if strings.TrimSpace(raw) == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(raw), m); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeDependencyParse, "parse dependencies: %s", err.Error()).WithCause(err)
	}
	return m, nil
}

// Merge folds every node's dependencies into one map. Later nodes overwrite
// earlier versions of the same package; no range resolution is attempted. A
// node whose field does not parse is logged and skipped, and its error is
// returned in the second result so callers can surface it.
func Merge(ctx context.Context, nodes []*schema.Cell, logger *slog.Logger) (*Map, []error) {
	merged := NewMap()
	var problems []error
	for _, n := range nodes {
		if n == nil || n.IsEdge() {
			continue
		}
		parsed, err := Parse(n.DataOrZero().Dependencies)
		if err != nil {
			if fe, ok := err.(*schema.FlowError); ok {
				fe.WithNode(n.ID)
			}
			problems = append(problems, err)
			if logger != nil {
				logger.WarnContext(ctx, "extract dependencies failed", "node_id", n.ID, "error", err)
			}
			continue
		}
		Overlay(merged, parsed)
	}
	return merged, problems
}

// Overlay copies every entry of src into dst, src winning on conflicts.
func Overlay(dst, src *Map) {
	for pair := src.Oldest(); pair != nil; pair = pair.Next() {
		dst.Set(pair.Key, pair.Value)
	}
}

// ToMap converts m to a plain map.
func ToMap(m *Map) map[string]string {
	out := make(map[string]string, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = pair.Value
	}
	return out
}

// Keys lists the package names in order.
func Keys(m *Map) []string {
	keys := make([]string, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}
