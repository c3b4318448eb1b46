package expressions

import (
	"context"
	"fmt"

	"github.com/rendis/flowcode/pkg/schema"
)

// Engine evaluates expressions against JSON-shaped data.
// CEL and Expr select graph nodes; GoJQ reshapes whole documents.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// New returns the named engine: "cel", "expr" or "jq".
func New(name string) (Engine, error) {
	switch name {
	case "cel", "":
		return NewCELEngine()
	case "expr":
		return NewExprEngine(), nil
	case "jq":
		return NewGoJQEngine(), nil
	default:
		return nil, schema.NewErrorf(schema.ErrCodeExpression, "unknown expression engine %q", name)
	}
}

// EvaluateBool evaluates a predicate and requires a boolean result.
func EvaluateBool(ctx context.Context, e Engine, expression string, data map[string]any) (bool, error) {
	out, err := e.Evaluate(ctx, expression, data)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeExpression,
			"%s expression %q returned %s, want bool", e.Name(), expression, fmt.Sprintf("%T", out)).
			WithDetails(map[string]any{"expression": expression})
	}
	return b, nil
}
