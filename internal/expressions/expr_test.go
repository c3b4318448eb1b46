package expressions

import (
	"context"
	"testing"

	"github.com/rendis/flowcode/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExprEngine_Name(t *testing.T) {
	assert.Equal(t, "expr", NewExprEngine().Name())
}

func TestExprEngine_Evaluate(t *testing.T) {
	e := NewExprEngine()
	data := map[string]any{
		"cell": map[string]any{
			"id":    "b",
			"shape": "flow-branch",
			"data":  map[string]any{"label": "is admin?"},
		},
	}

	tests := []struct {
		name string
		expr string
		want any
	}{
		{"equality", `cell.shape == "flow-branch"`, true},
		{"regex", `cell.data.label matches "admin"`, true},
		{"membership", `cell.id in ["a", "c"]`, false},
		{"undefined is nil", `missing == nil`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.Evaluate(context.Background(), tt.expr, data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestExprEngine_Errors(t *testing.T) {
	e := NewExprEngine()

	_, err := e.Evaluate(context.Background(), "", nil)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeExpression))

	_, err = e.Evaluate(context.Background(), `cell.id ==`, nil)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeExpression))
}

func TestExprEngine_CachesPrograms(t *testing.T) {
	e := NewExprEngine()
	for i := 0; i < 3; i++ {
		_, err := e.Evaluate(context.Background(), `1 + 1`, nil)
		require.NoError(t, err)
	}
	assert.Len(t, e.cache, 1)
}
