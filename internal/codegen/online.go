package codegen

import (
	"encoding/json"
	"strings"

	"github.com/rendis/flowcode/pkg/schema"
)

// NodeFn is one entry of the node function map.
type NodeFn struct {
	ID   string
	Code string
}

// OnlineParts are the compiled pieces of an online script.
type OnlineParts struct {
	DSL       any // simplified document, serialized as JSON
	NodeFns   []NodeFn
	Trigger   string
	MockNode  string
	MockInput json.RawMessage
}

// AssembleOnline fills the dsl, node-fns and trigger slots of sk, plus the
// optional mock-node and mock-input slots, and renders the result.
func AssembleOnline(sk *Skeleton, parts OnlineParts) (string, error) {
	if err := sk.Require(SlotDSL, SlotNodeFns, SlotTrigger); err != nil {
		return "", err
	}

	dsl, err := DSLDeclaration(parts.DSL)
	if err != nil {
		return "", err
	}
	trigger, err := jsString(parts.Trigger)
	if err != nil {
		return "", err
	}

	values := map[string]string{
		SlotDSL:     dsl,
		SlotNodeFns: NodeFnsDeclaration(parts.NodeFns),
		SlotTrigger: trigger,
	}
	if sk.Has(SlotMockNode) {
		mockNode := "null"
		if parts.MockNode != "" {
			if mockNode, err = jsString(parts.MockNode); err != nil {
				return "", err
			}
		}
		values[SlotMockNode] = mockNode
	}
	if sk.Has(SlotMockInput) {
		mockInput := "null"
		if len(parts.MockInput) > 0 {
			if !json.Valid(parts.MockInput) {
				return "", schema.NewError(schema.ErrCodeValidation, "mock input is not valid JSON")
			}
			mockInput = string(parts.MockInput)
		}
		values[SlotMockInput] = mockInput
	}

	return sk.Fill(values).Render(), nil
}

// DSLDeclaration renders `const dsl = <json>;`.
func DSLDeclaration(dsl any) (string, error) {
	raw, err := json.MarshalIndent(dsl, "", "  ")
	if err != nil {
		return "", schema.NewError(schema.ErrCodeValidation, "encode simplified dsl").WithCause(err)
	}
	return "const dsl = " + string(raw) + ";", nil
}

// NodeFnsDeclaration renders `const nodeFns = {...};` keyed by node id.
func NodeFnsDeclaration(fns []NodeFn) string {
	if len(fns) == 0 {
		return "const nodeFns = {};"
	}
	kvs := make([]string, 0, len(fns))
	for _, fn := range fns {
		key, _ := jsString(fn.ID)
		kvs = append(kvs, key+": "+fn.Code)
	}
	return "const nodeFns = {\n  " + strings.Join(kvs, ",\n  ") + "\n};"
}

// jsString quotes s as a JSON string, which is also a valid JS string literal.
func jsString(s string) (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", schema.NewError(schema.ErrCodeValidation, "encode string literal").WithCause(err)
	}
	return string(raw), nil
}
