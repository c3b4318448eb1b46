package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rendis/flowcode/internal/expressions"
	"github.com/rendis/flowcode/internal/graph"
	"github.com/rendis/flowcode/pkg/schema"
)

// readGraph loads a graph document from a .json or .dot file, or from stdin
// when path is "-" (JSON unless it starts with a DOT graph keyword).
func readGraph(path string, stdin io.Reader) (*schema.GraphDocument, error) {
	var (
		src []byte
		err error
	)
	if path == "-" {
		src, err = io.ReadAll(stdin)
	} else {
		src, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}

	if isDOT(path, src) {
		return graph.ParseDOT(string(src))
	}
	return schema.ParseGraphDocument(src)
}

func isDOT(path string, src []byte) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dot", ".gv":
		return true
	case ".json":
		return false
	}
	head := strings.ToLower(strings.TrimSpace(string(src)))
	return strings.HasPrefix(head, "digraph") || strings.HasPrefix(head, "strict") || strings.HasPrefix(head, "graph")
}

// selection narrows a graph to a subset of its nodes.
type selection struct {
	ids    []string
	where  string
	engine string
}

func (s selection) apply(ctx context.Context, doc *schema.GraphDocument) (*schema.GraphDocument, error) {
	if len(s.ids) > 0 {
		doc = graph.SelectIDs(doc, s.ids)
	}
	if s.where == "" {
		return doc, nil
	}
	engine, err := expressions.New(s.engine)
	if err != nil {
		return nil, err
	}
	return graph.SelectWhere(ctx, doc, engine, s.where)
}

// readMockInput accepts inline JSON or @file.
func readMockInput(v string) (json.RawMessage, error) {
	if v == "" {
		return nil, nil
	}
	data := []byte(v)
	if strings.HasPrefix(v, "@") {
		var err error
		if data, err = os.ReadFile(v[1:]); err != nil {
			return nil, fmt.Errorf("read mock input: %w", err)
		}
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("mock input is not valid JSON")
	}
	return json.RawMessage(data), nil
}
