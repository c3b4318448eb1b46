package graph

import (
	"encoding/json"
	"fmt"
	"strings"

	gographviz "github.com/awalterschulze/gographviz"

	"github.com/rendis/flowcode/pkg/schema"
)

// ParseDOT builds a graph document from Graphviz DOT source so flows can be
// authored outside the editor.
//
// Node attributes: kind (cell shape, default flow-behavior), label, code,
// trigger, dependencies. Edge tailport/headport (or node:port syntax) become
// edge ports. Node order follows first mention; edges are numbered edge-1,
// edge-2, ... in definition order.
func ParseDOT(src string) (*schema.GraphDocument, error) {
	graphAst, err := gographviz.ParseString(src)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "dot parse error: %s", err.Error()).WithCause(err)
	}

	collector := newDOTCollector()
	if err := gographviz.Analyse(graphAst, collector); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "dot analyse error: %s", err.Error()).WithCause(err)
	}

	doc := &schema.GraphDocument{}
	for _, id := range collector.order {
		attrs := collector.nodes[id]
		kind := attrs["kind"]
		if kind == "" {
			kind = schema.BehaviorShape
		}
		label := attrs["label"]
		if label == "" {
			label = id
		}
		doc.Cells = append(doc.Cells, &schema.Cell{
			ID:    id,
			Shape: kind,
			Data: &schema.NodeData{
				Label:        label,
				Code:         attrs["code"],
				Trigger:      attrs["trigger"],
				Dependencies: attrs["dependencies"],
				ConfigData:   json.RawMessage(`{}`),
			},
		})
	}

	for i, e := range collector.edges {
		edge := schema.NewEdge(fmt.Sprintf("edge-%d", i+1), e.from, e.to)
		edge.Source.Port = e.fromPort
		edge.Target.Port = e.toPort
		doc.Cells = append(doc.Cells, edge)
	}
	return doc, nil
}

type rawEdge struct {
	from, fromPort string
	to, toPort     string
}

// dotCollector implements gographviz.Interface without attribute validation.
type dotCollector struct {
	name  string
	nodes map[string]map[string]string
	order []string
	edges []rawEdge
}

func newDOTCollector() *dotCollector {
	return &dotCollector{nodes: make(map[string]map[string]string)}
}

func (c *dotCollector) SetStrict(_ bool) error { return nil }
func (c *dotCollector) SetDir(_ bool) error    { return nil }
func (c *dotCollector) SetName(n string) error { c.name = unquote(n); return nil }
func (c *dotCollector) String() string         { return c.name }

func (c *dotCollector) AddNode(_ string, name string, attrs map[string]string) error {
	node := c.ensure(unquote(name))
	for k, v := range attrs {
		node[k] = unquote(v)
	}
	return nil
}

func (c *dotCollector) AddEdge(src, dst string, directed bool, attrs map[string]string) error {
	return c.AddPortEdge(src, "", dst, "", directed, attrs)
}

func (c *dotCollector) AddPortEdge(src, srcPort, dst, dstPort string, _ bool, attrs map[string]string) error {
	e := rawEdge{
		from:     unquote(src),
		fromPort: port(srcPort),
		to:       unquote(dst),
		toPort:   port(dstPort),
	}
	if p, ok := attrs["tailport"]; ok {
		e.fromPort = port(p)
	}
	if p, ok := attrs["headport"]; ok {
		e.toPort = port(p)
	}
	c.ensure(e.from)
	c.ensure(e.to)
	c.edges = append(c.edges, e)
	return nil
}

func (c *dotCollector) AddAttr(_ string, _, _ string) error                { return nil }
func (c *dotCollector) AddSubGraph(_, _ string, _ map[string]string) error { return nil }

func (c *dotCollector) ensure(id string) map[string]string {
	node, ok := c.nodes[id]
	if !ok {
		node = make(map[string]string)
		c.nodes[id] = node
		c.order = append(c.order, id)
	}
	return node
}

// unquote strips surrounding double quotes from a DOT value and resolves the
// \" and \n escapes.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
		s = strings.NewReplacer(`\"`, `"`, `\n`, "\n", `\\`, `\`).Replace(s)
	}
	return s
}

func port(p string) string {
	return unquote(strings.TrimPrefix(strings.TrimSpace(p), ":"))
}
