package diagram

import (
	"sort"

	"github.com/rendis/flowcode/internal/graph"
	"github.com/rendis/flowcode/pkg/schema"
)

// Build constructs a DiagramModel from a graph document. The document is
// cloned so that entry resolution never touches the caller's copy. Nodes on
// the preview path from the resolved entry are flagged; a virtual entry node
// appears in the model when the document has no entry node.
func Build(doc *schema.GraphDocument, title string) (*DiagramModel, error) {
	work, err := doc.Clone()
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "clone graph document").WithCause(err)
	}
	g, err := graph.Read(work)
	if err != nil {
		return nil, err
	}
	start, err := g.ResolveStart()
	if err != nil {
		return nil, err
	}
	path, err := g.Path(start)
	if err != nil {
		return nil, err
	}
	onPath := make(map[string]bool, len(path))
	for _, n := range path {
		onPath[n.ID] = true
	}

	model := &DiagramModel{Title: title}
	for _, c := range g.Nodes {
		data := c.DataOrZero()
		label := data.Label
		if label == "" {
			label = c.ID
		}
		model.Nodes = append(model.Nodes, &Node{
			ID:      c.ID,
			Label:   label,
			Kind:    kindOf(c),
			Trigger: data.Trigger,
			OnPath:  onPath[c.ID],
		})
	}
	for _, e := range g.Edges {
		if e.Source == nil || e.Target == nil {
			continue
		}
		model.Edges = append(model.Edges, Edge{From: e.Source.Cell, To: e.Target.Cell, Label: e.Source.Port})
	}
	model.Levels = buildLevels(model)
	return model, nil
}

func kindOf(c *schema.Cell) NodeKind {
	switch {
	case c.ID == schema.VirtualEntryID:
		return NodeKindVirtual
	case c.Shape == schema.EntryShape:
		return NodeKindStart
	case c.Shape == schema.BranchShape:
		return NodeKindBranch
	default:
		return NodeKindBehavior
	}
}

// buildLevels assigns each node the length of the longest edge chain leading
// to it. Nodes caught in a cycle are placed on a final level.
func buildLevels(model *DiagramModel) [][]string {
	inDegree := make(map[string]int, len(model.Nodes))
	succ := make(map[string][]string, len(model.Nodes))
	known := make(map[string]bool, len(model.Nodes))
	for _, n := range model.Nodes {
		known[n.ID] = true
	}
	for _, e := range model.Edges {
		if !known[e.From] || !known[e.To] {
			continue
		}
		succ[e.From] = append(succ[e.From], e.To)
		inDegree[e.To]++
	}

	level := make(map[string]int, len(model.Nodes))
	var queue []string
	for _, n := range model.Nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}
	placed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		placed++
		for _, next := range succ[id] {
			if level[id]+1 > level[next] {
				level[next] = level[id] + 1
			}
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	maxLevel := 0
	for _, l := range level {
		if l > maxLevel {
			maxLevel = l
		}
	}
	levels := make([][]string, maxLevel+1)
	var stuck []string
	for _, n := range model.Nodes {
		if inDegree[n.ID] > 0 {
			stuck = append(stuck, n.ID)
			continue
		}
		levels[level[n.ID]] = append(levels[level[n.ID]], n.ID)
	}
	for _, l := range levels {
		sort.Strings(l)
	}
	if len(stuck) > 0 {
		levels = append(levels, stuck)
	}
	return levels
}
