package diagram

// NodeKind classifies a diagram node by its cell shape.
type NodeKind string

const (
	NodeKindStart    NodeKind = "start"
	NodeKindBehavior NodeKind = "behavior"
	NodeKindBranch   NodeKind = "branch"
	NodeKindVirtual  NodeKind = "virtual"
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Levels [][]string
}

// Node is one graph node.
type Node struct {
	ID      string
	Label   string
	Kind    NodeKind
	Trigger string
	OnPath  bool // walked by an online preview from the entry node
}

// Edge connects two nodes. Label carries the source port when there is one.
type Edge struct {
	From  string
	To    string
	Label string
}
