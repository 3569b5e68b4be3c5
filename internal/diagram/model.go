package diagram

import "github.com/easelkit/easel/pkg/schema"

// Model is the intermediate representation used by all renderers.
type Model struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Zones  []Zone
	Levels [][]string
}

// Node represents a single canvas step in the diagram.
type Node struct {
	ID       string
	Label    string
	Kind     schema.NodeKind
	Disabled bool
}

// Edge represents a connection between two nodes. Label carries the
// branch condition, when one is set.
type Edge struct {
	From  string
	To    string
	Label string
}

// Zone groups nodes that repeat together; renderers draw it as a
// dashed cluster.
type Zone struct {
	ID      string
	Label   string
	NodeIDs []string
}
