package schema

// Graph is the canonical canvas payload: nodes, labeled directed edges, and
// purely organizational repeat zones. It is the shape shared by clipboard
// transfer, duplication, and file import/export.
type Graph struct {
	Nodes       []Node       `json:"nodes"`
	Edges       []Edge       `json:"edges"`
	RepeatZones []RepeatZone `json:"repeat_zones,omitempty"`
}

// Node is a typed step on the canvas, identified by a session-stable slug.
type Node struct {
	Slug        string         `json:"slug"`
	Kind        NodeKind       `json:"kind"`
	DisplayName string         `json:"display_name,omitempty"`
	AgentKey    string         `json:"agent_key,omitempty"`
	IsEnabled   bool           `json:"is_enabled"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	// Selected is the visual selection flag maintained by the editor.
	// It never travels on the wire.
	Selected bool `json:"-"`
}

// Edge is a directed connection between two nodes. Condition is the branch
// label, meaningful only when the source node is a condition kind.
type Edge struct {
	Source    string         `json:"source"`
	Target    string         `json:"target"`
	Condition string         `json:"condition,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	// ID identifies the edge within a live graph. It is allocated on
	// insertion and never serialized; re-imported edges get fresh IDs.
	ID string `json:"-"`

	// Selected is the visual selection flag maintained by the editor.
	Selected bool `json:"-"`
}

// RepeatZone is a named rectangular grouping of nodes. Organizational only:
// no cross-node invariant depends on zone membership.
type RepeatZone struct {
	ID        string         `json:"id"`
	Label     string         `json:"label,omitempty"`
	Bounds    Bounds         `json:"bounds"`
	NodeSlugs []string       `json:"node_slugs,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Bounds is a zone rectangle in canvas coordinates. Width and Height are
// never negative after decoding.
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Position is a point in canvas model coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// WorkflowImport is a decoded wire document: the graph plus optional
// workflow-level metadata, each field independently normalized from its
// current or legacy key name.
type WorkflowImport struct {
	Graph        Graph  `json:"graph"`
	WorkflowID   int64  `json:"workflow_id,omitempty"`
	Slug         string `json:"slug,omitempty"`
	DisplayName  string `json:"display_name,omitempty"`
	Description  string `json:"description,omitempty"`
	VersionName  string `json:"version_name,omitempty"`
	MarkAsActive bool   `json:"mark_as_active,omitempty"`
}

// Position returns the node's canvas position from metadata, if present.
func (n *Node) Position() (Position, bool) {
	raw, ok := n.Metadata["position"]
	if !ok {
		return Position{}, false
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return Position{}, false
	}
	x, xok := toFloat(m["x"])
	y, yok := toFloat(m["y"])
	if !xok || !yok {
		return Position{}, false
	}
	return Position{X: x, Y: y}, true
}

// SetPosition stores the node's canvas position in metadata.
func (n *Node) SetPosition(p Position) {
	if n.Metadata == nil {
		n.Metadata = make(map[string]any, 1)
	}
	n.Metadata["position"] = map[string]any{"x": p.X, "y": p.Y}
}

// Clone returns a deep copy of the node, including its parameter and
// metadata bags.
func (n Node) Clone() Node {
	out := n
	out.Parameters = CloneBag(n.Parameters)
	out.Metadata = CloneBag(n.Metadata)
	return out
}

// Clone returns a deep copy of the edge, including its metadata bag.
func (e Edge) Clone() Edge {
	out := e
	out.Metadata = CloneBag(e.Metadata)
	return out
}

// Clone returns a deep copy of the zone, including slugs and metadata.
func (z RepeatZone) Clone() RepeatZone {
	out := z
	if z.NodeSlugs != nil {
		out.NodeSlugs = append([]string(nil), z.NodeSlugs...)
	}
	out.Metadata = CloneBag(z.Metadata)
	return out
}

// Clone returns a deep copy of the whole graph.
func (g Graph) Clone() Graph {
	out := Graph{}
	if g.Nodes != nil {
		out.Nodes = make([]Node, len(g.Nodes))
		for i, n := range g.Nodes {
			out.Nodes[i] = n.Clone()
		}
	}
	if g.Edges != nil {
		out.Edges = make([]Edge, len(g.Edges))
		for i, e := range g.Edges {
			out.Edges[i] = e.Clone()
		}
	}
	if g.RepeatZones != nil {
		out.RepeatZones = make([]RepeatZone, len(g.RepeatZones))
		for i, z := range g.RepeatZones {
			out.RepeatZones[i] = z.Clone()
		}
	}
	return out
}

// CloneBag deep-copies a JSON-shaped bag. Values that are not maps, slices,
// or scalars are carried over as-is.
func CloneBag(bag map[string]any) map[string]any {
	if bag == nil {
		return nil
	}
	out := make(map[string]any, len(bag))
	for k, v := range bag {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneBag(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
