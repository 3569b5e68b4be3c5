package schema

import (
	"encoding/json"
	"math"
	"strings"
)

// ParseWorkflowImport decodes the canonical wire format. The graph payload
// may sit at the document root or under a "graph" key; workflow metadata
// fields accept a current and a legacy key name each. Errors carry one of
// the codec error codes so call sites can map them to scenario-specific
// messages.
func ParseWorkflowImport(data []byte) (*WorkflowImport, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, NewError(ErrCodeInvalidJSON, "document is not valid JSON").WithCause(err)
	}

	root, ok := raw.(map[string]any)
	if !ok {
		return nil, NewError(ErrCodeInvalidGraph, "document root must be an object")
	}

	payload := root
	if nested, ok := root["graph"].(map[string]any); ok {
		payload = nested
	}

	rawNodes, ok := payload["nodes"].([]any)
	if !ok {
		return nil, NewError(ErrCodeMissingNodes, "graph has no nodes array")
	}
	rawEdges, ok := payload["edges"].([]any)
	if !ok {
		return nil, NewError(ErrCodeInvalidGraph, "graph edges must be an array")
	}

	doc := &WorkflowImport{}

	doc.Graph.Nodes = make([]Node, 0, len(rawNodes))
	for i, item := range rawNodes {
		node, err := decodeNode(i, item)
		if err != nil {
			return nil, err
		}
		doc.Graph.Nodes = append(doc.Graph.Nodes, node)
	}

	doc.Graph.Edges = make([]Edge, 0, len(rawEdges))
	for i, item := range rawEdges {
		edge, err := decodeEdge(i, item)
		if err != nil {
			return nil, err
		}
		doc.Graph.Edges = append(doc.Graph.Edges, edge)
	}

	if rawZones, ok := payload["repeat_zones"].([]any); ok {
		for _, item := range rawZones {
			if zone, ok := decodeRepeatZone(item); ok {
				doc.Graph.RepeatZones = append(doc.Graph.RepeatZones, zone)
			}
		}
	}

	if id, ok := toFloat(root["workflow_id"]); ok {
		doc.WorkflowID = int64(id)
	}
	doc.Slug = firstString(root, "slug", "workflow_slug")
	doc.DisplayName = firstString(root, "display_name", "workflow_display_name")
	doc.Description = firstString(root, "description", "workflow_description")
	doc.VersionName = firstString(root, "version_name", "name")
	if active, ok := root["mark_as_active"].(bool); ok {
		doc.MarkAsActive = active
	}

	return doc, nil
}

// ParseGraph decodes a bare graph payload, ignoring workflow metadata.
func ParseGraph(data []byte) (Graph, error) {
	doc, err := ParseWorkflowImport(data)
	if err != nil {
		return Graph{}, err
	}
	return doc.Graph, nil
}

// EncodeWorkflowExport serializes a document into the canonical wire format.
// The graph always travels under the "graph" key with nodes and edges
// present even when empty; internal edge ids and selection flags are never
// emitted.
func EncodeWorkflowExport(doc WorkflowImport) ([]byte, error) {
	if doc.Graph.Nodes == nil {
		doc.Graph.Nodes = []Node{}
	}
	if doc.Graph.Edges == nil {
		doc.Graph.Edges = []Edge{}
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, NewError(ErrCodeInvalidGraph, "graph cannot be serialized").WithCause(err)
	}
	return out, nil
}

// EncodeGraph serializes a bare graph with no workflow metadata.
func EncodeGraph(g Graph) ([]byte, error) {
	return EncodeWorkflowExport(WorkflowImport{Graph: g})
}

func decodeNode(index int, item any) (Node, error) {
	obj, ok := item.(map[string]any)
	if !ok {
		return Node{}, NewErrorf(ErrCodeInvalidNode, "node %d is not an object", index)
	}
	slug := strings.TrimSpace(stringOr(obj["slug"], ""))
	kind := strings.TrimSpace(stringOr(obj["kind"], ""))
	if slug == "" {
		return Node{}, NewErrorf(ErrCodeInvalidNode, "node %d has no slug", index)
	}
	if kind == "" {
		return Node{}, NewErrorf(ErrCodeInvalidNode, "node %d has no kind", index).WithSlug(slug)
	}

	node := Node{
		Slug:        slug,
		Kind:        NodeKind(kind),
		DisplayName: stringOr(obj["display_name"], ""),
		AgentKey:    stringOr(obj["agent_key"], ""),
		IsEnabled:   boolOr(obj["is_enabled"], true),
	}
	if params, ok := obj["parameters"].(map[string]any); ok {
		node.Parameters = params
	}
	if meta, ok := obj["metadata"].(map[string]any); ok {
		node.Metadata = meta
	}
	return node, nil
}

func decodeEdge(index int, item any) (Edge, error) {
	obj, ok := item.(map[string]any)
	if !ok {
		return Edge{}, NewErrorf(ErrCodeInvalidEdge, "edge %d is not an object", index)
	}
	source := strings.TrimSpace(stringOr(obj["source"], ""))
	target := strings.TrimSpace(stringOr(obj["target"], ""))
	if source == "" || target == "" {
		return Edge{}, NewErrorf(ErrCodeInvalidEdge, "edge %d is missing source or target", index)
	}

	edge := Edge{
		Source:    source,
		Target:    target,
		Condition: stringOr(obj["condition"], ""),
	}
	if meta, ok := obj["metadata"].(map[string]any); ok {
		edge.Metadata = meta
	}
	return edge, nil
}

// decodeRepeatZone is best-effort: a zone without a usable id is dropped
// rather than failing the whole import.
func decodeRepeatZone(item any) (RepeatZone, bool) {
	obj, ok := item.(map[string]any)
	if !ok {
		return RepeatZone{}, false
	}
	id := strings.TrimSpace(stringOr(obj["id"], ""))
	if id == "" {
		return RepeatZone{}, false
	}

	zone := RepeatZone{
		ID:    id,
		Label: stringOr(obj["label"], ""),
	}
	if bounds, ok := obj["bounds"].(map[string]any); ok {
		zone.Bounds = Bounds{
			X:      finiteOr(bounds["x"], 0),
			Y:      finiteOr(bounds["y"], 0),
			Width:  math.Max(0, finiteOr(bounds["width"], 0)),
			Height: math.Max(0, finiteOr(bounds["height"], 0)),
		}
	}
	if slugs, ok := obj["node_slugs"].([]any); ok {
		for _, s := range slugs {
			if str, ok := s.(string); ok && strings.TrimSpace(str) != "" {
				zone.NodeSlugs = append(zone.NodeSlugs, str)
			}
		}
	}
	if meta, ok := obj["metadata"].(map[string]any); ok {
		zone.Metadata = meta
	}
	return zone, true
}

func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}

func boolOr(v any, fallback bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return fallback
}

func finiteOr(v any, fallback float64) float64 {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return fallback
	}
	return f
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
