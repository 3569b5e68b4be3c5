package schema

// NodeKind is the closed type tag of a canvas node. It governs the node's
// parameter shape and which structural rules apply to it.
type NodeKind string

const (
	KindStart             NodeKind = "start"
	KindEnd               NodeKind = "end"
	KindAgent             NodeKind = "agent"
	KindCondition         NodeKind = "condition"
	KindParallelSplit     NodeKind = "parallel_split"
	KindParallelJoin      NodeKind = "parallel_join"
	KindStateUpdate       NodeKind = "state_update"
	KindTransform         NodeKind = "transform"
	KindWidget            NodeKind = "widget"
	KindNote              NodeKind = "note"
	KindGuardrail         NodeKind = "guardrail"
	KindFileSearch        NodeKind = "file_search"
	KindVectorStoreIngest NodeKind = "vector_store_ingest"
	KindMCPTool           NodeKind = "mcp_tool"
	KindCodeInterpreter   NodeKind = "code_interpreter"
	KindUserApproval      NodeKind = "user_approval"
	KindWait              NodeKind = "wait"
	KindHTTPRequest       NodeKind = "http_request"
	KindHandoff           NodeKind = "handoff"
	KindSubflow           NodeKind = "subflow"
)

// knownKinds is the closed set of node kinds the engine accepts.
// Bulk insertion drops nodes whose kind is not in this set.
var knownKinds = map[NodeKind]bool{
	KindStart:             true,
	KindEnd:               true,
	KindAgent:             true,
	KindCondition:         true,
	KindParallelSplit:     true,
	KindParallelJoin:      true,
	KindStateUpdate:       true,
	KindTransform:         true,
	KindWidget:            true,
	KindNote:              true,
	KindGuardrail:         true,
	KindFileSearch:        true,
	KindVectorStoreIngest: true,
	KindMCPTool:           true,
	KindCodeInterpreter:   true,
	KindUserApproval:      true,
	KindWait:              true,
	KindHTTPRequest:       true,
	KindHandoff:           true,
	KindSubflow:           true,
}

// KnownKind reports whether kind is a member of the closed kind set.
func KnownKind(kind NodeKind) bool {
	return knownKinds[kind]
}

// AllKinds returns the closed kind set in declaration order.
func AllKinds() []NodeKind {
	return []NodeKind{
		KindStart, KindEnd, KindAgent, KindCondition,
		KindParallelSplit, KindParallelJoin, KindStateUpdate, KindTransform,
		KindWidget, KindNote, KindGuardrail, KindFileSearch,
		KindVectorStoreIngest, KindMCPTool, KindCodeInterpreter, KindUserApproval,
		KindWait, KindHTTPRequest, KindHandoff, KindSubflow,
	}
}
