package params

import "github.com/easelkit/easel/pkg/schema"

// kindDefaults maps node kinds to their bundled default parameter bags.
// Kinds absent from this table resolve to a sanitized clone of whatever the
// caller supplied.
var kindDefaults = map[schema.NodeKind]map[string]any{
	schema.KindCondition: {
		"language":   "cel",
		"expression": "",
		"state_key":  "",
	},
	schema.KindStateUpdate: {
		"language": "cel",
		"updates":  []any{},
	},
	schema.KindTransform: {
		"language": "jq",
		"query":    ".",
	},
	schema.KindGuardrail: {
		"guardrails": []any{},
		"on_fail":    "block",
	},
	schema.KindWait: {
		"mode":             "timer",
		"duration_seconds": float64(0),
	},
	schema.KindHTTPRequest: {
		"method":          "GET",
		"url":             "",
		"headers":         map[string]any{},
		"timeout_seconds": float64(30),
	},
	schema.KindWidget: {
		"source":              sourceLibrary,
		"library_key":         "",
		"variable_expression": "",
	},
	schema.KindParallelSplit: {
		"join_slug":    "",
		"branch_count": float64(2),
	},
}

// baseAgentDefaults is the parameter shape every agent node starts from when
// no preset matches its key.
var baseAgentDefaults = map[string]any{
	"instructions":       "",
	"model":              "gpt-4.1",
	"temperature":        float64(1),
	"output_format":      "text",
	"include_chat_state": true,
	"tools":              []any{},
}

// agentPresets carries the legacy bundled defaults for well-known agent
// keys. Lookup is by the node's agent_key, falling back to its slug, which
// keeps presets working for nodes authored before agent_key existed.
var agentPresets = map[string]map[string]any{
	"classifier": {
		"instructions":       "Classify the user's last message into one of the configured intents and reply with the intent name only.",
		"model":              "gpt-4.1-mini",
		"temperature":        float64(0),
		"output_format":      "text",
		"include_chat_state": true,
		"tools":              []any{},
	},
	"summarizer": {
		"instructions":       "Summarize the conversation so far in at most five sentences.",
		"model":              "gpt-4.1-mini",
		"temperature":        float64(0.3),
		"output_format":      "text",
		"include_chat_state": true,
		"tools":              []any{},
	},
	"escalation": {
		"instructions":       "Draft a handoff summary for a human agent, listing unresolved issues first.",
		"model":              "gpt-4.1",
		"temperature":        float64(0.5),
		"output_format":      "text",
		"include_chat_state": true,
		"tools":              []any{},
	},
}

func agentDefaults(slug, agentKey string) map[string]any {
	key := agentKey
	if key == "" {
		key = slug
	}
	if preset, ok := agentPresets[key]; ok {
		return preset
	}
	return baseAgentDefaults
}
