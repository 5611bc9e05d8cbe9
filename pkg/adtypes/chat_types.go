// Package adtypes defines conversation types for the adsdash chat assistant.
// Conversations are persisted as a JSON array under a single storage key.
package adtypes

import "encoding/json"

// Message roles.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// Message is a single chat message. Agent messages grow while a response streams in.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is a titled list of messages identified by its creation time in milliseconds.
type Conversation struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message        string            `json:"message"`
	Messages       []Message         `json:"messages"`
	SelectedTables []string          `json:"selectedTables"`
	SEOPagesData   json.RawMessage   `json:"seo_pages_data"`
	RuleOverrides  map[string]string `json:"rule_overrides,omitempty"`
}

// AgentRule is the response of GET /api/agent-rules/{domain}.
type AgentRule struct {
	RulePrompt string `json:"rule_prompt,omitempty"`
}

// AgentRuleUpdate is the body of POST /api/agent-rules.
type AgentRuleUpdate struct {
	TableName  string `json:"table_name"`
	RulePrompt string `json:"rule_prompt"`
}

// AgentPrompt is the response of GET /api/agent-prompts/{domain}.
type AgentPrompt struct {
	DefaultPrompt string `json:"default_prompt"`
}
