// internal/api/types.go
package api

import "time"

// Message is the backend's canonical message record, as served by the
// conversation history endpoint.
type Message struct {
	ID                string    `json:"id,omitempty"`
	AgentName         string    `json:"agent_name"`
	Content           string    `json:"content"`
	RoundNumber       int       `json:"round_number"`
	Timestamp         time.Time `json:"timestamp,omitempty"`
	IsInternalThought bool      `json:"is_internal_thought,omitempty"`
}

// Credentials carries the per-provider API keys forwarded to the backend when
// a deliberation starts. Any of them may be empty; the backend decides which
// providers it can run. They are held in memory only and never logged.
type Credentials struct {
	OpenAI   string `json:"openai"`
	Gemini   string `json:"gemini"`
	DeepSeek string `json:"deepseek"`
}
