// Package chat implements the session-memory and query-understanding
// pipeline: turn-by-turn conversation orchestration with short-term history,
// durable structured summaries, ambiguity rewriting, and clarification
// sub-dialogues.
package chat

import (
	"context"
	"strings"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn. Messages are append-only and never
// mutated after being added to a history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Generator is the model-call boundary: prompt and model identifier in,
// raw text out. Implementations may block for the full provider round trip
// and should honour ctx cancellation.
type Generator func(ctx context.Context, prompt, model string) (string, error)

// Transcript renders messages as "role: content" lines, order preserved.
func Transcript(messages []Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, string(m.Role)+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// StripFences removes a surrounding markdown code fence from model output.
// A leading language tag on the fence (e.g. ```json) is dropped as well.
// Unfenced input is returned trimmed.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(s), "json") {
		s = strings.TrimSpace(s[4:])
	}
	return s
}
