package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyModelOutput is returned when the model produced empty or
// whitespace-only text for a summarization request.
var ErrEmptyModelOutput = errors.New("chat: model returned empty output for session summary")

// MalformedSummaryError is returned when model output could not be parsed
// into the SessionSummary schema. Raw carries the unmodified model output
// for diagnostics.
type MalformedSummaryError struct {
	Raw string
	Err error
}

func (e *MalformedSummaryError) Error() string {
	return fmt.Sprintf("chat: malformed session summary: %v", e.Err)
}

func (e *MalformedSummaryError) Unwrap() error {
	return e.Err
}

const summaryInstruction = `You are a system component that summarizes chat sessions into memory.

Your output MUST be a valid JSON object.
Do NOT include markdown, comments, or extra text.

The JSON MUST strictly follow this schema:

{
  "session_intent": string | null,
  "user_profile": object,
  "key_facts": string[],
  "decisions": string[],
  "constraints": string[],
  "open_questions": string[],
  "todos": string[],
  "summary_text": string | null
}

Rules:
- All fields MUST be present.
- Use null instead of missing values.
- Use empty arrays or empty objects if no data.
- Output JSON ONLY.

Conversation:
`

// Summarizer turns a message history into a SessionSummary via a model call.
type Summarizer struct {
	generate Generator
	model    string
}

// NewSummarizer creates a Summarizer using the given model call boundary.
func NewSummarizer(generate Generator, model string) *Summarizer {
	return &Summarizer{generate: generate, model: model}
}

// Summarize distills messages into a structured SessionSummary. It fails
// with ErrEmptyModelOutput when the model produced nothing, and with a
// *MalformedSummaryError when the output did not match the schema.
// Persistence of the result is the caller's responsibility.
func (s *Summarizer) Summarize(ctx context.Context, messages []Message) (*SessionSummary, error) {
	prompt := summaryInstruction + Transcript(messages)

	raw, err := s.generate(ctx, prompt, s.model)
	if err != nil {
		return nil, fmt.Errorf("chat: summarize: %w", err)
	}

	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyModelOutput
	}

	summary, err := DecodeSummary([]byte(StripFences(raw)))
	if err != nil {
		return nil, &MalformedSummaryError{Raw: raw, Err: err}
	}
	return summary, nil
}
