package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const validSummaryJSON = `{
	"session_intent": "compare laptops",
	"user_profile": {},
	"key_facts": ["prefers 14 inch screens"],
	"decisions": [],
	"constraints": ["max 1500 USD"],
	"open_questions": [],
	"todos": [],
	"summary_text": "User is comparing laptops under 1500 USD."
}`

func staticGenerator(output string) Generator {
	return func(_ context.Context, _, _ string) (string, error) {
		return output, nil
	}
}

func TestSummarizer_Summarize(t *testing.T) {
	var gotPrompt string
	gen := func(_ context.Context, prompt, model string) (string, error) {
		gotPrompt = prompt
		if model != "test-model" {
			t.Errorf("model: got %q, want %q", model, "test-model")
		}
		return validSummaryJSON, nil
	}

	s := NewSummarizer(gen, "test-model")
	messages := []Message{
		{Role: RoleUser, Content: "I need a new laptop"},
		{Role: RoleAssistant, Content: "What's your budget?"},
	}

	summary, err := s.Summarize(context.Background(), messages)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.SessionIntent != "compare laptops" {
		t.Errorf("intent: got %q", summary.SessionIntent)
	}
	if len(summary.Constraints) != 1 {
		t.Errorf("constraints: got %v", summary.Constraints)
	}

	// The transcript is embedded in the instruction prompt, in order.
	if !strings.Contains(gotPrompt, "user: I need a new laptop\nassistant: What's your budget?") {
		t.Errorf("prompt missing transcript:\n%s", gotPrompt)
	}
	if !strings.Contains(gotPrompt, "valid JSON object") {
		t.Error("prompt missing JSON contract instruction")
	}
}

func TestSummarizer_FencedOutput(t *testing.T) {
	fenced := "```json\n" + validSummaryJSON + "\n```"

	plain, err := NewSummarizer(staticGenerator(validSummaryJSON), "m").
		Summarize(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("plain: %v", err)
	}
	wrapped, err := NewSummarizer(staticGenerator(fenced), "m").
		Summarize(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("fenced: %v", err)
	}

	if plain.SessionIntent != wrapped.SessionIntent || plain.SummaryText != wrapped.SummaryText {
		t.Error("fenced output must parse identically to unfenced output")
	}
}

func TestSummarizer_EmptyOutput(t *testing.T) {
	for _, output := range []string{"", "   ", "\n\t "} {
		_, err := NewSummarizer(staticGenerator(output), "m").
			Summarize(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
		if !errors.Is(err, ErrEmptyModelOutput) {
			t.Errorf("output %q: got %v, want ErrEmptyModelOutput", output, err)
		}
	}
}

func TestSummarizer_MalformedOutput(t *testing.T) {
	raw := "Sure! Here's a summary: the user wants a laptop."
	_, err := NewSummarizer(staticGenerator(raw), "m").
		Summarize(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})

	var malformed *MalformedSummaryError
	if !errors.As(err, &malformed) {
		t.Fatalf("got %v, want *MalformedSummaryError", err)
	}
	if malformed.Raw != raw {
		t.Errorf("raw output not preserved: got %q", malformed.Raw)
	}
	if malformed.Unwrap() == nil {
		t.Error("underlying parse error must be preserved")
	}
}

func TestSummarizer_TransportError(t *testing.T) {
	boom := errors.New("connection refused")
	gen := func(_ context.Context, _, _ string) (string, error) {
		return "", boom
	}

	_, err := NewSummarizer(gen, "m").
		Summarize(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if !errors.Is(err, boom) {
		t.Errorf("transport error not wrapped: got %v", err)
	}
}
