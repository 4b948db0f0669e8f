package chat

import (
	"encoding/json"
	"fmt"
)

// SessionSummary is the structured memory record distilled from a session's
// history. All list fields are always non-nil; optional scalars are empty
// strings when the model reported null.
type SessionSummary struct {
	SessionIntent string                 `json:"session_intent"`
	UserProfile   map[string]interface{} `json:"user_profile"`
	KeyFacts      []string               `json:"key_facts"`
	Decisions     []string               `json:"decisions"`
	Constraints   []string               `json:"constraints"`
	OpenQuestions []string               `json:"open_questions"`
	Todos         []string               `json:"todos"`
	SummaryText   string                 `json:"summary_text"`
}

// Normalize replaces nil collections with their declared empty defaults so a
// decoded summary always satisfies the schema invariants.
func (s *SessionSummary) Normalize() {
	if s.UserProfile == nil {
		s.UserProfile = map[string]interface{}{}
	}
	if s.KeyFacts == nil {
		s.KeyFacts = []string{}
	}
	if s.Decisions == nil {
		s.Decisions = []string{}
	}
	if s.Constraints == nil {
		s.Constraints = []string{}
	}
	if s.OpenQuestions == nil {
		s.OpenQuestions = []string{}
	}
	if s.Todos == nil {
		s.Todos = []string{}
	}
}

// Empty reports whether the summary carries no content at all.
func (s *SessionSummary) Empty() bool {
	if s == nil {
		return true
	}
	return s.SessionIntent == "" &&
		len(s.UserProfile) == 0 &&
		len(s.KeyFacts) == 0 &&
		len(s.Decisions) == 0 &&
		len(s.Constraints) == 0 &&
		len(s.OpenQuestions) == 0 &&
		len(s.Todos) == 0 &&
		s.SummaryText == ""
}

// DecodeSummary parses data as a SessionSummary, applying declared defaults
// for missing or null fields. Unknown fields are ignored.
func DecodeSummary(data []byte) (*SessionSummary, error) {
	var s SessionSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session summary: %w", err)
	}
	s.Normalize()
	return &s, nil
}
