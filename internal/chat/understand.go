package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// noPriorContext marks an analysis performed without any conversational
// context (fresh session, empty summary).
const noPriorContext = "No prior context available."

// Rewrite is the ambiguity verdict for a query. RewrittenQuery is only
// meaningful when IsAmbiguous is true.
type Rewrite struct {
	IsAmbiguous    bool   `json:"is_ambiguous"`
	RewrittenQuery string `json:"rewritten_query"`
}

// Clarification is the clarifying-question verdict for a query.
type Clarification struct {
	NeedClarification bool     `json:"need_clarification"`
	Questions         []string `json:"questions"`
}

// Understanding is the transient result of analyzing one query. ErrNote
// records an internal pipeline failure that was absorbed into the safe
// default verdict; it is never shown to the user.
type Understanding struct {
	OriginalQuery string
	Rewrite       Rewrite
	Clarification Clarification
	ErrNote       string
}

// QueryUnderstanding detects ambiguity, produces a disambiguated rewrite,
// and decides whether clarifying questions are required.
type QueryUnderstanding struct {
	generate Generator
	model    string
}

// NewQueryUnderstanding creates the pipeline using the given model call
// boundary.
func NewQueryUnderstanding(generate Generator, model string) *QueryUnderstanding {
	return &QueryUnderstanding{generate: generate, model: model}
}

// Analyze runs the pipeline for one query. It never fails outward: any
// model-call or parse failure degrades to the safe default verdict (not
// ambiguous, no clarification needed) with the cause noted in ErrNote.
func (q *QueryUnderstanding) Analyze(ctx context.Context, userQuery string, recent []Message, summary *SessionSummary) Understanding {
	prompt := buildUnderstandingPrompt(userQuery, buildContextBlock(recent, summary))

	result := safeDefault(userQuery)

	raw, err := q.generate(ctx, prompt, q.model)
	if err != nil {
		result.ErrNote = fmt.Sprintf("query understanding call failed: %v", err)
		return result
	}

	var parsed struct {
		Rewrite       *Rewrite       `json:"rewrite"`
		Clarification *Clarification `json:"clarification"`
	}
	if err := json.Unmarshal([]byte(StripFences(raw)), &parsed); err != nil {
		result.ErrNote = fmt.Sprintf("failed to parse query understanding output: %v", err)
		return result
	}

	// Missing top-level keys keep their declared defaults.
	if parsed.Rewrite != nil {
		result.Rewrite = *parsed.Rewrite
	}
	if parsed.Clarification != nil {
		result.Clarification = *parsed.Clarification
		if result.Clarification.Questions == nil {
			result.Clarification.Questions = []string{}
		}
	}
	return result
}

func safeDefault(userQuery string) Understanding {
	return Understanding{
		OriginalQuery: userQuery,
		Rewrite:       Rewrite{IsAmbiguous: false, RewrittenQuery: ""},
		Clarification: Clarification{NeedClarification: false, Questions: []string{}},
	}
}

// buildContextBlock renders the recent transcript and the summary fields
// relevant to disambiguation.
func buildContextBlock(recent []Message, summary *SessionSummary) string {
	var parts []string

	if len(recent) > 0 {
		parts = append(parts, "Recent conversation:\n"+Transcript(recent))
	}

	if summary != nil {
		if summary.SessionIntent != "" {
			parts = append(parts, "Session intent: "+summary.SessionIntent)
		}
		if len(summary.KeyFacts) > 0 {
			parts = append(parts, "Key facts:\n- "+strings.Join(summary.KeyFacts, "\n- "))
		}
		if len(summary.OpenQuestions) > 0 {
			parts = append(parts, "Open questions:\n- "+strings.Join(summary.OpenQuestions, "\n- "))
		}
	}

	if len(parts) == 0 {
		return noPriorContext
	}
	return strings.Join(parts, "\n")
}

func buildUnderstandingPrompt(userQuery, contextBlock string) string {
	return fmt.Sprintf(`You are a Query Understanding module in a conversational AI system.

Context:
%s

User query:
%q

Tasks:
1. Decide if the query is ambiguous.
2. If ambiguous, rewrite it clearly.
3. Decide if clarifying questions are required.

Return ONLY valid JSON in this exact structure:

{
  "rewrite": {
    "is_ambiguous": true | false,
    "rewritten_query": ""
  },
  "clarification": {
    "need_clarification": true | false,
    "questions": []
  }
}`, contextBlock, userQuery)
}
