package chat

import "strings"

// DefaultMaxRecent is the number of trailing messages included in the
// recent-conversation block of an augmented prompt.
const DefaultMaxRecent = 3

// Augment builds the final prompt sent to the underlying model by combining
// recent conversation, the relevant fields of the session summary, and the
// current user query. Pure and deterministic. When no context section
// applies, the query is returned unchanged with no wrapping.
func Augment(userQuery string, recent []Message, summary *SessionSummary, maxRecent int) string {
	if maxRecent <= 0 {
		maxRecent = DefaultMaxRecent
	}

	var sections []string

	if len(recent) > 0 {
		tail := recent
		if len(tail) > maxRecent {
			tail = tail[len(tail)-maxRecent:]
		}
		sections = append(sections, "Recent conversation:\n"+Transcript(tail))
	}

	if summary != nil {
		var parts []string

		if summary.SessionIntent != "" {
			parts = append(parts, "Session intent:\n"+summary.SessionIntent)
		}
		if len(summary.KeyFacts) > 0 {
			parts = append(parts, "Key facts:\n- "+strings.Join(summary.KeyFacts, "\n- "))
		}
		if len(summary.Decisions) > 0 {
			parts = append(parts, "Decisions made so far:\n- "+strings.Join(summary.Decisions, "\n- "))
		}
		if len(summary.Constraints) > 0 {
			parts = append(parts, "Constraints:\n- "+strings.Join(summary.Constraints, "\n- "))
		}
		if len(summary.OpenQuestions) > 0 {
			parts = append(parts, "Open questions:\n- "+strings.Join(summary.OpenQuestions, "\n- "))
		}

		if len(parts) > 0 {
			sections = append(sections, "Session memory:\n"+strings.Join(parts, "\n\n"))
		}
	}

	if len(sections) == 0 {
		return userQuery
	}

	return strings.Join(sections, "\n\n") +
		"\n\nCurrent user question:\n" + userQuery +
		"\n\nPlease answer consistently with the context above."
}
