package chat

import (
	"fmt"
	"unicode/utf8"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// DefaultSummarizeThreshold is the accumulated character count at which
// summarization triggers.
const DefaultSummarizeThreshold = 2000

// ContextSize returns the total number of characters of message content
// across the history. Order-independent. Counts runes, not bytes, so
// non-ASCII conversations are not over-counted.
func ContextSize(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += utf8.RuneCountInString(m.Content)
	}
	return total
}

// ShouldSummarize reports whether the accumulated context size has reached
// the summarization threshold. A non-positive threshold falls back to
// DefaultSummarizeThreshold.
func ShouldSummarize(size, threshold int) bool {
	if threshold <= 0 {
		threshold = DefaultSummarizeThreshold
	}
	return size >= threshold
}

// Tokenizer wraps tiktoken for approximate token counting. Summarization
// decisions are character-based; token counts are reported for diagnostics
// only (status output, verbose logging).
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTokenizer creates a Tokenizer using the cl100k_base encoding, a close
// enough approximation for all supported providers.
func NewTokenizer() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("tokenizer: get encoding: %w", err)
	}
	return &Tokenizer{enc: enc}, nil
}

// Count returns the approximate number of tokens in s.
func (t *Tokenizer) Count(s string) int {
	return len(t.enc.Encode(s, nil, nil))
}

// CountMessages returns the approximate token count of the transcript of
// messages.
func (t *Tokenizer) CountMessages(messages []Message) int {
	return t.Count(Transcript(messages))
}
