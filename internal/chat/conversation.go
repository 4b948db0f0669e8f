package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SummaryStore is the durable mapping from session id to SessionSummary.
// Load of a missing id returns (nil, nil). Save wholly replaces the record.
type SummaryStore interface {
	Save(sessionID string, summary *SessionSummary) error
	Load(sessionID string) (*SessionSummary, error)
}

// SessionService is the session-existence boundary plus the durable
// transcript. EnsureSession is idempotent: create-if-absent, no-op if
// present.
type SessionService interface {
	EnsureSession(ctx context.Context, userID, sessionID string) error
	AppendMessage(ctx context.Context, sessionID string, m Message) error
}

// ResultType distinguishes the two outcomes of a turn.
type ResultType string

const (
	ResultClarification ResultType = "clarification"
	ResultResponse      ResultType = "response"
)

// Result is the outcome of one turn: either clarifying questions to put to
// the user, or the assistant's reply.
type Result struct {
	Type      ResultType
	Reply     string
	Questions []string
}

// ConversationConfig wires a Conversation's collaborators and tuning knobs.
// Generate and Summaries are required; everything else has a default.
type ConversationConfig struct {
	UserID    string
	SessionID string

	Generate  Generator
	Model     string
	Summaries SummaryStore
	Sessions  SessionService // optional durable transcript

	SummarizeThreshold       int
	RecentWindow             int
	HistoryCap               int
	PostSummaryTail          int
	MaxClarificationAttempts int

	// CallTimeout bounds each outbound model call. Zero means no timeout.
	CallTimeout time.Duration

	Logger *zap.Logger
}

// Conversation is the stateful per-session orchestrator. It exclusively
// owns the short-term history and clarification state for its session and
// processes turns strictly sequentially.
type Conversation struct {
	cfg           ConversationConfig
	summarizer    *Summarizer
	understanding *QueryUnderstanding
	log           *zap.Logger

	mu      sync.Mutex
	history []Message
	summary *SessionSummary

	awaiting bool
	pending  string
	attempts int
}

// NewConversation builds a Conversation, loading any previously persisted
// summary for the session into the cache.
func NewConversation(cfg ConversationConfig) (*Conversation, error) {
	if cfg.Generate == nil {
		return nil, errors.New("chat: conversation requires a Generator")
	}
	if cfg.Summaries == nil {
		return nil, errors.New("chat: conversation requires a SummaryStore")
	}
	if cfg.SummarizeThreshold <= 0 {
		cfg.SummarizeThreshold = DefaultSummarizeThreshold
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = DefaultMaxRecent
	}
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = 12
	}
	if cfg.PostSummaryTail <= 0 {
		cfg.PostSummaryTail = 4
	}
	if cfg.MaxClarificationAttempts <= 0 {
		cfg.MaxClarificationAttempts = 1
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	c := &Conversation{
		cfg:           cfg,
		summarizer:    NewSummarizer(cfg.Generate, cfg.Model),
		understanding: NewQueryUnderstanding(cfg.Generate, cfg.Model),
		log:           log,
	}

	summary, err := cfg.Summaries.Load(cfg.SessionID)
	if err != nil {
		// A broken summary record must not block the conversation.
		log.Warn("load persisted summary failed", zap.String("session", cfg.SessionID), zap.Error(err))
	} else {
		c.summary = summary
	}

	return c, nil
}

// Chat processes one user turn: clarification resolution, summarization,
// query understanding, and either a clarification result or a generated
// response. Turns for one Conversation run strictly sequentially.
func (c *Conversation) Chat(ctx context.Context, userInput string) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// The backing store may have been recreated between process runs.
	if c.cfg.Sessions != nil {
		if err := c.cfg.Sessions.EnsureSession(ctx, c.cfg.UserID, c.cfg.SessionID); err != nil {
			c.log.Warn("ensure session failed", zap.String("session", c.cfg.SessionID), zap.Error(err))
		}
	}

	// Snapshot for rollback: a failed summarization aborts the turn with
	// history and clarification state exactly as they were.
	snapLen := len(c.history)
	snapAwaiting, snapPending, snapAttempts := c.awaiting, c.pending, c.attempts

	effective := userInput
	if c.awaiting {
		effective = c.pending + " | User clarification: " + userInput
		c.awaiting = false
		c.pending = ""
	}

	c.history = append(c.history, Message{Role: RoleUser, Content: effective})

	size := ContextSize(c.history)
	if ShouldSummarize(size, c.cfg.SummarizeThreshold) {
		c.log.Debug("summarizing session",
			zap.String("session", c.cfg.SessionID),
			zap.Int("context_chars", size))

		summary, err := c.summarizeLocked(ctx)
		if err != nil {
			c.history = c.history[:snapLen]
			c.awaiting, c.pending, c.attempts = snapAwaiting, snapPending, snapAttempts
			return Result{}, err
		}
		c.summary = summary

		// Always truncate after summarization: the summary now carries the
		// older context.
		if len(c.history) > c.cfg.PostSummaryTail {
			c.history = c.history[len(c.history)-c.cfg.PostSummaryTail:]
		}
	}

	qu := c.analyze(ctx, effective)
	if qu.ErrNote != "" {
		c.log.Debug("query understanding degraded", zap.String("note", qu.ErrNote))
	}
	c.log.Debug("query understanding verdict",
		zap.Bool("is_ambiguous", qu.Rewrite.IsAmbiguous),
		zap.String("rewritten_query", qu.Rewrite.RewrittenQuery),
		zap.Bool("need_clarification", qu.Clarification.NeedClarification),
		zap.Int("clarification_attempts", c.attempts))

	finalQuery := effective
	if qu.Rewrite.IsAmbiguous && qu.Rewrite.RewrittenQuery != "" {
		finalQuery = qu.Rewrite.RewrittenQuery
	}

	// One clarification round per exchange: past the cap, answer directly.
	needClarification := qu.Clarification.NeedClarification
	if c.attempts >= c.cfg.MaxClarificationAttempts {
		needClarification = false
	}

	if needClarification {
		c.awaiting = true
		c.pending = finalQuery
		c.attempts++
		return Result{Type: ResultClarification, Questions: qu.Clarification.Questions}, nil
	}

	c.appendDurable(ctx, Message{Role: RoleUser, Content: effective})

	prompt := Augment(finalQuery, nil, c.summary, c.cfg.RecentWindow)

	callCtx, cancel := c.callContext(ctx)
	reply, err := c.cfg.Generate(callCtx, prompt, c.cfg.Model)
	cancel()
	if err != nil {
		return Result{}, fmt.Errorf("chat: generate response: %w", err)
	}

	c.history = append(c.history, Message{Role: RoleAssistant, Content: reply})
	c.appendDurable(ctx, Message{Role: RoleAssistant, Content: reply})

	if len(c.history) > c.cfg.HistoryCap {
		c.history = c.history[len(c.history)-c.cfg.HistoryCap:]
	}

	// The exchange ended in a direct response; the next query starts a
	// fresh clarification budget.
	c.attempts = 0

	return Result{Type: ResultResponse, Reply: reply}, nil
}

// summarizeLocked runs the summarizer over the full short-term history and
// persists the result. Caller holds c.mu.
func (c *Conversation) summarizeLocked(ctx context.Context) (*SessionSummary, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	summary, err := c.summarizer.Summarize(callCtx, c.history)
	if err != nil {
		return nil, err
	}
	if err := c.cfg.Summaries.Save(c.cfg.SessionID, summary); err != nil {
		return nil, fmt.Errorf("chat: persist summary: %w", err)
	}
	return summary, nil
}

func (c *Conversation) analyze(ctx context.Context, effective string) Understanding {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	recent := c.history
	if len(recent) > c.cfg.RecentWindow {
		recent = recent[len(recent)-c.cfg.RecentWindow:]
	}
	return c.understanding.Analyze(callCtx, effective, recent, c.summary)
}

func (c *Conversation) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.CallTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.cfg.CallTimeout)
}

// appendDurable writes a message to the durable transcript, best-effort.
func (c *Conversation) appendDurable(ctx context.Context, m Message) {
	if c.cfg.Sessions == nil {
		return
	}
	if err := c.cfg.Sessions.AppendMessage(ctx, c.cfg.SessionID, m); err != nil {
		c.log.Warn("append durable message failed",
			zap.String("session", c.cfg.SessionID), zap.Error(err))
	}
}

// History returns a copy of the short-term history.
func (c *Conversation) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

// Summary returns the cached session summary, or nil if none exists yet.
func (c *Conversation) Summary() *SessionSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary
}

// AwaitingClarification reports whether the next input will be treated as a
// clarification of a pending query.
func (c *Conversation) AwaitingClarification() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaiting
}

// PendingQuery returns the query awaiting clarification, or "" if none.
func (c *Conversation) PendingQuery() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// ClarificationAttempts returns the number of clarification rounds spent on
// the current exchange.
func (c *Conversation) ClarificationAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}
