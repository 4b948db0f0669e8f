package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// scriptedModel fakes the model boundary, routing by the instruction text
// each pipeline stage embeds in its prompt.
type scriptedModel struct {
	summaryOut string
	summaryErr error
	quOut      string
	quErr      error
	replyOut   string
	replyErr   error

	summaryCalls int
	quCalls      int
	replyCalls   int

	lastSummaryPrompt string
	lastReplyPrompt   string
}

func (m *scriptedModel) generate(_ context.Context, prompt, _ string) (string, error) {
	switch {
	case strings.Contains(prompt, "summarizes chat sessions into memory"):
		m.summaryCalls++
		m.lastSummaryPrompt = prompt
		return m.summaryOut, m.summaryErr
	case strings.Contains(prompt, "Query Understanding module"):
		m.quCalls++
		return m.quOut, m.quErr
	default:
		m.replyCalls++
		m.lastReplyPrompt = prompt
		return m.replyOut, m.replyErr
	}
}

const quNoAction = `{"rewrite":{"is_ambiguous":false,"rewritten_query":""},"clarification":{"need_clarification":false,"questions":[]}}`

// memoryStore is an in-memory SummaryStore.
type memoryStore struct {
	mu        sync.Mutex
	saved     map[string]*SessionSummary
	saveErr   error
	saveCalls int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{saved: make(map[string]*SessionSummary)}
}

func (s *memoryStore) Save(sessionID string, summary *SessionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved[sessionID] = summary
	return nil
}

func (s *memoryStore) Load(sessionID string) (*SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved[sessionID], nil
}

// fakeSessions records calls to the session-existence boundary.
type fakeSessions struct {
	ensures   int
	ensureErr error
	appended  []Message
}

func (f *fakeSessions) EnsureSession(_ context.Context, _, _ string) error {
	f.ensures++
	return f.ensureErr
}

func (f *fakeSessions) AppendMessage(_ context.Context, _ string, m Message) error {
	f.appended = append(f.appended, m)
	return nil
}

func newTestConversation(t *testing.T, model *scriptedModel, store *memoryStore, mutate func(*ConversationConfig)) *Conversation {
	t.Helper()
	cfg := ConversationConfig{
		UserID:    "tester",
		SessionID: "s1",
		Generate:  model.generate,
		Model:     "test-model",
		Summaries: store,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	conv, err := NewConversation(cfg)
	if err != nil {
		t.Fatalf("NewConversation: %v", err)
	}
	return conv
}

func assertClarificationInvariant(t *testing.T, c *Conversation) {
	t.Helper()
	if c.AwaitingClarification() != (c.PendingQuery() != "") {
		t.Errorf("invariant violated: awaiting=%v pending=%q",
			c.AwaitingClarification(), c.PendingQuery())
	}
}

func TestConversation_SimpleTurn(t *testing.T) {
	model := &scriptedModel{quOut: quNoAction, replyOut: "It's sunny."}
	store := newMemoryStore()
	sessions := &fakeSessions{}
	conv := newTestConversation(t, model, store, func(cfg *ConversationConfig) {
		cfg.Sessions = sessions
	})

	result, err := conv.Chat(context.Background(), "What's the weather?")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if result.Type != ResultResponse {
		t.Fatalf("type: got %q, want response", result.Type)
	}
	if result.Reply != "It's sunny." {
		t.Errorf("reply: got %q", result.Reply)
	}

	// With no summary and no recent block, the prompt is the bare query.
	if model.lastReplyPrompt != "What's the weather?" {
		t.Errorf("prompt: got %q, want bare query", model.lastReplyPrompt)
	}

	history := conv.History()
	if len(history) != 2 {
		t.Fatalf("history: got %d messages, want 2", len(history))
	}
	if history[0].Role != RoleUser || history[1].Role != RoleAssistant {
		t.Errorf("history roles: got %v / %v", history[0].Role, history[1].Role)
	}

	if sessions.ensures != 1 {
		t.Errorf("ensure session calls: got %d, want 1", sessions.ensures)
	}
	if len(sessions.appended) != 2 {
		t.Errorf("durable appends: got %d, want 2", len(sessions.appended))
	}
	if store.saveCalls != 0 {
		t.Errorf("unexpected summarization: %d saves", store.saveCalls)
	}
	assertClarificationInvariant(t, conv)
}

func TestConversation_ClarificationFlow(t *testing.T) {
	model := &scriptedModel{
		quOut:    `{"rewrite":{"is_ambiguous":false,"rewritten_query":""},"clarification":{"need_clarification":true,"questions":["Which one do you mean?"]}}`,
		replyOut: "The blue one it is.",
	}
	store := newMemoryStore()
	conv := newTestConversation(t, model, store, nil)

	result, err := conv.Chat(context.Background(), "I'll take it")
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if result.Type != ResultClarification {
		t.Fatalf("turn 1 type: got %q, want clarification", result.Type)
	}
	if len(result.Questions) != 1 || result.Questions[0] != "Which one do you mean?" {
		t.Errorf("questions: got %v", result.Questions)
	}
	if !conv.AwaitingClarification() {
		t.Fatal("should be awaiting clarification")
	}
	if conv.PendingQuery() != "I'll take it" {
		t.Errorf("pending: got %q", conv.PendingQuery())
	}
	if conv.ClarificationAttempts() != 1 {
		t.Errorf("attempts: got %d, want 1", conv.ClarificationAttempts())
	}
	// No assistant message is appended for a clarification.
	if got := conv.History(); len(got) != 1 {
		t.Errorf("history after clarification: got %d messages, want 1", len(got))
	}
	assertClarificationInvariant(t, conv)

	// The next raw input resolves the clarification; the orchestrator owns
	// the prefixing, not the front end.
	result, err = conv.Chat(context.Background(), "yes, the blue one")
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if result.Type != ResultResponse {
		t.Fatalf("turn 2 type: got %q", result.Type)
	}

	wantEffective := "I'll take it | User clarification: yes, the blue one"
	if model.lastReplyPrompt != wantEffective {
		t.Errorf("effective input: got %q, want %q", model.lastReplyPrompt, wantEffective)
	}
	if conv.AwaitingClarification() {
		t.Error("clarification state must reset after resolution")
	}
	if conv.ClarificationAttempts() != 0 {
		t.Errorf("attempts after direct response: got %d, want 0", conv.ClarificationAttempts())
	}
	assertClarificationInvariant(t, conv)
}

func TestConversation_ClarificationCap(t *testing.T) {
	// The model insists on clarifying every query.
	model := &scriptedModel{
		quOut:    `{"rewrite":{"is_ambiguous":false,"rewritten_query":""},"clarification":{"need_clarification":true,"questions":["Hm?"]}}`,
		replyOut: "Answering directly.",
	}
	conv := newTestConversation(t, model, newMemoryStore(), func(cfg *ConversationConfig) {
		cfg.MaxClarificationAttempts = 1
	})

	result, err := conv.Chat(context.Background(), "do the thing")
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if result.Type != ResultClarification {
		t.Fatalf("turn 1: got %q, want clarification", result.Type)
	}

	// Past the cap, the verdict is overridden and a direct response is
	// produced.
	result, err = conv.Chat(context.Background(), "just do it")
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if result.Type != ResultResponse {
		t.Fatalf("turn 2: got %q, want forced response", result.Type)
	}
	if conv.AwaitingClarification() {
		t.Error("no clarification may be pending after the cap")
	}
	assertClarificationInvariant(t, conv)
}

func TestConversation_AmbiguousRewrite(t *testing.T) {
	model := &scriptedModel{
		quOut:    `{"rewrite":{"is_ambiguous":true,"rewritten_query":"what is the weather in Lisbon?"},"clarification":{"need_clarification":false,"questions":[]}}`,
		replyOut: "Sunny in Lisbon.",
	}
	conv := newTestConversation(t, model, newMemoryStore(), nil)

	_, err := conv.Chat(context.Background(), "what about there?")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if model.lastReplyPrompt != "what is the weather in Lisbon?" {
		t.Errorf("generation must use the rewrite, got %q", model.lastReplyPrompt)
	}
	// Short-term history records what the user actually said.
	if got := conv.History()[0].Content; got != "what about there?" {
		t.Errorf("history content: got %q", got)
	}
}

func TestConversation_SummarizationTriggers(t *testing.T) {
	model := &scriptedModel{
		summaryOut: validSummaryJSON,
		quOut:      quNoAction,
		replyOut:   "ok",
	}
	store := newMemoryStore()
	conv := newTestConversation(t, model, store, func(cfg *ConversationConfig) {
		cfg.SummarizeThreshold = 40
		cfg.PostSummaryTail = 2
	})

	long := strings.Repeat("tell me more about laptops ", 3)
	if _, err := conv.Chat(context.Background(), long); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if model.summaryCalls != 1 {
		t.Fatalf("summary calls: got %d, want 1", model.summaryCalls)
	}
	if store.saveCalls != 1 {
		t.Errorf("summary saves: got %d, want 1", store.saveCalls)
	}
	if store.saved["s1"] == nil {
		t.Fatal("summary not persisted under the session id")
	}
	if conv.Summary() == nil || conv.Summary().SessionIntent != "compare laptops" {
		t.Errorf("cached summary not replaced: %+v", conv.Summary())
	}

	// The summarized context now flows into the generation prompt.
	if !strings.Contains(model.lastReplyPrompt, "Session memory:") {
		t.Errorf("prompt missing session memory:\n%s", model.lastReplyPrompt)
	}

	// History truncated to the tail, then the assistant reply appended.
	if got := len(conv.History()); got > 3 {
		t.Errorf("history after summarization: got %d messages, want <= 3", got)
	}
}

func TestConversation_SummarizeFailureRollsBack(t *testing.T) {
	model := &scriptedModel{
		quOut:    `{"rewrite":{"is_ambiguous":false,"rewritten_query":""},"clarification":{"need_clarification":true,"questions":["Which?"]}}`,
		replyOut: "ok",
	}
	store := newMemoryStore()
	conv := newTestConversation(t, model, store, func(cfg *ConversationConfig) {
		cfg.SummarizeThreshold = 100000
	})

	// Set up a pending clarification.
	if _, err := conv.Chat(context.Background(), "pick it"); err != nil {
		t.Fatalf("setup turn: %v", err)
	}
	if !conv.AwaitingClarification() {
		t.Fatal("setup: expected pending clarification")
	}
	historyBefore := len(conv.History())

	// The resolving turn trips summarization, which fails.
	conv.cfg.SummarizeThreshold = 1
	model.summaryOut = ""

	_, err := conv.Chat(context.Background(), "the red one")
	if !errors.Is(err, ErrEmptyModelOutput) {
		t.Fatalf("got %v, want ErrEmptyModelOutput", err)
	}

	// Turn aborted with state exactly as it was.
	if got := len(conv.History()); got != historyBefore {
		t.Errorf("history: got %d messages, want %d", got, historyBefore)
	}
	if !conv.AwaitingClarification() {
		t.Error("clarification state must survive an aborted turn")
	}
	if conv.PendingQuery() != "pick it" {
		t.Errorf("pending: got %q, want %q", conv.PendingQuery(), "pick it")
	}
	if conv.ClarificationAttempts() != 1 {
		t.Errorf("attempts: got %d, want 1", conv.ClarificationAttempts())
	}
	assertClarificationInvariant(t, conv)

	// A persistence failure aborts the same way.
	model.summaryOut = validSummaryJSON
	store.saveErr = errors.New("disk full")
	if _, err := conv.Chat(context.Background(), "the red one"); err == nil {
		t.Fatal("expected error when persisting the summary fails")
	}
	if got := len(conv.History()); got != historyBefore {
		t.Errorf("history after save failure: got %d, want %d", got, historyBefore)
	}
	if !conv.AwaitingClarification() {
		t.Error("clarification state must survive a save failure")
	}
}

func TestConversation_UnderstandingFailureProceeds(t *testing.T) {
	model := &scriptedModel{
		quErr:    errors.New("transport down"),
		replyOut: "still answering",
	}
	conv := newTestConversation(t, model, newMemoryStore(), nil)

	result, err := conv.Chat(context.Background(), "hello?")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if result.Type != ResultResponse || result.Reply != "still answering" {
		t.Errorf("turn must proceed on understanding failure, got %+v", result)
	}
}

func TestConversation_GenerateFailurePropagates(t *testing.T) {
	boom := errors.New("rate limited")
	model := &scriptedModel{quOut: quNoAction, replyErr: boom}
	conv := newTestConversation(t, model, newMemoryStore(), nil)

	_, err := conv.Chat(context.Background(), "hi")
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want wrapped transport error", err)
	}

	// The accepted user message stays; no assistant message was appended.
	history := conv.History()
	if len(history) != 1 || history[0].Role != RoleUser {
		t.Errorf("history: got %+v", history)
	}
	assertClarificationInvariant(t, conv)
}

func TestConversation_LoadsPersistedSummary(t *testing.T) {
	store := newMemoryStore()
	store.saved["s1"] = &SessionSummary{KeyFacts: []string{"user is vegetarian"}}

	model := &scriptedModel{quOut: quNoAction, replyOut: "noted"}
	conv := newTestConversation(t, model, store, nil)

	if _, err := conv.Chat(context.Background(), "suggest dinner"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if !strings.Contains(model.lastReplyPrompt, "user is vegetarian") {
		t.Errorf("persisted summary not injected:\n%s", model.lastReplyPrompt)
	}
}

func TestConversation_HistoryCap(t *testing.T) {
	model := &scriptedModel{quOut: quNoAction, replyOut: "ok"}
	conv := newTestConversation(t, model, newMemoryStore(), func(cfg *ConversationConfig) {
		cfg.HistoryCap = 4
		cfg.SummarizeThreshold = 1 << 20
	})

	for i := 0; i < 6; i++ {
		if _, err := conv.Chat(context.Background(), "short message"); err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}

	if got := len(conv.History()); got != 4 {
		t.Errorf("history: got %d messages, want 4", got)
	}
}

func TestConversation_EnsureSessionBestEffort(t *testing.T) {
	model := &scriptedModel{quOut: quNoAction, replyOut: "fine"}
	sessions := &fakeSessions{ensureErr: errors.New("db gone")}
	conv := newTestConversation(t, model, newMemoryStore(), func(cfg *ConversationConfig) {
		cfg.Sessions = sessions
	})

	result, err := conv.Chat(context.Background(), "hi")
	if err != nil {
		t.Fatalf("ensure-session failure must not abort the turn: %v", err)
	}
	if result.Reply != "fine" {
		t.Errorf("reply: got %q", result.Reply)
	}
}
