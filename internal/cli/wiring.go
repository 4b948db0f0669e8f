package cli

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/memchat/memchat/internal/adapter"
	"github.com/memchat/memchat/internal/chat"
	"github.com/memchat/memchat/internal/config"
	"github.com/memchat/memchat/internal/history"
	"github.com/memchat/memchat/internal/summarystore"
)

// apiKey returns the correct API key from the config for the given provider.
func apiKey(cfg config.Config, provider string) string {
	switch provider {
	case adapter.ProviderClaude:
		return cfg.Keys.Anthropic
	case adapter.ProviderOpenAI:
		return cfg.Keys.OpenAI
	case adapter.ProviderGemini:
		return cfg.Keys.Gemini
	default:
		return ""
	}
}

// effectiveModel resolves the model identifier sent to the provider. An
// empty string leaves the choice to the adapter's default.
func effectiveModel(cfg config.Config, provider string) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	if provider == adapter.ProviderOllama {
		return cfg.Ollama.CompletionModel
	}
	return ""
}

// newGenerator builds the chat.Generator over the configured provider.
func newGenerator(cfg config.Config, provider string) (chat.Generator, error) {
	llm, err := adapter.New(provider, apiKey(cfg, provider), cfg.Ollama.Host)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, prompt, model string) (string, error) {
		return adapter.Generate(ctx, llm, prompt, model)
	}, nil
}

// newConversation wires a Conversation for one session from config: model
// adapter, summary store, and durable history.
func newConversation(cfg config.Config, userID, sessionID, provider string, logger *zap.Logger) (*chat.Conversation, *history.Store, error) {
	if provider == "" {
		provider = cfg.DefaultProvider
	}

	generate, err := newGenerator(cfg, provider)
	if err != nil {
		return nil, nil, err
	}

	summaries, err := summarystore.New(cfg.Storage.SummaryDir)
	if err != nil {
		return nil, nil, err
	}

	sessions, err := history.Open(cfg.Storage.HistoryDB)
	if err != nil {
		return nil, nil, err
	}

	conv, err := chat.NewConversation(chat.ConversationConfig{
		UserID:                   userID,
		SessionID:                sessionID,
		Generate:                 generate,
		Model:                    effectiveModel(cfg, provider),
		Summaries:                summaries,
		Sessions:                 sessions,
		SummarizeThreshold:       cfg.Memory.SummarizeThreshold,
		RecentWindow:             cfg.Memory.RecentWindow,
		HistoryCap:               cfg.Memory.HistoryCap,
		PostSummaryTail:          cfg.Memory.PostSummaryTail,
		MaxClarificationAttempts: cfg.Memory.MaxClarificationAttempts,
		CallTimeout:              time.Duration(cfg.RequestTimeoutSecs) * time.Second,
		Logger:                   logger,
	})
	if err != nil {
		sessions.Close()
		return nil, nil, err
	}

	return conv, sessions, nil
}
