package cli

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/memchat/memchat/internal/chat"
	"github.com/memchat/memchat/internal/config"
	"github.com/memchat/memchat/internal/history"
	mcpserver "github.com/memchat/memchat/internal/mcp"
	"github.com/memchat/memchat/internal/summarystore"
)

func newMCPCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the chat operation as an MCP tool over stdio",
		Long: `Expose memchat as an MCP server so MCP clients can hold memory-backed
conversations through a single 'chat' tool. Communication is over
stdin/stdout; add it to the client's MCP server configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if provider == "" {
				provider = cfg.DefaultProvider
			}

			generate, err := newGenerator(cfg, provider)
			if err != nil {
				return err
			}
			summaries, err := summarystore.New(cfg.Storage.SummaryDir)
			if err != nil {
				return err
			}
			sessions, err := history.Open(cfg.Storage.HistoryDB)
			if err != nil {
				return err
			}
			defer sessions.Close()

			open := func(sessionID string) (*chat.Conversation, error) {
				return chat.NewConversation(chat.ConversationConfig{
					UserID:                   "mcp",
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
					Logger:                   zap.NewNop(),
				})
			}

			return mcpserver.NewServer(version, open).ServeStdio()
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "LLM provider override: claude, openai, gemini, ollama")

	return cmd
}
