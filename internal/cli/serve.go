package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/memchat/memchat/internal/chat"
	"github.com/memchat/memchat/internal/config"
	"github.com/memchat/memchat/internal/history"
	"github.com/memchat/memchat/internal/summarystore"
	"github.com/memchat/memchat/internal/web"
)

func newServeCmd() *cobra.Command {
	var (
		addr     string
		provider string
		userID   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the browser chat UI",
		Long: `Start an HTTP server with a single-page chat UI and a JSON API
(POST /api/chat). Each browser session gets its own session id and its own
long-term memory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Web.Addr
			}
			if provider == "" {
				provider = cfg.DefaultProvider
			}

			logger, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logger.Sync()

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
			}

			fmt.Printf("memchat web UI on http://%s\n", addr)
			return web.NewServer(open, logger).ListenAndServe(addr)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default from config)")
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "LLM provider override: claude, openai, gemini, ollama")
	cmd.Flags().StringVarP(&userID, "user", "u", "web", "user id recorded with new sessions")

	return cmd
}
