package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/memchat/memchat/internal/chat"
	"github.com/memchat/memchat/internal/config"
)

func newChatCmd() *cobra.Command {
	var (
		sessionID string
		userID    string
		provider  string
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start a terminal chat loop. The session id selects which long-term memory
(summary) is loaded and updated; reusing an id continues that session's
memory across runs.

Examples:
  memchat chat
  memchat chat --session planning --provider claude
  memchat chat --verbose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if sessionID == "" {
				sessionID = uuid.NewString()
				fmt.Fprintf(os.Stderr, "[session %s]\n", sessionID)
			}

			logger := zap.NewNop()
			if verbose {
				logger, err = zap.NewDevelopment()
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}
			}

			conv, sessions, err := newConversation(cfg, userID, sessionID, provider, logger)
			if err != nil {
				return err
			}
			defer sessions.Close()

			interactive := term.IsTerminal(int(os.Stdin.Fd()))
			if interactive {
				fmt.Println("Chat started. Type 'exit' to quit.")
				fmt.Println("How can I help you today?")
			}

			scanner := bufio.NewScanner(os.Stdin)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

			for {
				if interactive {
					fmt.Print("\nYou: ")
				}
				if !scanner.Scan() {
					break
				}
				input := strings.TrimSpace(scanner.Text())
				if input == "" {
					continue
				}
				if input == "exit" || input == "quit" {
					break
				}

				result, err := conv.Chat(context.Background(), input)
				if err != nil {
					fmt.Fprintf(os.Stderr, "[error] %v\n", err)
					continue
				}

				switch result.Type {
				case chat.ResultClarification:
					fmt.Println("\nAssistant (clarifying):")
					for _, q := range result.Questions {
						fmt.Printf("  - %s\n", q)
					}
				default:
					fmt.Printf("\nAssistant: %s\n", result.Reply)
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			if interactive {
				fmt.Println("\nSee you later!")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id (default: a fresh random id)")
	cmd.Flags().StringVarP(&userID, "user", "u", "local", "user id recorded with the session")
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "LLM provider override: claude, openai, gemini, ollama")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log summarization and query-understanding decisions")

	return cmd
}
