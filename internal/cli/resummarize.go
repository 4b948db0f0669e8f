package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/memchat/memchat/internal/chat"
	"github.com/memchat/memchat/internal/config"
	"github.com/memchat/memchat/internal/history"
	"github.com/memchat/memchat/internal/summarystore"
)

func newResummarizeCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "resummarize [session-id...]",
		Short: "Rebuild stored memories from the durable transcripts",
		Long: `Re-run session summarization over the durable conversation transcripts and
replace the stored memory record for each session.

With no arguments every known session is resummarized; otherwise only the
named sessions are.

Useful after switching models or when a memory record was corrupted.`,
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
			summarizer := chat.NewSummarizer(generate, effectiveModel(cfg, provider))

			store, err := summarystore.New(cfg.Storage.SummaryDir)
			if err != nil {
				return err
			}

			sessions, err := history.Open(cfg.Storage.HistoryDB)
			if err != nil {
				return err
			}
			defer sessions.Close()

			ctx := context.Background()
			ids := args
			if len(ids) == 0 {
				ids, err = sessions.SessionIDs(ctx)
				if err != nil {
					return err
				}
			}
			if len(ids) == 0 {
				fmt.Println("No sessions to resummarize.")
				return nil
			}

			bar := progressbar.NewOptions(len(ids),
				progressbar.OptionSetDescription("  Resummarizing"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)

			var done, skipped, failed int
			for _, id := range ids {
				messages, err := sessions.Messages(ctx, id)
				if err != nil || len(messages) == 0 {
					skipped++
					bar.Add(1)
					continue
				}

				callCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.RequestTimeoutSecs)*time.Second)
				summary, err := summarizer.Summarize(callCtx, messages)
				cancel()
				if err != nil {
					fmt.Fprintf(os.Stderr, "\n[skip] %s: %v\n", id, err)
					failed++
					bar.Add(1)
					continue
				}

				if err := store.Save(id, summary); err != nil {
					fmt.Fprintf(os.Stderr, "\n[skip] %s: %v\n", id, err)
					failed++
					bar.Add(1)
					continue
				}
				done++
				bar.Add(1)
			}

			fmt.Printf("Resummarized %d sessions (%d skipped, %d failed).\n", done, skipped, failed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "LLM provider override: claude, openai, gemini, ollama")

	return cmd
}
