package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/memchat/memchat/internal/chat"
	"github.com/memchat/memchat/internal/config"
	"github.com/memchat/memchat/internal/history"
	"github.com/memchat/memchat/internal/summarystore"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and stored state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			fmt.Printf("Provider:              %s\n", cfg.DefaultProvider)
			model := cfg.Model
			if model == "" {
				model = "(adapter default)"
			}
			fmt.Printf("Model:                 %s\n", model)
			fmt.Printf("Summarize threshold:   %d chars\n", cfg.Memory.SummarizeThreshold)
			fmt.Printf("Recent window:         %d messages\n", cfg.Memory.RecentWindow)
			fmt.Printf("History cap:           %d messages\n", cfg.Memory.HistoryCap)
			fmt.Printf("Clarification rounds:  %d max\n", cfg.Memory.MaxClarificationAttempts)

			store, err := summarystore.New(cfg.Storage.SummaryDir)
			if err != nil {
				return err
			}
			ids, err := store.SessionIDs()
			if err != nil {
				return err
			}
			fmt.Printf("\nSummary store:         %s (%d memories)\n", cfg.Storage.SummaryDir, len(ids))

			if tok, err := chat.NewTokenizer(); err == nil && len(ids) > 0 {
				total := 0
				for _, id := range ids {
					summary, err := store.Load(id)
					if err != nil || summary == nil {
						continue
					}
					total += tok.Count(chat.Augment("", nil, summary, 0))
				}
				fmt.Printf("Memory footprint:      ~%d tokens across stored memories\n", total)
			}

			fmt.Printf("History DB:            %s", cfg.Storage.HistoryDB)
			if fi, err := os.Stat(cfg.Storage.HistoryDB); err == nil {
				sessions, err := history.Open(cfg.Storage.HistoryDB)
				if err == nil {
					defer sessions.Close()
					sids, _ := sessions.SessionIDs(context.Background())
					fmt.Printf(" (%d sessions, %d KB)", len(sids), fi.Size()/1024)
				}
			} else {
				fmt.Print(" (not created yet)")
			}
			fmt.Println()

			return nil
		},
	}
}
