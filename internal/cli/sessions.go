package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/memchat/memchat/internal/chat"
	"github.com/memchat/memchat/internal/config"
	"github.com/memchat/memchat/internal/summarystore"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage stored session memories",
	}
	cmd.AddCommand(
		newSessionsListCmd(),
		newSessionsShowCmd(),
		newSessionsForgetCmd(),
		newSessionsWatchCmd(),
	)
	return cmd
}

func openSummaryStore() (*summarystore.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return summarystore.New(cfg.Storage.SummaryDir)
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List session ids with a stored memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSummaryStore()
			if err != nil {
				return err
			}

			ids, err := store.SessionIDs()
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Println("No stored session memories.")
				return nil
			}

			for _, id := range ids {
				summary, err := store.Load(id)
				if err != nil {
					fmt.Printf("%s  (unreadable: %v)\n", id, err)
					continue
				}
				intent := summary.SessionIntent
				if intent == "" {
					intent = "(no recorded intent)"
				}
				fmt.Printf("%s  %d facts, %d decisions, %d open questions  %s\n",
					id, len(summary.KeyFacts), len(summary.Decisions),
					len(summary.OpenQuestions), intent)
			}
			return nil
		},
	}
}

func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print the stored memory for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSummaryStore()
			if err != nil {
				return err
			}

			summary, err := store.Load(args[0])
			if err != nil {
				return err
			}
			if summary == nil {
				return fmt.Errorf("no stored memory for session %q", args[0])
			}

			printSection := func(heading string, items []string) {
				if len(items) == 0 {
					return
				}
				fmt.Printf("\n%s:\n", heading)
				for _, it := range items {
					fmt.Printf("  - %s\n", it)
				}
			}

			fmt.Printf("Session: %s\n", args[0])
			if summary.SessionIntent != "" {
				fmt.Printf("Intent:  %s\n", summary.SessionIntent)
			}
			printSection("Key facts", summary.KeyFacts)
			printSection("Decisions", summary.Decisions)
			printSection("Constraints", summary.Constraints)
			printSection("Open questions", summary.OpenQuestions)
			printSection("Todos", summary.Todos)
			if len(summary.UserProfile) > 0 {
				fmt.Println("\nUser profile:")
				for k, v := range summary.UserProfile {
					fmt.Printf("  %s: %v\n", k, v)
				}
			}
			if summary.SummaryText != "" {
				fmt.Printf("\nSummary:\n%s\n", summary.SummaryText)
			}

			// Approximate prompt cost of carrying this memory.
			if tok, err := chat.NewTokenizer(); err == nil {
				block := chat.Augment("", nil, summary, 0)
				fmt.Printf("\n~%d tokens when injected into a prompt\n", tok.Count(block))
			}
			return nil
		},
	}
}

func newSessionsForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget <session-id>",
		Short: "Delete the stored memory for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSummaryStore()
			if err != nil {
				return err
			}
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("Forgot session %s.\n", args[0])
			return nil
		},
	}
}

func newSessionsWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the summary directory and report memory updates",
		Long: `Start a long-running watcher on the summary store directory, printing a
line whenever another memchat process writes or removes a session memory.

Press Ctrl-C to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSummaryStore()
			if err != nil {
				return err
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer watcher.Close()

			if err := watcher.Add(store.Dir()); err != nil {
				return fmt.Errorf("watch %s: %w", store.Dir(), err)
			}
			fmt.Printf("Watching %s. Press Ctrl-C to stop.\n", store.Dir())

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			for {
				select {
				case <-sigCh:
					fmt.Println("\nStopped.")
					return nil
				case err := <-watcher.Errors:
					fmt.Fprintf(os.Stderr, "[watch error] %v\n", err)
				case ev := <-watcher.Events:
					name := filepath.Base(ev.Name)
					if !strings.HasSuffix(name, ".json") {
						continue
					}
					id := strings.TrimSuffix(name, ".json")
					switch {
					case ev.Op.Has(fsnotify.Remove):
						fmt.Printf("memory removed: %s\n", id)
					case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Rename):
						// Atomic saves land as a rename onto the final name.
						fmt.Printf("memory updated: %s\n", id)
					}
				}
			}
		},
	}
}
