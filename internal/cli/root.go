// Package cli defines the Cobra command tree for the memchat CLI.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// version, commit, date are set via -ldflags at build time.
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "memchat",
	Short: "Conversational assistant with session memory and query understanding",
	Long: `Memchat is a chat assistant front-end that augments a single LLM call with
short-term and long-term session memory.

Each turn it decides whether the conversation needs to be summarized into a
structured memory record, whether the query is ambiguous and should be
rewritten or clarified, and assembles prior context into one augmented prompt
before the model is invoked.

Run 'memchat chat' to start a conversation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute(v, c, d string) {
	version, commit, date = v, c, d
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(
		newChatCmd(),
		newSessionsCmd(),
		newResummarizeCmd(),
		newServeCmd(),
		newMCPCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("memchat %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
