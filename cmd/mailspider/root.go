package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	mslog "github.com/nao1215/mailspider/internal/log"
)

// NewRootCmd creates the root command for mailspider.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mailspider",
		Short: "Same-host web crawler that collects email addresses",
		Long: `mailspider crawls every page reachable from a seed URL without leaving
the seed's host, and reports the email addresses found in the markup.

Results can be written as text, JSON, Markdown or XLSX, and archived in a
local SQLite database for later searches.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// newLogger creates the secure logger selected by --verbose and --log-json.
// Logs go to stderr so stdout carries only command output.
func newLogger(cmd *cobra.Command) *slog.Logger {
	verbose := getVerboseFlag(cmd)
	asJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		asJSON, _ = cmd.Root().PersistentFlags().GetBool("log-json") //nolint:errcheck // defined on the root command
	}
	if asJSON {
		return mslog.NewSecureJSONLogger(cmd.ErrOrStderr(), verbose)
	}
	return mslog.NewSecureLogger(cmd.ErrOrStderr(), verbose)
}
