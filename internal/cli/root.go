package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/yildizm/logsift/internal/common"
)

var (
	cfgFile   string
	verbose   bool
	noColor   bool
	outputFmt string
	logFormat string
)

// NewRootCommand creates the root command
func NewRootCommand(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "logsift",
		Short: "Log normalization and classification pipeline",
		Long: `logsift turns raw, heterogeneous log text into structured records.

Each record carries a normalized timestamp, level, source component, message
and a short problem label. Multi-line entries such as stack traces are kept
together. Records can be enriched with remediation advice from a local LLM,
with a deterministic fallback when none is reachable.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "", "output format (terminal, json, csv, markdown)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "diagnostic log format (console, json)")

	// Add subcommands
	rootCmd.AddCommand(newParseCommand())
	rootCmd.AddCommand(newRecommendCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newInspectCommand())
	rootCmd.AddCommand(newClassifyCommand())
	rootCmd.AddCommand(newProblemsCommand())
	rootCmd.AddCommand(newQueryCommand())
	rootCmd.AddCommand(newKnowledgeCommand())
	rootCmd.AddCommand(newCacheCommand())
	rootCmd.AddCommand(newHealthCommand())
	rootCmd.AddCommand(newLLMCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newVersionCommand(version, commit, date))

	return rootCmd
}

func newVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display version number, build commit, date, and runtime information",
		Run: func(cmd *cobra.Command, args []string) {
			displayVersion := version
			displayCommit := commit
			displayDate := date

			if version == "dev" || version == "" {
				displayVersion = "development"
			}
			if commit == "none" || commit == "" {
				displayCommit = "local-build"
			}
			if date == "unknown" || date == "" {
				displayDate = "local-build"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "logsift %s (%s) built on %s\n", displayVersion, displayCommit, displayDate)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// ExitCode maps a command error to the process exit status: 2 for input
// that could not be processed, 1 for everything else
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case common.IsInputError(err):
		return 2
	default:
		return 1
	}
}

// Global helpers
func isVerbose() bool {
	return verbose
}
