// Package main provides the CLI entry point for velcro.
package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// Dispatcher exit codes. The contract is bit-exact with the handler
// protocol: 0 allows, 2 blocks.
const (
	// ExitCodeAllow indicates the operation should proceed.
	ExitCodeAllow = 0

	// ExitCodeFailure indicates a non-blocking dispatcher failure.
	ExitCodeFailure = 1

	// ExitCodeBlock indicates the aggregate decision blocked the
	// operation.
	ExitCodeBlock = 2

	// ExitCodeCrash indicates an unexpected panic occurred.
	ExitCodeCrash = 3
)

var (
	hookTypeFlag   string
	debugFlag      bool
	traceFlag      bool
	configPathFlag string
)

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() (exitCode int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "velcro: panic: %v\n", r)

			exitCode = ExitCodeCrash
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		var blockErr *blockedError
		if errors.As(err, &blockErr) {
			fmt.Fprintf(os.Stderr, "velcro: blocked: %s\n", blockErr.reason)

			return ExitCodeBlock
		}

		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		return ExitCodeFailure
	}

	return ExitCodeAllow
}

// blockedError carries a blocking decision out of the dispatch command so
// the process can exit with the blocking exit code.
type blockedError struct {
	reason string
}

// Error implements the error interface.
func (e *blockedError) Error() string {
	return "operation blocked: " + e.reason
}

var rootCmd = &cobra.Command{
	Use:   "velcro",
	Short: "Hook dispatcher for the Claude Code tool-use loop",
	Long: `Velcro intercepts lifecycle events from the host tool-use loop and
dispatches them to user-registered handlers, merging their verdicts into a
single allow/block decision.

The event is read as JSON from stdin; the decision is reported through the
exit code (0 allow, 2 block) and a structured JSON response on stdout.`,
	SilenceUsage:      true,
	RunE:              runDispatch,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

func init() {
	rootCmd.Flags().StringVarP(
		&hookTypeFlag,
		"hook-type",
		"T",
		"",
		"Hook event name, used when the payload omits hook_event_name",
	)
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&traceFlag, "trace", false, "Enable trace logging")
	rootCmd.PersistentFlags().StringVarP(
		&configPathFlag,
		"config",
		"c",
		"",
		"Path to the global configuration file (default: ~/.velcro/config.toml)",
	)
}
