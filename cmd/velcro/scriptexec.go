package main

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/velcrohq/velcro/internal/engine"
)

var scriptPathFlag string

// scriptExecCmd is the child-side entry point of script isolation. The
// engine re-execs the running binary with this hidden command; the script is
// interpreted here, in a process that exists only for this one invocation,
// so a termination request inside the script can never take down the
// dispatcher.
var scriptExecCmd = &cobra.Command{
	Use:    "script-exec",
	Short:  "Run a handler script in isolation (internal)",
	Hidden: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if scriptPathFlag == "" {
			return errors.New("--script is required")
		}

		code := engine.RunScriptFile(
			cmd.Context(),
			scriptPathFlag,
			cmd.InOrStdin(),
			cmd.OutOrStdout(),
			cmd.ErrOrStderr(),
			os.Environ(),
		)

		// The script's requested exit status becomes this process's exit
		// code; the parent classifies it through the standard protocol.
		os.Exit(code)

		return nil
	},
}

func init() {
	scriptExecCmd.Flags().StringVar(&scriptPathFlag, "script", "", "Path to the script file")

	rootCmd.AddCommand(scriptExecCmd)
}
