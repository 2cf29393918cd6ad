package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	internalconfig "github.com/velcrohq/velcro/internal/config"
	"github.com/velcrohq/velcro/pkg/config"
	"github.com/velcrohq/velcro/pkg/hook"
)

var (
	addTypeFlag    string
	addHooksFlag   []string
	addMatcherFlag string
	addCommandFlag string
	addCodeFlag    string
	addPathFlag    string
	addArgsFlag    []string
	addEnvFlag     []string
	addTimeoutFlag time.Duration
)

var handlerCmd = &cobra.Command{
	Use:   "handler",
	Short: "Manage handler definitions",
}

var handlerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured handlers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if len(cfg.Handlers) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No handlers configured.")

			return nil
		}

		table := tablewriter.NewTable(cmd.OutOrStdout())
		table.Header([]string{"Name", "Type", "Hooks", "Matcher", "Enabled", "Source"})

		for _, h := range cfg.Handlers {
			hooks := make([]string, len(h.Hooks))
			for i, hk := range h.Hooks {
				hooks[i] = string(hk)
			}

			_ = table.Append([]string{
				h.Name,
				string(h.Type),
				strings.Join(hooks, ", "),
				h.Matcher,
				fmt.Sprintf("%t", h.Enabled()),
				h.Source,
			})
		}

		return table.Render()
	},
}

var handlerAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a handler definition to the global config",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		hooks := make([]hook.EventName, 0, len(addHooksFlag))

		for _, raw := range addHooksFlag {
			name, err := hook.ParseEventName(raw)
			if err != nil {
				return err
			}

			hooks = append(hooks, name)
		}

		env, err := parseEnvFlags(addEnvFlag)
		if err != nil {
			return err
		}

		h := &config.Handler{
			Name:    args[0],
			Hooks:   hooks,
			Type:    config.HandlerType(addTypeFlag),
			Code:    addCodeFlag,
			Command: addCommandFlag,
			Path:    addPathFlag,
			Args:    addArgsFlag,
			Env:     env,
			Matcher: addMatcherFlag,
			Timeout: addTimeoutFlag,
		}

		return newWriter().AddHandler(h)
	},
}

var handlerRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a handler definition from the global config",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return newWriter().RemoveHandler(args[0])
	},
}

var handlerEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a handler globally",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return newWriter().SetHandlerDisabled(args[0], false)
	},
}

var handlerDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a handler globally",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return newWriter().SetHandlerDisabled(args[0], true)
	},
}

// newWriter creates a config writer for the global config file, honoring
// --config.
func newWriter() *internalconfig.Writer {
	path := configPathFlag
	if path == "" {
		path = config.ExpandPath("~/" + config.GlobalConfigDir + "/" + config.GlobalConfigFile)
	}

	return internalconfig.NewWriter(path)
}

// parseEnvFlags parses repeated KEY=VALUE flags.
func parseEnvFlags(entries []string) (map[string]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	env := make(map[string]string, len(entries))

	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			return nil, errors.Newf("invalid env entry %q, expected KEY=VALUE", entry)
		}

		env[key] = value
	}

	return env, nil
}

func init() {
	handlerAddCmd.Flags().StringVar(&addTypeFlag, "type", "", "Handler type (script, function, command, external)")
	handlerAddCmd.Flags().StringSliceVar(&addHooksFlag, "hook", nil, "Hook event the handler attaches to (repeatable)")
	handlerAddCmd.Flags().StringVar(&addMatcherFlag, "matcher", "", "Tool name pattern (regex; empty or * matches all)")
	handlerAddCmd.Flags().StringVar(&addCommandFlag, "command", "", "Shell command payload (type=command)")
	handlerAddCmd.Flags().StringVar(&addCodeFlag, "code", "", "Script statements or function name payload (type=script|function)")
	handlerAddCmd.Flags().StringVar(&addPathFlag, "path", "", "Executable path payload (type=external)")
	handlerAddCmd.Flags().StringSliceVar(&addArgsFlag, "arg", nil, "Argument for external handlers (repeatable)")
	handlerAddCmd.Flags().StringSliceVar(&addEnvFlag, "env", nil, "KEY=VALUE environment entry (repeatable)")
	handlerAddCmd.Flags().DurationVar(&addTimeoutFlag, "timeout", 0, "Recorded timeout value (not enforced)")

	handlerCmd.AddCommand(
		handlerListCmd,
		handlerAddCmd,
		handlerRemoveCmd,
		handlerEnableCmd,
		handlerDisableCmd,
	)
	rootCmd.AddCommand(handlerCmd)
}
