package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/velcrohq/velcro/internal/overrides"
	"github.com/velcrohq/velcro/pkg/config"
)

var sessionIDArg string

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage per-session handler overrides",
	Long: `Session overrides force-enable or force-disable a handler for one host
session. They take precedence over project overrides and the handler's own
enabled flag, and expire after the configured maximum session age.`,
}

var sessionEnableCmd = &cobra.Command{
	Use:   "enable <handler>",
	Short: "Force-enable a handler for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSessionOverride(cmd, args[0], true)
	},
}

var sessionDisableCmd = &cobra.Command{
	Use:   "disable <handler>",
	Short: "Force-disable a handler for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSessionOverride(cmd, args[0], false)
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear <handler>",
	Short: "Remove a session override for a handler",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if sessionIDArg == "" {
			return errors.New("--session is required")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := loadSessionStore(cfg)
		if err != nil {
			return err
		}

		store.Clear(sessionIDArg, args[0])

		return store.Save(cfg.Session.StateFile)
	},
}

// setSessionOverride records one override and persists the store so the next
// dispatch sees it.
func setSessionOverride(cmd *cobra.Command, handlerName string, enabled bool) error {
	if sessionIDArg == "" {
		return errors.New("--session is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.FindHandler(handlerName) == nil {
		return errors.Newf("handler %q is not configured", handlerName)
	}

	store, err := loadSessionStore(cfg)
	if err != nil {
		return err
	}

	store.Set(sessionIDArg, handlerName, enabled)
	store.Prune()

	if err := store.Save(cfg.Session.StateFile); err != nil {
		return err
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Handler %q %s for session %s\n",
		handlerName, state, sessionIDArg)

	return nil
}

// loadSessionStore builds the session store seeded from the state file.
func loadSessionStore(cfg *config.Config) (*overrides.SessionStore, error) {
	store := overrides.NewSessionStore(overrides.WithMaxAge(cfg.Session.MaxAge))
	if err := store.Load(cfg.Session.StateFile); err != nil {
		return nil, err
	}

	return store, nil
}

func init() {
	sessionCmd.PersistentFlags().StringVar(&sessionIDArg, "session", "", "Host session id")

	sessionCmd.AddCommand(sessionEnableCmd, sessionDisableCmd, sessionClearCmd)
	rootCmd.AddCommand(sessionCmd)
}
