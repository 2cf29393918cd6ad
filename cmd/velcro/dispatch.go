package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/velcrohq/velcro/internal/aggregator"
	"github.com/velcrohq/velcro/internal/audit"
	internalconfig "github.com/velcrohq/velcro/internal/config"
	"github.com/velcrohq/velcro/internal/engine"
	"github.com/velcrohq/velcro/internal/hookresponse"
	"github.com/velcrohq/velcro/internal/matcher"
	"github.com/velcrohq/velcro/internal/modules"
	"github.com/velcrohq/velcro/internal/overrides"
	"github.com/velcrohq/velcro/internal/parser"
	"github.com/velcrohq/velcro/internal/resolver"
	"github.com/velcrohq/velcro/internal/stats"
	"github.com/velcrohq/velcro/pkg/config"
	"github.com/velcrohq/velcro/pkg/hook"
	"github.com/velcrohq/velcro/pkg/logger"
)

// runDispatch reads one event from stdin, runs every applicable handler, and
// reports the merged decision through stdout JSON and the exit code.
func runDispatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := newLogger(cfg)

	evt, err := parser.NewEventParser(cmd.InOrStdin()).Parse(hook.EventName(hookTypeFlag))
	if err != nil {
		return err
	}

	log.Info("dispatching event",
		"event", evt.HookEventName,
		"session", evt.SessionID,
		"tool", evt.ToolName,
	)

	// Session overrides, seeded from the session CLI's state file.
	sessionStore := overrides.NewSessionStore(
		overrides.WithSessionLogger(log),
		overrides.WithMaxAge(cfg.Session.MaxAge),
	)
	if err := sessionStore.Load(cfg.Session.StateFile); err != nil {
		log.Error("failed to load session overrides", "error", err.Error())
	}

	// Project overrides from the nearest ancestor of the event's cwd.
	projectStore := overrides.NewProjectStore(log)
	projectStore.LoadFrom(projectRoot(evt))

	handlers := resolver.New(cfg.Handlers, sessionStore, projectStore, log).Resolve(evt)

	recorder := stats.NewRecorder(cfg.Stats.File, stats.WithLogger(log))
	if err := recorder.Load(); err != nil {
		log.Error("failed to load handler stats", "error", err.Error())
	}

	moduleResolver := modules.NewResolver(cfg.Packages, log)

	eng := engine.New(
		newFuncRegistry(),
		moduleResolver,
		matcher.New(log),
		projectRoot(evt),
		log,
	)

	decision := aggregator.New(eng, recorder, cfg.Dispatch.MaxConcurrent, log).
		Run(cmd.Context(), handlers, evt)

	if err := audit.NewLog(cfg.Audit.File, log).Append(evt, decision); err != nil {
		log.Error("failed to append audit entry", "error", err.Error())
	}

	if resp := hookresponse.Build(evt, decision); resp != nil {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		if err := encoder.Encode(resp); err != nil {
			log.Error("failed to write response", "error", err.Error())
		}
	}

	if decision.Blocked {
		return &blockedError{reason: decision.Reason}
	}

	return nil
}

// loadConfig loads the merged configuration, honoring the --config flag.
func loadConfig() (*config.Config, error) {
	loader, err := internalconfig.NewLoader()
	if err != nil {
		return nil, err
	}

	if configPathFlag != "" {
		loader.SetGlobalConfigPath(configPathFlag)
	}

	return loader.Load()
}

// projectRoot is the directory project discovery starts from: the event's
// cwd, falling back to the process working directory.
func projectRoot(evt *hook.Event) string {
	if evt.CWD != "" {
		return evt.CWD
	}

	wd, err := os.Getwd()
	if err != nil {
		return "."
	}

	return wd
}

// newLogger builds the diagnostic logger from config and flags. Logging
// failures fall back to a no-op logger; diagnostics must never break
// dispatch.
//
//nolint:ireturn // callers only need the interface
func newLogger(cfg *config.Config) logger.Logger {
	debug := cfg.Log.Debug || debugFlag
	trace := cfg.Log.Trace || traceFlag

	if cfg.Log.File == "" {
		return logger.NewNoOpLogger()
	}

	log, err := logger.NewFileLogger(config.ExpandPath(cfg.Log.File), debug, trace)
	if err != nil {
		return logger.NewNoOpLogger()
	}

	return log
}
