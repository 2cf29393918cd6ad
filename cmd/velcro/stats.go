package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/velcrohq/velcro/internal/stats"
)

var statsResetFlag bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-handler execution statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		recorder := stats.NewRecorder(cfg.Stats.File)
		if err := recorder.Load(); err != nil {
			return err
		}

		if statsResetFlag {
			if err := recorder.Reset(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Handler statistics reset.")

			return nil
		}

		all := recorder.All()
		if len(all) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No handler statistics recorded.")

			return nil
		}

		names := make([]string, 0, len(all))
		for name := range all {
			names = append(names, name)
		}

		sort.Strings(names)

		table := tablewriter.NewTable(cmd.OutOrStdout())
		table.Header([]string{
			"Handler", "Runs", "Failures", "Success", "Avg Duration", "Last Run", "Last Error",
		})

		now := time.Now()

		for _, name := range names {
			entry := all[name]

			_ = table.Append([]string{
				name,
				fmt.Sprintf("%d", entry.Executions),
				fmt.Sprintf("%d", entry.Failures),
				fmt.Sprintf("%.1f%%", entry.SuccessRate),
				entry.AvgDuration.Round(time.Millisecond).String(),
				humanize.RelTime(entry.LastExecution, now, "ago", "from now"),
				entry.LastError,
			})
		}

		return table.Render()
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsResetFlag, "reset", false, "Clear all handler statistics")

	rootCmd.AddCommand(statsCmd)
}
