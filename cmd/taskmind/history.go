package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/taskmind/taskmind/internal/config"
	"github.com/taskmind/taskmind/internal/state"
	"github.com/taskmind/taskmind/pkg/models"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent pipelines",
	Long: `Show recent pipelines from the history database, newest first.
Pipelines left in flight by a crashed or killed process show as abandoned.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		db, err := state.Open(statePath(cfg))
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return err
		}

		entries, err := db.List(historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No pipelines recorded yet.")
			return nil
		}
		for _, e := range entries {
			printHistoryEntry(e)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum entries to show")
}

func printHistoryEntry(e state.HistoryEntry) {
	style := color.New(color.Faint)
	switch e.Status {
	case models.PipelineSucceeded:
		style = color.New(color.FgGreen)
	case models.PipelineFailed:
		style = color.New(color.FgRed)
	case models.PipelineAbandoned:
		style = color.New(color.FgYellow)
	}

	ts := e.CreatedAt.Format("2006-01-02 15:04")
	style.Printf("%-9s", e.Status)
	fmt.Printf(" %s  %s  %s", e.ID, ts, e.RequestText)
	if e.Error != "" {
		fmt.Printf("  (%s)", e.Error)
	}
	fmt.Println()
}
