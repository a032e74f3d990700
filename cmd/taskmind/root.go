package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "taskmind",
	Short: "Request classification and pipeline orchestration engine",
	Long: `TaskMind routes free-form requests to the right capability and, when a
request asks for several things, chains the capabilities into a pipeline.

A request like "download this video and transcribe it" is classified
against the capability registry, compiled into a download -> transcribe
pipeline, and executed step by step with retries, progress reporting, and
cancellation.

Core capabilities (see 'taskmind agents'):
- Download videos and audio
- Transcribe audio and video to text
- Convert media formats
- Scrape web pages
- Handle PDF documents
- Upload results to cloud storage`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
