package main

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "serptracker",
	Short: "Track search result positions of campaign websites",
	Long: `serptracker finds where a set of websites ranks for a search query.
A campaign is resolved in one paginated scan shared by all its websites, within a daily
search API quota. Results are cached and persisted for trend reporting.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".env", "path to an optional env file")
}
