package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "meeting-minutes",
	Short: "Summarize meeting transcripts with LLM providers",
	Long: `meeting-minutes stores meetings and their transcripts and turns a
transcript into a structured summary by summarizing overlapping windows
concurrently and merging the results in order.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("MINUTES_CONFIG"), "path to the YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
