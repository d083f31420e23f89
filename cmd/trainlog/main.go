package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kalambet/trainlog/internal/config"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "trainlog",
	Short: "Personal workout log with coaching analysis",
	Long: `trainlog keeps a daily workout log on disk and generates coaching
analysis for logged sessions via the Anthropic API.

Run "trainlog start" to launch the server, then use the client commands
(log, show, list, analyze, ...) against it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(configCmd)
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".trainlog"
	}
	return filepath.Join(home, ".trainlog")
}

func loadConfig() (config.Config, error) {
	return config.Load(configDir())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
