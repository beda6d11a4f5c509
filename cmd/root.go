// cmd/root.go
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	debugMode bool
)

// getEnvOrDefault returns the value of an environment variable or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nestd",
	Short: "nestd runs StickerNest's background AI generation jobs",
	Long: `The StickerNest job engine. Claims image, video, widget, and LoRA
training jobs from Redis Streams queues, executes them against the
generation service, and records the produced assets.

The web tier enqueues jobs; nestd is the worker side only.`,
	Version: Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", getEnvOrDefault("NESTD_CONFIG", ""), "Path to worker config file (or set NESTD_CONFIG env)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
}
