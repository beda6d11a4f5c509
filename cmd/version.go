// cmd/version.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set via -ldflags at release build time.
var Version = "3.0.0-dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the nestd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("nestd %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
