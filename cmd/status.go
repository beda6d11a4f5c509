// cmd/status.go
package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hkcm91/StickerNestV3-sub013/internal/config"
	"github.com/hkcm91/StickerNestV3-sub013/internal/engine"
	"github.com/hkcm91/StickerNestV3-sub013/internal/logging"
	"github.com/hkcm91/StickerNestV3-sub013/internal/queue"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the recorded status of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		log, err := logging.New(cfg.Debug || debugMode)
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		transport := queue.New(queue.Config{ConsumerGroup: cfg.ConsumerGroup}, log)
		if err := transport.Connect(ctx, cfg.RedisURL, cfg.RedisPassword); err != nil {
			return err
		}
		defer transport.Close()

		fields, err := transport.GetJobStatus(ctx, args[0])
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			color.Yellow("No status recorded for job %s", args[0])
			return nil
		}

		printStatus(args[0], fields)
		return nil
	},
}

func printStatus(jobID string, fields map[string]string) {
	switch fields["status"] {
	case engine.StatusSucceeded:
		color.Green("Job %s: %s", jobID, fields["status"])
	case engine.StatusFailed:
		color.Red("Job %s: %s", jobID, fields["status"])
	default:
		color.Cyan("Job %s: %s", jobID, fields["status"])
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "status" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("   - %s: %s\n", k, fields[k])
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
