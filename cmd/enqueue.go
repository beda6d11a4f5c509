// cmd/enqueue.go
// Manual job submission for development and operations. The web tier is the
// normal producer; these commands speak the same wire format.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hkcm91/StickerNestV3-sub013/internal/config"
	"github.com/hkcm91/StickerNestV3-sub013/internal/jobs"
	"github.com/hkcm91/StickerNestV3-sub013/internal/logging"
	"github.com/hkcm91/StickerNestV3-sub013/internal/queue"
)

var (
	imagePrompt string
	imageStyle  string
	imageWidth  int
	imageHeight int

	videoPrompt   string
	videoDuration int

	widgetDescription  string
	widgetCapabilities []string

	loraName      string
	loraBaseModel string
	loraImages    []string
	loraSteps     int
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Submit a generation job to a queue",
}

var enqueueImageCmd = &cobra.Command{
	Use:   "image",
	Short: "Enqueue a sticker image generation job",
	RunE: func(cmd *cobra.Command, args []string) error {
		return submit(jobs.QueueImage, jobs.KindImage, jobs.ImagePayload{
			Prompt: imagePrompt,
			Style:  imageStyle,
			Width:  imageWidth,
			Height: imageHeight,
		})
	},
}

var enqueueVideoCmd = &cobra.Command{
	Use:   "video",
	Short: "Enqueue a video generation job",
	RunE: func(cmd *cobra.Command, args []string) error {
		return submit(jobs.QueueVideo, jobs.KindVideo, jobs.VideoPayload{
			Prompt:      videoPrompt,
			DurationSec: videoDuration,
		})
	},
}

var enqueueWidgetCmd = &cobra.Command{
	Use:   "widget",
	Short: "Enqueue a widget generation job",
	RunE: func(cmd *cobra.Command, args []string) error {
		return submit(jobs.QueueWidget, jobs.KindWidget, jobs.WidgetPayload{
			Description:  widgetDescription,
			Capabilities: widgetCapabilities,
		})
	},
}

var enqueueLoraCmd = &cobra.Command{
	Use:   "lora",
	Short: "Enqueue a LoRA training job",
	RunE: func(cmd *cobra.Command, args []string) error {
		return submit(jobs.QueueLora, jobs.KindLora, jobs.LoraPayload{
			Name:      loraName,
			BaseModel: loraBaseModel,
			ImageURLs: loraImages,
			Steps:     loraSteps,
		})
	},
}

func submit(queueName, kind string, payload any) error {
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

	id, err := transport.Enqueue(ctx, queueName, kind, payload)
	if err != nil {
		return err
	}
	color.Green("✅ Enqueued on %s", queueName)
	fmt.Printf("   - Job ID: %s\n", id)
	return nil
}

func init() {
	rootCmd.AddCommand(enqueueCmd)
	enqueueCmd.AddCommand(enqueueImageCmd, enqueueVideoCmd, enqueueWidgetCmd, enqueueLoraCmd)

	enqueueImageCmd.Flags().StringVar(&imagePrompt, "prompt", "", "Image prompt (required)")
	enqueueImageCmd.Flags().StringVar(&imageStyle, "style", "", "Sticker style preset")
	enqueueImageCmd.Flags().IntVar(&imageWidth, "width", 0, "Output width in pixels")
	enqueueImageCmd.Flags().IntVar(&imageHeight, "height", 0, "Output height in pixels")
	enqueueImageCmd.MarkFlagRequired("prompt")

	enqueueVideoCmd.Flags().StringVar(&videoPrompt, "prompt", "", "Video prompt (required)")
	enqueueVideoCmd.Flags().IntVar(&videoDuration, "duration", 0, "Clip length in seconds")
	enqueueVideoCmd.MarkFlagRequired("prompt")

	enqueueWidgetCmd.Flags().StringVar(&widgetDescription, "description", "", "What the widget should do (required)")
	enqueueWidgetCmd.Flags().StringSliceVar(&widgetCapabilities, "capability", nil, "Canvas capability the widget may use (repeatable)")
	enqueueWidgetCmd.MarkFlagRequired("description")

	enqueueLoraCmd.Flags().StringVar(&loraName, "name", "", "Model name (required)")
	enqueueLoraCmd.Flags().StringVar(&loraBaseModel, "base-model", "", "Base model to fine-tune (required)")
	enqueueLoraCmd.Flags().StringSliceVar(&loraImages, "image", nil, "Training image URL (repeatable)")
	enqueueLoraCmd.Flags().IntVar(&loraSteps, "steps", 0, "Training steps")
	enqueueLoraCmd.MarkFlagRequired("name")
	enqueueLoraCmd.MarkFlagRequired("base-model")
}
