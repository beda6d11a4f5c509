package jobs

import (
	"go.uber.org/zap"

	"github.com/hkcm91/StickerNestV3-sub013/internal/assets"
	"github.com/hkcm91/StickerNestV3-sub013/internal/engine"
	"github.com/hkcm91/StickerNestV3-sub013/internal/generation"
	"github.com/hkcm91/StickerNestV3-sub013/internal/metrics"
)

// Deps are the external collaborators shared by all handlers.
type Deps struct {
	Transport  engine.Transport
	Generation *generation.Client
	Assets     assets.Store
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Queues lists every queue this package registers handlers for.
func Queues() []string {
	return []string{QueueImage, QueueVideo, QueueWidget, QueueLora}
}

// RegisterAll builds a processor per generation queue and registers them all.
// optsFor supplies per-queue concurrency/attempt settings from configuration.
func RegisterAll(reg *engine.Registry, deps Deps, optsFor func(queue string) engine.Options) error {
	opts := func(queue string) engine.Options {
		o := optsFor(queue)
		o.Logger = deps.Logger
		o.Metrics = deps.Metrics
		return o
	}

	image := engine.NewProcessor[ImagePayload, ImageResult](deps.Transport, QueueImage,
		NewImageHandler(deps.Generation, deps.Assets, deps.Logger), opts(QueueImage))
	if err := reg.Register(image); err != nil {
		return err
	}

	video := engine.NewProcessor[VideoPayload, VideoResult](deps.Transport, QueueVideo,
		NewVideoHandler(deps.Generation, deps.Assets, deps.Logger), opts(QueueVideo))
	if err := reg.Register(video); err != nil {
		return err
	}

	widget := engine.NewProcessor[WidgetPayload, WidgetResult](deps.Transport, QueueWidget,
		NewWidgetHandler(deps.Generation, deps.Assets, deps.Logger), opts(QueueWidget))
	if err := reg.Register(widget); err != nil {
		return err
	}

	lora := engine.NewProcessor[LoraPayload, LoraResult](deps.Transport, QueueLora,
		NewLoraHandler(deps.Generation, deps.Assets, deps.Logger), opts(QueueLora))
	return reg.Register(lora)
}
