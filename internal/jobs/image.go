package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hkcm91/StickerNestV3-sub013/internal/assets"
	"github.com/hkcm91/StickerNestV3-sub013/internal/engine"
	"github.com/hkcm91/StickerNestV3-sub013/internal/generation"
)

// ImageHandler generates sticker images.
type ImageHandler struct {
	gen   *generation.Client
	store assets.Store
	log   *zap.Logger
}

func NewImageHandler(gen *generation.Client, store assets.Store, log *zap.Logger) *ImageHandler {
	return &ImageHandler{gen: gen, store: store, log: log.Named("image")}
}

func (h *ImageHandler) Handle(ctx context.Context, job *engine.Job[ImagePayload], progress *engine.Reporter) (*engine.Result[ImageResult], error) {
	if job.Payload.Prompt == "" {
		return nil, fmt.Errorf("image payload missing prompt")
	}

	progress.Report(5, "submitting prompt")
	out, err := h.gen.GenerateImage(ctx, generation.ImageRequest{
		Prompt: job.Payload.Prompt,
		Style:  job.Payload.Style,
		Width:  job.Payload.Width,
		Height: job.Payload.Height,
	})
	if err != nil {
		return nil, fmt.Errorf("image generation: %w", err)
	}
	progress.Report(80, "image generated")

	res := &engine.Result[ImageResult]{
		Primary: ImageResult{ImageURL: out.URL},
		Aux:     engine.AuxOK(),
	}

	assetID, err := saveAsset(ctx, h.store, assets.Asset{
		JobID: job.ID,
		Kind:  "image",
		URL:   out.URL,
	})
	if err != nil {
		h.log.Warn("asset record write failed, returning degraded result",
			zap.String("job", job.ID), zap.Error(err))
		res.Aux = engine.AuxDegraded(err.Error())
	} else {
		res.Primary.AssetID = assetID
	}

	progress.Report(100, "done")
	return res, nil
}

var _ engine.Handler[ImagePayload, ImageResult] = (*ImageHandler)(nil)
