package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hkcm91/StickerNestV3-sub013/internal/assets"
	"github.com/hkcm91/StickerNestV3-sub013/internal/engine"
	"github.com/hkcm91/StickerNestV3-sub013/internal/generation"
)

// VideoHandler generates short videos. Video backends are the heaviest
// workload we run, so the queue is configured at concurrency 1.
type VideoHandler struct {
	gen   *generation.Client
	store assets.Store
	log   *zap.Logger
}

func NewVideoHandler(gen *generation.Client, store assets.Store, log *zap.Logger) *VideoHandler {
	return &VideoHandler{gen: gen, store: store, log: log.Named("video")}
}

func (h *VideoHandler) Handle(ctx context.Context, job *engine.Job[VideoPayload], progress *engine.Reporter) (*engine.Result[VideoResult], error) {
	if job.Payload.Prompt == "" {
		return nil, fmt.Errorf("video payload missing prompt")
	}

	progress.Report(5, "waiting for video backend")
	if err := h.gen.WaitReady(ctx); err != nil {
		return nil, fmt.Errorf("video backend not ready: %w", err)
	}

	progress.Report(10, "rendering video")
	out, err := h.gen.GenerateVideo(ctx, generation.VideoRequest{
		Prompt:      job.Payload.Prompt,
		DurationSec: job.Payload.DurationSec,
		AspectRatio: job.Payload.AspectRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("video generation: %w", err)
	}
	progress.Report(85, "video rendered")

	res := &engine.Result[VideoResult]{
		Primary: VideoResult{
			VideoURL:     out.URL,
			ThumbnailURL: out.ThumbnailURL,
		},
		Aux: engine.AuxOK(),
	}

	assetID, err := saveAsset(ctx, h.store, assets.Asset{
		JobID: job.ID,
		Kind:  "video",
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

var _ engine.Handler[VideoPayload, VideoResult] = (*VideoHandler)(nil)
