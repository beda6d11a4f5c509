package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hkcm91/StickerNestV3-sub013/internal/assets"
	"github.com/hkcm91/StickerNestV3-sub013/internal/engine"
	"github.com/hkcm91/StickerNestV3-sub013/internal/generation"
)

// LoraHandler runs LoRA model training. Training runs for minutes, so the
// queue is configured at concurrency 1 and a lower attempt limit.
type LoraHandler struct {
	gen   *generation.Client
	store assets.Store
	log   *zap.Logger
}

func NewLoraHandler(gen *generation.Client, store assets.Store, log *zap.Logger) *LoraHandler {
	return &LoraHandler{gen: gen, store: store, log: log.Named("lora")}
}

func (h *LoraHandler) Handle(ctx context.Context, job *engine.Job[LoraPayload], progress *engine.Reporter) (*engine.Result[LoraResult], error) {
	if len(job.Payload.ImageURLs) == 0 {
		return nil, fmt.Errorf("lora payload has no training images")
	}
	if job.Payload.BaseModel == "" {
		return nil, fmt.Errorf("lora payload missing base model")
	}

	progress.Report(5, fmt.Sprintf("training %q on %d images", job.Payload.Name, len(job.Payload.ImageURLs)))
	out, err := h.gen.TrainLora(ctx, generation.LoraRequest{
		Name:      job.Payload.Name,
		BaseModel: job.Payload.BaseModel,
		ImageURLs: job.Payload.ImageURLs,
		Steps:     job.Payload.Steps,
	})
	if err != nil {
		return nil, fmt.Errorf("lora training: %w", err)
	}
	progress.Report(90, "training complete")

	res := &engine.Result[LoraResult]{
		Primary: LoraResult{
			Handle:    out.Handle,
			WeightURL: out.WeightURL,
		},
		Aux: engine.AuxOK(),
	}

	modelID, err := saveModel(ctx, h.store, assets.Model{
		JobID:     job.ID,
		Name:      job.Payload.Name,
		BaseModel: job.Payload.BaseModel,
		Handle:    out.Handle,
	})
	if err != nil {
		h.log.Warn("model record write failed, returning degraded result",
			zap.String("job", job.ID), zap.Error(err))
		res.Aux = engine.AuxDegraded(err.Error())
	} else {
		res.Primary.ModelID = modelID
	}

	progress.Report(100, "done")
	return res, nil
}

var _ engine.Handler[LoraPayload, LoraResult] = (*LoraHandler)(nil)
