package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hkcm91/StickerNestV3-sub013/internal/assets"
	"github.com/hkcm91/StickerNestV3-sub013/internal/engine"
	"github.com/hkcm91/StickerNestV3-sub013/internal/generation"
)

// WidgetHandler generates canvas widgets from a natural-language
// description plus the capability list the canvas offers the widget.
type WidgetHandler struct {
	gen   *generation.Client
	store assets.Store
	log   *zap.Logger
}

func NewWidgetHandler(gen *generation.Client, store assets.Store, log *zap.Logger) *WidgetHandler {
	return &WidgetHandler{gen: gen, store: store, log: log.Named("widget")}
}

func (h *WidgetHandler) Handle(ctx context.Context, job *engine.Job[WidgetPayload], progress *engine.Reporter) (*engine.Result[WidgetResult], error) {
	if job.Payload.Description == "" {
		return nil, fmt.Errorf("widget payload missing description")
	}

	progress.Report(10, "generating widget bundle")
	out, err := h.gen.GenerateWidget(ctx, generation.WidgetRequest{
		Description:  job.Payload.Description,
		Capabilities: job.Payload.Capabilities,
	})
	if err != nil {
		return nil, fmt.Errorf("widget generation: %w", err)
	}
	progress.Report(80, "widget bundle ready")

	res := &engine.Result[WidgetResult]{
		Primary: WidgetResult{
			BundleURL: out.BundleURL,
			Manifest:  out.Manifest,
		},
		Aux: engine.AuxOK(),
	}

	assetID, err := saveAsset(ctx, h.store, assets.Asset{
		JobID: job.ID,
		Kind:  "widget",
		URL:   out.BundleURL,
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

var _ engine.Handler[WidgetPayload, WidgetResult] = (*WidgetHandler)(nil)
