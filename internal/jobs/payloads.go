// Package jobs contains the type-specific handlers for StickerNest's AI
// generation queues: image, video, widget, and LoRA training. Handlers are
// thin glue between the engine and the generation/persistence collaborators;
// the execution contract lives on engine.Handler.
package jobs

// Named queues consumed by the worker. Queue-name strings are the only
// schema boundary between producers and this framework.
const (
	QueueImage  = "ai:image"
	QueueVideo  = "ai:video"
	QueueWidget = "ai:widget"
	QueueLora   = "ai:lora"
)

// Job kinds as declared by producers.
const (
	KindImage  = "image.generate"
	KindVideo  = "video.generate"
	KindWidget = "widget.generate"
	KindLora   = "lora.train"
)

// ImagePayload is the payload for sticker image generation.
type ImagePayload struct {
	Prompt   string `json:"prompt"`
	Style    string `json:"style,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	CanvasID string `json:"canvasId,omitempty"`
}

func (ImagePayload) Kind() string { return KindImage }

// VideoPayload is the payload for video generation.
type VideoPayload struct {
	Prompt      string `json:"prompt"`
	DurationSec int    `json:"durationSec,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
	CanvasID    string `json:"canvasId,omitempty"`
}

func (VideoPayload) Kind() string { return KindVideo }

// WidgetPayload is the payload for AI widget generation.
type WidgetPayload struct {
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities,omitempty"`
	CanvasID     string   `json:"canvasId,omitempty"`
}

func (WidgetPayload) Kind() string { return KindWidget }

// LoraPayload is the payload for LoRA model training.
type LoraPayload struct {
	Name      string   `json:"name"`
	BaseModel string   `json:"baseModel"`
	ImageURLs []string `json:"imageUrls"`
	Steps     int      `json:"steps,omitempty"`
}

func (LoraPayload) Kind() string { return KindLora }

// ImageResult is the terminal result of an image job. AssetID is empty when
// the asset-record write failed; the image URL is still valid.
type ImageResult struct {
	ImageURL string `json:"imageUrl"`
	AssetID  string `json:"assetId,omitempty"`
}

// VideoResult is the terminal result of a video job.
type VideoResult struct {
	VideoURL     string `json:"videoUrl"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	AssetID      string `json:"assetId,omitempty"`
}

// WidgetResult is the terminal result of a widget job.
type WidgetResult struct {
	BundleURL string `json:"bundleUrl"`
	Manifest  string `json:"manifest,omitempty"`
	AssetID   string `json:"assetId,omitempty"`
}

// LoraResult is the terminal result of a training job. ModelID is empty when
// the model-record write failed; the handle is still valid.
type LoraResult struct {
	Handle    string `json:"handle"`
	WeightURL string `json:"weightUrl,omitempty"`
	ModelID   string `json:"modelId,omitempty"`
}
