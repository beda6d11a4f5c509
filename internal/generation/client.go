// Package generation is the HTTP client for StickerNest's AI generation
// service. One service fronts all providers; the client only knows the
// routes for each media kind.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	readyPollInterval = time.Second
	readyMaxWait      = 60 * time.Second
)

// Client calls the generation service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
	}
}

// WaitReady polls the service health endpoint until it responds OK or the
// wait budget runs out. Generation backends load models lazily, so the
// first job after a deploy can arrive before the service is up.
func (c *Client) WaitReady(ctx context.Context) error {
	deadline := time.Now().Add(readyMaxWait)
	for time.Now().Before(deadline) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-time.After(readyPollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("generation service not ready within %v", readyMaxWait)
}

// ImageRequest describes one image generation.
type ImageRequest struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// ImageOutput is the generated image reference.
type ImageOutput struct {
	URL  string `json:"url"`
	Seed int64  `json:"seed,omitempty"`
}

func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*ImageOutput, error) {
	var out ImageOutput
	if err := c.post(ctx, "/v1/images/generations", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VideoRequest describes one video generation.
type VideoRequest struct {
	Prompt      string `json:"prompt"`
	DurationSec int    `json:"duration_sec,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

// VideoOutput is the generated video reference.
type VideoOutput struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

func (c *Client) GenerateVideo(ctx context.Context, req VideoRequest) (*VideoOutput, error) {
	var out VideoOutput
	if err := c.post(ctx, "/v1/videos/generations", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WidgetRequest describes one widget generation.
type WidgetRequest struct {
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// WidgetOutput is the generated widget bundle reference.
type WidgetOutput struct {
	BundleURL string `json:"bundle_url"`
	Manifest  string `json:"manifest,omitempty"`
}

func (c *Client) GenerateWidget(ctx context.Context, req WidgetRequest) (*WidgetOutput, error) {
	var out WidgetOutput
	if err := c.post(ctx, "/v1/widgets/generations", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoraRequest describes one LoRA training run.
type LoraRequest struct {
	Name      string   `json:"name"`
	BaseModel string   `json:"base_model"`
	ImageURLs []string `json:"image_urls"`
	Steps     int      `json:"steps,omitempty"`
}

// LoraOutput is the trained model handle.
type LoraOutput struct {
	Handle    string `json:"handle"`
	WeightURL string `json:"weight_url,omitempty"`
}

func (c *Client) TrainLora(ctx context.Context, req LoraRequest) (*LoraOutput, error) {
	var out LoraOutput
	if err := c.post(ctx, "/v1/lora/trainings", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call generation service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("generation service returned %s: %s", resp.Status, truncate(data, 512))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
