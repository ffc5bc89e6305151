package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/kampai-studio/kampai/internal/pkg/env"
)

const (
	replicatePollInterval = 500 * time.Millisecond
	replicateTimeout      = 120 * time.Second
)

var ErrNotConfigured = errors.New("replicate api token not configured")

// ReplicateModel describes one hosted model and its constraints.
type ReplicateModel struct {
	Version       string  `json:"version"`
	Name          string  `json:"name"`
	CostPerImage  float64 `json:"cost_per_image"`
	MaxResolution int     `json:"max_resolution"`
}

// replicateModels is the fixed catalog of hosted models we invoke.
var replicateModels = map[string]ReplicateModel{
	"flux-schnell": {
		Version:       "black-forest-labs/flux-schnell",
		Name:          "FLUX.1 Schnell",
		CostPerImage:  0.003,
		MaxResolution: 1024,
	},
	"qwen-image": {
		Version:       "qwen/qwen-image",
		Name:          "Qwen-Image",
		CostPerImage:  0.025,
		MaxResolution: 1440,
	},
	"flux-1.1-pro": {
		Version:       "black-forest-labs/flux-1.1-pro",
		Name:          "FLUX 1.1 Pro",
		CostPerImage:  0.04,
		MaxResolution: 1440,
	},
	"flux-2-pro": {
		Version:       "black-forest-labs/flux-2-pro",
		Name:          "FLUX 2 Pro",
		CostPerImage:  0.05,
		MaxResolution: 2048,
	},
	"flux-1.1-pro-ultra": {
		Version:       "black-forest-labs/flux-1.1-pro-ultra",
		Name:          "FLUX 1.1 Pro Ultra",
		CostPerImage:  0.06,
		MaxResolution: 2048,
	},
	"ideogram-v3": {
		Version:       "ideogram-ai/ideogram-v3-turbo",
		Name:          "Ideogram V3",
		CostPerImage:  0.03,
		MaxResolution: 1024,
	},
}

// ModelSpec returns the catalog entry for a model key.
func ModelSpec(key string) (ReplicateModel, bool) {
	m, ok := replicateModels[key]
	return m, ok
}

// ReplicateClient wraps the Replicate predictions REST API.
type ReplicateClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewReplicateClient() *ReplicateClient {
	return &ReplicateClient{
		baseURL:    env.GetEnv("REPLICATE_API_URL", "https://api.replicate.com/v1"),
		token:      env.GetEnv("REPLICATE_API_TOKEN", ""),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *ReplicateClient) Name() string {
	return "replicate"
}

// Available reports whether a usable API token is configured.
func (c *ReplicateClient) Available() bool {
	return len(c.token) > 10
}

// buildInput maps the request onto the per-model input schema. Each model
// family wants slightly different parameter names.
func buildInput(modelKey string, req Request, maxRes int) map[string]interface{} {
	width, height := req.Width, req.Height
	if width > maxRes {
		width = maxRes
	}
	if height > maxRes {
		height = maxRes
	}

	input := map[string]interface{}{
		"prompt":        req.Prompt,
		"output_format": "png",
	}
	ratio := aspectRatio(width, height)

	switch {
	case strings.Contains(modelKey, "qwen"):
		input["aspect_ratio"] = ratio
		input["image_size"] = "optimize_for_quality"
		input["go_fast"] = true
		if req.GuidanceScale > 0 {
			input["guidance"] = minFloat(req.GuidanceScale, 10)
		}
		if req.Seed != nil {
			input["seed"] = *req.Seed
		}
	case modelKey == "flux-2-pro":
		input["aspect_ratio"] = ratio
		input["safety_tolerance"] = 2
		if req.GuidanceScale > 0 {
			input["guidance"] = minFloat(req.GuidanceScale, 10)
		}
		if req.Seed != nil {
			input["seed"] = *req.Seed
		}
		if req.InputImage != "" {
			input["image_url"] = req.InputImage
			if req.EditPrompt != "" {
				input["prompt"] = req.EditPrompt
			}
		}
	case strings.Contains(modelKey, "flux"):
		input["aspect_ratio"] = ratio
		if req.NumOutputs > 0 {
			input["num_outputs"] = req.NumOutputs
		} else {
			input["num_outputs"] = 1
		}
		if req.GuidanceScale > 0 {
			input["guidance"] = req.GuidanceScale
		}
		if req.Seed != nil {
			input["seed"] = *req.Seed
		}
	case strings.Contains(modelKey, "ideogram"):
		input["aspect_ratio"] = ratio
		input["style_type"] = "Auto"
		input["magic_prompt_option"] = "Auto"
	default:
		input["width"] = width
		input["height"] = height
		if req.NumOutputs > 0 {
			input["num_outputs"] = req.NumOutputs
		}
		if req.GuidanceScale > 0 {
			input["guidance_scale"] = req.GuidanceScale
		}
	}
	return input
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// aspectRatio snaps a width/height pair onto the ratio strings the hosted
// models accept.
func aspectRatio(width, height int) string {
	if height == 0 {
		return "1:1"
	}
	ratio := float64(width) / float64(height)
	switch {
	case ratio > 2.0:
		return "21:9"
	case ratio > 1.6:
		return "16:9"
	case ratio > 1.4:
		return "3:2"
	case ratio > 1.2:
		return "4:3"
	case ratio > 1.1:
		return "5:4"
	case ratio > 0.9:
		return "1:1"
	case ratio > 0.8:
		return "4:5"
	case ratio > 0.7:
		return "3:4"
	case ratio > 0.6:
		return "2:3"
	case ratio > 0.5:
		return "9:16"
	default:
		return "9:21"
	}
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  interface{}     `json:"error"`
}

// Generate submits a prediction and polls it to completion.
func (c *ReplicateClient) Generate(ctx context.Context, req Request) (*Result, error) {
	if !c.Available() {
		return nil, ErrNotConfigured
	}

	modelKey := req.Model
	spec, ok := replicateModels[modelKey]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", modelKey)
	}

	input := buildInput(modelKey, req, spec.MaxResolution)
	log.Infof("[Replicate] Submitting %s (%dx%d)", modelKey, req.Width, req.Height)

	start := time.Now()
	pred, err := c.createPrediction(ctx, spec.Version, input)
	if err != nil {
		return nil, err
	}

	final, err := c.waitForCompletion(ctx, pred.ID, replicateTimeout)
	if err != nil {
		return nil, err
	}

	if final.Status != "succeeded" {
		msg := "image generation failed"
		if final.Error != nil {
			msg = fmt.Sprintf("%v", final.Error)
		}
		return nil, errors.New(msg)
	}

	images, err := decodeOutput(final.Output)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, errors.New("prediction succeeded with no output")
	}

	return &Result{
		Images:   images,
		Model:    spec.Name,
		ModelKey: modelKey,
		Elapsed:  time.Since(start),
	}, nil
}

func (c *ReplicateClient) createPrediction(ctx context.Context, version string, input map[string]interface{}) (*prediction, error) {
	body, err := json.Marshal(map[string]interface{}{"input": input})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s/predictions", c.baseURL, version)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("replicate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<14))
		return nil, fmt.Errorf("replicate api error %d: %s", resp.StatusCode, string(raw))
	}

	var pred prediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return nil, err
	}
	if pred.ID == "" {
		return nil, errors.New("replicate returned no prediction id")
	}
	return &pred, nil
}

func (c *ReplicateClient) getPrediction(ctx context.Context, id string) (*prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/predictions/"+id, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("prediction status check failed: %d", resp.StatusCode)
	}

	var pred prediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return nil, err
	}
	return &pred, nil
}

// waitForCompletion polls the prediction until it reaches a terminal state.
func (c *ReplicateClient) waitForCompletion(ctx context.Context, id string, timeout time.Duration) (*prediction, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(replicatePollInterval)
	defer ticker.Stop()

	for {
		pred, err := c.getPrediction(ctx, id)
		if err != nil {
			return nil, err
		}
		switch pred.Status {
		case "succeeded", "failed", "canceled":
			return pred, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("prediction %s timed out after %s", id, timeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// decodeOutput accepts both a bare URL string and a list of URLs.
func decodeOutput(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}
	return nil, errors.New("unexpected prediction output shape")
}
