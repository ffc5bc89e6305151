package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/kampai-studio/kampai/internal/pkg/env"
)

const (
	comfyPollInterval = time.Second
	comfyTimeout      = 300 * time.Second

	defaultNegativePrompt = "blurry, low quality, distorted, ugly, bad anatomy, deformed, amateur, watermark, signature, text"
)

// ComfyUIClient talks to a locally hosted node-graph image engine.
type ComfyUIClient struct {
	serverURL  string
	clientID   string
	httpClient *http.Client
}

func NewComfyUIClient() *ComfyUIClient {
	return &ComfyUIClient{
		serverURL:  env.GetEnv("COMFYUI_URL", "http://127.0.0.1:8188"),
		clientID:   uuid.New().String(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *ComfyUIClient) Name() string {
	return "comfyui"
}

// Available probes the engine's stats endpoint.
func (c *ComfyUIClient) Available() bool {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(c.serverURL + "/system_stats")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// QueuePrompt submits a workflow graph and returns the prompt id.
func (c *ComfyUIClient) QueuePrompt(ctx context.Context, workflow map[string]interface{}) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"prompt":    workflow,
		"client_id": c.clientID,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/prompt", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("comfyui request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("comfyui queue error: %d", resp.StatusCode)
	}

	var out struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.PromptID == "" {
		return "", errors.New("comfyui returned no prompt id")
	}
	return out.PromptID, nil
}

type comfyHistory struct {
	Status struct {
		Completed bool   `json:"completed"`
		StatusStr string `json:"status_str"`
	} `json:"status"`
	Outputs map[string]struct {
		Images []struct {
			Filename  string `json:"filename"`
			Subfolder string `json:"subfolder"`
			Type      string `json:"type"`
		} `json:"images"`
	} `json:"outputs"`
}

// History fetches the execution record for a prompt, or nil while pending.
func (c *ComfyUIClient) History(ctx context.Context, promptID string) (*comfyHistory, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/history/"+promptID, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("comfyui history error: %d", resp.StatusCode)
	}

	var all map[string]comfyHistory
	if err := json.NewDecoder(resp.Body).Decode(&all); err != nil {
		return nil, err
	}
	if h, ok := all[promptID]; ok {
		return &h, nil
	}
	return nil, nil
}

// WaitForCompletion polls history until the prompt finishes or times out.
func (c *ComfyUIClient) WaitForCompletion(ctx context.Context, promptID string, timeout time.Duration) (*comfyHistory, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(comfyPollInterval)
	defer ticker.Stop()

	for {
		h, err := c.History(ctx, promptID)
		if err != nil {
			return nil, err
		}
		if h != nil {
			if h.Status.StatusStr == "error" {
				return nil, errors.New("comfyui reported an execution error")
			}
			if h.Status.Completed || len(h.Outputs) > 0 {
				return h, nil
			}
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("prompt %s timed out after %s", promptID, timeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// imageURL builds the engine's view URL for a produced file.
func (c *ComfyUIClient) imageURL(filename, subfolder, folderType string) string {
	q := url.Values{}
	q.Set("filename", filename)
	q.Set("subfolder", subfolder)
	q.Set("type", folderType)
	return c.serverURL + "/view?" + q.Encode()
}

// Generate runs the SDXL text-to-image workflow and returns view URLs for
// the produced files.
func (c *ComfyUIClient) Generate(ctx context.Context, req Request) (*Result, error) {
	workflow := sdxlWorkflow(req)

	start := time.Now()
	promptID, err := c.QueuePrompt(ctx, workflow)
	if err != nil {
		return nil, err
	}
	log.Infof("[ComfyUI] Queued prompt %s", promptID)

	history, err := c.WaitForCompletion(ctx, promptID, comfyTimeout)
	if err != nil {
		return nil, err
	}

	var images []string
	for _, node := range history.Outputs {
		for _, img := range node.Images {
			folderType := img.Type
			if folderType == "" {
				folderType = "output"
			}
			images = append(images, c.imageURL(img.Filename, img.Subfolder, folderType))
		}
	}
	if len(images) == 0 {
		return nil, errors.New("workflow completed with no output images")
	}

	return &Result{
		Images:   images,
		Model:    "SDXL Base",
		ModelKey: "sdxl-base",
		Elapsed:  time.Since(start),
	}, nil
}

// sdxlWorkflow builds the fixed text-to-image node graph for SDXL.
func sdxlWorkflow(req Request) map[string]interface{} {
	width, height := req.Width, req.Height
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 1024
	}

	var seed int64
	if req.Seed != nil {
		seed = *req.Seed
	} else {
		seed = rand.Int63()
	}

	cfg := req.GuidanceScale
	if cfg <= 0 {
		cfg = 7.5
	}

	return map[string]interface{}{
		"4": map[string]interface{}{
			"class_type": "CheckpointLoaderSimple",
			"inputs": map[string]interface{}{
				"ckpt_name": "sd_xl_base_1.0.safetensors",
			},
		},
		"6": map[string]interface{}{
			"class_type": "CLIPTextEncode",
			"inputs": map[string]interface{}{
				"clip": []interface{}{"4", 1},
				"text": req.Prompt,
			},
		},
		"7": map[string]interface{}{
			"class_type": "CLIPTextEncode",
			"inputs": map[string]interface{}{
				"clip": []interface{}{"4", 1},
				"text": defaultNegativePrompt,
			},
		},
		"5": map[string]interface{}{
			"class_type": "EmptyLatentImage",
			"inputs": map[string]interface{}{
				"batch_size": 1,
				"width":      width,
				"height":     height,
			},
		},
		"3": map[string]interface{}{
			"class_type": "KSampler",
			"inputs": map[string]interface{}{
				"model":        []interface{}{"4", 0},
				"positive":     []interface{}{"6", 0},
				"negative":     []interface{}{"7", 0},
				"latent_image": []interface{}{"5", 0},
				"seed":         seed,
				"steps":        35,
				"cfg":          cfg,
				"sampler_name": "dpmpp_2m_sde",
				"scheduler":    "karras",
				"denoise":      1.0,
			},
		},
		"8": map[string]interface{}{
			"class_type": "VAEDecode",
			"inputs": map[string]interface{}{
				"samples": []interface{}{"3", 0},
				"vae":     []interface{}{"4", 2},
			},
		},
		"9": map[string]interface{}{
			"class_type": "SaveImage",
			"inputs": map[string]interface{}{
				"images":          []interface{}{"8", 0},
				"filename_prefix": "kampai",
			},
		},
	}
}
