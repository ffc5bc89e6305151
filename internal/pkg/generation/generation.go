package generation

import (
	"context"
	"time"
)

// Request describes one image generation call, independent of backend.
type Request struct {
	Prompt        string
	Model         string
	Width         int
	Height        int
	NumOutputs    int
	GuidanceScale float64
	Seed          *int64
	InputImage    string // data URL or remote URL for edit/reference modes
	EditPrompt    string
}

// Result is the backend's answer: one or more output image references.
type Result struct {
	Images   []string      `json:"images"`
	Model    string        `json:"model"`
	ModelKey string        `json:"model_key"`
	Elapsed  time.Duration `json:"-"`
}

// Backend is the narrow surface the rest of the system needs from an image
// generation engine: submit, wait, collect outputs.
type Backend interface {
	Name() string
	Available() bool
	Generate(ctx context.Context, req Request) (*Result, error)
}
