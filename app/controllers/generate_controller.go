package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/kampai-studio/kampai/internal/pkg/entitlements"
	"github.com/kampai-studio/kampai/internal/pkg/generation"
	"github.com/kampai-studio/kampai/internal/pkg/jobqueue"
	"github.com/kampai-studio/kampai/internal/pkg/usage"
	"github.com/kampai-studio/kampai/internal/pkg/usercontext"
)

type generateRequest struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style"`
	Model  string `json:"model"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Sync   bool   `json:"sync"`
}

type recordRequest struct {
	Prompt    string `json:"prompt"`
	Style     string `json:"style"`
	Model     string `json:"model"`
	ImagePath string `json:"image_path"`
}

// HandleGenerateCheck answers whether the user may generate right now,
// without consuming anything.
func HandleGenerateCheck(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	decision, err := deps.Gate.Decide(userCtx.UserID, c.Query("model"), 0, 0)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(decision)
}

// HandleGenerateModels lists the models the user's plan may select.
func HandleGenerateModels(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	plan, err := deps.Subscriptions.EffectivePlan(userCtx.UserID)
	if err != nil {
		return serviceError(c, err)
	}

	keys := entitlements.AllowedModels(plan)
	models := make([]fiber.Map, 0, len(keys))
	for _, key := range keys {
		entry := fiber.Map{"key": key}
		if spec, ok := generation.ModelSpec(key); ok {
			entry["name"] = spec.Name
			entry["max_resolution"] = spec.MaxResolution
		}
		models = append(models, entry)
	}

	info := entitlements.Info(plan)
	return c.JSON(fiber.Map{
		"plan":           string(info.Tag),
		"default_model":  info.DefaultModel,
		"max_resolution": info.MaxResolution,
		"models":         models,
	})
}

// HandleGenerate runs one generation. The default path enqueues a job and
// returns immediately; "sync": true runs the backend inline.
func HandleGenerate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req generateRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid_request", "invalid request body")
	}
	if req.Prompt == "" {
		return fail(c, fiber.StatusBadRequest, "validation_error", "prompt is required")
	}

	decision, err := deps.Gate.Decide(userCtx.UserID, req.Model, req.Width, req.Height)
	if err != nil {
		return serviceError(c, err)
	}
	if !decision.Allowed {
		return fail(c, fiber.StatusTooManyRequests, "quota_exceeded", decision.Reason)
	}

	if req.Sync {
		return generateSync(c, userCtx.UserID, req, decision)
	}

	payload := jobqueue.GenerationJobPayload{
		UserID: userCtx.UserID,
		Prompt: req.Prompt,
		Style:  req.Style,
		Model:  decision.Model,
		Width:  decision.Width,
		Height: decision.Height,
	}
	job, err := deps.Queue.EnqueueJob(jobqueue.JobTypeGeneration, payload.ToMap())
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":     job.ID,
		"status":     job.Status,
		"status_url": "/api/jobs/" + job.ID + "/status",
		"model":      decision.Model,
		"remaining":  decision.Remaining,
	})
}

func generateSync(c *fiber.Ctx, userID uint, req generateRequest, decision entitlements.Decision) error {
	backend := deps.Selector.Pick()
	if !backend.Available() {
		return fail(c, fiber.StatusServiceUnavailable, "backend_unavailable", "no generation backend available")
	}

	started := time.Now()
	res, err := backend.Generate(c.Context(), generation.Request{
		Prompt: req.Prompt,
		Model:  decision.Model,
		Width:  decision.Width,
		Height: decision.Height,
	})
	if err != nil {
		log.Errorf("[Generate] Backend %s failed for user %d: %v", backend.Name(), userID, err)
		return fail(c, fiber.StatusBadGateway, "generation_failed", "image generation failed")
	}
	if len(res.Images) == 0 {
		return fail(c, fiber.StatusBadGateway, "generation_failed", "backend returned no images")
	}

	if err := deps.Usage.Increment(userID, usage.Metadata{
		Prompt:    req.Prompt,
		Style:     req.Style,
		Model:     res.ModelKey,
		ImagePath: res.Images[0],
	}); err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"images":    res.Images,
		"model":     res.Model,
		"backend":   backend.Name(),
		"elapsed":   time.Since(started).Seconds(),
		"watermark": decision.Watermark,
	})
}

// HandleJobStatus reports the state of a queued generation job. Jobs are only
// visible to their owner.
func HandleJobStatus(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	jobID := c.Params("id")

	job, err := deps.Queue.GetJob(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return fail(c, fiber.StatusNotFound, "job_not_found", "job not found or expired")
		}
		return serviceError(c, err)
	}

	if payload, perr := jobqueue.GenerationJobPayloadFromMap(job.Payload); perr == nil && payload.UserID != 0 {
		if payload.UserID != userCtx.UserID && !userCtx.IsAdmin {
			return fail(c, fiber.StatusNotFound, "job_not_found", "job not found or expired")
		}
	}

	resp := fiber.Map{
		"job_id":     job.ID,
		"status":     job.Status,
		"created_at": job.CreatedAt.UTC().Format(time.RFC3339),
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.ErrorMsg != "" && job.Status == jobqueue.JobStatusFailed {
		resp["error_message"] = job.ErrorMsg
	}
	return c.JSON(resp)
}

// HandleUsageRecord consumes one generation slot for work done outside the
// queue, appending the log entry.
func HandleUsageRecord(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req recordRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid_request", "invalid request body")
	}

	if err := deps.Usage.Increment(userCtx.UserID, usage.Metadata{
		Prompt:    req.Prompt,
		Style:     req.Style,
		Model:     req.Model,
		ImagePath: req.ImagePath,
	}); err != nil {
		return serviceError(c, err)
	}

	snapshot, err := deps.Usage.GetSnapshot(userCtx.UserID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(snapshot)
}
