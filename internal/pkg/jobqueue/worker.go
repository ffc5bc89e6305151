package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/kampai-studio/kampai/internal/pkg/artifactstore"
	"github.com/kampai-studio/kampai/internal/pkg/generation"
	"github.com/kampai-studio/kampai/internal/pkg/usage"
)

// GenerationProcessor executes queued generation and archive jobs. The
// archive store is optional; without it results keep their vendor URLs.
type GenerationProcessor struct {
	selector *generation.Selector
	usage    *usage.Service
	store    *artifactstore.Client
	queue    *Queue
}

func NewGenerationProcessor(selector *generation.Selector, usageSvc *usage.Service, store *artifactstore.Client) *GenerationProcessor {
	return &GenerationProcessor{
		selector: selector,
		usage:    usageSvc,
		store:    store,
	}
}

// Register installs the processor's handlers on the queue. Must be called
// before the queue starts.
func (p *GenerationProcessor) Register(q *Queue) {
	p.queue = q
	q.RegisterHandler(JobTypeGeneration, p.handleGeneration)
	q.RegisterHandler(JobTypeArchive, p.handleArchive)
}

// handleGeneration runs one image generation end to end: backend call,
// quota consumption with the generation log entry, then the result record.
func (p *GenerationProcessor) handleGeneration(ctx context.Context, job *Job) error {
	payload, err := GenerationJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid generation payload: %w", err)
	}

	backend := p.selector.Pick()
	if !backend.Available() {
		return fmt.Errorf("no generation backend available")
	}

	started := time.Now()
	res, err := backend.Generate(ctx, generation.Request{
		Prompt: payload.Prompt,
		Model:  payload.Model,
		Width:  payload.Width,
		Height: payload.Height,
	})
	if err != nil {
		return fmt.Errorf("backend %s: %w", backend.Name(), err)
	}
	if len(res.Images) == 0 {
		return fmt.Errorf("backend %s returned no images", backend.Name())
	}

	if err := p.usage.Increment(payload.UserID, usage.Metadata{
		Prompt:    payload.Prompt,
		Style:     payload.Style,
		Model:     res.ModelKey,
		ImagePath: res.Images[0],
	}); err != nil {
		// The quota was checked at enqueue time; a denial here means the
		// user spent the last slot through another request meanwhile.
		return err
	}

	job.MarkAsCompleted(map[string]interface{}{
		"images":  res.Images,
		"model":   res.Model,
		"backend": backend.Name(),
		"elapsed": time.Since(started).Seconds(),
	})

	if p.store != nil && p.queue != nil {
		archive := ArchiveJobPayload{
			UserID:    payload.UserID,
			JobID:     job.ID,
			ImageURLs: res.Images,
		}
		if _, err := p.queue.EnqueueJob(JobTypeArchive, archive.ToMap()); err != nil {
			log.Errorf("[Worker] Failed to enqueue archive for job %s: %v", job.ID, err)
		}
	}

	return nil
}

// handleArchive copies the vendor output URLs into the artifact bucket.
func (p *GenerationProcessor) handleArchive(ctx context.Context, job *Job) error {
	if p.store == nil {
		log.Warnf("[Worker] Archive job %s skipped, store disabled", job.ID)
		job.MarkAsCompleted(nil)
		return nil
	}

	payload, err := ArchiveJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid archive payload: %w", err)
	}

	keys := make([]string, 0, len(payload.ImageURLs))
	for _, url := range payload.ImageURLs {
		key := artifactstore.ObjectKey(payload.UserID, payload.JobID, url)
		if err := p.store.ArchiveURL(ctx, url, key); err != nil {
			return fmt.Errorf("archive %s: %w", url, err)
		}
		keys = append(keys, key)
	}

	job.MarkAsCompleted(map[string]interface{}{
		"object_keys": keys,
	})
	return nil
}
