package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeGeneration JobType = "generation"
	JobTypeArchive    JobType = "archive"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	Result      map[string]interface{} `json:"result,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// GenerationJobPayload contains the payload for image generation jobs
type GenerationJobPayload struct {
	UserID uint   `json:"user_id"`
	Prompt string `json:"prompt"`
	Style  string `json:"style"`
	Model  string `json:"model"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ToMap converts the payload to a map for storage
func (p GenerationJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"user_id": p.UserID,
		"prompt":  p.Prompt,
		"style":   p.Style,
		"model":   p.Model,
		"width":   p.Width,
		"height":  p.Height,
	}
}

// GenerationJobPayloadFromMap creates a payload from a map
func GenerationJobPayloadFromMap(data map[string]interface{}) (*GenerationJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload GenerationJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// ArchiveJobPayload contains the payload for artifact archive jobs
type ArchiveJobPayload struct {
	UserID    uint     `json:"user_id"`
	JobID     string   `json:"job_id"`
	ImageURLs []string `json:"image_urls"`
}

// ToMap converts the payload to a map for storage
func (p ArchiveJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    p.UserID,
		"job_id":     p.JobID,
		"image_urls": p.ImageURLs,
	}
}

// ArchiveJobPayloadFromMap creates a payload from a map
func ArchiveJobPayloadFromMap(data map[string]interface{}) (*ArchiveJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ArchiveJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// IsTerminal reports whether the job reached a final state
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || (j.Status == JobStatusFailed && j.RetryCount >= j.MaxRetries)
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted(result map[string]interface{}) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.Result = result
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
