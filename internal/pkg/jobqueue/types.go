package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeEmailDelivery  JobType = "email_delivery"
	JobTypeUserBulkDelete JobType = "user_bulk_delete"
)

// Email kinds handled by the email delivery processor
const (
	EmailKindConfirmation  = "confirmation"
	EmailKindPasswordReset = "password_reset"
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
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// MarkAsProcessing marks the job as being processed
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.ProcessedAt = &now
	j.UpdatedAt = now
}

// MarkAsCompleted marks the job as completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkAsFailed marks the job as failed and records the error
func (j *Job) MarkAsFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMsg = errMsg
	j.RetryCount++
	j.UpdatedAt = time.Now()
}

// MarkAsRetrying marks the job for another attempt
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}

// IsRetryable reports whether the job may be attempted again
func (j *Job) IsRetryable() bool {
	return j.RetryCount < j.MaxRetries
}

// EmailDeliveryJobPayload contains the payload for email delivery jobs
type EmailDeliveryJobPayload struct {
	UserID uint   `json:"user_id"`
	Kind   string `json:"kind"`
}

// ToMap converts the payload to a map for storage
func (p EmailDeliveryJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"user_id": p.UserID,
		"kind":    p.Kind,
	}
}

// EmailDeliveryJobPayloadFromMap creates a payload from a map
func EmailDeliveryJobPayloadFromMap(data map[string]interface{}) (*EmailDeliveryJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload EmailDeliveryJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// UserBulkDeleteJobPayload contains the payload for user bulk delete jobs
type UserBulkDeleteJobPayload struct {
	UserIDs []uint `json:"user_ids"`
}

// ToMap converts the payload to a map for storage
func (p UserBulkDeleteJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"user_ids": p.UserIDs,
	}
}

// UserBulkDeleteJobPayloadFromMap creates a payload from a map
func UserBulkDeleteJobPayloadFromMap(data map[string]interface{}) (*UserBulkDeleteJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload UserBulkDeleteJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}
