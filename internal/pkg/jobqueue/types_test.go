package jobqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailDeliveryPayloadRoundTrip(t *testing.T) {
	in := EmailDeliveryJobPayload{UserID: 42, Kind: EmailKindConfirmation}

	out, err := EmailDeliveryJobPayloadFromMap(in.ToMap())
	require.NoError(t, err)
	assert.Equal(t, uint(42), out.UserID)
	assert.Equal(t, EmailKindConfirmation, out.Kind)
}

func TestUserBulkDeletePayloadRoundTrip(t *testing.T) {
	in := UserBulkDeleteJobPayload{UserIDs: []uint{1, 2, 3}}

	out, err := UserBulkDeleteJobPayloadFromMap(in.ToMap())
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2, 3}, out.UserIDs)
}

func TestJobLifecycleMarks(t *testing.T) {
	job := &Job{
		ID:         "test-job",
		Type:       JobTypeEmailDelivery,
		Status:     JobStatusPending,
		MaxRetries: DefaultMaxRetries,
		CreatedAt:  time.Now(),
	}

	job.MarkAsProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	require.NotNil(t, job.ProcessedAt)

	job.MarkAsFailed("smtp timeout")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "smtp timeout", job.ErrorMsg)
	assert.Equal(t, 1, job.RetryCount)
	assert.True(t, job.IsRetryable())

	job.RetryCount = DefaultMaxRetries
	assert.False(t, job.IsRetryable())

	job.MarkAsCompleted()
	assert.Equal(t, JobStatusCompleted, job.Status)
	require.NotNil(t, job.CompletedAt)
}
