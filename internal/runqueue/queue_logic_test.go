package runqueue

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryDelayDoublesEachAttempt(t *testing.T) {
	assert.Equal(t, 60*time.Second, RetryDelay(0))
	assert.Equal(t, 120*time.Second, RetryDelay(1))
	assert.Equal(t, 240*time.Second, RetryDelay(2))
	assert.Equal(t, 480*time.Second, RetryDelay(3))
}

func TestRetryDelayMonotonic(t *testing.T) {
	prev := time.Duration(0)
	for i := 0; i < 8; i++ {
		d := RetryDelay(i)
		assert.Greater(t, d, prev)
		prev = d
	}
}

func TestComputeRunIDDeterministic(t *testing.T) {
	cfg := map[string]any{
		"content_sources": []string{"a", "b"},
		"storage":         map[string]any{"backend": "postgres"},
	}
	id1, err := ComputeRunID(cfg)
	assert.NoError(t, err)
	id2, err := ComputeRunID(cfg)
	assert.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 16)
}

func TestComputeRunIDChangesWithProcessingRelevantFields(t *testing.T) {
	base := map[string]any{"content_sources": []string{"a"}}
	changed := map[string]any{"content_sources": []string{"a", "b"}}

	idBase, _ := ComputeRunID(base)
	idChanged, _ := ComputeRunID(changed)
	assert.NotEqual(t, idBase, idChanged)
}

func TestRetriesExhaustedBoundary(t *testing.T) {
	assert.False(t, RetriesExhausted(0, 3))
	assert.False(t, RetriesExhausted(1, 3))
	assert.False(t, RetriesExhausted(2, 3))
	assert.True(t, RetriesExhausted(3, 3))
	assert.True(t, RetriesExhausted(4, 3))
}

func TestQueueStatusCountsDone(t *testing.T) {
	assert.True(t, QueueStatusCounts{Completed: 5, Failed: 1}.Done())
	assert.False(t, QueueStatusCounts{Pending: 1}.Done())
	assert.False(t, QueueStatusCounts{Processing: 1}.Done())
	assert.False(t, QueueStatusCounts{Retry: 1}.Done())
}

func TestIsCriticalErrorByType(t *testing.T) {
	assert.True(t, IsCriticalError("PermissionError", errors.New("nope")))
	assert.True(t, IsCriticalError("UnsupportedFileFormatError", errors.New("nope")))
	assert.False(t, IsCriticalError("RuntimeError", errors.New("transient timeout")))
}

func TestIsCriticalErrorByMessage(t *testing.T) {
	assert.True(t, IsCriticalError("RuntimeError", errors.New("Access Denied by remote host")))
	assert.True(t, IsCriticalError("RuntimeError", errors.New("corrupted file detected")))
	assert.False(t, IsCriticalError("RuntimeError", errors.New("connection reset")))
}
