package services

import (
	"context"
	"testing"
	"time"

	"rbac-service/internal/common"
	"rbac-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAppendsInBackground(t *testing.T) {
	logRepo := newFakeLogRepo()
	svc := NewLogService(logRepo)

	svc.Record(models.LogEntry{Content: "something happened", Action: "test"})

	assert.Eventually(t, func() bool {
		return logRepo.len() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestRecordFillsDefaults(t *testing.T) {
	logRepo := newFakeLogRepo()
	svc := NewLogService(logRepo)

	svc.Record(models.LogEntry{Content: "bare entry"})

	require.Eventually(t, func() bool {
		return logRepo.len() == 1
	}, time.Second, 10*time.Millisecond)

	logRepo.mu.Lock()
	entry := logRepo.entries[0]
	logRepo.mu.Unlock()
	assert.Equal(t, models.LogSourceSystem, entry.Source)
	assert.Equal(t, models.LogLevelInfo, entry.Level)
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestRecordSwallowsRepositoryFailure(t *testing.T) {
	logRepo := newFakeLogRepo()
	logRepo.failing = true
	svc := NewLogService(logRepo)

	// Must not panic or surface anything to the caller.
	svc.Record(models.LogEntry{Content: "doomed entry"})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, logRepo.len())
}

func TestPurgeOlderThanBoundary(t *testing.T) {
	logRepo := newFakeLogRepo()
	svc := NewLogService(logRepo)

	now := time.Now()
	logRepo.entries = []*models.LogEntry{
		{Content: "ancient", CreatedAt: now.AddDate(0, 0, -31)},
		{Content: "recent", CreatedAt: now.AddDate(0, 0, -29)},
		{Content: "today", CreatedAt: now},
	}

	deleted, err := svc.PurgeOlderThan(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted, "only entries strictly older than the cutoff go away")
	assert.Equal(t, 2, logRepo.len())
}

func TestPurgeOlderThanRejectsNonPositiveDays(t *testing.T) {
	svc := NewLogService(newFakeLogRepo())

	_, err := svc.PurgeOlderThan(context.Background(), 0)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.PurgeOlderThan(context.Background(), -5)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestCreateLogMarshalsMetadata(t *testing.T) {
	logRepo := newFakeLogRepo()
	svc := NewLogService(logRepo)

	entry, err := svc.CreateLog(context.Background(), models.CreateLogRequest{
		Content:  "manual entry",
		Metadata: map[string]any{"key": "value"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"value"}`, string(entry.Metadata))
	assert.Equal(t, models.LogSourceAPI, entry.Source)
	assert.Equal(t, models.LogLevelInfo, entry.Level)
}
