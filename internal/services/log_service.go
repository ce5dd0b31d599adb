package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"rbac-service/internal/common"
	"rbac-service/internal/models"
	"rbac-service/internal/obs"
	"rbac-service/internal/repository"
)

type LogService struct {
	logRepo repository.LogRepository
}

func NewLogService(logRepo repository.LogRepository) *LogService {
	return &LogService{logRepo: logRepo}
}

// Record appends an audit entry in the background. Failures are logged
// and counted but never surface to the caller; the business operation
// already happened.
func (s *LogService) Record(entry models.LogEntry) {
	if entry.Source == "" {
		entry.Source = models.LogSourceSystem
	}
	if entry.Level == "" {
		entry.Level = models.LogLevelInfo
	}
	entry.CreatedAt = time.Now()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.logRepo.InsertLog(ctx, &entry); err != nil {
			obs.AuditWriteFailures.Inc()
			slog.Error("failed to append audit log", "action", entry.Action, "resource", entry.Resource, "error", err)
		}
	}()
}

// CreateLog is the synchronous admin path; unlike Record it reports
// failures so the API caller knows the entry was not written.
func (s *LogService) CreateLog(ctx context.Context, req models.CreateLogRequest) (*models.LogEntry, error) {
	source := models.LogSource(req.Source)
	if source == "" {
		source = models.LogSourceAPI
	}
	level := models.LogLevel(req.Level)
	if level == "" {
		level = models.LogLevelInfo
	}

	entry := &models.LogEntry{
		UserID:     req.UserID,
		Content:    req.Content,
		Action:     req.Action,
		Resource:   req.Resource,
		ResourceID: req.ResourceID,
		Source:     source,
		Level:      level,
	}
	if req.Metadata != nil {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid metadata", common.ErrValidation)
		}
		entry.Metadata = raw
	}

	if err := s.logRepo.InsertLog(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *LogService) GetLog(ctx context.Context, id int64) (*models.LogEntry, error) {
	return s.logRepo.GetLogByID(ctx, id)
}

func (s *LogService) ListLogs(ctx context.Context, filter models.LogFilter, limit, offset int) ([]*models.LogEntry, int64, error) {
	return s.logRepo.ListLogs(ctx, filter, limit, offset)
}

func (s *LogService) ListUserLogs(ctx context.Context, userID int, limit, offset int) ([]*models.LogEntry, int64, error) {
	return s.logRepo.ListLogs(ctx, models.LogFilter{UserID: userID}, limit, offset)
}

// PurgeOlderThan deletes entries strictly older than now minus the
// given number of days and returns the count.
func (s *LogService) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("%w: retention days must be positive", common.ErrValidation)
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	return s.logRepo.DeleteOlderThan(ctx, cutoff)
}

func (s *LogService) GetLogStats(ctx context.Context) (*models.LogStats, error) {
	return s.logRepo.GetLogStats(ctx)
}
