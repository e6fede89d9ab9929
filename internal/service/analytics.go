package service

import (
	"context"
	"time"

	"github.com/aman-churiwal/rate-limiter/internal/models"
	"github.com/aman-churiwal/rate-limiter/internal/repository"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var ErrUnknownOutcome = errors.New("unknown outcome")

type DecisionReader interface {
	CountByOutcome(ctx context.Context, from, to time.Time) (map[models.Outcome]int64, error)
	TopDeniedKeys(ctx context.Context, from, to time.Time, limit int) ([]repository.KeyCount, error)
	HourlyOutcomes(ctx context.Context, from, to time.Time) ([]repository.HourlyOutcome, error)
	FindByTimeRange(ctx context.Context, from, to time.Time, outcome models.Outcome, limit, offset int) ([]models.DecisionLog, error)
	DeleteOldLogs(ctx context.Context, before time.Time) (int64, error)
}

type AnalyticsService struct {
	repository DecisionReader
	now        func() time.Time
}

func NewAnalyticsService(repo DecisionReader) *AnalyticsService {
	return &AnalyticsService{
		repository: repo,
		now:        time.Now,
	}
}

type DecisionSummary struct {
	From          time.Time             `json:"from"`
	To            time.Time             `json:"to"`
	Total         int64                 `json:"total"`
	Allowed       int64                 `json:"allowed"`
	Denied        int64                 `json:"denied"`
	DenialRate    float64               `json:"denial_rate"`
	TopDeniedKeys []repository.KeyCount `json:"top_denied_keys"`
}

// Retrieves decision counts for a time range
func (s *AnalyticsService) GetSummary(ctx context.Context, from, to time.Time, topN int) (*DecisionSummary, error) {
	counts, err := s.repository.CountByOutcome(ctx, from, to)
	if err != nil {
		return nil, err
	}

	summary := &DecisionSummary{
		From:          from,
		To:            to,
		Allowed:       counts[models.OutcomeAllowed],
		Denied:        counts[models.OutcomeDenied],
		TopDeniedKeys: []repository.KeyCount{},
	}
	summary.Total = summary.Allowed + summary.Denied

	if summary.Denied == 0 {
		return summary, nil
	}

	summary.DenialRate = float64(summary.Denied) / float64(summary.Total) * 100

	top, err := s.repository.TopDeniedKeys(ctx, from, to, topN)
	if err != nil {
		return nil, err
	}
	summary.TopDeniedKeys = top

	return summary, nil
}

func (s *AnalyticsService) GetTimeSeries(ctx context.Context, from, to time.Time) ([]repository.HourlyOutcome, error) {
	return s.repository.HourlyOutcomes(ctx, from, to)
}

// Retrieves decisions with pagination, optionally filtered by outcome
func (s *AnalyticsService) GetDecisions(ctx context.Context, from, to time.Time, outcome models.Outcome, limit, offset int) ([]models.DecisionLog, error) {
	switch outcome {
	case "", models.OutcomeAllowed, models.OutcomeDenied:
	default:
		return nil, errors.Wrapf(ErrUnknownOutcome, "outcome %q", outcome)
	}
	return s.repository.FindByTimeRange(ctx, from, to, outcome, limit, offset)
}

// Deletes decisions older than the retention period
func (s *AnalyticsService) CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := s.now().AddDate(0, 0, -retentionDays)
	return s.repository.DeleteOldLogs(ctx, cutoff)
}

// RunCleanup deletes expired decisions once, then every interval until ctx
// is done.
func (s *AnalyticsService) RunCleanup(ctx context.Context, retentionDays int, interval time.Duration, logger *zap.Logger) {
	if retentionDays <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}

	cleanup := func() {
		deleted, err := s.CleanupOldLogs(ctx, retentionDays)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("failed to clean up old decision logs", zap.Error(err))
			}
			return
		}
		if deleted > 0 {
			logger.Info("cleaned up old decision logs", zap.Int64("deleted", deleted))
		}
	}

	cleanup()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleanup()
		}
	}
}
