package repository

import (
	"context"
	"time"

	"github.com/aman-churiwal/rate-limiter/internal/models"
	"github.com/aman-churiwal/rate-limiter/internal/storage"
	"github.com/pkg/errors"
)

type DecisionLogRepository struct {
	db *storage.Postgres
}

func NewDecisionLogRepository(db *storage.Postgres) *DecisionLogRepository {
	return &DecisionLogRepository{db: db}
}

type KeyCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

type HourlyOutcome struct {
	Hour    time.Time `json:"hour"`
	Allowed int64     `json:"allowed"`
	Denied  int64     `json:"denied"`
}

// Inserts decisions in one statement
func (r *DecisionLogRepository) CreateBatch(ctx context.Context, logs []*models.DecisionLog) error {
	if len(logs) == 0 {
		return nil
	}

	err := r.db.DB.WithContext(ctx).Create(&logs).Error
	return errors.WithMessage(err, "insert decision logs")
}

// Returns decisions in a time range, newest first
func (r *DecisionLogRepository) FindByTimeRange(ctx context.Context, from, to time.Time, outcome models.Outcome, limit, offset int) ([]models.DecisionLog, error) {
	var logs []models.DecisionLog

	q := r.db.DB.WithContext(ctx).Where("timestamp BETWEEN ? AND ?", from, to)
	if outcome != "" {
		q = q.Where("outcome = ?", outcome)
	}
	err := q.Order("timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error

	return logs, errors.WithMessage(err, "find decision logs")
}

// Counts decisions per outcome in a time range
func (r *DecisionLogRepository) CountByOutcome(ctx context.Context, from, to time.Time) (map[models.Outcome]int64, error) {
	rows, err := r.db.DB.WithContext(ctx).
		Model(&models.DecisionLog{}).
		Select("outcome, COUNT(*) as count").
		Where("timestamp BETWEEN ? AND ?", from, to).
		Group("outcome").
		Rows()
	if err != nil {
		return nil, errors.WithMessage(err, "count decisions by outcome")
	}
	defer rows.Close()

	counts := map[models.Outcome]int64{
		models.OutcomeAllowed: 0,
		models.OutcomeDenied:  0,
	}
	for rows.Next() {
		var outcome models.Outcome
		var count int64
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, errors.WithMessage(err, "scan outcome count")
		}
		counts[outcome] = count
	}

	return counts, rows.Err()
}

// Returns the keys denied most often
func (r *DecisionLogRepository) TopDeniedKeys(ctx context.Context, from, to time.Time, limit int) ([]KeyCount, error) {
	var results []KeyCount

	err := r.db.DB.WithContext(ctx).
		Model(&models.DecisionLog{}).
		Select("key, COUNT(*) as count").
		Where("outcome = ? AND timestamp BETWEEN ? AND ?", models.OutcomeDenied, from, to).
		Group("key").
		Order("count DESC").
		Limit(limit).
		Scan(&results).Error

	return results, errors.WithMessage(err, "top denied keys")
}

// Returns allowed and denied counts bucketed by hour
func (r *DecisionLogRepository) HourlyOutcomes(ctx context.Context, from, to time.Time) ([]HourlyOutcome, error) {
	var results []HourlyOutcome

	err := r.db.DB.WithContext(ctx).
		Model(&models.DecisionLog{}).
		Select(`DATE_TRUNC('hour', timestamp) as hour,
			COUNT(*) FILTER (WHERE outcome = ?) as allowed,
			COUNT(*) FILTER (WHERE outcome = ?) as denied`, models.OutcomeAllowed, models.OutcomeDenied).
		Where("timestamp BETWEEN ? AND ?", from, to).
		Group("hour").
		Order("hour ASC").
		Scan(&results).Error

	return results, errors.WithMessage(err, "hourly outcomes")
}

// Deletes decisions older than before
func (r *DecisionLogRepository) DeleteOldLogs(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.DB.WithContext(ctx).
		Where("timestamp < ?", before).
		Delete(&models.DecisionLog{})

	return result.RowsAffected, errors.WithMessage(result.Error, "delete old decision logs")
}
