package service

import (
	"context"
	"time"

	"github.com/aman-churiwal/rate-limiter/internal/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type DecisionWriter interface {
	CreateBatch(ctx context.Context, logs []*models.DecisionLog) error
}

type DecisionLoggerConfig struct {
	Enabled         bool          `mapstructure:"enabled" json:"enabled"`
	BufferSize      int           `mapstructure:"buffer_size" json:"buffer_size"`
	BatchSize       int           `mapstructure:"batch_size" json:"batch_size"`
	FlushInterval   time.Duration `mapstructure:"flush_interval" json:"flush_interval"`
	RetentionDays   int           `mapstructure:"retention_days" json:"retention_days"`
	// How often decisions older than RetentionDays are deleted.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" json:"cleanup_interval"`
}

// DecisionLogger journals rate limit decisions off the request path.
// Record never blocks; when the buffer is full the entry is dropped.
type DecisionLogger struct {
	writer        DecisionWriter
	entries       chan *models.DecisionLog
	batchSize     int
	flushInterval time.Duration
	logger        *zap.Logger
	dropWarning   rate.Sometimes
}

func NewDecisionLogger(writer DecisionWriter, cfg DecisionLoggerConfig, logger *zap.Logger) *DecisionLogger {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DecisionLogger{
		writer:        writer,
		entries:       make(chan *models.DecisionLog, cfg.BufferSize),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		logger:        logger.Named("decision_logger"),
		dropWarning:   rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
}

// Returns false if the entry was dropped
func (d *DecisionLogger) Record(entry *models.DecisionLog) bool {
	select {
	case d.entries <- entry:
		return true
	default:
		d.dropWarning.Do(func() {
			d.logger.Warn("decision log buffer full, dropping entries", zap.Int("capacity", cap(d.entries)))
		})
		return false
	}
}

// Run batches queued entries into the writer until ctx is done, then
// flushes whatever is still buffered.
func (d *DecisionLogger) Run(ctx context.Context) {
	ticker := time.NewTicker(d.flushInterval)
	defer ticker.Stop()

	batch := make([]*models.DecisionLog, 0, d.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := d.writer.CreateBatch(ctx, batch); err != nil {
			d.logger.Error("failed to write decision logs", zap.Int("count", len(batch)), zap.Error(err))
		}
		batch = make([]*models.DecisionLog, 0, d.batchSize)
	}

	for {
		select {
		case entry := <-d.entries:
			batch = append(batch, entry)
			if len(batch) >= d.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
			d.drain(&batch)
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			flush(shutdownCtx)
			cancel()
			return
		}
	}
}

func (d *DecisionLogger) drain(batch *[]*models.DecisionLog) {
	for {
		select {
		case entry := <-d.entries:
			*batch = append(*batch, entry)
		default:
			return
		}
	}
}
