// Package retention периодически удаляет устаревшие уведомления и обработанные outbox-события.
package retention

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
)

const (
	defaultInterval  = time.Hour
	defaultBatchSize = 500
)

var (
	retentionRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roombook_retention_runs_total",
		Help: "Total number of retention runs grouped by target and result.",
	}, []string{"target", "result"})
	retentionDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roombook_retention_deleted_total",
		Help: "Total number of records removed by retention grouped by target.",
	}, []string{"target"})
)

// Target — хранилище и срок, после которого его записи удаляются.
type Target struct {
	Name   string
	Pruner domain.Pruner
	MaxAge time.Duration
}

// Option настраивает Worker.
type Option func(*Worker)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithInterval задаёт интервал между проходами.
func WithInterval(interval time.Duration) Option {
	return func(w *Worker) {
		w.interval = interval
	}
}

// WithBatchSize задаёт размер одной порции удаления.
func WithBatchSize(n int) Option {
	return func(w *Worker) {
		w.batchSize = n
	}
}

// WithNow подменяет источник времени.
func WithNow(now func() time.Time) Option {
	return func(w *Worker) {
		w.now = now
	}
}

// Worker чистит цели по расписанию. Цели без Pruner или с MaxAge <= 0 пропускаются.
type Worker struct {
	targets   []Target
	logger    *log.Entry
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// NewWorker создаёт воркер для targets.
func NewWorker(targets []Target, opts ...Option) *Worker {
	w := &Worker{
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = log.WithField("component", "retention-worker")
	}
	if w.interval <= 0 {
		w.interval = defaultInterval
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultBatchSize
	}
	for _, t := range targets {
		if t.Pruner != nil && t.MaxAge > 0 {
			w.targets = append(w.targets, t)
		}
	}
	return w
}

// Targets возвращает имена активных целей.
func (w *Worker) Targets() []string {
	names := make([]string, 0, len(w.targets))
	for _, t := range w.targets {
		names = append(names, t.Name)
	}
	return names
}

// Run выполняет проход сразу и далее по тикеру до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if len(w.targets) == 0 {
		w.logger.Info("retention worker is disabled: no targets")
		return
	}

	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce проходит по всем целям и возвращает число удалённых записей по имени цели.
func (w *Worker) RunOnce(ctx context.Context) map[string]int {
	result := make(map[string]int, len(w.targets))
	now := w.now()
	for _, t := range w.targets {
		deleted, err := w.prune(ctx, t, now.Add(-t.MaxAge))
		result[t.Name] = deleted
		entry := w.logger.WithField("target", t.Name)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return result
			}
			retentionRunsTotal.WithLabelValues(t.Name, "error").Inc()
			entry.WithError(err).Warn("retention run failed")
			continue
		}
		retentionRunsTotal.WithLabelValues(t.Name, "ok").Inc()
		if deleted > 0 {
			entry.WithField("deleted", deleted).Info("retention run completed")
		}
	}
	return result
}

// prune удаляет порциями, пока порция заполняется целиком.
func (w *Worker) prune(ctx context.Context, t Target, before time.Time) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		deleted, err := t.Pruner.DeleteBefore(ctx, before, w.batchSize)
		if err != nil {
			return total, err
		}
		total += deleted
		if deleted > 0 {
			retentionDeletedTotal.WithLabelValues(t.Name).Add(float64(deleted))
		}
		if deleted < w.batchSize {
			return total, nil
		}
	}
}
