package app

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
	"github.com/vladislavdragonenkov/roombook/internal/service/retention"
)

const retentionStopTimeout = 5 * time.Second

// retentionTargets собирает хранилища, которые умеют удалять старые записи.
func retentionTargets(cfg Config, deps runtimeDeps) []retention.Target {
	var targets []retention.Target
	if p, ok := deps.inbox.(domain.Pruner); ok {
		targets = append(targets, retention.Target{Name: "inbox", Pruner: p, MaxAge: cfg.InboxRetention})
	}
	if p, ok := deps.outboxRepo.(domain.Pruner); ok {
		targets = append(targets, retention.Target{Name: "outbox", Pruner: p, MaxAge: cfg.OutboxRetention})
	}
	return targets
}

func startRetentionWorker(ctx context.Context, cfg Config, deps runtimeDeps, logger *log.Entry) (context.CancelFunc, <-chan struct{}) {
	worker := retention.NewWorker(retentionTargets(cfg, deps),
		retention.WithInterval(cfg.RetentionInterval),
		retention.WithLogger(logger.WithField("layer", "retention")),
	)
	if len(worker.Targets()) == 0 {
		return nil, nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(workerCtx)
	}()
	logger.WithField("targets", worker.Targets()).Info("retention worker started")
	return cancel, done
}

func stopRetentionWorker(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel != nil {
		cancel()
	}
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(retentionStopTimeout):
		logger.Warn("retention worker did not stop in time")
	}
}
