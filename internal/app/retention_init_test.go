package app

import (
	"context"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/roombook/internal/storage/memory"
)

func TestRetentionTargets(t *testing.T) {
	cfg := DefaultConfig()
	deps := runtimeDeps{
		inbox:      memory.NewNotificationRepository(),
		outboxRepo: memory.NewOutboxRepository(),
	}

	targets := retentionTargets(cfg, deps)
	require.Len(t, targets, 2)
	require.Equal(t, "inbox", targets[0].Name)
	require.Equal(t, cfg.InboxRetention, targets[0].MaxAge)
	require.Equal(t, "outbox", targets[1].Name)

	require.Empty(t, retentionTargets(cfg, runtimeDeps{}))
}

func TestStartRetentionWorker(t *testing.T) {
	logger := log.WithField("component", "test")
	deps := runtimeDeps{inbox: memory.NewNotificationRepository()}

	cfg := DefaultConfig()
	cfg.InboxRetention = 0
	cancel, done := startRetentionWorker(context.Background(), cfg, deps, logger)
	require.Nil(t, cancel)
	require.Nil(t, done)

	cfg.InboxRetention = time.Hour
	cancel, done = startRetentionWorker(context.Background(), cfg, deps, logger)
	require.NotNil(t, cancel)
	stopRetentionWorker(cancel, done, logger)

	select {
	case <-done:
	default:
		t.Fatal("retention worker is still running")
	}
	stopRetentionWorker(nil, nil, logger)
}
