package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/roombook/internal/health"
	"github.com/vladislavdragonenkov/roombook/internal/storage/memory"
	"github.com/vladislavdragonenkov/roombook/internal/storage/postgres"
	"github.com/vladislavdragonenkov/roombook/internal/storage/redisinbox"
	"github.com/vladislavdragonenkov/roombook/internal/storage/yamlfile"
)

// runtimeDeps собирает адаптеры хранения, выбранные конфигурацией.
type runtimeDeps struct {
	snapshots  domain.SnapshotStore
	inbox      domain.NotificationRepository
	outboxRepo domain.OutboxRepository

	storageChecker healthcheck.Checker
	inboxChecker   healthcheck.Checker

	closeFn func() error
}

// initRuntimeDependencies открывает хранилища для cfg.StorageDriver и cfg.InboxDriver.
// При ошибке уже открытые подключения закрываются.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDeps, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &runtimeDeps{}
	var closers []func() error
	deps.closeFn = func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (*runtimeDeps, error) {
		_ = deps.closeFn()
		return nil, err
	}

	var pg *postgres.Store
	openPostgres := func() (*postgres.Store, error) {
		if pg != nil {
			return pg, nil
		}
		dsn := strings.TrimSpace(cfg.PostgresDSN)
		if dsn == "" {
			return nil, errors.New("postgres dsn is required (ROOMBOOK_POSTGRES_DSN)")
		}
		store, err := postgres.Open(ctx, dsn, postgres.WithLogger(logger.WithField("layer", "postgres")))
		if err != nil {
			return nil, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
		}
		closers = append(closers, store.Close)
		pg = store
		return pg, nil
	}

	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		deps.snapshots = memory.NewSnapshotStore()
		deps.outboxRepo = memory.NewOutboxRepository()
		deps.storageChecker = healthcheck.NewSimpleChecker("storage", func() error { return nil })
	case StorageDriverYAML:
		file := yamlfile.New(cfg.YAMLPath, logger.WithField("layer", "yaml"))
		deps.snapshots = file
		deps.outboxRepo = memory.NewOutboxRepository()
		deps.storageChecker = healthcheck.NewPingChecker("storage", 0, func(ctx context.Context) error {
			_, err := file.LoadAll(ctx)
			return err
		})
	case StorageDriverPostgres:
		store, err := openPostgres()
		if err != nil {
			return fail(err)
		}
		deps.snapshots = postgres.NewReservationSnapshot(store)
		deps.outboxRepo = postgres.NewOutboxRepository(store)
		deps.storageChecker = healthcheck.NewPingChecker("storage", 0, store.Ping)
	default:
		return fail(fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver))
	}

	switch cfg.InboxDriver {
	case InboxDriverMemory, "":
		deps.inbox = memory.NewNotificationRepository()
	case InboxDriverPostgres:
		store, err := openPostgres()
		if err != nil {
			return fail(err)
		}
		deps.inbox = postgres.NewNotificationRepository(store)
		deps.inboxChecker = healthcheck.NewPingChecker("inbox", 0, store.Ping)
	case InboxDriverRedis:
		client, err := redisinbox.Connect(ctx, cfg.RedisAddr, "", 0)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, client.Close)
		deps.inbox = redisinbox.New(client)
		deps.inboxChecker = healthcheck.NewPingChecker("inbox", 0, func(ctx context.Context) error {
			return pingRedis(ctx, client)
		})
	default:
		return fail(fmt.Errorf("unsupported inbox driver: %s", cfg.InboxDriver))
	}

	logger.WithFields(log.Fields{
		"storage": cfg.StorageDriver,
		"inbox":   cfg.InboxDriver,
	}).Info("storage initialized")
	return deps, nil
}

func pingRedis(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}
