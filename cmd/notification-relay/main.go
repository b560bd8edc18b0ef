package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/roombook/internal/app"
	"github.com/vladislavdragonenkov/roombook/internal/domain"
	"github.com/vladislavdragonenkov/roombook/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/roombook/internal/storage/postgres"
	"github.com/vladislavdragonenkov/roombook/internal/storage/redisinbox"
)

const (
	defaultGroup      = "roombook-notification-relay"
	defaultMaxRetries = 3
)

type options struct {
	group      string
	replayDLQ  bool
	maxRetries int
}

func parseOptions(args []string) (options, error) {
	opts := options{}
	fs := flag.NewFlagSet("notification-relay", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.group, "group", defaultGroup, "Kafka consumer group")
	fs.BoolVar(&opts.replayDLQ, "replay-dlq", false, "consume the DLQ topic instead of reservation events")
	fs.IntVar(&opts.maxRetries, "max-retries", defaultMaxRetries, "processing attempts before a message goes to the DLQ")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if strings.TrimSpace(opts.group) == "" {
		return options{}, errors.New("group is required")
	}
	if opts.maxRetries <= 0 {
		return options{}, errors.New("max-retries must be > 0")
	}
	return opts, nil
}

// openInbox подключает общий ящик; in-memory бессмыслен для отдельного процесса.
func openInbox(ctx context.Context, cfg app.Config) (domain.NotificationRepository, func() error, error) {
	switch cfg.InboxDriver {
	case app.InboxDriverRedis:
		client, err := redisinbox.Connect(ctx, cfg.RedisAddr, "", 0)
		if err != nil {
			return nil, nil, err
		}
		return redisinbox.New(client), client.Close, nil
	case app.InboxDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, nil, errors.New("ROOMBOOK_POSTGRES_DSN is required for the postgres inbox")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewNotificationRepository(store), store.Close, nil
	default:
		return nil, nil, fmt.Errorf("inbox driver %q is not shared between processes (use redis or postgres)", cfg.InboxDriver)
	}
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Fatal("failed to read .env")
	}
	cfg, err := app.ConfigFromEnv()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(cfg.Level())

	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		log.WithError(err).Fatal("invalid flags")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("notification relay exited with error")
	}
	log.Info("notification relay stopped")
}

func run(ctx context.Context, cfg app.Config, opts options) error {
	var brokers []string
	for _, b := range strings.Split(cfg.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return errors.New("ROOMBOOK_KAFKA_BROKERS is required")
	}

	inbox, closeInbox, err := openInbox(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeInbox() }()

	logger := log.WithField("component", "notification-relay")
	r := newRelay(inbox, logger)

	topic, handler := cfg.KafkaTopic, kafka.MessageHandler(r.handle)
	var dlq *kafka.Producer
	if opts.replayDLQ {
		topic, handler = kafka.TopicDeadLetterQueue, r.handleDeadLetter
	} else {
		dlq, err = kafka.NewProducer(brokers)
		if err != nil {
			return err
		}
		defer func() { _ = dlq.Close() }()
	}

	consumer, err := kafka.NewConsumerWithDLQ(brokers, opts.group, []string{topic}, handler, dlq, opts.maxRetries)
	if err != nil {
		return err
	}
	if err := consumer.Start(ctx); err != nil {
		return err
	}
	logger.WithFields(log.Fields{"topic": topic, "group": opts.group}).Info("notification relay started")

	<-ctx.Done()
	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("failed to stop consumer")
	}
	return ctx.Err()
}
