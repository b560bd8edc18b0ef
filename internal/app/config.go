package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Драйверы порта персистентности.
const (
	StorageDriverMemory   = "memory"
	StorageDriverYAML     = "yaml"
	StorageDriverPostgres = "postgres"
)

// Драйверы ящика уведомлений.
const (
	InboxDriverMemory   = "memory"
	InboxDriverPostgres = "postgres"
	InboxDriverRedis    = "redis"
)

// Config описывает настройки запуска сервиса бронирования.
type Config struct {
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	YAMLPath            string
	PostgresDSN         string
	PostgresAutoMigrate bool

	InboxDriver string
	RedisAddr   string

	KafkaBrokers string
	KafkaTopic   string
	RabbitMQURL  string

	FacultyAutoApprove bool
	Timezone           string

	PersistMaxAttempts int
	PersistRetryDelay  time.Duration
	NotifyTimeout      time.Duration

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	// OutboxMaxPending задаёт порог backlog, выше которого /healthz сообщает degraded.
	OutboxMaxPending int

	// Сроки хранения; 0 отключает очистку соответствующего хранилища.
	RetentionInterval time.Duration
	InboxRetention    time.Duration
	OutboxRetention   time.Duration

	LogLevel string
}

// DefaultConfig возвращает настройки для локального запуска без внешних сервисов.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		YAMLPath:            "data/reservations.yaml",
		PostgresAutoMigrate: true,
		InboxDriver:         InboxDriverMemory,
		RedisAddr:           "localhost:6379",
		KafkaTopic:          "roombook.reservation.events",
		Timezone:            "Local",
		PersistMaxAttempts:  3,
		PersistRetryDelay:   50 * time.Millisecond,
		NotifyTimeout:       2 * time.Second,
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    50 * time.Millisecond,
		OutboxMaxPending:    1000,
		RetentionInterval:   time.Hour,
		InboxRetention:      30 * 24 * time.Hour,
		OutboxRetention:     7 * 24 * time.Hour,
		LogLevel:            "info",
	}
}

// ConfigFromEnv накладывает переменные ROOMBOOK_* на DefaultConfig.
// На некорректное значение возвращает ошибку с именем переменной.
func ConfigFromEnv() (Config, error) {
	return configFrom(os.LookupEnv)
}

func configFrom(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	env := envReader{lookup: lookup}

	env.str("ROOMBOOK_GRPC_ADDR", &cfg.GRPCAddr)
	env.str("ROOMBOOK_METRICS_ADDR", &cfg.MetricsAddr)
	env.str("ROOMBOOK_STORAGE_DRIVER", &cfg.StorageDriver)
	env.str("ROOMBOOK_YAML_PATH", &cfg.YAMLPath)
	env.str("ROOMBOOK_POSTGRES_DSN", &cfg.PostgresDSN)
	env.boolean("ROOMBOOK_POSTGRES_AUTO_MIGRATE", &cfg.PostgresAutoMigrate)
	env.str("ROOMBOOK_INBOX_DRIVER", &cfg.InboxDriver)
	env.str("ROOMBOOK_REDIS_ADDR", &cfg.RedisAddr)
	env.str("ROOMBOOK_KAFKA_BROKERS", &cfg.KafkaBrokers)
	env.str("ROOMBOOK_KAFKA_TOPIC", &cfg.KafkaTopic)
	env.str("ROOMBOOK_RABBITMQ_URL", &cfg.RabbitMQURL)
	env.boolean("ROOMBOOK_FACULTY_AUTO_APPROVE", &cfg.FacultyAutoApprove)
	env.str("ROOMBOOK_TIMEZONE", &cfg.Timezone)
	env.integer("ROOMBOOK_PERSIST_MAX_ATTEMPTS", &cfg.PersistMaxAttempts)
	env.duration("ROOMBOOK_PERSIST_RETRY_DELAY", &cfg.PersistRetryDelay)
	env.duration("ROOMBOOK_NOTIFY_TIMEOUT", &cfg.NotifyTimeout)
	env.duration("ROOMBOOK_OUTBOX_POLL_INTERVAL", &cfg.OutboxPollInterval)
	env.integer("ROOMBOOK_OUTBOX_BATCH_SIZE", &cfg.OutboxBatchSize)
	env.integer("ROOMBOOK_OUTBOX_MAX_ATTEMPTS", &cfg.OutboxMaxAttempts)
	env.duration("ROOMBOOK_OUTBOX_RETRY_DELAY", &cfg.OutboxRetryDelay)
	env.integer("ROOMBOOK_OUTBOX_MAX_PENDING", &cfg.OutboxMaxPending)
	env.duration("ROOMBOOK_RETENTION_INTERVAL", &cfg.RetentionInterval)
	env.duration("ROOMBOOK_INBOX_RETENTION", &cfg.InboxRetention)
	env.duration("ROOMBOOK_OUTBOX_RETENTION", &cfg.OutboxRetention)
	env.str("ROOMBOOK_LOG_LEVEL", &cfg.LogLevel)

	if env.err != nil {
		return Config{}, env.err
	}
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	cfg.InboxDriver = strings.ToLower(cfg.InboxDriver)
	return cfg, nil
}

// Location разбирает Timezone; пустое значение и "Local" дают локальную зону.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// Level разбирает LogLevel; неизвестное значение даёт info.
func (c Config) Level() log.Level {
	level, err := log.ParseLevel(strings.TrimSpace(c.LogLevel))
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// envReader запоминает первую ошибку разбора.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *envReader) value(key string) (string, bool) {
	raw, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.value(key); ok {
		*dst = v
	}
}

func (r *envReader) boolean(key string, dst *bool) {
	v, ok := r.value(key)
	if !ok || r.err != nil {
		return
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		r.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	*dst = parsed
}

func (r *envReader) integer(key string, dst *int) {
	v, ok := r.value(key)
	if !ok || r.err != nil {
		return
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		r.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	*dst = parsed
}

func (r *envReader) duration(key string, dst *time.Duration) {
	v, ok := r.value(key)
	if !ok || r.err != nil {
		return
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		r.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	*dst = parsed
}
