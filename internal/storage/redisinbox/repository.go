package redisinbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
)

const (
	defaultKeyPrefix = "roombook:inbox:"
	defaultMaxLen    = 200
	opTimeout        = 2 * time.Second
)

type notificationRecord struct {
	ID            string    `json:"id"`
	Recipient     string    `json:"recipient"`
	Audience      string    `json:"audience"`
	ReservationID string    `json:"reservation_id"`
	Kind          string    `json:"kind"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	CreatedAt     time.Time `json:"created_at"`
}

// Repository хранит ящик каждого получателя в Redis-списке, новые элементы в голове.
type Repository struct {
	client *redis.Client
	prefix string
	maxLen int64
}

// Option настраивает Repository.
type Option func(*Repository)

// WithKeyPrefix задаёт префикс ключей.
func WithKeyPrefix(prefix string) Option {
	return func(r *Repository) {
		r.prefix = prefix
	}
}

// WithMaxLen ограничивает длину ящика; старые уведомления отбрасываются.
func WithMaxLen(n int64) Option {
	return func(r *Repository) {
		r.maxLen = n
	}
}

// New создаёт Redis-реализацию NotificationRepository.
func New(client *redis.Client, opts ...Option) *Repository {
	r := &Repository{client: client, prefix: defaultKeyPrefix, maxLen: defaultMaxLen}
	for _, opt := range opts {
		opt(r)
	}
	if r.maxLen <= 0 {
		r.maxLen = defaultMaxLen
	}
	return r
}

// Connect создаёт клиента и проверяет доступность сервера.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func (r *Repository) key(recipient string) string {
	return r.prefix + recipient
}

// Append кладёт уведомление в голову списка и обрезает хвост.
func (r *Repository) Append(ctx context.Context, n domain.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(notificationRecord{
		ID:            n.ID,
		Recipient:     n.Recipient,
		Audience:      string(n.Audience),
		ReservationID: n.ReservationID,
		Kind:          string(n.Kind),
		Subject:       n.Subject,
		Body:          n.Body,
		CreatedAt:     n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	key := r.key(n.Recipient)
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, r.maxLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append notification to %s: %w", key, err)
	}
	return nil
}

// List возвращает уведомления получателя, новые первыми.
func (r *Repository) List(ctx context.Context, recipient string, limit int) ([]domain.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	raw, err := r.client.LRange(ctx, r.key(recipient), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	result := make([]domain.Notification, 0, len(raw))
	for _, item := range raw {
		var rec notificationRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decode notification: %w", err)
		}
		result = append(result, domain.Notification{
			ID:            rec.ID,
			Recipient:     rec.Recipient,
			Audience:      domain.Audience(rec.Audience),
			ReservationID: rec.ReservationID,
			Kind:          domain.EventKind(rec.Kind),
			Subject:       rec.Subject,
			Body:          rec.Body,
			CreatedAt:     rec.CreatedAt,
		})
	}
	return result, nil
}

var _ domain.NotificationRepository = (*Repository)(nil)
