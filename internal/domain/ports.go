package domain

import (
	"context"
	"time"
)

// SnapshotStore — порт персистентности, загружает и сохраняет полный набор броней.
type SnapshotStore interface {
	LoadAll(ctx context.Context) ([]Reservation, error)
	SaveAll(ctx context.Context, reservations []Reservation) error
}

// ReservationQuery даёт правилам допуска доступ к броням только на чтение.
type ReservationQuery interface {
	// Find возвращает брони, для которых match вернул true.
	Find(match func(Reservation) bool) []Reservation
}

// NotificationRepository хранит отрендеренные уведомления по получателям.
type NotificationRepository interface {
	Append(ctx context.Context, n Notification) error
	// List возвращает уведомления получателя, новые первыми; limit<=0 снимает ограничение.
	List(ctx context.Context, recipient string, limit int) ([]Notification, error)
}

// Pruner удаляет устаревшие записи порциями не больше limit и возвращает число удалённых.
type Pruner interface {
	DeleteBefore(ctx context.Context, before time.Time, limit int) (int, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository хранит события о бронях до их публикации в брокер.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	// MarkFailed фиксирует исчерпание попыток вместе с текстом последней ошибки.
	MarkFailed(ctx context.Context, id, reason string) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
