package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
)

// notificationRepositoryInMemory хранит ящики уведомлений в памяти (для разработки/тестов).
type notificationRepositoryInMemory struct {
	mu    sync.RWMutex
	boxes map[string][]domain.Notification
}

// NewNotificationRepository создаёт in-memory реализацию NotificationRepository.
func NewNotificationRepository() domain.NotificationRepository {
	return &notificationRepositoryInMemory{boxes: make(map[string][]domain.Notification)}
}

// Append кладёт уведомление в ящик получателя.
func (r *notificationRepositoryInMemory) Append(_ context.Context, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	box := append(r.boxes[n.Recipient], n)
	sort.SliceStable(box, func(i, j int) bool {
		return box[i].CreatedAt.After(box[j].CreatedAt)
	})
	r.boxes[n.Recipient] = box
	return nil
}

// List возвращает уведомления получателя, новые первыми.
func (r *notificationRepositoryInMemory) List(_ context.Context, recipient string, limit int) ([]domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	box := r.boxes[recipient]
	if limit > 0 && len(box) > limit {
		box = box[:limit]
	}
	result := make([]domain.Notification, len(box))
	copy(result, box)
	return result, nil
}

// DeleteBefore удаляет уведомления, созданные не позже before.
func (r *notificationRepositoryInMemory) DeleteBefore(_ context.Context, before time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for recipient, box := range r.boxes {
		kept := box[:0]
		for _, n := range box {
			if (limit <= 0 || deleted < limit) && !n.CreatedAt.After(before) {
				deleted++
				continue
			}
			kept = append(kept, n)
		}
		if len(kept) == 0 {
			delete(r.boxes, recipient)
			continue
		}
		r.boxes[recipient] = kept
	}
	return deleted, nil
}

var (
	_ domain.NotificationRepository = (*notificationRepositoryInMemory)(nil)
	_ domain.Pruner                 = (*notificationRepositoryInMemory)(nil)
)
