package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
)

type notificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository создаёт PostgreSQL-реализацию ящика уведомлений.
func NewNotificationRepository(store *Store) domain.NotificationRepository {
	return &notificationRepository{db: store.DB()}
}

func (r *notificationRepository) Append(ctx context.Context, n domain.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient, audience, reservation_id, kind, subject, body, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, n.ID, n.Recipient, string(n.Audience), n.ReservationID, string(n.Kind), n.Subject, n.Body, n.CreatedAt); err != nil {
		return fmt.Errorf("append notification: %w", err)
	}

	return nil
}

func (r *notificationRepository) List(ctx context.Context, recipient string, limit int) ([]domain.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		SELECT id, recipient, audience, reservation_id, kind, subject, body, created_at
		FROM notifications
		WHERE recipient = $1
		ORDER BY created_at DESC, id DESC`
	args := []any{recipient}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Notification, 0)
	for rows.Next() {
		var (
			n        domain.Notification
			audience string
			kind     string
		)
		if err := rows.Scan(&n.ID, &n.Recipient, &audience, &n.ReservationID, &kind, &n.Subject, &n.Body, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Audience = domain.Audience(audience)
		n.Kind = domain.EventKind(kind)
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}

	return result, nil
}

// DeleteBefore удаляет не больше limit уведомлений старше before, начиная с самых старых.
func (r *notificationRepository) DeleteBefore(ctx context.Context, before time.Time, limit int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = defaultPruneBatch
	}
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM notifications
		WHERE id IN (
			SELECT id FROM notifications
			WHERE created_at <= $1
			ORDER BY created_at
			LIMIT $2
		)
	`, before, limit)
	if err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	return int(n), nil
}

var (
	_ domain.NotificationRepository = (*notificationRepository)(nil)
	_ domain.Pruner                 = (*notificationRepository)(nil)
)
