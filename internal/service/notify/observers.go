package notify

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
)

// LogObserver пишет журнал изменений: одна структурированная строка на переход.
func LogObserver(logger *log.Entry) Observer {
	if logger == nil {
		logger = log.WithField("component", "reservation-history")
	}
	return func(_ context.Context, event domain.ReservationEvent, n domain.Notification) error {
		r := event.Reservation
		logger.WithFields(log.Fields{
			"reservation_id": r.ID,
			"requester_id":   r.RequesterID,
			"event":          event.Kind,
			"status":         r.Status,
			"room":           r.Building + " " + r.Room,
			"date":           r.Date,
			"start_time":     r.StartTime,
			"reason":         event.Reason,
			"recipient":      n.Recipient,
		}).Info("reservation lifecycle event")
		return nil
	}
}

// InboxObserver складывает уведомление в ящик получателя.
func InboxObserver(repo domain.NotificationRepository) Observer {
	return func(ctx context.Context, _ domain.ReservationEvent, n domain.Notification) error {
		if err := repo.Append(ctx, n); err != nil {
			return fmt.Errorf("append notification: %w", err)
		}
		return nil
	}
}

// OutboxObserver ставит событие в outbox для последующей публикации в брокер.
func OutboxObserver(repo domain.OutboxRepository) Observer {
	return func(ctx context.Context, event domain.ReservationEvent, n domain.Notification) error {
		payload, err := NewMessage(event, n).Encode()
		if err != nil {
			return err
		}
		_, err = repo.Enqueue(ctx, domain.OutboxMessage{
			AggregateType: AggregateType,
			AggregateID:   event.Reservation.ID,
			EventType:     EventType(event.Kind),
			Payload:       payload,
		})
		if err != nil {
			return fmt.Errorf("enqueue outbox message: %w", err)
		}
		return nil
	}
}
