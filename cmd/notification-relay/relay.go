package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
	"github.com/vladislavdragonenkov/roombook/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/roombook/internal/service/notify"
)

// relay раскладывает события о бронях из Kafka по ящикам получателей.
type relay struct {
	inbox  domain.NotificationRepository
	logger *log.Entry
}

func newRelay(inbox domain.NotificationRepository, logger *log.Entry) *relay {
	if logger == nil {
		logger = log.WithField("component", "notification-relay")
	}
	return &relay{inbox: inbox, logger: logger}
}

// handle обрабатывает конверт из топика событий. Чужие агрегаты пропускаются.
func (r *relay) handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	envelope, err := kafka.ParseEnvelope(message)
	if err != nil {
		return err
	}
	return r.deliver(ctx, envelope)
}

// handleDeadLetter достаёт исходное событие из DLQ и доставляет его повторно.
// В DLQ лежат два формата: DeadLetter от consumer и конверт outbox-воркера.
func (r *relay) handleDeadLetter(ctx context.Context, message *sarama.ConsumerMessage) error {
	if letter, err := kafka.ParseDeadLetter(message); err == nil && letter.OriginalValue != "" {
		return r.handle(ctx, &sarama.ConsumerMessage{
			Topic: letter.OriginalTopic,
			Key:   []byte(letter.OriginalKey),
			Value: []byte(letter.OriginalValue),
		})
	}

	envelope, err := kafka.ParseEnvelope(message)
	if err != nil {
		return err
	}
	var failed struct {
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(envelope.Payload, &failed); err != nil {
		return fmt.Errorf("decode outbox dead letter: %w", err)
	}
	envelope.Payload = failed.Payload
	return r.deliver(ctx, envelope)
}

func (r *relay) deliver(ctx context.Context, envelope *kafka.Envelope) error {
	entry := r.logger.WithFields(log.Fields{
		"event_id":   envelope.ID,
		"event_type": envelope.EventType,
	})
	if envelope.AggregateType != notify.AggregateType {
		entry.WithField("aggregate_type", envelope.AggregateType).Debug("skipping foreign event")
		return nil
	}

	msg, err := notify.DecodeMessage(envelope.Payload)
	if err != nil {
		return err
	}
	if err := r.inbox.Append(ctx, msg.Notification()); err != nil {
		return fmt.Errorf("append notification %s: %w", msg.NotificationID, err)
	}
	entry.WithFields(log.Fields{
		"reservation_id": msg.ReservationID,
		"recipient":      msg.Recipient,
	}).Info("notification relayed")
	return nil
}
