package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
)

// AggregateType задаёт тип агрегата в outbox для событий брони.
const AggregateType = "reservation"

// EventType возвращает имя события для брокера: reservation.<kind>.
func EventType(kind domain.EventKind) string {
	return AggregateType + "." + string(kind)
}

// Message — внешнее представление события, которое уходит в брокеры.
type Message struct {
	NotificationID string    `json:"notification_id"`
	ReservationID  string    `json:"reservation_id"`
	RequesterID    string    `json:"requester_id"`
	Event          string    `json:"event"`
	Status         string    `json:"status"`
	Reason         string    `json:"reason,omitempty"`
	Recipient      string    `json:"recipient"`
	Audience       string    `json:"audience"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	Building       string    `json:"building"`
	Floor          string    `json:"floor,omitempty"`
	Room           string    `json:"room"`
	Date           string    `json:"date"`
	StartTime      string    `json:"start_time"`
	EndTime        string    `json:"end_time"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewMessage собирает Message из события и отрендеренного уведомления.
func NewMessage(event domain.ReservationEvent, n domain.Notification) Message {
	r := event.Reservation
	return Message{
		NotificationID: n.ID,
		ReservationID:  r.ID,
		RequesterID:    r.RequesterID,
		Event:          string(event.Kind),
		Status:         string(r.Status),
		Reason:         event.Reason,
		Recipient:      n.Recipient,
		Audience:       string(n.Audience),
		Subject:        n.Subject,
		Body:           n.Body,
		Building:       r.Building,
		Floor:          r.Floor,
		Room:           r.Room,
		Date:           r.Date,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		OccurredAt:     event.OccurredAt.UTC(),
	}
}

// Encode сериализует сообщение в JSON.
func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode notification message: %w", err)
	}
	return data, nil
}

// DecodeMessage разбирает JSON, полученный из брокера.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode notification message: %w", err)
	}
	if m.ReservationID == "" || m.Recipient == "" {
		return Message{}, fmt.Errorf("decode notification message: reservation_id and recipient are required")
	}
	return m, nil
}

// Notification восстанавливает уведомление для ящика получателя.
func (m Message) Notification() domain.Notification {
	return domain.Notification{
		ID:            m.NotificationID,
		Recipient:     m.Recipient,
		Audience:      domain.Audience(m.Audience),
		ReservationID: m.ReservationID,
		Kind:          domain.EventKind(m.Event),
		Subject:       m.Subject,
		Body:          m.Body,
		CreatedAt:     m.OccurredAt,
	}
}
