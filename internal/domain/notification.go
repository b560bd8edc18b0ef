package domain

import "time"

// EventKind задаёт вид перехода в жизненном цикле брони.
type EventKind string

const (
	EventCreated   EventKind = "created"
	EventApproved  EventKind = "approved"
	EventRejected  EventKind = "rejected"
	EventCancelled EventKind = "cancelled"
	EventModified  EventKind = "modified"
)

// ReservationEvent — запись о переходе, которую получает каждый наблюдатель.
type ReservationEvent struct {
	Reservation Reservation
	Kind        EventKind
	Reason      string
	OccurredAt  time.Time
}

// Audience указывает, кому адресовано уведомление.
type Audience string

const (
	AudienceRequester Audience = "requester"
	AudienceAdmin     Audience = "admin"
)

// AdminRecipient обозначает общий ящик администраторов.
const AdminRecipient = "admin"

// Notification — отрендеренное сообщение для конкретного получателя.
type Notification struct {
	ID            string
	Recipient     string
	Audience      Audience
	ReservationID string
	Kind          EventKind
	Subject       string
	Body          string
	CreatedAt     time.Time
}
