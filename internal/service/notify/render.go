package notify

import (
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
)

// Render превращает событие в сообщение для адресата.
// О новой заявке узнают администраторы, обо всех остальных переходах узнаёт заявитель.
func Render(event domain.ReservationEvent) domain.Notification {
	r := event.Reservation
	n := domain.Notification{
		Recipient:     r.RequesterID,
		Audience:      domain.AudienceRequester,
		ReservationID: r.ID,
		Kind:          event.Kind,
		CreatedAt:     event.OccurredAt,
	}

	var headline string
	switch event.Kind {
	case domain.EventCreated:
		n.Recipient = domain.AdminRecipient
		n.Audience = domain.AudienceAdmin
		if r.Status == domain.ReservationStatusApproved {
			n.Subject = "New reservation admitted"
			headline = fmt.Sprintf("Reservation by %s was admitted automatically.", r.RequesterID)
		} else {
			n.Subject = "New reservation request"
			headline = fmt.Sprintf("Reservation by %s awaits review.", r.RequesterID)
		}
	case domain.EventApproved:
		n.Subject = "Reservation approved"
		headline = "Your reservation has been approved."
	case domain.EventRejected:
		n.Subject = "Reservation rejected"
		headline = "Your reservation has been rejected."
	case domain.EventCancelled:
		n.Subject = "Reservation cancelled"
		headline = "Your reservation has been cancelled."
	case domain.EventModified:
		n.Subject = "Reservation modified"
		headline = "Your reservation has been modified."
	default:
		n.Subject = "Reservation update"
		headline = "Your reservation has been updated."
	}

	var b strings.Builder
	b.WriteString(headline)
	b.WriteString("\n")
	if r.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", r.Title)
	}
	fmt.Fprintf(&b, "Room: %s", r.Building)
	if r.Floor != "" {
		fmt.Fprintf(&b, " floor %s", r.Floor)
	}
	fmt.Fprintf(&b, " %s\n", r.Room)
	fmt.Fprintf(&b, "When: %s (%s) %s-%s\n", r.Date, r.DayOfWeek, r.StartTime, r.EndTime)
	fmt.Fprintf(&b, "Status: %s", r.Status)
	if event.Reason != "" {
		fmt.Fprintf(&b, "\nReason: %s", event.Reason)
	}
	n.Body = b.String()

	return n
}
