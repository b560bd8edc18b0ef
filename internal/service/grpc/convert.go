package grpcsvc

import (
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
	"github.com/vladislavdragonenkov/roombook/internal/service/command"
)

func reservationFields(r domain.Reservation) map[string]any {
	return map[string]any{
		"id":                  r.ID,
		"requester_id":        r.RequesterID,
		"requester_role":      string(r.RequesterRole),
		"building":            r.Building,
		"floor":               r.Floor,
		"room":                r.Room,
		"title":               r.Title,
		"description":         r.Description,
		"date":                r.Date,
		"day_of_week":         r.DayOfWeek,
		"start_time":          r.StartTime,
		"end_time":            r.EndTime,
		"purpose":             string(r.Purpose),
		"participant_count":   r.ParticipantCount,
		"capacity":            r.Capacity,
		"status":              string(r.Status),
		"rejection_reason":    r.RejectionReason,
		"cancellation_reason": r.CancellationReason,
		"created_at":          formatTime(r.CreatedAt),
		"updated_at":          formatTime(r.UpdatedAt),
	}
}

func reservationList(items []domain.Reservation) []any {
	out := make([]any, 0, len(items))
	for _, r := range items {
		out = append(out, reservationFields(r))
	}
	return out
}

func historyList(entries []command.Entry) []any {
	out := make([]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"kind":        string(e.Kind),
			"description": e.Description,
			"undone":      e.Undone,
		})
	}
	return out
}

func notificationList(items []domain.Notification) []any {
	out := make([]any, 0, len(items))
	for _, n := range items {
		out = append(out, map[string]any{
			"id":             n.ID,
			"recipient":      n.Recipient,
			"audience":       string(n.Audience),
			"reservation_id": n.ReservationID,
			"kind":           string(n.Kind),
			"subject":        n.Subject,
			"body":           n.Body,
			"created_at":     formatTime(n.CreatedAt),
		})
	}
	return out
}

// weekFields раскладывает сетку по дням; пустой период становится null.
func weekFields(w domain.WeekSchedule) map[string]any {
	days := make([]any, 0, domain.ScheduleDays)
	for d := 0; d < domain.ScheduleDays; d++ {
		date := w.From.AddDate(0, 0, d)
		periods := make([]any, 0, domain.SchedulePeriods)
		for p := 0; p < domain.SchedulePeriods; p++ {
			var cell any
			if r := w.Cells[d][p]; r != nil {
				cell = reservationFields(*r)
			}
			periods = append(periods, map[string]any{
				"start":       fmt.Sprintf("%02d:00", domain.FirstPeriodHour+p),
				"reservation": cell,
			})
		}
		days = append(days, map[string]any{
			"date":    date.Format(domain.DateLayout),
			"day":     date.Weekday().String(),
			"periods": periods,
		})
	}
	return map[string]any{
		"from": w.From.Format(domain.DateLayout),
		"days": days,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toStruct(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}
