package reservation

import (
	"context"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
)

// Get возвращает бронь по ID.
func (s *Service) Get(id string) (domain.Reservation, error) {
	return s.store.Get(id)
}

// ListPending возвращает брони, ожидающие решения администратора.
func (s *Service) ListPending() []domain.Reservation {
	return s.store.Find(func(r domain.Reservation) bool {
		return r.Status == domain.ReservationStatusPending
	})
}

// ListForRequester возвращает брони заявителя с датой в [сегодня, сегодня+6] в любом статусе.
func (s *Service) ListForRequester(requesterID string) []domain.Reservation {
	requesterID = strings.TrimSpace(requesterID)
	today := s.today()
	return s.store.Find(func(r domain.Reservation) bool {
		return r.RequesterID == requesterID && domain.InWindow(today, r.Date, domain.QuotaWindowDays)
	})
}

// RequesterWeek раскладывает активные брони заявителя по недельной сетке от сегодня.
func (s *Service) RequesterWeek(requesterID string) domain.WeekSchedule {
	requesterID = strings.TrimSpace(requesterID)
	return s.week(func(r domain.Reservation) bool {
		return r.RequesterID == requesterID
	})
}

// RoomWeek раскладывает активные брони аудитории по недельной сетке от сегодня.
func (s *Service) RoomWeek(loc domain.Location) domain.WeekSchedule {
	return s.week(func(r domain.Reservation) bool {
		return r.Location == loc
	})
}

func (s *Service) week(match func(domain.Reservation) bool) domain.WeekSchedule {
	schedule := domain.WeekSchedule{From: s.today()}
	items := s.store.Find(func(r domain.Reservation) bool {
		return r.Status.IsActive() && match(r) && domain.InWindow(schedule.From, r.Date, domain.ScheduleDays)
	})
	for _, r := range items {
		schedule.Place(r)
	}
	return schedule
}

// ListNotifications возвращает ящик получателя, новые первыми.
func (s *Service) ListNotifications(ctx context.Context, recipient string, limit int) ([]domain.Notification, error) {
	if s.inbox == nil {
		return []domain.Notification{}, nil
	}
	items, err := s.inbox.List(ctx, strings.TrimSpace(recipient), limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}
