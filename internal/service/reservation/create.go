package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
	"github.com/vladislavdragonenkov/roombook/internal/service/validation"
)

// CreateRequest — заявка на бронь.
type CreateRequest struct {
	RequesterID string
	Details     domain.Details
}

// CreateResult описывает итог заявки. Preempted заполнен только для брони преподавателя.
type CreateResult struct {
	Reservation domain.Reservation
	Preempted   []domain.Reservation
	Persisted   bool
}

// Исходы заявки для метрик.
const (
	outcomeAdmitted   = "admitted"
	outcomePreempting = "preempting"
	outcomeRejected   = "rejected"
	outcomeInvalid    = "invalid"
)

// Create допускает заявку. Заявки студентов и администраторов проходят конвейер правил;
// заявка преподавателя минует его и вытесняет активные брони того же слота.
func (s *Service) Create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveOperation("create", time.Since(started)) }()

	result, err := s.create(ctx, req)
	s.flush(ctx)
	return result, err
}

func (s *Service) create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	requesterID := strings.TrimSpace(req.RequesterID)
	role := domain.RoleOf(requesterID)
	if role == domain.RoleInvalid {
		s.metrics.RecordBooking(string(role), outcomeInvalid)
		return CreateResult{}, fmt.Errorf("%w: %q", domain.ErrInvalidRequester, req.RequesterID)
	}

	details := req.Details
	if errs := details.Validate(); len(errs) > 0 {
		s.metrics.RecordBooking(string(role), outcomeInvalid)
		return CreateResult{}, fmt.Errorf("invalid reservation: %w", errors.Join(errs...))
	}
	details.Normalize()

	now := s.now()
	candidate := domain.Reservation{
		ID:            uuid.NewString(),
		RequesterID:   requesterID,
		RequesterRole: role,
		Details:       details,
		Status:        domain.ReservationStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result CreateResult
	if role.IsFaculty() {
		if err := checkOrder(details); err != nil {
			s.metrics.RecordBooking(string(role), outcomeInvalid)
			return CreateResult{}, err
		}
		result.Preempted = s.preempt(candidate)
		if s.facultyAutoApprove {
			candidate.Status = domain.ReservationStatusApproved
		}
	} else {
		prior := s.store.Find(func(r domain.Reservation) bool {
			return r.RequesterID == requesterID && r.Status.IsActive()
		})
		err := s.pipeline.Validate(validation.Input{
			Candidate: candidate,
			Prior:     prior,
			Store:     s.store,
			Today:     s.today(),
		})
		if err != nil {
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				s.metrics.RecordRuleRejection(ve.Rule)
			}
			s.metrics.RecordBooking(string(role), outcomeRejected)
			s.logger.WithFields(log.Fields{
				"requester_id": requesterID,
				"room":         details.Room,
				"date":         details.Date,
				"start_time":   details.StartTime,
			}).WithError(err).Debug("reservation request refused")
			return CreateResult{}, err
		}
	}

	if err := s.store.Insert(candidate); err != nil {
		return CreateResult{}, fmt.Errorf("insert reservation: %w", err)
	}
	result.Reservation = candidate

	ok, err := persisted(s.persist(ctx))
	if err != nil {
		return CreateResult{}, err
	}
	result.Persisted = ok

	s.queue(candidate, domain.EventCreated, "")

	outcome := outcomeAdmitted
	if len(result.Preempted) > 0 {
		outcome = outcomePreempting
		s.metrics.RecordPreemptions(len(result.Preempted))
	}
	s.metrics.RecordBooking(string(role), outcome)
	s.logger.WithFields(log.Fields{
		"reservation_id": candidate.ID,
		"requester_id":   requesterID,
		"status":         candidate.Status,
		"preempted":      len(result.Preempted),
	}).Info("reservation created")

	return result, nil
}

// preempt отменяет активные брони слота кандидата. Вызывать под mu.
func (s *Service) preempt(candidate domain.Reservation) []domain.Reservation {
	slot := candidate.Slot()
	displaced := s.store.Find(func(r domain.Reservation) bool {
		return r.Occupies(slot)
	})

	reason := candidate.Purpose.PreemptionReason()
	now := s.now()
	cancelled := make([]domain.Reservation, 0, len(displaced))
	for _, r := range displaced {
		r.Status = domain.ReservationStatusCancelled
		r.CancellationReason = reason
		r.UpdatedAt = now
		if err := s.store.Update(r); err != nil {
			s.logger.WithError(err).WithField("reservation_id", r.ID).Error("failed to cancel pre-empted reservation")
			continue
		}
		cancelled = append(cancelled, r)
		s.queue(r, domain.EventCancelled, reason)
	}
	return cancelled
}

// checkOrder отклоняет интервал, который не заканчивается позже начала.
func checkOrder(d domain.Details) error {
	start, err := domain.ParseClock(d.StartTime)
	if err != nil {
		return err
	}
	end, err := domain.ParseClock(d.EndTime)
	if err != nil {
		return err
	}
	if end <= start {
		return fmt.Errorf("%w: end time %s is not after start time %s", domain.ErrInvalidTime, d.EndTime, d.StartTime)
	}
	return nil
}
