// Package reservation реализует жизненный цикл брони: допуск заявки,
// вытеснение преподавателем, административные команды и запросы.
package reservation

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/roombook/internal/clock"
	"github.com/vladislavdragonenkov/roombook/internal/domain"
	"github.com/vladislavdragonenkov/roombook/internal/metrics"
	"github.com/vladislavdragonenkov/roombook/internal/service/command"
	"github.com/vladislavdragonenkov/roombook/internal/service/validation"
)

// Store описывает хранилище, с которым работает сервис.
type Store interface {
	domain.ReservationQuery
	Get(id string) (domain.Reservation, error)
	Insert(r domain.Reservation) error
	Update(r domain.Reservation) error
	Delete(id string) (domain.Reservation, error)
	Persist(ctx context.Context) error
}

// Notifier получает каждый переход жизненного цикла.
type Notifier interface {
	Notify(ctx context.Context, event domain.ReservationEvent)
}

// Причины, которые сервис подставляет сам.
const (
	DefaultDeleteReason = "deleted by administrator"
	SelfCancelReason    = "cancelled by requester"
)

// Service сериализует все изменения броней одним мьютексом.
type Service struct {
	mu       sync.Mutex
	store    Store
	pipeline *validation.Pipeline
	invoker  *command.Invoker
	notifier Notifier
	inbox    domain.NotificationRepository
	clock    clock.Clock
	metrics  *metrics.ReservationMetrics
	logger   *log.Entry

	facultyAutoApprove bool

	// События, накопленные под mu; рассылаются после его освобождения.
	queued []domain.ReservationEvent
}

// Option настраивает Service.
type Option func(*Service)

// WithPipeline подменяет набор правил допуска.
func WithPipeline(p *validation.Pipeline) Option {
	return func(s *Service) {
		if p != nil {
			s.pipeline = p
		}
	}
}

// WithNotifier подключает рассылку событий.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithInbox подключает ящик уведомлений для запросов ListNotifications.
func WithInbox(repo domain.NotificationRepository) Option {
	return func(s *Service) {
		s.inbox = repo
	}
}

// WithClock задаёт источник «сегодня».
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithMetrics подключает метрики.
func WithMetrics(m *metrics.ReservationMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithFacultyAutoApprove допускает брони преподавателей сразу в статусе approved.
func WithFacultyAutoApprove(enabled bool) Option {
	return func(s *Service) {
		s.facultyAutoApprove = enabled
	}
}

// NewService создаёт сервис поверх store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		pipeline: validation.Default(),
		clock:    clock.NewSystem(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.WithField("component", "reservation-service")
	}

	var recorder command.Recorder
	if s.metrics != nil {
		recorder = s.metrics
	}
	s.invoker = command.NewInvoker(s,
		command.WithLogger(s.logger.WithField("layer", "invoker")),
		command.WithRecorder(recorder),
	)
	return s
}

func (s *Service) now() time.Time {
	return s.clock.Now()
}

func (s *Service) today() time.Time {
	return clock.Today(s.clock)
}

// queue откладывает событие до flush. Вызывать под mu.
func (s *Service) queue(r domain.Reservation, kind domain.EventKind, reason string) {
	s.queued = append(s.queued, domain.ReservationEvent{
		Reservation: r,
		Kind:        kind,
		Reason:      reason,
		OccurredAt:  s.now(),
	})
}

// flush рассылает накопленные события вне mu.
func (s *Service) flush(ctx context.Context) {
	s.mu.Lock()
	events := s.queued
	s.queued = nil
	active := len(s.store.Find(func(r domain.Reservation) bool { return r.Status.IsActive() }))
	s.mu.Unlock()

	s.metrics.SetActiveReservations(active)
	for _, e := range events {
		s.metrics.RecordTransition(string(e.Kind))
		if s.notifier != nil {
			s.notifier.Notify(ctx, e)
		}
	}
}

// persist сохраняет снимок; неудача не откатывает изменение. Вызывать под mu.
func (s *Service) persist(ctx context.Context) error {
	if err := s.store.Persist(ctx); err != nil {
		s.logger.WithError(err).Warn("reservation change kept in memory only")
		return err
	}
	return nil
}

// slotTaken ищет другую активную бронь в слоте.
func (s *Service) slotTaken(slot domain.Slot, exceptID string) bool {
	return len(s.store.Find(func(r domain.Reservation) bool {
		return r.ID != exceptID && r.Occupies(slot)
	})) > 0
}

// persisted переводит ошибку сохранения в флаг результата.
func persisted(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if domain.IsNotPersisted(err) {
		return false, nil
	}
	return false, err
}

var _ command.Handler = (*Service)(nil)
