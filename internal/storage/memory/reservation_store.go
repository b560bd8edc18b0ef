package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
)

// RetryConfig задаёт ограниченный повтор сохранения снапшота.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}
}

// PersistObserver получает длительность и результат каждой попытки сохранения.
type PersistObserver func(duration time.Duration, err error)

// StoreOption настраивает ReservationStore.
type StoreOption func(*ReservationStore)

// WithLogger задаёт logger хранилища.
func WithLogger(logger *log.Entry) StoreOption {
	return func(s *ReservationStore) {
		s.logger = logger
	}
}

// WithRetry задаёт политику повторов сохранения.
func WithRetry(cfg RetryConfig) StoreOption {
	return func(s *ReservationStore) {
		s.retry = cfg
	}
}

// WithPersistObserver подключает наблюдателя за сохранениями (метрики).
func WithPersistObserver(obs PersistObserver) StoreOption {
	return func(s *ReservationStore) {
		s.observe = obs
	}
}

// ReservationStore хранит авторитетный in-memory набор броней и сохраняет его через порт.
// Инварианты уникальности слотов обеспечивают вызывающие, а не хранилище.
type ReservationStore struct {
	mu      sync.RWMutex
	items   map[string]domain.Reservation
	port    domain.SnapshotStore
	retry   RetryConfig
	observe PersistObserver
	logger  *log.Entry
}

// NewReservationStore создаёт хранилище. port == nil означает работу только в памяти.
func NewReservationStore(port domain.SnapshotStore, opts ...StoreOption) *ReservationStore {
	s := &ReservationStore{
		items: make(map[string]domain.Reservation),
		port:  port,
		retry: DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.WithField("component", "reservation-store")
	}
	if s.retry.MaxAttempts <= 0 {
		s.retry.MaxAttempts = 1
	}
	return s
}

// Load заменяет содержимое данными из порта.
func (s *ReservationStore) Load(ctx context.Context) error {
	if s.port == nil {
		return nil
	}
	reservations, err := s.port.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load reservations: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]domain.Reservation, len(reservations))
	for _, r := range reservations {
		s.items[r.ID] = r
	}
	s.logger.WithField("count", len(reservations)).Info("reservations loaded")
	return nil
}

// Get возвращает бронь или ErrReservationNotFound.
func (s *ReservationStore) Get(id string) (domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.items[id]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return r, nil
}

// Insert добавляет бронь, если ID ещё не занят.
func (s *ReservationStore) Insert(r domain.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[r.ID]; exists {
		return domain.ErrReservationExists
	}
	s.items[r.ID] = r
	return nil
}

// Update перезаписывает существующую бронь.
func (s *ReservationStore) Update(r domain.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[r.ID]; !ok {
		return domain.ErrReservationNotFound
	}
	s.items[r.ID] = r
	return nil
}

// Delete физически удаляет бронь и возвращает удалённую копию.
func (s *ReservationStore) Delete(id string) (domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.items[id]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	delete(s.items, id)
	return r, nil
}

// Find возвращает брони, удовлетворяющие match, в порядке дата/время/ID.
func (s *ReservationStore) Find(match func(domain.Reservation) bool) []domain.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Reservation, 0)
	for _, r := range s.items {
		if match == nil || match(r) {
			result = append(result, r)
		}
	}
	sortReservations(result)
	return result
}

// Len возвращает число броней.
func (s *ReservationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Snapshot возвращает копию всех броней.
func (s *ReservationStore) Snapshot() []domain.Reservation {
	return s.Find(nil)
}

// Persist сохраняет снапшот через порт с ограниченным повтором.
// Ошибка оборачивает domain.ErrNotPersisted; состояние в памяти не откатывается.
func (s *ReservationStore) Persist(ctx context.Context) error {
	if s.port == nil {
		return nil
	}

	snapshot := s.Snapshot()
	delay := s.retry.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		start := time.Now()
		err := s.port.SaveAll(ctx, snapshot)
		if s.observe != nil {
			s.observe(time.Since(start), err)
		}
		if err == nil {
			if attempt > 1 {
				s.logger.WithField("attempt", attempt).Info("reservations persisted after retry")
			}
			return nil
		}
		lastErr = err

		if attempt == s.retry.MaxAttempts {
			break
		}
		s.logger.WithError(err).WithFields(log.Fields{
			"attempt": attempt,
			"delay":   delay,
		}).Warn("persist reservations failed, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", domain.ErrNotPersisted, ctx.Err())
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * s.retry.BackoffFactor)
		if s.retry.MaxDelay > 0 && delay > s.retry.MaxDelay {
			delay = s.retry.MaxDelay
		}
	}

	s.logger.WithError(lastErr).WithField("max_attempts", s.retry.MaxAttempts).Error("persist reservations failed")
	return fmt.Errorf("%w: %v", domain.ErrNotPersisted, lastErr)
}

func sortReservations(items []domain.Reservation) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.ID < b.ID
	})
}

var _ domain.ReservationQuery = (*ReservationStore)(nil)
