package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
)

// SnapshotStore держит последний сохранённый снапшот в памяти.
// Используется тестами и как заглушка порта персистентности.
type SnapshotStore struct {
	mu    sync.Mutex
	saved []domain.Reservation
	saves int
	// FailSave, если задан, возвращается из SaveAll.
	FailSave error
}

// NewSnapshotStore создаёт порт с начальным содержимым.
func NewSnapshotStore(initial ...domain.Reservation) *SnapshotStore {
	return &SnapshotStore{saved: append([]domain.Reservation(nil), initial...)}
}

func (s *SnapshotStore) LoadAll(context.Context) ([]domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Reservation(nil), s.saved...), nil
}

func (s *SnapshotStore) SaveAll(_ context.Context, reservations []domain.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.FailSave != nil {
		return s.FailSave
	}
	s.saved = append([]domain.Reservation(nil), reservations...)
	return nil
}

// Saves возвращает число вызовов SaveAll.
func (s *SnapshotStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// SetFailure задаёт ошибку для последующих SaveAll.
func (s *SnapshotStore) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailSave = err
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)
