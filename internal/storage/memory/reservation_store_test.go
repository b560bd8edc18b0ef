package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
)

func sampleReservation(id, date, start string) domain.Reservation {
	return domain.Reservation{
		ID:            id,
		RequesterID:   "s001",
		RequesterRole: domain.RoleStudent,
		Details: domain.Details{
			Location:  domain.Location{Building: "B", Floor: "1", Room: "B101"},
			Date:      date,
			StartTime: start,
			EndTime:   "23:00",
			Purpose:   domain.PurposeSeminar,
		},
		Status: domain.ReservationStatusPending,
	}
}

func TestReservationStore_CRUD(t *testing.T) {
	store := NewReservationStore(nil)

	r := sampleReservation("r1", "2025-06-10", "10:00")
	require.NoError(t, store.Insert(r))
	require.ErrorIs(t, store.Insert(r), domain.ErrReservationExists)

	got, err := store.Get("r1")
	require.NoError(t, err)
	require.Equal(t, r, got)

	got.Status = domain.ReservationStatusApproved
	require.NoError(t, store.Update(got))
	again, _ := store.Get("r1")
	require.Equal(t, domain.ReservationStatusApproved, again.Status)

	require.ErrorIs(t, store.Update(sampleReservation("missing", "2025-06-10", "10:00")), domain.ErrReservationNotFound)

	removed, err := store.Delete("r1")
	require.NoError(t, err)
	require.Equal(t, "r1", removed.ID)
	_, err = store.Get("r1")
	require.True(t, domain.IsNotFound(err))
	_, err = store.Delete("r1")
	require.ErrorIs(t, err, domain.ErrReservationNotFound)
}

func TestReservationStore_FindIsOrdered(t *testing.T) {
	store := NewReservationStore(nil)
	require.NoError(t, store.Insert(sampleReservation("c", "2025-06-11", "09:00")))
	require.NoError(t, store.Insert(sampleReservation("b", "2025-06-10", "12:00")))
	require.NoError(t, store.Insert(sampleReservation("a", "2025-06-10", "10:00")))

	all := store.Find(nil)
	require.Len(t, all, 3)
	require.Equal(t, []string{"a", "b", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})

	onlyTenth := store.Find(func(r domain.Reservation) bool { return r.Date == "2025-06-10" })
	require.Len(t, onlyTenth, 2)
}

func TestReservationStore_LoadAndPersist(t *testing.T) {
	port := NewSnapshotStore(sampleReservation("r1", "2025-06-10", "10:00"))
	store := NewReservationStore(port)

	require.NoError(t, store.Load(context.Background()))
	require.Equal(t, 1, store.Len())

	require.NoError(t, store.Insert(sampleReservation("r2", "2025-06-10", "11:00")))
	require.NoError(t, store.Persist(context.Background()))

	saved, _ := port.LoadAll(context.Background())
	require.Len(t, saved, 2)
}

func TestReservationStore_PersistFailureKeepsMemoryState(t *testing.T) {
	port := NewSnapshotStore()
	port.SetFailure(errors.New("disk full"))

	var attempts int
	store := NewReservationStore(port,
		WithRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffFactor: 2}),
		WithPersistObserver(func(_ time.Duration, err error) {
			if err != nil {
				attempts++
			}
		}),
	)

	require.NoError(t, store.Insert(sampleReservation("r1", "2025-06-10", "10:00")))
	err := store.Persist(context.Background())
	require.Error(t, err)
	require.True(t, domain.IsNotPersisted(err))
	require.Equal(t, 3, port.Saves())
	require.Equal(t, 3, attempts)

	_, getErr := store.Get("r1")
	require.NoError(t, getErr)
}

func TestReservationStore_PersistWithoutPortIsNoop(t *testing.T) {
	store := NewReservationStore(nil)
	require.NoError(t, store.Persist(context.Background()))
	require.NoError(t, store.Load(context.Background()))
}
