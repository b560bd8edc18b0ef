package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
)

func sampleReservation(id, requester, start string, status domain.ReservationStatus) domain.Reservation {
	created := time.Date(2025, 6, 9, 8, 0, 0, 0, time.UTC)
	return domain.Reservation{
		ID:            id,
		RequesterID:   requester,
		RequesterRole: domain.RoleOf(requester),
		Details: domain.Details{
			Location:         domain.Location{Building: "B", Floor: "1", Room: "B101"},
			Title:            "study group",
			Date:             "2025-06-10",
			DayOfWeek:        "Tuesday",
			StartTime:        start,
			EndTime:          "18:00",
			Purpose:          domain.PurposeGroupStudy,
			ParticipantCount: 8,
			Capacity:         40,
		},
		Status:    status,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestReservationSnapshot_PostgresSaveAndLoad(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	snapshot := NewReservationSnapshot(store)
	ctx := context.Background()

	cancelled := sampleReservation("r2", "s002", "16:00", domain.ReservationStatusCancelled)
	cancelled.CancellationReason = "automatically cancelled by faculty booking"
	want := []domain.Reservation{
		sampleReservation("r1", "s001", "15:00", domain.ReservationStatusPending),
		cancelled,
	}

	if err := snapshot.SaveAll(ctx, want); err != nil {
		t.Fatalf("save all: %v", err)
	}
	got, err := snapshot.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 reservations, got %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("reservation %d mismatch:\nwant %+v\ngot  %+v", i, want[i], got[i])
		}
	}

	// Повторное сохранение заменяет набор целиком.
	if err := snapshot.SaveAll(ctx, want[:1]); err != nil {
		t.Fatalf("save subset: %v", err)
	}
	got, err = snapshot.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load after subset: %v", err)
	}
	if len(got) != 1 || got[0].ID != "r1" {
		t.Fatalf("expected only r1 after replace, got %+v", got)
	}
}

func TestReservationSnapshot_PostgresRejectsInvalidStatus(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	snapshot := NewReservationSnapshot(store)

	broken := sampleReservation("r1", "s001", "15:00", domain.ReservationStatus("archived"))
	if err := snapshot.SaveAll(context.Background(), []domain.Reservation{broken}); err == nil {
		t.Fatal("expected check constraint violation")
	}
}
