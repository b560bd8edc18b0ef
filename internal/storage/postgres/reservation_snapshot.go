package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
)

const (
	opTimeout         = 5 * time.Second
	defaultPruneBatch = 500
)

type reservationSnapshot struct {
	db *sql.DB
}

// NewReservationSnapshot создаёт PostgreSQL-реализацию порта персистентности броней.
func NewReservationSnapshot(store *Store) domain.SnapshotStore {
	return &reservationSnapshot{db: store.DB()}
}

func (r *reservationSnapshot) LoadAll(ctx context.Context) ([]domain.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, requester_id, requester_role, building, floor, room, title, description,
		       to_char(reservation_date, 'YYYY-MM-DD'), day_of_week, start_time, end_time, purpose,
		       participant_count, capacity, status, rejection_reason, cancellation_reason,
		       created_at, updated_at
		FROM reservations
		ORDER BY reservation_date, start_time, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Reservation, 0)
	for rows.Next() {
		var (
			res     domain.Reservation
			role    string
			purpose string
			status  string
		)
		if err := rows.Scan(
			&res.ID,
			&res.RequesterID,
			&role,
			&res.Building,
			&res.Floor,
			&res.Room,
			&res.Title,
			&res.Description,
			&res.Date,
			&res.DayOfWeek,
			&res.StartTime,
			&res.EndTime,
			&purpose,
			&res.ParticipantCount,
			&res.Capacity,
			&status,
			&res.RejectionReason,
			&res.CancellationReason,
			&res.CreatedAt,
			&res.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		res.RequesterRole = domain.Role(role)
		res.Purpose = domain.Purpose(purpose)
		res.Status = domain.ReservationStatus(status)
		res.CreatedAt = res.CreatedAt.UTC()
		res.UpdatedAt = res.UpdatedAt.UTC()
		result = append(result, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservations: %w", err)
	}

	return result, nil
}

// SaveAll заменяет содержимое таблицы снапшотом в одной транзакции.
func (r *reservationSnapshot) SaveAll(ctx context.Context, reservations []domain.Reservation) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reservations`); err != nil {
		return fmt.Errorf("clear reservations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reservations (
			id, requester_id, requester_role, building, floor, room, title, description,
			reservation_date, day_of_week, start_time, end_time, purpose,
			participant_count, capacity, status, rejection_reason, cancellation_reason,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::date,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`)
	if err != nil {
		return fmt.Errorf("prepare reservation insert: %w", err)
	}
	defer stmt.Close()

	for _, res := range reservations {
		if _, err := stmt.ExecContext(ctx,
			res.ID,
			res.RequesterID,
			string(res.RequesterRole),
			res.Building,
			res.Floor,
			res.Room,
			res.Title,
			res.Description,
			res.Date,
			res.DayOfWeek,
			res.StartTime,
			res.EndTime,
			string(res.Purpose),
			res.ParticipantCount,
			res.Capacity,
			string(res.Status),
			res.RejectionReason,
			res.CancellationReason,
			res.CreatedAt,
			res.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert reservation %s: %w", res.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reservations snapshot: %w", err)
	}
	return nil
}

var _ domain.SnapshotStore = (*reservationSnapshot)(nil)
