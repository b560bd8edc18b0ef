package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
	"github.com/vladislavdragonenkov/roombook/internal/service/command"
)

// Result описывает итог административной операции.
type Result struct {
	// Состояние брони после операции; для удаления это удалённая копия.
	Reservation domain.Reservation
	// Описание применённой или отменённой команды.
	Command   string
	Persisted bool
}

// Modify заменяет изменяемые поля брони.
func (s *Service) Modify(ctx context.Context, id string, details domain.Details) (Result, error) {
	return s.execute(ctx, "modify", command.Modify{ID: id, After: details})
}

// Approve переводит pending в approved.
func (s *Service) Approve(ctx context.Context, id string) (Result, error) {
	return s.execute(ctx, "approve", command.Approve{ID: id})
}

// Reject переводит pending в rejected. Пустая причина сохраняется как отсутствующая.
func (s *Service) Reject(ctx context.Context, id, reason string) (Result, error) {
	return s.execute(ctx, "reject", command.Reject{ID: id, Reason: strings.TrimSpace(reason)})
}

// Delete удаляет бронь; копия остаётся в команде для отмены.
func (s *Service) Delete(ctx context.Context, id, reason string) (Result, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultDeleteReason
	}
	return s.execute(ctx, "delete", command.Delete{ID: id, Reason: reason})
}

// Undo откатывает последнюю административную команду.
func (s *Service) Undo(ctx context.Context) (Result, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveOperation("undo", time.Since(started)) }()

	cmd, err := s.invoker.Undo(ctx)
	s.flush(ctx)
	return s.result(cmd, err)
}

// Redo повторяет последнюю отменённую команду.
func (s *Service) Redo(ctx context.Context) (Result, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveOperation("redo", time.Since(started)) }()

	cmd, err := s.invoker.Redo(ctx)
	s.flush(ctx)
	return s.result(cmd, err)
}

// ResetHistory очищает историю undo/redo.
func (s *Service) ResetHistory() {
	s.invoker.Reset()
	s.logger.Info("command history reset")
}

// History возвращает историю команд.
func (s *Service) History() []command.Entry {
	return s.invoker.History()
}

// CancelOwn удаляет бронь по просьбе её владельца. В историю команд не попадает.
func (s *Service) CancelOwn(ctx context.Context, id, requesterID string) (Result, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveOperation("cancel_own", time.Since(started)) }()

	res, err := s.cancelOwn(ctx, id, strings.TrimSpace(requesterID))
	s.flush(ctx)
	return res, err
}

func (s *Service) cancelOwn(ctx context.Context, id, requesterID string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.store.Get(id)
	if err != nil {
		return Result{}, err
	}
	if r.RequesterID != requesterID {
		return Result{}, fmt.Errorf("%w: reservation %s", domain.ErrForbidden, id)
	}
	if _, err := s.store.Delete(id); err != nil {
		return Result{}, err
	}

	r.Status = domain.ReservationStatusCancelled
	r.CancellationReason = SelfCancelReason
	r.UpdatedAt = s.now()

	ok, err := persisted(s.persist(ctx))
	if err != nil {
		return Result{}, err
	}
	s.queue(r, domain.EventCancelled, SelfCancelReason)
	s.logger.WithFields(log.Fields{
		"reservation_id": id,
		"requester_id":   requesterID,
	}).Info("reservation cancelled by requester")

	return Result{Reservation: r, Persisted: ok}, nil
}

func (s *Service) execute(ctx context.Context, operation string, cmd command.Command) (Result, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveOperation(operation, time.Since(started)) }()

	applied, err := s.invoker.Execute(ctx, cmd)
	s.flush(ctx)
	return s.result(applied, err)
}

func (s *Service) result(cmd command.Command, err error) (Result, error) {
	ok, err := persisted(err)
	if err != nil {
		return Result{}, err
	}

	res := Result{Command: cmd.Describe(), Persisted: ok}
	if r, getErr := s.store.Get(cmd.ReservationID()); getErr == nil {
		res.Reservation = r
	} else if d, isDelete := cmd.(command.Delete); isDelete {
		res.Reservation = d.Cancelled()
	}
	return res, nil
}

// Apply исполняет команду над хранилищем.
func (s *Service) Apply(ctx context.Context, cmd command.Command) (command.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch c := cmd.(type) {
	case command.Modify:
		return s.applyModify(ctx, c)
	case command.Approve:
		return s.applyApprove(ctx, c)
	case command.Reject:
		return s.applyReject(ctx, c)
	case command.Delete:
		return s.applyDelete(ctx, c)
	default:
		return cmd, fmt.Errorf("unsupported command %T", cmd)
	}
}

// Revert восстанавливает состояние, сохранённое командой при исполнении.
func (s *Service) Revert(ctx context.Context, cmd command.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch c := cmd.(type) {
	case command.Modify:
		return s.revertModify(ctx, c)
	case command.Approve:
		return s.revertStatus(ctx, c.ID, domain.ReservationStatusApproved, c.PreviousStatus, "", c.PreviousUpdatedAt, "approval undone")
	case command.Reject:
		return s.revertStatus(ctx, c.ID, domain.ReservationStatusRejected, c.PreviousStatus, c.PreviousReason, c.PreviousUpdatedAt, "rejection undone")
	case command.Delete:
		return s.revertDelete(ctx, c)
	default:
		return fmt.Errorf("unsupported command %T", cmd)
	}
}

func (s *Service) applyModify(ctx context.Context, c command.Modify) (command.Command, error) {
	r, err := s.store.Get(c.ID)
	if err != nil {
		return c, err
	}

	after := c.After
	if errs := after.Validate(); len(errs) > 0 {
		return c, fmt.Errorf("invalid reservation: %w", errors.Join(errs...))
	}
	after.Normalize()

	if r.Status.IsActive() && s.slotTaken(after.Slot(), r.ID) {
		return c, fmt.Errorf("%w: %s %s %s %s", domain.ErrSlotConflict, after.Building, after.Room, after.Date, after.StartTime)
	}

	c.Before = r.Details
	c.After = after
	r.Details = after
	r.UpdatedAt = s.stamp(&c.Stamps, r.UpdatedAt)
	if err := s.store.Update(r); err != nil {
		return c, err
	}

	err = s.persist(ctx)
	s.queue(r, domain.EventModified, "")
	return c, err
}

func (s *Service) revertModify(ctx context.Context, c command.Modify) error {
	r, err := s.store.Get(c.ID)
	if err != nil {
		return err
	}
	if r.Status.IsActive() && s.slotTaken(c.Before.Slot(), r.ID) {
		return fmt.Errorf("%w: previous slot is taken", domain.ErrSlotConflict)
	}

	r.Details = c.Before
	r.UpdatedAt = c.PreviousUpdatedAt
	if err := s.store.Update(r); err != nil {
		return err
	}

	err = s.persist(ctx)
	s.queue(r, domain.EventModified, "modification undone")
	return err
}

func (s *Service) applyApprove(ctx context.Context, c command.Approve) (command.Command, error) {
	r, err := s.store.Get(c.ID)
	if err != nil {
		return c, err
	}
	if r.Status != domain.ReservationStatusPending {
		return c, fmt.Errorf("%w: approve requires pending, reservation %s is %s", domain.ErrInvalidState, r.ID, r.Status)
	}

	// Пока бронь ждала решения, слот мог быть одобрен другой заявке.
	slot := r.Slot()
	approved := s.store.Find(func(other domain.Reservation) bool {
		return other.ID != r.ID && other.Status == domain.ReservationStatusApproved && other.Slot() == slot
	})
	if len(approved) > 0 {
		return c, fmt.Errorf("%w: slot already approved for reservation %s", domain.ErrSlotConflict, approved[0].ID)
	}

	c.PreviousStatus = r.Status
	r.Status = domain.ReservationStatusApproved
	r.UpdatedAt = s.stamp(&c.Stamps, r.UpdatedAt)
	if err := s.store.Update(r); err != nil {
		return c, err
	}

	err = s.persist(ctx)
	s.queue(r, domain.EventApproved, "")
	return c, err
}

func (s *Service) applyReject(ctx context.Context, c command.Reject) (command.Command, error) {
	r, err := s.store.Get(c.ID)
	if err != nil {
		return c, err
	}
	if r.Status != domain.ReservationStatusPending {
		return c, fmt.Errorf("%w: reject requires pending, reservation %s is %s", domain.ErrInvalidState, r.ID, r.Status)
	}

	c.PreviousStatus = r.Status
	c.PreviousReason = r.RejectionReason
	r.Status = domain.ReservationStatusRejected
	r.RejectionReason = c.Reason
	r.UpdatedAt = s.stamp(&c.Stamps, r.UpdatedAt)
	if err := s.store.Update(r); err != nil {
		return c, err
	}

	err = s.persist(ctx)
	s.queue(r, domain.EventRejected, c.Reason)
	return c, err
}

// revertStatus возвращает бронь из статуса from в previous.
func (s *Service) revertStatus(ctx context.Context, id string, from, previous domain.ReservationStatus, previousReason string, previousUpdatedAt time.Time, note string) error {
	r, err := s.store.Get(id)
	if err != nil {
		return err
	}
	if r.Status != from {
		return fmt.Errorf("%w: expected %s, reservation %s is %s", domain.ErrInvalidState, from, id, r.Status)
	}
	if !from.IsActive() && previous.IsActive() && s.slotTaken(r.Slot(), r.ID) {
		return fmt.Errorf("%w: slot was taken after %s", domain.ErrSlotConflict, from)
	}

	r.Status = previous
	if from == domain.ReservationStatusRejected {
		r.RejectionReason = previousReason
	}
	r.UpdatedAt = previousUpdatedAt
	if err := s.store.Update(r); err != nil {
		return err
	}

	err = s.persist(ctx)
	s.queue(r, domain.EventModified, note)
	return err
}

func (s *Service) applyDelete(ctx context.Context, c command.Delete) (command.Command, error) {
	removed, err := s.store.Delete(c.ID)
	if err != nil {
		return c, err
	}
	c.Removed = removed
	s.stamp(&c.Stamps, removed.UpdatedAt)

	err = s.persist(ctx)
	s.queue(c.Cancelled(), domain.EventCancelled, c.Reason)
	return c, err
}

func (s *Service) revertDelete(ctx context.Context, c command.Delete) error {
	if c.Removed.Status.IsActive() && s.slotTaken(c.Removed.Slot(), c.Removed.ID) {
		return fmt.Errorf("%w: slot was taken after deletion", domain.ErrSlotConflict)
	}
	if err := s.store.Insert(c.Removed); err != nil {
		return fmt.Errorf("restore reservation %s: %w", c.ID, err)
	}

	err := s.persist(ctx)
	s.queue(c.Removed, domain.EventModified, "deletion undone")
	return err
}

// stamp фиксирует время изменения до применения и возвращает время применения.
// При повторе после undo время применения сохраняется прежним.
func (s *Service) stamp(st *command.Stamps, current time.Time) time.Time {
	st.PreviousUpdatedAt = current
	if st.AppliedAt.IsZero() {
		st.AppliedAt = s.now()
	}
	return st.AppliedAt
}
