// Package command описывает административные операции над бронями как
// обратимые команды и Invoker с линейной историей undo/redo.
package command

import (
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
)

// Kind — вид команды.
type Kind string

const (
	KindModify  Kind = "modify"
	KindApprove Kind = "approve"
	KindReject  Kind = "reject"
	KindDelete  Kind = "delete"
)

// Command — закрытое объединение Modify | Approve | Reject | Delete.
// Состояние для отката хранится в полях значения и заполняется обработчиком при применении.
type Command interface {
	Kind() Kind
	ReservationID() string
	Describe() string
	sealed()
}

// Stamps фиксирует время изменения брони: до первого применения и в момент применения.
// Повторное применение после undo использует тот же AppliedAt.
type Stamps struct {
	PreviousUpdatedAt time.Time
	AppliedAt         time.Time
}

// Modify заменяет изменяемые поля брони; Before хранит поля до применения.
type Modify struct {
	ID     string
	After  domain.Details
	Before domain.Details
	Stamps
}

// Approve переводит pending в approved; PreviousStatus хранит статус до применения.
type Approve struct {
	ID             string
	PreviousStatus domain.ReservationStatus
	Stamps
}

// Reject переводит pending в rejected с причиной.
type Reject struct {
	ID             string
	Reason         string
	PreviousStatus domain.ReservationStatus
	PreviousReason string
	Stamps
}

// Delete физически удаляет бронь; Removed хранит полную копию для восстановления.
type Delete struct {
	ID      string
	Reason  string
	Removed domain.Reservation
	Stamps
}

// Cancelled возвращает снимок удалённой брони в статусе cancelled.
func (c Delete) Cancelled() domain.Reservation {
	r := c.Removed
	r.Status = domain.ReservationStatusCancelled
	r.CancellationReason = c.Reason
	r.UpdatedAt = c.AppliedAt
	return r
}

func (Modify) Kind() Kind  { return KindModify }
func (Approve) Kind() Kind { return KindApprove }
func (Reject) Kind() Kind  { return KindReject }
func (Delete) Kind() Kind  { return KindDelete }

func (c Modify) ReservationID() string  { return c.ID }
func (c Approve) ReservationID() string { return c.ID }
func (c Reject) ReservationID() string  { return c.ID }
func (c Delete) ReservationID() string  { return c.ID }

func (c Modify) Describe() string {
	return fmt.Sprintf("modify reservation %s (%s %s %s %s-%s)", c.ID, c.After.Building, c.After.Room, c.After.Date, c.After.StartTime, c.After.EndTime)
}

func (c Approve) Describe() string {
	return fmt.Sprintf("approve reservation %s", c.ID)
}

func (c Reject) Describe() string {
	if c.Reason == "" {
		return fmt.Sprintf("reject reservation %s", c.ID)
	}
	return fmt.Sprintf("reject reservation %s: %s", c.ID, c.Reason)
}

func (c Delete) Describe() string {
	return fmt.Sprintf("delete reservation %s: %s", c.ID, c.Reason)
}

func (Modify) sealed()  {}
func (Approve) sealed() {}
func (Reject) sealed()  {}
func (Delete) sealed()  {}
