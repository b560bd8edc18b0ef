package domain

import (
	"strings"
	"time"
)

// ReservationStatus отражает состояние брони аудитории.
type ReservationStatus string

const (
	// Заявка создана и ждёт решения администратора.
	ReservationStatusPending ReservationStatus = "pending"
	// Заявка одобрена.
	ReservationStatusApproved ReservationStatus = "approved"
	// Заявка отклонена, причина в RejectionReason.
	ReservationStatusRejected ReservationStatus = "rejected"
	// Бронь снята (вытеснение или удаление), причина в CancellationReason.
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// IsActive сообщает, занимает ли бронь слот.
func (s ReservationStatus) IsActive() bool {
	return s == ReservationStatusPending || s == ReservationStatusApproved
}

// Valid проверяет, что статус входит в известный набор.
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationStatusPending, ReservationStatusApproved, ReservationStatusRejected, ReservationStatusCancelled:
		return true
	}
	return false
}

// Purpose — цель бронирования, от неё зависит предельная длительность.
type Purpose string

const (
	PurposeSupplement    Purpose = "supplement"
	PurposeSeminar       Purpose = "seminar"
	PurposePersonalStudy Purpose = "personal-study"
	PurposeGroupStudy    Purpose = "group-study"
)

var purposeMaxHours = map[Purpose]int{
	PurposeSupplement:    3,
	PurposeSeminar:       2,
	PurposePersonalStudy: 4,
	PurposeGroupStudy:    3,
}

// ParsePurpose приводит строку к Purpose; допускает регистр и подчёркивания.
func ParsePurpose(raw string) (Purpose, error) {
	p := Purpose(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "_", "-"))
	if _, ok := purposeMaxHours[p]; !ok {
		return "", ErrUnknownPurpose
	}
	return p, nil
}

// MaxHours возвращает потолок длительности для цели (0 для неизвестной).
func (p Purpose) MaxHours() int {
	return purposeMaxHours[p]
}

// IsStudy сообщает, относится ли цель к самостоятельным занятиям.
func (p Purpose) IsStudy() bool {
	return p == PurposePersonalStudy || p == PurposeGroupStudy
}

// PreemptionReason возвращает причину отмены для брони, вытесненной бронью с целью p.
func (p Purpose) PreemptionReason() string {
	if p == PurposeSupplement || p == PurposeSeminar {
		return "cancelled due to " + string(p) + " booking by faculty"
	}
	return "automatically cancelled by faculty booking"
}

// Role — роль заявителя, выводимая из идентификатора.
type Role string

const (
	RoleStudent   Role = "student"
	RoleProfessor Role = "professor"
	RoleAdmin     Role = "admin"
	RoleInvalid   Role = "invalid"
)

// RoleOf определяет роль по первому символу идентификатора (s, p, a без учёта регистра).
func RoleOf(requesterID string) Role {
	id := strings.TrimSpace(requesterID)
	if id == "" {
		return RoleInvalid
	}
	switch id[0] {
	case 's', 'S':
		return RoleStudent
	case 'p', 'P':
		return RoleProfessor
	case 'a', 'A':
		return RoleAdmin
	default:
		return RoleInvalid
	}
}

// IsFaculty сообщает, пользуется ли роль приоритетом при бронировании.
func (r Role) IsFaculty() bool {
	return r == RoleProfessor
}

// Location задаёт аудиторию: корпус, этаж, номер.
type Location struct {
	Building string
	Floor    string
	Room     string
}

// Slot служит ключом коллизий: аудитория, дата и время начала.
type Slot struct {
	Location
	Date      string
	StartTime string
}

// Details содержит изменяемые поля брони. Всё, кроме них, задаётся при создании.
type Details struct {
	Location
	Title            string
	Description      string
	Date             string
	DayOfWeek        string
	StartTime        string
	EndTime          string
	Purpose          Purpose
	ParticipantCount int
	Capacity         int
}

// Slot возвращает ключ коллизий для деталей брони.
func (d Details) Slot() Slot {
	return Slot{Location: d.Location, Date: d.Date, StartTime: d.StartTime}
}

// Validate проверяет форму полей и возвращает список замечаний.
func (d *Details) Validate() []error {
	var errs []error

	if strings.TrimSpace(d.Building) == "" || strings.TrimSpace(d.Room) == "" {
		errs = append(errs, ErrRoomRequired)
	}
	if _, err := ParseDate(d.Date); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseClock(d.StartTime); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseClock(d.EndTime); err != nil {
		errs = append(errs, err)
	}
	if d.Purpose.MaxHours() == 0 {
		errs = append(errs, ErrUnknownPurpose)
	}
	if d.ParticipantCount < 0 || d.Capacity < 0 {
		errs = append(errs, ErrOccupancyNegative)
	}

	return errs
}

// Normalize заполняет производные поля: день недели по дате.
func (d *Details) Normalize() {
	if date, err := ParseDate(d.Date); err == nil {
		d.DayOfWeek = date.Weekday().String()
	}
}

// Reservation — бронь аудитории на один слот.
type Reservation struct {
	ID            string
	RequesterID   string
	RequesterRole Role
	Details
	Status             ReservationStatus
	RejectionReason    string
	CancellationReason string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Occupies сообщает, занимает ли бронь указанный слот прямо сейчас.
func (r Reservation) Occupies(slot Slot) bool {
	return r.Status.IsActive() && r.Slot() == slot
}
