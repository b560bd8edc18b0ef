package domain

import (
	"fmt"
	"time"
)

const (
	// Формат даты брони.
	DateLayout = "2006-01-02"
	// Формат времени начала и окончания.
	ClockLayout = "15:04"

	// ScheduleDays и SchedulePeriods задают сетку недельного расписания: 7 дней по 13 пар с 09:00.
	ScheduleDays     = 7
	SchedulePeriods  = 13
	FirstPeriodHour  = 9
	QuotaWindowDays  = 7
	WeeklyQuotaLimit = 5
)

// ParseDate разбирает дату в формате YYYY-MM-DD.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return t, nil
}

// ParseClock разбирает время HH:MM и возвращает минуты от начала суток.
func ParseClock(raw string) (int, error) {
	t, err := time.Parse(ClockLayout, raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, raw)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// DayOffset возвращает номер дня даты относительно today (0 означает сегодня).
func DayOffset(today time.Time, date string) (int, error) {
	d, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	y, m, day := today.Date()
	base := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return int(d.Sub(base).Hours() / 24), nil
}

// InWindow сообщает, попадает ли дата в [today, today+days-1].
func InWindow(today time.Time, date string, days int) bool {
	offset, err := DayOffset(today, date)
	if err != nil {
		return false
	}
	return offset >= 0 && offset < days
}

// WeekSchedule — сетка ScheduleDays x SchedulePeriods, пустая ячейка равна nil.
type WeekSchedule struct {
	From  time.Time
	Cells [ScheduleDays][SchedulePeriods]*Reservation
}

// Place кладёт бронь в ячейку по дню и часу начала; вне сетки игнорирует.
func (w *WeekSchedule) Place(r Reservation) bool {
	day, err := DayOffset(w.From, r.Date)
	if err != nil || day < 0 || day >= ScheduleDays {
		return false
	}
	start, err := ParseClock(r.StartTime)
	if err != nil {
		return false
	}
	period := start/60 - FirstPeriodHour
	if period < 0 || period >= SchedulePeriods {
		return false
	}
	cp := r
	w.Cells[day][period] = &cp
	return true
}
