package validation

import (
	"github.com/vladislavdragonenkov/roombook/internal/domain"
)

const (
	RuleDuplicate       = "duplicate"
	RuleWeeklyQuota     = "weekly-quota"
	RulePurposeDuration = "purpose-duration"
	RuleAdvanceNotice   = "advance-notice"
	RuleFacultyPriority = "faculty-priority"
	RuleCapacity        = "capacity"

	// DefaultCapacity подставляется, когда вместимость или число участников не заданы.
	DefaultCapacity = 40
)

// ReasonSlotOccupied используется в отказе, когда слот аудитории занят.
const ReasonSlotOccupied = "slot occupied"

// Duplicate отклоняет вторую бронь заявителя на ту же дату и время
// и любую бронь в занятый слот аудитории.
func Duplicate() Rule {
	return RuleFunc{RuleName: RuleDuplicate, Fn: func(in Input) *domain.ValidationError {
		c := in.Candidate
		for _, prior := range in.Prior {
			if prior.ID == c.ID || !prior.Status.IsActive() {
				continue
			}
			if prior.Date == c.Date && prior.StartTime == c.StartTime {
				return domain.Reject(RuleDuplicate, "requester already has a reservation on %s at %s", c.Date, c.StartTime)
			}
		}

		slot := c.Slot()
		taken := in.Store.Find(func(r domain.Reservation) bool {
			return r.ID != c.ID && r.Occupies(slot)
		})
		if len(taken) > 0 {
			return domain.Reject(RuleDuplicate, ReasonSlotOccupied)
		}
		return nil
	}}
}

// WeeklyQuota отклоняет бронь в окне [сегодня, сегодня+6], если у заявителя там уже limit броней.
func WeeklyQuota(limit int) Rule {
	return RuleFunc{RuleName: RuleWeeklyQuota, Fn: func(in Input) *domain.ValidationError {
		if !domain.InWindow(in.Today, in.Candidate.Date, domain.QuotaWindowDays) {
			return nil
		}
		held := 0
		for _, prior := range in.Prior {
			if prior.ID == in.Candidate.ID || !prior.Status.IsActive() {
				continue
			}
			if domain.InWindow(in.Today, prior.Date, domain.QuotaWindowDays) {
				held++
			}
		}
		if held >= limit {
			return domain.Reject(RuleWeeklyQuota, "weekly limit of %d reservations reached", limit)
		}
		return nil
	}}
}

// PurposeDuration проверяет, что окончание позже начала и длительность в часах не превышает потолок цели.
func PurposeDuration() Rule {
	return RuleFunc{RuleName: RulePurposeDuration, Fn: func(in Input) *domain.ValidationError {
		c := in.Candidate
		start, err := domain.ParseClock(c.StartTime)
		if err != nil {
			return domain.Reject(RulePurposeDuration, "invalid start time %q", c.StartTime)
		}
		end, err := domain.ParseClock(c.EndTime)
		if err != nil {
			return domain.Reject(RulePurposeDuration, "invalid end time %q", c.EndTime)
		}
		if end <= start {
			return domain.Reject(RulePurposeDuration, "end time must be after start time")
		}

		hours := end/60 - start/60
		if hours <= 0 {
			return domain.Reject(RulePurposeDuration, "reservation must span at least one hour boundary")
		}
		limit := c.Purpose.MaxHours()
		if limit == 0 {
			return domain.Reject(RulePurposeDuration, "unknown purpose %q", c.Purpose)
		}
		if hours > limit {
			return domain.Reject(RulePurposeDuration, "%s reservations are limited to %d hours", c.Purpose, limit)
		}
		return nil
	}}
}

// AdvanceNotice запрещает бронировать самостоятельные занятия на сегодня или в прошлое.
func AdvanceNotice() Rule {
	return RuleFunc{RuleName: RuleAdvanceNotice, Fn: func(in Input) *domain.ValidationError {
		if !in.Candidate.Purpose.IsStudy() {
			return nil
		}
		offset, err := domain.DayOffset(in.Today, in.Candidate.Date)
		if err != nil {
			return domain.Reject(RuleAdvanceNotice, "invalid date %q", in.Candidate.Date)
		}
		if offset <= 0 {
			return domain.Reject(RuleAdvanceNotice, "%s reservations must be made at least one day in advance", in.Candidate.Purpose)
		}
		return nil
	}}
}

// FacultyPriority не пускает не-преподавателя в слот, занятый бронью преподавателя.
func FacultyPriority() Rule {
	return RuleFunc{RuleName: RuleFacultyPriority, Fn: func(in Input) *domain.ValidationError {
		if in.Candidate.RequesterRole.IsFaculty() {
			return nil
		}
		slot := in.Candidate.Slot()
		held := in.Store.Find(func(r domain.Reservation) bool {
			return r.ID != in.Candidate.ID && r.RequesterRole.IsFaculty() && r.Occupies(slot)
		})
		if len(held) > 0 {
			return domain.Reject(RuleFacultyPriority, "slot is reserved by faculty")
		}
		return nil
	}}
}

// Capacity допускает не более половины вместимости аудитории.
func Capacity(fallback int) Rule {
	return RuleFunc{RuleName: RuleCapacity, Fn: func(in Input) *domain.ValidationError {
		capacity := in.Candidate.Capacity
		count := in.Candidate.ParticipantCount
		if capacity <= 0 || count <= 0 {
			capacity = fallback
		}
		if count*2 > capacity {
			return domain.Reject(RuleCapacity, "participant count %d exceeds half of room capacity %d", count, capacity)
		}
		return nil
	}}
}
