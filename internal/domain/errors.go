package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrReservationNotFound возвращается, если бронь с таким ID отсутствует.
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrReservationExists сигнализирует о повторной вставке того же ID.
	ErrReservationExists = errors.New("reservation already exists")
	// Команда применена к брони не в том статусе.
	ErrInvalidState = errors.New("reservation is not in the required state")
	// Слот уже занят другой активной бронью.
	ErrSlotConflict = errors.New("slot conflict")
	// Нарушено правило допуска брони.
	ErrValidation = errors.New("reservation rejected by validation")
	// Изменение применено в памяти, но не сохранено.
	ErrNotPersisted = errors.New("reservation state not persisted")
	// ErrNothingToUndo и ErrNothingToRedo: пустые стеки истории.
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
	// Идентификатор заявителя не кодирует известную роль.
	ErrInvalidRequester = errors.New("requester id does not encode a known role")
	// Заявитель не владеет бронью.
	ErrForbidden = errors.New("requester does not own the reservation")
	// Ошибки формы полей.
	ErrUnknownPurpose    = errors.New("unknown reservation purpose")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidTime       = errors.New("invalid time")
	ErrRoomRequired      = errors.New("building and room are required")
	ErrOccupancyNegative = errors.New("participant count and capacity must be non-negative")
	// Ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// ValidationError несёт имя сработавшего правила и текст для пользователя.
type ValidationError struct {
	Rule   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Reason)
}

// Unwrap позволяет сравнивать с ErrValidation через errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Reject создаёт ValidationError для правила rule.
func Reject(rule, format string, args ...any) *ValidationError {
	return &ValidationError{Rule: rule, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation проверяет, что ошибка пришла из конвейера правил.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// ValidationReason достаёт текст причины, если err является ValidationError.
func ValidationReason(err error) (string, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason, true
	}
	return "", false
}

// IsNotFound проверяет отсутствие брони.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrReservationNotFound)
}

// IsInvalidState проверяет недопустимый переход.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsConflict проверяет конфликт слота.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSlotConflict)
}

// IsNotPersisted проверяет, что изменение осталось только в памяти.
func IsNotPersisted(err error) bool {
	return errors.Is(err, ErrNotPersisted)
}

// IsInvalidInput объединяет ошибки формы полей.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrUnknownPurpose) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidTime) ||
		errors.Is(err, ErrRoomRequired) ||
		errors.Is(err, ErrOccupancyNegative) ||
		errors.Is(err, ErrInvalidRequester)
}
