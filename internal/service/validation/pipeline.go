// Package validation содержит конвейер правил допуска брони.
//
// Правила проверяются в фиксированном порядке; первое нарушение останавливает
// конвейер и возвращается как *domain.ValidationError с текстом для пользователя.
package validation

import (
	"time"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
)

// Input — всё, что видит правило. Правила не меняют состояние.
type Input struct {
	// Бронь-кандидат с разрешённой ролью заявителя.
	Candidate domain.Reservation
	// Активные брони того же заявителя.
	Prior []domain.Reservation
	// Чтение всех броней.
	Store domain.ReservationQuery
	// Полночь текущего дня.
	Today time.Time
}

// Rule — отдельная подключаемая проверка.
type Rule interface {
	Name() string
	Check(in Input) *domain.ValidationError
}

// RuleFunc адаптирует функцию к Rule.
type RuleFunc struct {
	RuleName string
	Fn       func(in Input) *domain.ValidationError
}

func (f RuleFunc) Name() string { return f.RuleName }

func (f RuleFunc) Check(in Input) *domain.ValidationError { return f.Fn(in) }

// Pipeline исполняет правила по порядку до первого отказа.
type Pipeline struct {
	rules []Rule
}

// NewPipeline собирает конвейер из правил в переданном порядке.
func NewPipeline(rules ...Rule) *Pipeline {
	return &Pipeline{rules: append([]Rule(nil), rules...)}
}

// Default возвращает конвейер со стандартным набором правил.
func Default() *Pipeline {
	return NewPipeline(
		Duplicate(),
		WeeklyQuota(domain.WeeklyQuotaLimit),
		PurposeDuration(),
		AdvanceNotice(),
		FacultyPriority(),
		Capacity(DefaultCapacity),
	)
}

// Rules возвращает имена правил в порядке исполнения.
func (p *Pipeline) Rules() []string {
	names := make([]string, 0, len(p.rules))
	for _, r := range p.rules {
		names = append(names, r.Name())
	}
	return names
}

// Validate возвращает nil или ошибку первого нарушенного правила.
func (p *Pipeline) Validate(in Input) error {
	for _, rule := range p.rules {
		if rejection := rule.Check(in); rejection != nil {
			if rejection.Rule == "" {
				rejection.Rule = rule.Name()
			}
			return rejection
		}
	}
	return nil
}
