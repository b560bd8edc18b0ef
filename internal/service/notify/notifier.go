// Package notify рассылает события жизненного цикла брони подписанным наблюдателям.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/roombook/internal/clock"
	"github.com/vladislavdragonenkov/roombook/internal/domain"
)

// DefaultTimeout ограничивает доставку одного перехода всем наблюдателям.
const DefaultTimeout = 2 * time.Second

// Observer получает событие вместе с отрендеренным сообщением.
// Ошибка попадает только в журнал и метрики.
type Observer func(ctx context.Context, event domain.ReservationEvent, n domain.Notification) error

// Recorder принимает итог доставки для метрик.
type Recorder interface {
	RecordDelivery(observer, result string)
}

type namedObserver struct {
	name string
	fn   Observer
}

// Notifier — реестр наблюдателей с независимой доставкой.
type Notifier struct {
	mu        sync.RWMutex
	observers []namedObserver
	timeout   time.Duration
	clock     clock.Clock
	recorder  Recorder
	logger    *log.Entry

	inflight sync.WaitGroup
}

// Option настраивает Notifier.
type Option func(*Notifier)

// WithTimeout задаёт предел ожидания наблюдателей.
func WithTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.timeout = timeout
		}
	}
}

// WithClock задаёт источник времени для событий без OccurredAt.
func WithClock(c clock.Clock) Option {
	return func(n *Notifier) {
		if c != nil {
			n.clock = c
		}
	}
}

// WithRecorder подключает метрики доставки.
func WithRecorder(r Recorder) Option {
	return func(n *Notifier) {
		n.recorder = r
	}
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// NewNotifier создаёт пустой реестр.
func NewNotifier(opts ...Option) *Notifier {
	n := &Notifier{
		timeout: DefaultTimeout,
		clock:   clock.NewSystem(nil),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = log.WithField("component", "notifier")
	}
	return n
}

// Register добавляет наблюдателя. Повторное имя заменяет прежнего.
func (n *Notifier) Register(name string, obs Observer) {
	if obs == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.observers {
		if n.observers[i].name == name {
			n.observers[i].fn = obs
			return
		}
	}
	n.observers = append(n.observers, namedObserver{name: name, fn: obs})
}

// Observers возвращает имена наблюдателей в порядке регистрации.
func (n *Notifier) Observers() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	names := make([]string, 0, len(n.observers))
	for _, o := range n.observers {
		names = append(names, o.name)
	}
	return names
}

// Notify рендерит событие и отдаёт его каждому наблюдателю в отдельной горутине.
// Возвращается сразу после запуска доставок. Доставка ограничена timeout,
// ошибки и паники наблюдателей только журналируются.
func (n *Notifier) Notify(ctx context.Context, event domain.ReservationEvent) {
	n.mu.RLock()
	observers := append([]namedObserver(nil), n.observers...)
	n.mu.RUnlock()
	if len(observers) == 0 {
		return
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = n.clock.Now()
	}
	msg := Render(event)
	msg.ID = uuid.NewString()

	// Доставка не должна зависеть от отмены запроса, который её вызвал.
	deliveryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)

	var wg sync.WaitGroup
	for _, o := range observers {
		wg.Add(1)
		go func(o namedObserver) {
			defer wg.Done()
			n.deliver(deliveryCtx, o, event, msg)
		}(o)
	}

	n.inflight.Add(1)
	go n.watch(deliveryCtx, cancel, &wg, event)
}

// watch ждёт наблюдателей не дольше timeout и освобождает контекст доставки.
func (n *Notifier) watch(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup, event domain.ReservationEvent) {
	defer n.inflight.Done()
	defer cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		n.logger.WithFields(log.Fields{
			"reservation_id": event.Reservation.ID,
			"event":          event.Kind,
		}).Warn("notification delivery timed out")
	}
}

// Wait дожидается начатых доставок: завершения всех наблюдателей или истечения timeout.
func (n *Notifier) Wait() {
	n.inflight.Wait()
}

func (n *Notifier) deliver(ctx context.Context, o namedObserver, event domain.ReservationEvent, msg domain.Notification) {
	entry := n.logger.WithFields(log.Fields{
		"observer":       o.name,
		"reservation_id": event.Reservation.ID,
		"event":          event.Kind,
	})

	defer func() {
		if rec := recover(); rec != nil {
			entry.WithField("panic", fmt.Sprint(rec)).Error("observer panicked")
			n.record(o.name, "panic")
		}
	}()

	if err := o.fn(ctx, event, msg); err != nil {
		entry.WithError(err).Warn("notification delivery failed")
		n.record(o.name, "error")
		return
	}
	n.record(o.name, "ok")
}

func (n *Notifier) record(observer, result string) {
	if n.recorder != nil {
		n.recorder.RecordDelivery(observer, result)
	}
}
