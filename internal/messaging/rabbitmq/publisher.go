// Package rabbitmq доставляет уведомления о бронях в очередь AMQP.
package rabbitmq

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
	"github.com/vladislavdragonenkov/roombook/internal/service/notify"
)

// DefaultQueue задаёт очередь уведомлений по умолчанию.
const DefaultQueue = "roombook.notifications"

// channel покрывает часть *amqp.Channel, которой пользуется Publisher.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher держит одно соединение и один канал; публикации сериализованы.
type Publisher struct {
	mu     sync.Mutex
	conn   io.Closer
	ch     channel
	queue  string
	logger *log.Entry
}

// Dial подключается к брокеру и объявляет durable-очередь.
func Dial(url, queue string, logger *log.Entry) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	p, err := newPublisher(conn, ch, queue, logger)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return p, nil
}

func newPublisher(conn io.Closer, ch channel, queue string, logger *log.Entry) (*Publisher, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	if logger == nil {
		logger = log.WithField("component", "rabbitmq-publisher")
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("rabbitmq declare queue %s: %w", queue, err)
	}
	return &Publisher{conn: conn, ch: ch, queue: queue, logger: logger}, nil
}

// Publish отправляет сообщение как persistent JSON.
func (p *Publisher) Publish(ctx context.Context, msg notify.Message) error {
	body, err := msg.Encode()
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.NotificationID,
		Type:         notify.EventType(domain.EventKind(msg.Event)),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}

	p.logger.WithFields(log.Fields{
		"queue":          p.queue,
		"reservation_id": msg.ReservationID,
		"recipient":      msg.Recipient,
	}).Debug("notification published to rabbitmq")
	return nil
}

// Observer возвращает наблюдателя для notify.Notifier.
func (p *Publisher) Observer() notify.Observer {
	return func(ctx context.Context, event domain.ReservationEvent, n domain.Notification) error {
		return p.Publish(ctx, notify.NewMessage(event, n))
	}
}

// Close закрывает канал и соединение.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	chErr := p.ch.Close()
	var connErr error
	if p.conn != nil {
		connErr = p.conn.Close()
	}
	if chErr != nil {
		return fmt.Errorf("rabbitmq close channel: %w", chErr)
	}
	if connErr != nil {
		return fmt.Errorf("rabbitmq close connection: %w", connErr)
	}
	return nil
}
