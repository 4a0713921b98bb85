package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"story-server/internal/models"
)

// DefaultExchange - fanout exchange для событий статуса историй.
const DefaultExchange = "story_events"

// EventPublisher публикует события о смене статуса истории.
type EventPublisher interface {
	PublishStoryEvent(ctx context.Context, event models.StoryEvent) error
	Close() error
}

// amqpChannel - подмножество *amqp.Channel, нужное издателю.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher реализует EventPublisher поверх RabbitMQ.
type RabbitMQPublisher struct {
	mu       sync.Mutex
	ch       amqpChannel
	exchange string
	logger   *zap.Logger
}

// NewRabbitMQPublisher открывает канал и объявляет durable fanout exchange.
func NewRabbitMQPublisher(conn *amqp.Connection, exchange string, logger *zap.Logger) (*RabbitMQPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is nil")
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	return newPublisher(ch, exchange, logger)
}

func newPublisher(ch amqpChannel, exchange string, logger *zap.Logger) (*RabbitMQPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	log := logger.Named("StoryEventPublisher")

	err := ch.ExchangeDeclare(
		exchange, // name
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", exchange, err)
	}
	log.Info("Story event exchange declared", zap.String("exchange", exchange))
	return &RabbitMQPublisher{ch: ch, exchange: exchange, logger: log}, nil
}

// PublishStoryEvent публикует событие в JSON.
func (p *RabbitMQPublisher) PublishStoryEvent(ctx context.Context, event models.StoryEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal story event: %w", err)
	}

	// amqp.Channel не потокобезопасен для публикации
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx,
		p.exchange, // exchange
		"",         // routing key (не используется для fanout)
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
			Type:         string(event.Status),
		},
	)
	if err != nil {
		p.logger.Error("Failed to publish story event",
			zap.String("story_id", event.StoryID),
			zap.String("status", string(event.Status)),
			zap.Error(err))
		return fmt.Errorf("failed to publish story event: %w", err)
	}
	p.logger.Debug("Story event published", zap.String("story_id", event.StoryID), zap.String("status", string(event.Status)))
	return nil
}

// Close закрывает канал RabbitMQ.
func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		return p.ch.Close()
	}
	return nil
}

// NopPublisher используется, когда RABBITMQ_URL не задан.
type NopPublisher struct {
	logger *zap.Logger
}

func NewNopPublisher(logger *zap.Logger) *NopPublisher {
	return &NopPublisher{logger: logger.Named("NopPublisher")}
}

func (p *NopPublisher) PublishStoryEvent(_ context.Context, event models.StoryEvent) error {
	p.logger.Debug("Story event dropped (no broker)", zap.String("story_id", event.StoryID))
	return nil
}

func (p *NopPublisher) Close() error { return nil }

// Connect устанавливает соединение с RabbitMQ с несколькими попытками.
func Connect(ctx context.Context, uri string, logger *zap.Logger) (*amqp.Connection, error) {
	var (
		connection *amqp.Connection
		err        error
	)
	maxRetries := 5
	retryDelay := 5 * time.Second

	for i := 0; i < maxRetries; i++ {
		connection, err = amqp.Dial(uri)
		if err == nil {
			logger.Info("Подключение к RabbitMQ успешно установлено")
			notifyClose := connection.NotifyClose(make(chan *amqp.Error, 1))
			go func() {
				if closeErr := <-notifyClose; closeErr != nil {
					logger.Error("Соединение с RabbitMQ разорвано", zap.Error(closeErr))
				}
			}()
			return connection, nil
		}
		logger.Warn("Не удалось подключиться к RabbitMQ, попытка переподключения...",
			zap.Error(err),
			zap.Int("retry", i+1),
			zap.Duration("delay", retryDelay),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, fmt.Errorf("не удалось подключиться к RabbitMQ после %d попыток: %w", maxRetries, err)
}
