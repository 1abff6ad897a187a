// Package events publishes portal domain events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/cccs/finance-portal/internal/models"
)

const (
	DefaultExchange        = "portal.payments"
	RoutingPaymentRecorded = "payment.recorded"
	contentTypeJSON        = "application/json"
	exchangeKindTopic      = "topic"
)

// Publisher is implemented by both the RabbitMQ producer and the fallback.
type Publisher interface {
	PublishPaymentRecorded(ctx context.Context, event models.PaymentEvent) error
	Close()
}

// amqpChannel is the part of *amqp091.Channel the producer uses.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	IsClosed() bool
	Close() error
}

// EventProducer publishes JSON events to a topic exchange.
type EventProducer struct {
	conn        *amqp091.Connection
	channel     amqpChannel
	openChannel func() (amqpChannel, error)
	declared    bool
	exchange    string
	logger      *zap.Logger

	// amqp channels are not safe for concurrent use
	mu sync.Mutex
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

func NewEventProducer(amqpURL, exchange string, logger *zap.Logger) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp091.Dial(cleanURL)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &EventProducer{
		conn:    conn,
		channel: channel,
		openChannel: func() (amqpChannel, error) {
			return conn.Channel()
		},
		exchange: exchange,
		logger:   logger.Named("events"),
	}, nil
}

func (p *EventProducer) PublishPaymentRecorded(ctx context.Context, event models.PaymentEvent) error {
	return p.Publish(ctx, RoutingPaymentRecorded, event)
}

// Publish marshals body to JSON and sends it with the given routing key.
func (p *EventProducer) Publish(ctx context.Context, routingKey string, body any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureExchange(); err != nil {
		return err
	}

	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp091.Persistent,
		Body:         jsonBody,
	})
	if err != nil {
		return err
	}

	p.logger.Debug("published event", zap.String("exchange", p.exchange), zap.String("routing_key", routingKey))
	return nil
}

// ensureExchange reopens a channel the broker closed and declares the
// exchange on it. A failed declare is retried on the next publish.
func (p *EventProducer) ensureExchange() error {
	if p.channel == nil || p.channel.IsClosed() {
		channel, err := p.openChannel()
		if err != nil {
			return fmt.Errorf("reopen channel: %w", err)
		}
		p.logger.Info("AMQP channel reopened", zap.String("exchange", p.exchange))
		p.channel = channel
		p.declared = false
	}

	if !p.declared {
		if err := p.channel.ExchangeDeclare(p.exchange, exchangeKindTopic, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
		}
		p.declared = true
	}
	return nil
}

func (p *EventProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// EventProducerFallback is used when RabbitMQ is not configured or not
// reachable at startup. Events are logged and dropped.
type EventProducerFallback struct {
	logger *zap.Logger
}

func NewEventProducerFallback(logger *zap.Logger) *EventProducerFallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventProducerFallback{logger: logger.Named("events")}
}

func (p *EventProducerFallback) PublishPaymentRecorded(ctx context.Context, event models.PaymentEvent) error {
	p.logger.Debug("event publishing disabled, dropping payment.recorded",
		zap.Int64("payment_id", event.PaymentID),
		zap.Int64("account_id", event.AccountID))
	return nil
}

func (p *EventProducerFallback) Close() {}

// Connect returns a RabbitMQ producer, or the fallback when amqpURL is empty
// or the broker cannot be reached.
func Connect(amqpURL, exchange string, logger *zap.Logger) Publisher {
	if strings.TrimSpace(amqpURL) == "" {
		logger.Info("RABBITMQ_URL not set, payment events disabled")
		return NewEventProducerFallback(logger)
	}

	producer, err := NewEventProducer(amqpURL, exchange, logger)
	if err != nil {
		logger.Warn("RabbitMQ unavailable, payment events disabled", zap.Error(err))
		return NewEventProducerFallback(logger)
	}
	logger.Info("RabbitMQ connected", zap.String("exchange", producer.exchange))
	return producer
}
