package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher delivers events to a broker. Name and Handle let it sit in the
// notifier as a sink.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Name() string
	Handle(ctx context.Context, evt Event) error
	Close() error
}

// channel is the part of *amqp.Channel the producer uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Producer publishes JSON events to a durable topic exchange.
type Producer struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	exchange string
	log      *logrus.Entry
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewProducer dials RabbitMQ and declares the exchange.
func NewProducer(amqpURL, exchange string, logger *logrus.Logger) (*Producer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(cleanURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	p, err := newProducer(ch, exchange, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newProducer(ch channel, exchange string, logger *logrus.Logger) (*Producer, error) {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Producer{
		ch:       ch,
		exchange: exchange,
		log:      logger.WithField("component", "events"),
	}, nil
}

// Publish sends evt with its type as routing key.
func (p *Producer) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, p.exchange, string(evt.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    evt.ID,
		Timestamp:    evt.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", evt.Type, err)
	}

	p.log.WithFields(logrus.Fields{
		"exchange":    p.exchange,
		"routing_key": evt.Type,
		"event_id":    evt.ID,
	}).Debug("Published event")
	return nil
}

// Name identifies the producer as a notification sink.
func (p *Producer) Name() string { return "rabbitmq" }

// Handle lets the producer act as a notification sink.
func (p *Producer) Handle(ctx context.Context, evt Event) error {
	return p.Publish(ctx, evt)
}

func (p *Producer) Close() error {
	var err error
	if p.ch != nil {
		err = p.ch.Close()
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Fallback is used when RabbitMQ is not configured or unreachable.
type Fallback struct {
	log *logrus.Entry
}

func NewFallback(logger *logrus.Logger) *Fallback {
	return &Fallback{log: logger.WithField("component", "events")}
}

func (f *Fallback) Publish(_ context.Context, evt Event) error {
	f.log.WithFields(logrus.Fields{
		"routing_key": evt.Type,
		"event_id":    evt.ID,
	}).Debug("RabbitMQ unavailable, event dropped")
	return nil
}

func (f *Fallback) Name() string { return "rabbitmq-fallback" }

func (f *Fallback) Handle(ctx context.Context, evt Event) error {
	return f.Publish(ctx, evt)
}

func (f *Fallback) Close() error { return nil }

// Connect returns a live producer, or the fallback when url is empty or the
// broker cannot be reached.
func Connect(amqpURL, exchange string, logger *logrus.Logger) Publisher {
	if strings.TrimSpace(amqpURL) == "" {
		logger.Info("RabbitMQ URL not set, events will not be published")
		return NewFallback(logger)
	}
	p, err := NewProducer(amqpURL, exchange, logger)
	if err != nil {
		logger.WithError(err).Warn("RabbitMQ connection failed, events will not be published")
		return NewFallback(logger)
	}
	logger.WithField("exchange", exchange).Info("RabbitMQ producer ready")
	return p
}
