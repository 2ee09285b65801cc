package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// Producer publishes outbox events to a durable topic exchange. The
// outbox topic is used as the routing key.
type Producer struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	logger   *slog.Logger
}

func NewProducer(amqpURL, exchange string, logger *slog.Logger) (*Producer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cleanURL, err := sanitizeURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareExchange(ch, exchange); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Producer{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

func declareExchange(ch *amqp091.Channel, exchange string) error {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return nil
}

func (p *Producer) Publish(ctx context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    uuid.NewString(),
		Type:         topic,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	}
	err := p.channel.PublishWithContext(ctx, p.exchange, topic, false, false, msg)
	if err == nil {
		return nil
	}

	// one reopen attempt; the outbox retries anything beyond that
	p.logger.Warn("rabbitmq_publish_failed_reopening_channel", "exchange", p.exchange, "topic", topic, "error", err)
	ch, chErr := p.conn.Channel()
	if chErr != nil {
		return fmt.Errorf("publish %s: %w", topic, errors.Join(err, chErr))
	}
	p.channel = ch
	if err := declareExchange(ch, p.exchange); err != nil {
		return err
	}
	if err := p.channel.PublishWithContext(ctx, p.exchange, topic, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// FallbackPublisher drops events with a warning. It stands in when no
// broker is configured; jobs are marked done so the outbox does not grow.
type FallbackPublisher struct {
	Logger *slog.Logger
}

func (p *FallbackPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	if p.Logger != nil {
		p.Logger.Warn("rabbitmq_publish_skipped", "mode", "fallback", "topic", topic, "bytes", len(payload))
	}
	return nil
}

func (p *FallbackPublisher) Close() {}

func sanitizeURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("parse amqp url: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("amqp url scheme must be amqp or amqps")
	}
	return clean, nil
}
