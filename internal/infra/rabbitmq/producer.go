package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const RoutingDonationCompleted = "donation.completed"

type Publisher interface {
	Publish(ctx context.Context, routingKey string, body any) error
	Close()
}

// Fallback is the no-op publisher used when the broker is unavailable at boot.
type Fallback struct {
	Log *zap.Logger
}

func (p *Fallback) Publish(_ context.Context, routingKey string, _ any) error {
	if p.Log != nil {
		p.Log.Warn("publish skipped, broker unavailable", zap.String("routing_key", routingKey))
	}
	return nil
}

func (p *Fallback) Close() {}

type Producer struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	log      *zap.Logger
}

// Connect returns a live producer, or the Fallback publisher when the URL is
// empty or the broker cannot be reached.
func Connect(rawURL, exchange string, log *zap.Logger) Publisher {
	if strings.TrimSpace(rawURL) == "" {
		log.Info("RABBITMQ_URL not set, donation events disabled")
		return &Fallback{Log: log}
	}
	p, err := NewProducer(rawURL, exchange, log)
	if err != nil {
		log.Warn("rabbitmq unavailable, using fallback publisher", zap.Error(err))
		return &Fallback{Log: log}
	}
	return p
}

func NewProducer(rawURL, exchange string, log *zap.Logger) (*Producer, error) {
	cleanURL, err := sanitizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	p := &Producer{conn: conn, exchange: exchange, log: log}
	if err := p.reopen(); err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

func (p *Producer) reopen() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return err
	}
	p.channel = ch
	return nil
}

func (p *Producer) Publish(ctx context.Context, routingKey string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         payload,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if err == nil {
		return nil
	}

	p.log.Warn("publish failed, reopening channel",
		zap.String("exchange", p.exchange), zap.String("routing_key", routingKey), zap.Error(err))
	if reopenErr := p.reopen(); reopenErr != nil {
		return errors.Join(err, reopenErr)
	}
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
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

func sanitizeURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
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
