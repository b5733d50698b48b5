package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

// Event subjects, appended to the configured base.
const (
	SubjectSpinResolved = "mystery.spin.resolved"
	SubjectSaleCredited = "community.sale.credited"
	SubjectOrderPaid    = "orders.paid"
	SubjectWalletDrift  = "wallet.drift"
)

// Envelope is the wire form of every event.
type Envelope struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// Publisher emits domain events to a broker.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close() error
}

func encode(subject string, payload any) ([]byte, error) {
	data, err := json.Marshal(Envelope{
		ID:         uuid.NewString(),
		Subject:    subject,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", subject, err)
	}
	return data, nil
}

// NATSPublisher publishes on base.subject.
type NATSPublisher struct {
	nc   *nats.Conn
	base string
}

// NewNATSPublisher connects to url.
func NewNATSPublisher(url, base string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("advanced-retro-storefront"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	log.WithField("url", nc.ConnectedUrl()).Info("Connected to NATS")
	return &NATSPublisher{nc: nc, base: base}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload any) error {
	data, err := encode(subject, payload)
	if err != nil {
		return err
	}
	if err := p.nc.Publish(p.base+"."+subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return p.nc.FlushWithContext(ctx)
}

func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}

// RabbitPublisher publishes to a topic exchange with the subject as routing key.
type RabbitPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	base     string
}

// NewRabbitPublisher dials url and declares the exchange.
func NewRabbitPublisher(url, exchange, base string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	log.WithField("exchange", exchange).Info("Connected to RabbitMQ")
	return &RabbitPublisher{conn: conn, ch: ch, exchange: exchange, base: base}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, subject string, payload any) error {
	data, err := encode(subject, payload)
	if err != nil {
		return err
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, p.base+"."+subject, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         data,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", subject, err)
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
func (NopPublisher) Close() error                               { return nil }

// NewPublisher picks the broker named by provider: none, nats or rabbitmq.
func NewPublisher(provider, natsURL, rabbitURL, exchange, base string) (Publisher, error) {
	switch provider {
	case "nats":
		return NewNATSPublisher(natsURL, base)
	case "rabbitmq":
		return NewRabbitPublisher(rabbitURL, exchange, base)
	case "", "none":
		return NopPublisher{}, nil
	default:
		return nil, fmt.Errorf("unknown events provider %q", provider)
	}
}
