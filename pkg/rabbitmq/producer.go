/**
 * @description
 * This package provides a producer for publishing outbound notification events
 * to RabbitMQ. The custody core never talks to an SMS/WhatsApp/email gateway
 * directly: OTP delivery requests and override-requested notifications go out
 * as events on a durable topic exchange, where a downstream notification
 * worker picks them up. That keeps notification failures observable and
 * retryable instead of silently swallowed.
 *
 * @dependencies
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

const (
	RoutingKeyOtpDelivery       = "notifications.otp.delivery"
	RoutingKeyOverrideRequested = "notifications.override.requested"
)

// OtpDeliveryEvent asks the notification worker to deliver an OTP message
// over the chosen channel. This payload is the only place the plaintext code
// leaves the service in production (inside Message).
type OtpDeliveryEvent struct {
	OtpID       uuid.UUID `json:"otp_id"`
	ChequeID    uuid.UUID `json:"cheque_id"`
	Channel     string    `json:"channel"`
	Destination string    `json:"destination"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

// OverrideRequestedEvent notifies authorized approvers that a handover
// override is awaiting a decision.
type OverrideRequestedEvent struct {
	OverrideID  uuid.UUID `json:"override_id"`
	ChequeID    uuid.UUID `json:"cheque_id"`
	RequesterID uuid.UUID `json:"requester_id"`
	Reason      string    `json:"reason"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher is the interface implemented by types that can publish events.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	PublishOtpDelivery(ctx context.Context, event OtpDeliveryEvent) error
	PublishOverrideRequested(ctx context.Context, event OverrideRequestedEvent) error
	Close()
}

// EventProducer holds the RabbitMQ connection and channel for publishing messages.
type EventProducer struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

// EventProducerFallback is a minimal no-op publisher used when RabbitMQ is
// unavailable at startup. Publishes are logged and dropped.
type EventProducerFallback struct{}

func (p *EventProducerFallback) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	log.Printf("level=warn component=rabbitmq_producer mode=fallback msg=\"publish skipped\" exchange=%s routing_key=%s", exchange, routingKey)
	return nil
}

func (p *EventProducerFallback) PublishOtpDelivery(ctx context.Context, event OtpDeliveryEvent) error {
	log.Printf("level=warn component=rabbitmq_producer mode=fallback msg=\"otp delivery publish skipped\" otp_id=%s channel=%s", event.OtpID, event.Channel)
	return nil
}

func (p *EventProducerFallback) PublishOverrideRequested(ctx context.Context, event OverrideRequestedEvent) error {
	log.Printf("level=warn component=rabbitmq_producer mode=fallback msg=\"override notification publish skipped\" override_id=%s", event.OverrideID)
	return nil
}

func (p *EventProducerFallback) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	// If any stray characters precede the scheme, slice from first occurrence of amqp
	idx := strings.Index(strings.ToLower(clean), "amqp")
	if idx > 0 {
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

// NewEventProducer creates and returns a new EventProducer bound to the given
// notification exchange.
func NewEventProducer(amqpURL, exchange string) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	// Use a bounded dial timeout so startup does not hang indefinitely
	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if strings.TrimSpace(exchange) == "" {
		exchange = "notifications"
	}
	return &EventProducer{conn: conn, channel: ch, exchange: exchange}, nil
}

// Publish sends a message to a specific exchange with a routing key.
func (p *EventProducer) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	// Ensure the exchange exists (durable topic)
	if err := p.channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	); err != nil {
		log.Printf("level=warn component=rabbitmq_producer msg=\"exchange declare failed; reopening channel\" exchange=%s err=%v", exchange, err)
		// Attempt simple channel reopen once
		if p.conn == nil {
			return err
		}
		ch, chErr := p.conn.Channel()
		if chErr != nil {
			return err
		}
		p.channel = ch
		if err2 := p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err2 != nil {
			return err2
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.channel.PublishWithContext(publishCtx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         payload,
		},
	)
}

// PublishOtpDelivery publishes an OTP delivery request.
func (p *EventProducer) PublishOtpDelivery(ctx context.Context, event OtpDeliveryEvent) error {
	return p.Publish(ctx, p.exchange, RoutingKeyOtpDelivery, event)
}

// PublishOverrideRequested publishes an override-requested notification.
func (p *EventProducer) PublishOverrideRequested(ctx context.Context, event OverrideRequestedEvent) error {
	return p.Publish(ctx, p.exchange, RoutingKeyOverrideRequested, event)
}

// Close shuts down the channel and connection.
func (p *EventProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
