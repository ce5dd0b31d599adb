package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const SecurityQueue = "security_alert_events"

type SecurityEventType string

const (
	EventSuspiciousLogin SecurityEventType = "suspicious_login"
	EventPasswordChanged SecurityEventType = "password_changed"
	EventSessionsPurged  SecurityEventType = "sessions_purged"
)

// SecurityEvent is the wire format pushed onto the security alert queue.
type SecurityEvent struct {
	ID        string            `json:"id"`
	Type      SecurityEventType `json:"type"`
	UserID    int               `json:"user_id"`
	Username  string            `json:"username"`
	Detail    string            `json:"detail"`
	IPAddress string            `json:"ip_address,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Publisher abstracts event publication so services can take a fake in tests.
type Publisher interface {
	PublishSecurityEvent(ctx context.Context, event SecurityEvent) error
}

// SecurityPublisher counts outcomes with atomics because events are
// published from per-request goroutines.
type SecurityPublisher struct {
	conn              *RabbitMQConnection
	messagesPublished atomic.Int64
	messagesFailed    atomic.Int64
}

func NewSecurityPublisher(conn *RabbitMQConnection) *SecurityPublisher {
	return &SecurityPublisher{conn: conn}
}

// PublishSecurityEvent pushes an alert onto the security queue. Callers
// treat failures as advisory; they are never allowed to fail a request.
func (p *SecurityPublisher) PublishSecurityEvent(ctx context.Context, event SecurityEvent) error {
	_, err := p.conn.Channel.QueueDeclare(
		SecurityQueue, // queue name
		true,          // durable
		false,         // delete when unused
		false,         // exclusive
		false,         // no-wait
		nil,           // arguments
	)
	if err != nil {
		p.messagesFailed.Add(1)
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.messagesFailed.Add(1)
		return fmt.Errorf("failed to marshal security event: %w", err)
	}

	err = p.conn.Channel.PublishWithContext(
		ctx,
		"",            // exchange
		SecurityQueue, // routing key (queue name)
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		p.messagesFailed.Add(1)
		return fmt.Errorf("failed to publish security event: %w", err)
	}

	p.messagesPublished.Add(1)
	slog.Info("security event published", "queue", SecurityQueue, "type", event.Type, "user_id", event.UserID)

	return nil
}

// GetMetrics reports publisher counters for the health endpoint.
func (p *SecurityPublisher) GetMetrics() map[string]any {
	return map[string]any{
		"messages_published": p.messagesPublished.Load(),
		"messages_failed":    p.messagesFailed.Load(),
		"queue":              SecurityQueue,
	}
}

// HealthCheck reports whether the underlying connection is usable.
func (p *SecurityPublisher) HealthCheck() bool {
	return p.conn != nil && p.conn.Connection != nil && !p.conn.Connection.IsClosed()
}
