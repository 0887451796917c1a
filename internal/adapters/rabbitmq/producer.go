// Package rabbitmq is the sync engine's event bus: sync.completed and
// sync.failed events, consumed by the health aggregation worker, grounded
// on the teacher's adapters/implementation/rabbitmq consumer pattern.
package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/google/uuid"

	"github.com/banktrail/ingestor/internal/platform/mlog"
	"github.com/banktrail/ingestor/internal/platform/mrabbitmq"
)

const (
	ExchangeName        = "sync_events"
	RoutingKeyCompleted  = "sync.completed"
	RoutingKeyFailed     = "sync.failed"
)

// SyncEvent is the payload published after every IngestionJob closes
// (§4.4.1).
type SyncEvent struct {
	ConnectionID    uuid.UUID `json:"connection_id"`
	TenantID        uuid.UUID `json:"tenant_id"`
	JobID           uuid.UUID `json:"job_id"`
	Success         bool      `json:"success"`
	RecordsImported int       `json:"records_imported"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// Producer publishes sync outcomes onto the event bus.
type Producer struct {
	conn   *mrabbitmq.RabbitMQConnection
	logger mlog.Logger
}

func NewProducer(conn *mrabbitmq.RabbitMQConnection, logger mlog.Logger) *Producer {
	return &Producer{conn: conn, logger: logger}
}

func (p *Producer) declareExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil)
}

func (p *Producer) publish(ctx context.Context, routingKey string, event SyncEvent) error {
	ch, err := p.conn.GetChannel(ctx)
	if err != nil {
		return err
	}

	if err := p.declareExchange(ch); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx, ExchangeName, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Timestamp:   event.OccurredAt,
	})
}

func (p *Producer) PublishCompleted(ctx context.Context, event SyncEvent) error {
	event.Success = true

	if err := p.publish(ctx, RoutingKeyCompleted, event); err != nil {
		p.logger.Errorf("rabbitmq: failed to publish sync.completed: %v", err)
		return err
	}

	return nil
}

func (p *Producer) PublishFailed(ctx context.Context, event SyncEvent) error {
	event.Success = false

	if err := p.publish(ctx, RoutingKeyFailed, event); err != nil {
		p.logger.Errorf("rabbitmq: failed to publish sync.failed: %v", err)
		return err
	}

	return nil
}
