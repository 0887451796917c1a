package rabbitmq

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/banktrail/ingestor/internal/platform/mlog"
	"github.com/banktrail/ingestor/internal/platform/mrabbitmq"
)

const healthAggregationQueue = "sync_events.health_aggregation"

// HealthAggregator reacts to sync.completed/sync.failed events by rescoring
// the event's connection (§4.7), in addition to the per-connection scoring
// done synchronously by the scheduler.
type HealthAggregator interface {
	OnSyncEvent(ctx context.Context, event SyncEvent) error
}

// Consumer drains the sync event queue into a HealthAggregator. It runs as
// a launcher.App alongside the HTTP and gRPC servers.
type Consumer struct {
	conn       *mrabbitmq.RabbitMQConnection
	aggregator HealthAggregator
	logger     mlog.Logger
}

func NewConsumer(conn *mrabbitmq.RabbitMQConnection, aggregator HealthAggregator, logger mlog.Logger) *Consumer {
	return &Consumer{conn: conn, aggregator: aggregator, logger: logger}
}

// Start binds the queue to both routing keys and consumes until ctx is
// canceled. bootstrap.consumerApp adapts it to launcher.App.
func (c *Consumer) Start(ctx context.Context) error {
	ch, err := c.conn.GetChannel(ctx)
	if err != nil {
		return err
	}

	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(healthAggregationQueue, true, false, false, false, nil); err != nil {
		return err
	}

	for _, key := range []string{RoutingKeyCompleted, RoutingKeyFailed} {
		if err := ch.QueueBind(healthAggregationQueue, key, ExchangeName, false, nil); err != nil {
			return err
		}
	}

	deliveries, err := ch.Consume(healthAggregationQueue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}

			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var event SyncEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		c.logger.Errorf("rabbitmq: malformed sync event, dropping: %v", err)
		_ = d.Nack(false, false)

		return
	}

	if err := c.aggregator.OnSyncEvent(ctx, event); err != nil {
		c.logger.Errorf("rabbitmq: health aggregation failed: %v", err)
		_ = d.Nack(false, true)

		return
	}

	_ = d.Ack(false)
}
