// Package mrabbitmq wraps the RabbitMQ connection backing the sync event bus
// (sync.completed / sync.failed) and the health aggregation consumer,
// modeled on the teacher's common/mrabbitmq/rabbitmq.go. The teacher's
// source imports the older github.com/streadway/amqp; this module follows
// the teacher's own go.mod, which has since moved to the maintained
// github.com/rabbitmq/amqp091-go.
package mrabbitmq

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/banktrail/ingestor/internal/platform/mlog"
)

// RabbitMQConnection is a hub dealing with the event-bus connection.
type RabbitMQConnection struct {
	ConnectionStringSource string
	Logger                 mlog.Logger

	conn      *amqp.Connection
	Channel   *amqp.Channel
	Connected bool
}

// Connect dials the broker and opens a single shared channel. Unlike the
// teacher's version, the connection and channel are kept open for the
// caller — closing them inside Connect would leave GetChannel handing out a
// dead channel.
func (rc *RabbitMQConnection) Connect(ctx context.Context) error {
	rc.Logger.Info("mrabbitmq: connecting")

	conn, err := amqp.Dial(rc.ConnectionStringSource)
	if err != nil {
		return fmt.Errorf("mrabbitmq: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("mrabbitmq: open channel: %w", err)
	}

	if ch == nil {
		return errors.New("mrabbitmq: nil channel after open")
	}

	rc.conn = conn
	rc.Channel = ch
	rc.Connected = true

	rc.Logger.Info("mrabbitmq: connected")

	return nil
}

// GetChannel returns the shared channel, connecting lazily if necessary.
func (rc *RabbitMQConnection) GetChannel(ctx context.Context) (*amqp.Channel, error) {
	if !rc.Connected {
		if err := rc.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return rc.Channel, nil
}

// Close tears down the channel and connection.
func (rc *RabbitMQConnection) Close() error {
	if rc.Channel != nil {
		if err := rc.Channel.Close(); err != nil {
			return err
		}
	}

	if rc.conn != nil {
		return rc.conn.Close()
	}

	return nil
}
