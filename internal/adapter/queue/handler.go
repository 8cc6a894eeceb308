package queue

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler consumes one delivery. Implementations must be idempotent:
// redelivery happens whenever a nack requeues or the broker reconnects.
// A nil return acks the message; an error nacks it under the router's
// requeue policy.
type Handler interface {
	Handle(ctx context.Context, d amqp.Delivery) error
}
