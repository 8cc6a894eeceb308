package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// JSONHandler decodes a delivery body into T before invoking the wrapped
// function. A body that does not parse is a permanent failure for that
// message; the router drops it rather than requeueing a poison payload.
type JSONHandler[T any] struct {
	HandleFunc func(ctx context.Context, msg T) error
}

func (h JSONHandler[T]) Handle(ctx context.Context, d amqp.Delivery) error {
	var msg T
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		return fmt.Errorf("decode %s payload: %w", d.RoutingKey, err)
	}
	return h.HandleFunc(ctx, msg)
}
