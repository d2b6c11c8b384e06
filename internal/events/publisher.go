package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/rawconnect/marketplace/internal/order"
)

const (
	OrderPlacedQueue        = "order.placed"
	OrderStatusChangedQueue = "order.status_changed"

	producerName = "rawconnect"
)

// Publisher emits order lifecycle events to durable queues. Partition
// key is the order id; sequence numbers come from the sequence
// repository so per-order ordering survives broker redelivery.
type Publisher struct {
	ch  *amqp.Channel
	seq SequenceRepository
}

func NewPublisher(conn *amqp.Connection, seq SequenceRepository) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	for _, queue := range []string{OrderPlacedQueue, OrderStatusChangedQueue} {
		_, err = ch.QueueDeclare(
			queue,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,
		)
		if err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("declare queue %s: %w", queue, err)
		}
	}

	return &Publisher{ch: ch, seq: seq}, nil
}

func (p *Publisher) PublishOrderPlaced(ctx context.Context, o *order.Order) error {
	payload := OrderPlaced{
		OrderID:     o.ID,
		BuyerEmail:  o.BuyerEmail,
		VendorEmail: o.VendorEmail,
		TotalAmount: o.TotalAmount,
		Timestamp:   o.CreatedAt,
	}
	for _, it := range o.Items {
		payload.Items = append(payload.Items, OrderItemEvent{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.Price,
			UnitMeasure: it.UnitMeasure,
		})
	}

	return publish(ctx, p, OrderPlacedQueue, o.ID,
		OrderPlacedEventName, OrderPlacedEventVersion, OrderPlacedSchemaPath, payload)
}

func (p *Publisher) PublishOrderStatusChanged(ctx context.Context, o *order.Order, from, to order.Status, reason string) error {
	payload := OrderStatusChanged{
		OrderID:     o.ID,
		BuyerEmail:  o.BuyerEmail,
		VendorEmail: o.VendorEmail,
		FromStatus:  string(from),
		ToStatus:    string(to),
		Reason:      reason,
		Timestamp:   time.Now().UTC(),
	}

	return publish(ctx, p, OrderStatusChangedQueue, o.ID,
		OrderStatusChangedEventName, OrderStatusChangedEventVersion, OrderStatusChangedSchemaPath, payload)
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func publish[T any](ctx context.Context, p *Publisher, queue, partitionKey, name string, version int, schema string, payload T) error {
	seq, err := p.seq.NextSequence(ctx, partitionKey)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	env := EventEnvelope[T]{
		EventName:    name,
		EventVersion: version,
		EventID:      uuid.NewString(),
		Producer:     producerName,
		PartitionKey: partitionKey,
		Sequence:     seq,
		OccurredAt:   time.Now().UTC(),
		Schema:       schema,
		Payload:      payload,
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	err = p.ch.PublishWithContext(ctx,
		"",    // default exchange
		queue, // routing key = queue name
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    env.EventID,
			Timestamp:    env.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}
	return nil
}
