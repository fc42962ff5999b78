package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gokhangum/gumruk360-sub002/internal/usecase"
)

const (
	noticeRoutingKey = "order.paid.notice"
	retryRoutingKey  = "effect.retry"
	noticeQueueName  = "handler.notice.q"
)

// RabbitProducer implements usecase.Notifier: handler notifications for
// paid consulting requests, and failed side effects bound for the
// out-of-band retry queue.
type RabbitProducer struct {
	ch       *amqp.Channel
	exchange string
}

// NewRabbitProducer sets up the exchange, queues, and bindings once at startup.
func NewRabbitProducer(ch *amqp.Channel, exchange, retryQueue string) (*RabbitProducer, error) {
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	for q, rk := range map[string]string{
		noticeQueueName: noticeRoutingKey,
		retryQueue:      retryRoutingKey,
	} {
		queue, err := ch.QueueDeclare(
			q,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("declare queue %s: %w", q, err)
		}
		if err := ch.QueueBind(queue.Name, rk, exchange, false, nil); err != nil {
			return nil, fmt.Errorf("bind queue %s: %w", q, err)
		}
	}

	// publisher confirms so a broker hiccup surfaces as an effect failure
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}

	return &RabbitProducer{ch: ch, exchange: exchange}, nil
}

func (p *RabbitProducer) PublishHandlerNotice(ctx context.Context, msg usecase.HandlerNoticeMsg) error {
	return p.publish(ctx, noticeRoutingKey, msg)
}

func (p *RabbitProducer) PublishEffectRetry(ctx context.Context, msg usecase.EffectRetryMsg) error {
	return p.publish(ctx, retryRoutingKey, msg)
}

func (p *RabbitProducer) publish(ctx context.Context, routingKey string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // survive broker restarts
		Body:         body,
	}

	if err := p.ch.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		pub,
	); err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

var _ usecase.Notifier = (*RabbitProducer)(nil)
