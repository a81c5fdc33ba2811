package bus

import (
	"context"
	"fmt"
	"sync"

	repo "github.com/dokkazy/dtp-frontend-sub000/internal/repository"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const cartSyncExchange = "cart.sync"

// AMQPBus はfanout exchangeで全購読者に配る。
// 購読者ごとに排他・自動削除のキューを作る。
type AMQPBus struct {
	conn   *amqp.Connection
	logger *zap.Logger

	mu    sync.Mutex
	pubCh *amqp.Channel
}

func NewAMQPBus(url string, logger *zap.Logger) (*AMQPBus, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		cartSyncExchange,
		amqp.ExchangeFanout,
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp exchange declare: %w", err)
	}

	return &AMQPBus{conn: conn, logger: logger, pubCh: ch}, nil
}

func (b *AMQPBus) Publish(ctx context.Context, ev repo.CartEvent) error {
	payload, err := repo.EncodeCartEvent(ev)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.pubCh.PublishWithContext(ctx,
		cartSyncExchange,
		"",    // fanoutなのでrouting keyは不要
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   uuid.NewString(),
			Timestamp:   ev.At.UTC(),
			Body:        payload,
		},
	); err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

func (b *AMQPBus) Subscribe(ctx context.Context) (<-chan repo.CartEvent, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("amqp queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", cartSyncExchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("amqp queue bind: %w", err)
	}

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("amqp consume: %w", err)
	}

	out := make(chan repo.CartEvent, 16)
	go func() {
		defer close(out)
		defer func() { _ = ch.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				ev, err := repo.DecodeCartEvent(d.Body)
				if err != nil {
					b.logger.Warn("drop cart event", zap.String("message_id", d.MessageId), zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *AMQPBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pubCh != nil {
		_ = b.pubCh.Close()
	}
	return b.conn.Close()
}
