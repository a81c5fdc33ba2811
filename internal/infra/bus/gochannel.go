package bus

import (
	"context"
	"fmt"

	repo "github.com/dokkazy/dtp-frontend-sub000/internal/repository"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"
)

// 同期メッセージのトピック/チャネル名
const CartSyncTopic = "cart-sync"

// GoChannelBus は同一プロセス内のファンアウト。
// 購読前に出たメッセージは捨てられる（開いていないタブには届かない）。
type GoChannelBus struct {
	pubsub *gochannel.GoChannel
	logger *zap.Logger
}

func NewGoChannelBus(logger *zap.Logger) *GoChannelBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoChannelBus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			NewWatermillLogger(logger),
		),
		logger: logger,
	}
}

func (b *GoChannelBus) Publish(ctx context.Context, ev repo.CartEvent) error {
	payload, err := repo.EncodeCartEvent(ev)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("cart_key", ev.Key)
	msg.Metadata.Set("tab_id", ev.TabID)

	if err := b.pubsub.Publish(CartSyncTopic, msg); err != nil {
		return fmt.Errorf("gochannel publish: %w", err)
	}
	return nil
}

func (b *GoChannelBus) Subscribe(ctx context.Context) (<-chan repo.CartEvent, error) {
	msgs, err := b.pubsub.Subscribe(ctx, CartSyncTopic)
	if err != nil {
		return nil, fmt.Errorf("gochannel subscribe: %w", err)
	}

	out := make(chan repo.CartEvent, 16)
	go func() {
		defer close(out)
		for msg := range msgs {
			ev, err := repo.DecodeCartEvent(msg.Payload)
			// 次のメッセージを流すために先にAck
			msg.Ack()
			if err != nil {
				b.logger.Warn("drop cart event", zap.String("message_uuid", msg.UUID), zap.Error(err))
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *GoChannelBus) Close() error {
	return b.pubsub.Close()
}
