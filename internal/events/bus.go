package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"

	"github.com/arcstream/arcstream/internal/logger"
)

const correlationMetadataKey = "correlation_id"

// Bus is the process-wide event channel, backed by a non-persistent
// gochannel: messages go only to subscribers present at publish time.
// Close tears down all subscriptions.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus builds an in-process bus. bufferSize is the size of each
// subscriber's output channel; publishers do not wait for subscriber acks.
func NewBus(bufferSize int64) *Bus {
	ps := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            bufferSize,
		BlockPublishUntilSubscriberAck: false,
	}, watermill.NopLogger{})
	return &Bus{pubsub: ps}
}

// Publish serializes ev onto topic. A serialization failure is a
// programming error on the payload type and is surfaced, not swallowed.
func (b *Bus) Publish(ctx context.Context, topic Topic, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.Metadata.Set(correlationMetadataKey, ev.CorrelationID)
	if err := b.pubsub.Publish(string(topic), msg); err != nil {
		logger.FromCtx(ctx).Error("failed to publish event", zap.String("type", string(ev.Type)), zap.Error(err))
		return err
	}
	return nil
}

// Subscribe returns a channel of decoded events for topic. The channel
// closes when ctx is cancelled or the bus is closed. Events that fail to
// decode are dropped with a log line rather than killing the subscription.
func (b *Bus) Subscribe(ctx context.Context, topic Topic) (<-chan Event, error) {
	msgs, err := b.pubsub.Subscribe(ctx, string(topic))
	if err != nil {
		return nil, err
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		for msg := range msgs {
			var ev Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				logger.FromCtx(ctx).Warn("dropping undecodable event", zap.Error(err))
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	return b.pubsub.Close()
}
