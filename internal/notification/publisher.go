package notification

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/telecare/billingcore/internal/config"
	"github.com/telecare/billingcore/internal/logger"
	"github.com/telecare/billingcore/internal/pubsub"
	"github.com/telecare/billingcore/internal/types"
)

// Publisher emits billing notification events. Delivery is fire-and-forget:
// callers log a failed publish and carry on.
type Publisher interface {
	Publish(ctx context.Context, event *types.NotificationEvent) error
}

type publisher struct {
	pubSub pubsub.Publisher
	config *config.NotificationsConfig
	logger *logger.Logger
}

func NewPublisher(pubSub pubsub.PubSub, cfg *config.Configuration, logger *logger.Logger) Publisher {
	return &publisher{
		pubSub: pubSub,
		config: &cfg.Notifications,
		logger: logger,
	}
}

func (p *publisher) topic() string {
	if p.config.Topic == "" {
		return types.NotificationTopic
	}
	return p.config.Topic
}

func (p *publisher) Publish(ctx context.Context, event *types.NotificationEvent) error {
	if !p.config.Enabled {
		p.logger.Debugw("notifications disabled, dropping event",
			"event_id", event.ID,
			"event_name", event.Name,
		)
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_name", string(event.Name))
	if requestID := types.GetRequestID(ctx); requestID != "" {
		msg.Metadata.Set("request_id", requestID)
	}

	if err := p.pubSub.Publish(ctx, p.topic(), msg); err != nil {
		p.logger.Errorw("failed to publish notification",
			"error", err,
			"event_id", event.ID,
			"event_name", event.Name,
		)
		return err
	}

	p.logger.Debugw("published notification",
		"event_id", event.ID,
		"event_name", event.Name,
		"topic", p.topic(),
	)
	return nil
}
