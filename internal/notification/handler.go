package notification

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/telecare/billingcore/internal/config"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/logger"
	"github.com/telecare/billingcore/internal/pubsub"
	pubsubRouter "github.com/telecare/billingcore/internal/pubsub/router"
	"github.com/telecare/billingcore/internal/types"
)

// Handler consumes the notification topic and hands events to the Notifier
type Handler interface {
	RegisterHandler(router *pubsubRouter.Router)
}

type handler struct {
	pubSub   pubsub.PubSub
	config   *config.NotificationsConfig
	notifier Notifier
	logger   *logger.Logger
}

func NewHandler(pubSub pubsub.PubSub, cfg *config.Configuration, notifier Notifier, logger *logger.Logger) Handler {
	return &handler{
		pubSub:   pubSub,
		config:   &cfg.Notifications,
		notifier: notifier,
		logger:   logger,
	}
}

func (h *handler) RegisterHandler(router *pubsubRouter.Router) {
	topic := h.config.Topic
	if topic == "" {
		topic = types.NotificationTopic
	}
	router.AddNoPublishHandler(
		"billing_notification_handler",
		topic,
		h.pubSub,
		h.processMessage,
	)
}

func (h *handler) processMessage(msg *message.Message) error {
	var event types.NotificationEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return ierr.WithError(err).
			WithHint("Malformed notification event").
			WithReportableDetails(map[string]interface{}{
				"message_uuid": msg.UUID,
			}).
			Mark(ierr.ErrValidation)
	}

	ctx := msg.Context()
	if requestID := msg.Metadata.Get("request_id"); requestID != "" {
		ctx = context.WithValue(ctx, types.CtxRequestID, requestID)
	}

	return h.notifier.Notify(ctx, &event)
}
