package worker

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubConfig configures a PubSubHandler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	RefreshJob       *RefreshJob
	Logger           zerolog.Logger

	// MaxOutstanding caps messages in flight. Default 10.
	MaxOutstanding int
}

// PubSubHandler feeds refresh messages from a subscription to a Dispatcher.
type PubSubHandler struct {
	client     *pubsub.Client
	subscriber *pubsub.Subscriber
	name       string
	dispatcher *Dispatcher
	logger     zerolog.Logger
}

// NewPubSubHandler connects to the project. Receiving starts with Start.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	maxOutstanding := cfg.MaxOutstanding
	if maxOutstanding <= 0 {
		maxOutstanding = 10
	}

	sub := client.Subscriber(cfg.SubscriptionName)
	sub.ReceiveSettings.MaxOutstandingMessages = maxOutstanding
	sub.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:     client,
		subscriber: sub,
		name:       cfg.SubscriptionName,
		dispatcher: NewDispatcher(cfg.RefreshJob, cfg.Logger),
		logger:     cfg.Logger,
	}, nil
}

// Start blocks receiving messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().Str("subscription", h.name).Msg("starting pubsub handler")
	return h.subscriber.Receive(ctx, h.receive)
}

func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) receive(ctx context.Context, msg *pubsub.Message) {
	start := time.Now()
	log := h.logger.With().
		Str("message_id", msg.ID).
		Time("published_at", msg.PublishTime).
		Logger()

	if !ShouldAck(h.dispatcher.Dispatch(log.WithContext(ctx), msg.Data), log) {
		msg.Nack()
		return
	}
	log.Info().Dur("duration", time.Since(start)).Msg("job handled")
	msg.Ack()
}
