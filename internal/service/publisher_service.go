package service

import (
	"context"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// IPublisherService queues background jobs on the in-process bus.
type IPublisherService interface {
	Publish(ctx context.Context, msg []byte) error
}

type publisherService struct {
	topicName string
	pubSub    *gochannel.GoChannel
}

func NewPublisherService(topicName string, pubSub *gochannel.GoChannel) IPublisherService {
	return &publisherService{
		topicName: topicName,
		pubSub:    pubSub,
	}
}

func (s *publisherService) Publish(ctx context.Context, msg []byte) error {
	m := message.NewMessage(watermill.NewUUID(), msg)
	m.SetContext(ctx)
	return s.pubSub.Publish(s.topicName, m)
}

// IEventPublisher sends domain events to other services.
type IEventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type logOnlyPublisher struct {
	logger logger.ILogger
}

// NewLogOnlyPublisher records events in the log when no broker is configured.
func NewLogOnlyPublisher(log logger.ILogger) IEventPublisher {
	return &logOnlyPublisher{logger: log}
}

func (p *logOnlyPublisher) Publish(_ context.Context, event events.Event) error {
	p.logger.Info("Events", "Event raised without broker", map[string]interface{}{
		"type":    event.EventType(),
		"payload": event.Payload(),
	})
	return nil
}
