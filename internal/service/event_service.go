package service

import (
	"context"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/events"
	pktNats "ai-tutor-be/pkg/nats"
)

// EventSubscriber is satisfied by the NATS subscriber.
type EventSubscriber interface {
	Subscribe(ctx context.Context, subject, durableName string, handler pktNats.EventHandler) error
}

// EventService consumes domain events from the broker. Ingestion outcomes
// are pushed to the websocket watchers of the job, which lets an instance
// that did not run the job still notify its clients.
type EventService struct {
	subscriber EventSubscriber
	delivery   ProgressNotifier
	logger     logger.ILogger
}

func NewEventService(sub EventSubscriber, delivery ProgressNotifier, log logger.ILogger) *EventService {
	return &EventService{
		subscriber: sub,
		delivery:   delivery,
		logger:     log,
	}
}

// Start begins listening to the event bus.
func (s *EventService) Start(ctx context.Context) error {
	if err := s.subscriber.Subscribe(ctx, "events.>", "tutor-event-worker", s.handleEvent); err != nil {
		s.logger.Error("EventService", "Failed to start event subscriber", map[string]interface{}{"error": err.Error()})
		return err
	}
	s.logger.Info("EventService", "Event service started, listening to events.>", nil)
	return nil
}

func (s *EventService) handleEvent(_ context.Context, event events.Event) error {
	payload := event.Payload()

	switch event.EventType() {
	case events.TypeBookIngested, events.TypeBookIngestFailed:
		jobID, _ := payload["job_id"].(string)
		if jobID == "" {
			s.logger.Warn("EventService", "Ingestion event without job_id", map[string]interface{}{"type": event.EventType()})
			return nil
		}
		if s.delivery != nil {
			s.delivery.Send(jobID, map[string]interface{}{
				"event":   event.EventType(),
				"payload": payload,
			})
		}
	case events.TypeBookCompleted:
		s.logger.Info("EventService", "Student completed a book", payload)
	default:
		s.logger.Debug("EventService", "Ignoring event", map[string]interface{}{"type": event.EventType()})
	}
	return nil
}
