package service

import (
	"context"
	"encoding/json"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub        *gochannel.GoChannel
	topicName     string
	ingestService IIngestService
	logger        logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	ingestService IIngestService,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:        pubSub,
		topicName:     topicName,
		ingestService: ingestService,
		logger:        log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	cs.logger.Info("Consumer", "Listening for ingestion jobs", map[string]interface{}{"topic": cs.topicName})
	return nil
}

// processMessage always acks: Process records a terminal state for the job
// and a redelivery would ingest the same book twice.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var payload dto.IngestBookMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("Consumer", "Failed to unmarshal ingestion job", map[string]interface{}{"error": err.Error()})
		return
	}

	cs.logger.Info("Consumer", "Processing ingestion job", map[string]interface{}{
		"job_id":  payload.JobId,
		"book_id": payload.BookId,
	})
	if err := cs.ingestService.Process(ctx, payload); err != nil {
		cs.logger.Warn("Consumer", "Ingestion job ended with error", map[string]interface{}{
			"job_id": payload.JobId,
			"error":  err.Error(),
		})
	}
}
