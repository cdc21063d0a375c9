package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type processedJobs struct {
	IIngestService
	jobs chan dto.IngestBookMessage
}

func (p *processedJobs) Process(_ context.Context, msg dto.IngestBookMessage) error {
	p.jobs <- msg
	return nil
}

func TestConsumerService_DeliversQueuedJobs(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ingest := &processedJobs{jobs: make(chan dto.IngestBookMessage, 1)}
	require.NoError(t, NewConsumerService(pubSub, "INGEST_BOOK", ingest, logger.NewNopLogger()).Consume(ctx))

	job := dto.IngestBookMessage{JobId: "job-7", BookId: uuid.New(), LicenseId: uuid.New(), FilePath: "/tmp/a.pdf"}
	raw, err := json.Marshal(job)
	require.NoError(t, err)
	require.NoError(t, NewPublisherService("INGEST_BOOK", pubSub).Publish(ctx, raw))

	select {
	case got := <-ingest.jobs:
		assert.Equal(t, job, got)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not consumed")
	}
}

type rawDelivery struct {
	jobs []string
	msgs []interface{}
}

func (d *rawDelivery) Send(jobID string, msg interface{}) {
	d.jobs = append(d.jobs, jobID)
	d.msgs = append(d.msgs, msg)
}

func TestEventService_RelaysIngestionOutcomes(t *testing.T) {
	delivery := &rawDelivery{}
	svc := NewEventService(nil, delivery, logger.NewNopLogger())

	ingested := events.NewBookIngested("job-1", uuid.New(), uuid.New(), 3, 12, 1)
	require.NoError(t, svc.handleEvent(context.Background(), ingested))
	require.NoError(t, svc.handleEvent(context.Background(), events.NewBookCompleted(uuid.New(), uuid.New(), uuid.New())))
	require.NoError(t, svc.handleEvent(context.Background(), events.New(events.TypeBookIngestFailed, map[string]interface{}{})))

	require.Equal(t, []string{"job-1"}, delivery.jobs)
	msg := delivery.msgs[0].(map[string]interface{})
	assert.Equal(t, events.TypeBookIngested, msg["event"])
	assert.Equal(t, 12, msg["payload"].(map[string]interface{})["fragments"])
}

func TestLogOnlyPublisher(t *testing.T) {
	p := NewLogOnlyPublisher(logger.NewNopLogger())
	assert.NoError(t, p.Publish(context.Background(), events.NewBookIngestFailed("j", uuid.New(), uuid.New(), "boom")))
}
