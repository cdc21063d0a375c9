package bootstrap

import (
	"context"
	"fmt"

	"ai-tutor-be/internal/config"
	"ai-tutor-be/internal/controller"
	"ai-tutor-be/internal/handler"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/internal/repository/implementation"
	"ai-tutor-be/internal/repository/memory"
	"ai-tutor-be/internal/repository/redisstore"
	"ai-tutor-be/internal/repository/unitofwork"
	"ai-tutor-be/internal/service"
	"ai-tutor-be/internal/websocket"
	"ai-tutor-be/pkg/chunking"
	"ai-tutor-be/pkg/embedding"
	"ai-tutor-be/pkg/intent"
	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/llm/factory"
	pktNats "ai-tutor-be/pkg/nats"
	"ai-tutor-be/pkg/rag/outline"
	"ai-tutor-be/pkg/rag/progress"
	"ai-tutor-be/pkg/rag/retrieval"
	"ai-tutor-be/pkg/resilience"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	BookController  controller.IBookController
	TopicController controller.ITopicController
	TutorController controller.ITutorController

	// Background services, started by main
	ConsumerService service.IConsumerService
	EventService    *service.EventService

	// WebSockets
	IngestHandler *handler.IngestHandler
	WebSocketHub  *websocket.Hub

	Logger logger.ILogger

	natsConn   *nats.Conn
	subscriber *pktNats.Subscriber
	rdb        *redis.Client
}

func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	ingestLogger := logger.NewIsolatedLogger(cfg.App.IngestLogFilePath)

	profile, err := config.LoadTutorProfile(cfg.App.TutorProfilePath)
	if err != nil {
		return nil, err
	}

	// 2. Job queue
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermill.NewStdLogger(false, false),
	)

	c := &Container{Logger: sysLogger}

	// 3. Infrastructure. Redis and NATS are optional; without them the
	// instance keeps its state in memory and only logs domain events.
	if cfg.App.RedisURL != "" {
		c.rdb, err = connectRedis(cfg.App.RedisURL)
		if err != nil {
			sysLogger.Warn("Bootstrap", "Redis unavailable, using in-memory stores", map[string]interface{}{"error": err.Error()})
		}
	}

	var eventPublisher service.IEventPublisher = service.NewLogOnlyPublisher(sysLogger)
	if cfg.App.NatsURL != "" {
		conn, js, err := pktNats.Connect(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("Bootstrap", "NATS unavailable, events are only logged", map[string]interface{}{"error": err.Error()})
		} else {
			c.natsConn = conn
			c.subscriber = pktNats.NewSubscriber(js, sysLogger)
			eventPublisher = pktNats.NewPublisher(js)
		}
	}

	var ingestProgress contract.IngestionProgressRepository
	if c.rdb != nil && cfg.Progress.Store == "redis" {
		ingestProgress = redisstore.NewIngestionProgressRepository(c.rdb, cfg.Progress.TTL)
	} else {
		ingestProgress = memory.NewIngestionProgressRepository(cfg.Progress.TTL)
	}
	sessions := memory.NewSessionRepository(cfg.Progress.SessionTTL)

	c.WebSocketHub = websocket.NewHub(c.rdb, ingestLogger)

	// 4. Model providers
	limiter := resilience.NewRateLimiter(cfg.Rag.RateLimitRequests, cfg.Rag.RateLimitWindow)
	policy := resilience.DefaultPolicy()
	if cfg.Rag.RetryAttempts > 0 {
		policy.MaxTries = uint(cfg.Rag.RetryAttempts)
	}
	if cfg.Rag.RetryBaseDelay > 0 {
		policy.BaseDelay = cfg.Rag.RetryBaseDelay
	}

	var embeddingProvider embedding.Provider
	switch cfg.Ai.EmbeddingProvider {
	case "ollama":
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel, cfg.Ai.EmbeddingDimension)
	case "openai":
		embeddingProvider = embedding.NewOpenAIProvider(cfg.Keys.OpenAI, cfg.Ai.OpenAIBaseURL, cfg.Ai.EmbeddingModel, cfg.Ai.EmbeddingDimension, cfg.Ai.EmbeddingBatch)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Ai.EmbeddingProvider)
	}
	gateway := embedding.NewGateway(
		embedding.NewRetryingProvider(embeddingProvider, limiter, policy),
		implementation.NewEmbeddingCacheRepository(db),
		sysLogger,
	)
	sysLogger.Info("Bootstrap", "Embedding provider ready", map[string]interface{}{
		"provider": cfg.Ai.EmbeddingProvider, "model": cfg.Ai.EmbeddingModel, "dimension": gateway.Dimension(),
	})

	baseURL := cfg.Ai.OpenAIBaseURL
	if cfg.Ai.LLMProvider == "ollama" {
		baseURL = cfg.Ai.OllamaBaseURL
	}
	inner, err := factory.NewLLMProvider(factory.Config{
		Provider: cfg.Ai.LLMProvider,
		Model:    cfg.Ai.LLMModel,
		BaseURL:  baseURL,
		APIKey:   cfg.Keys.OpenAI,
	})
	if err != nil {
		return nil, err
	}
	llmProvider := llm.NewRetryingProvider(inner, limiter, policy)
	sysLogger.Info("Bootstrap", "LLM provider ready", map[string]interface{}{"provider": cfg.Ai.LLMProvider, "model": cfg.Ai.LLMModel})

	// 5. Domain pipeline
	pipeline := service.FragmentPipeline{
		Chunker:   chunking.NewChunker(chunking.NewDefaultTokenizer(), cfg.Rag.ChunkTokens, cfg.Rag.OverlapTokens),
		Embedder:  gateway,
		BatchSize: cfg.Rag.BatchSize,
	}

	fragments := implementation.NewKnowledgeFragmentRepository(db)
	retriever := retrieval.NewRetriever(gateway, fragments, retrieval.Config{
		TopK:             cfg.Rag.TopK,
		MinScore:         cfg.Rag.MinScore,
		TextWeight:       cfg.Rag.TextWeight,
		VectorWeight:     cfg.Rag.VectorWeight,
		TextSearchConfig: cfg.Rag.TextSearchConfig,
	}, sysLogger)
	tracker := progress.NewTracker(
		implementation.NewTopicRepository(db),
		fragments,
		implementation.NewProgressCursorRepository(db),
		service.NewStudentBookResolver(uowFactory),
		sessions,
		sysLogger,
	)

	// 6. Services
	publisherService := service.NewPublisherService(cfg.App.IngestTopicName, pubSub)
	ingestService := service.NewIngestService(
		uowFactory,
		ingestProgress,
		publisherService,
		eventPublisher,
		c.WebSocketHub,
		outline.NewExtractor(llmProvider, ingestLogger),
		pipeline,
		cfg.App.UploadDir,
		cfg.Rag.IngestWorkers,
		ingestLogger,
	)
	bookService := service.NewBookService(uowFactory, pipeline, sysLogger)
	tutorService := service.NewTutorService(
		uowFactory,
		intent.NewClassifier(profile.Intents.Advance, profile.Intents.Location),
		retriever,
		tracker,
		llmProvider,
		profile,
		sessions,
		eventPublisher,
		cfg.Rag.HistoryMessages,
		sysLogger,
	)

	c.ConsumerService = service.NewConsumerService(pubSub, cfg.App.IngestTopicName, ingestService, ingestLogger)
	if c.subscriber != nil {
		c.EventService = service.NewEventService(c.subscriber, c.WebSocketHub, ingestLogger)
	}

	// 7. Controllers
	c.BookController = controller.NewBookController(bookService, ingestService)
	c.TopicController = controller.NewTopicController(bookService)
	c.TutorController = controller.NewTutorController(tutorService, sysLogger)
	c.IngestHandler = handler.NewIngestHandler(ingestService, c.WebSocketHub, ingestLogger)

	return c, nil
}

// Close releases the broker connections.
func (c *Container) Close() {
	if c.subscriber != nil {
		c.subscriber.Stop()
	}
	if c.natsConn != nil {
		c.natsConn.Drain()
	}
	if c.rdb != nil {
		c.rdb.Close()
	}
}

func connectRedis(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}
