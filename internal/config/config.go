package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Keys     APIKeys
	Ai       AIConfig
	Rag      RagConfig
	Progress ProgressConfig
	Tracing  TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	IngestLogFilePath  string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	UploadDir          string
	TutorProfilePath   string
	IngestTopicName    string
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	OpenAI    string
	JWTSecret string
}

type AIConfig struct {
	EmbeddingProvider  string // "openai" or "ollama"
	EmbeddingModel     string
	EmbeddingDimension int
	EmbeddingBatch     int
	OllamaBaseURL      string
	OpenAIBaseURL      string
	LLMProvider        string // "ollama" or "openai"
	LLMModel           string
}

type RagConfig struct {
	ChunkTokens      int
	OverlapTokens    int
	TopK             int
	MinScore         float64
	TextWeight       float64
	VectorWeight     float64
	TextSearchConfig string
	BatchSize        int
	IngestWorkers    int
	HistoryMessages  int

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RetryAttempts     int
	RetryBaseDelay    time.Duration
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

type ProgressConfig struct {
	Store      string // "memory" or "redis"
	TTL        time.Duration
	SessionTTL time.Duration
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			IngestLogFilePath:  getEnv("INGEST_LOG_FILE_PATH", "ingest.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			UploadDir:          getEnv("UPLOAD_DIR", "uploads"),
			TutorProfilePath:   getEnv("TUTOR_PROFILE_PATH", ""),
			IngestTopicName:    getEnv("INGEST_BOOK_TOPIC_NAME", "INGEST_BOOK"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			OpenAI:    getEnv("OPENAI_API_KEY", ""),
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider:  getEnv("EMBEDDING_PROVIDER", "openai"),
			EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 1536),
			EmbeddingBatch:     getEnvAsInt("EMBEDDING_BATCH_SIZE", 100),
			OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", ""),
			LLMProvider:        getEnv("LLM_PROVIDER", "openai"),
			LLMModel:           getEnv("LLM_MODEL", "gpt-4o-mini"),
		},
		Rag: RagConfig{
			ChunkTokens:       getEnvAsInt("RAG_CHUNK_TOKENS", 450),
			OverlapTokens:     getEnvAsInt("RAG_OVERLAP_TOKENS", 70),
			TopK:              getEnvAsInt("RAG_TOP_K", 5),
			MinScore:          getEnvAsFloat("RAG_MIN_SCORE", 0.25),
			TextWeight:        getEnvAsFloat("RAG_TEXT_WEIGHT", 0.3),
			VectorWeight:      getEnvAsFloat("RAG_VECTOR_WEIGHT", 0.7),
			TextSearchConfig:  getEnv("RAG_TEXT_SEARCH_CONFIG", "spanish"),
			BatchSize:         getEnvAsInt("RAG_BATCH_SIZE", 10),
			IngestWorkers:     getEnvAsInt("RAG_INGEST_WORKERS", 4),
			HistoryMessages:   getEnvAsInt("RAG_HISTORY_MESSAGES", 10),
			RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 50),
			RateLimitWindow:   getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
			RetryAttempts:     getEnvAsInt("RETRY_ATTEMPTS", 3),
			RetryBaseDelay:    getEnvAsDuration("RETRY_BASE_DELAY", time.Second),
		},
		Progress: ProgressConfig{
			Store:      getEnv("PROGRESS_STORE", "memory"),
			TTL:        getEnvAsDuration("PROGRESS_TTL", time.Hour),
			SessionTTL: getEnvAsDuration("SESSION_TTL", time.Hour),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "ai-tutor-backend"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
