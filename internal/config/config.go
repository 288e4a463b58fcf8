package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Commander - запись реестра командиров из конфигурации
type Commander struct {
	ID             string
	Zone           string
	Specialization string
}

// Config - структура для хранения конфигурации приложения
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Redis Config
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Webhook Config
	WebhookURL        string        `env:"WEBHOOK_URL"`
	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	WebhookTimeout    time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`
	WebhookMaxRetries int           `env:"WEBHOOK_MAX_RETRIES" envDefault:"3"`
	WebhookBaseDelay  time.Duration `env:"WEBHOOK_BASE_DELAY" envDefault:"500ms"`

	// Pipeline Config
	PipelineTimeout time.Duration `env:"PIPELINE_TIMEOUT" envDefault:"30s"`
	StageTimeout    time.Duration `env:"STAGE_TIMEOUT" envDefault:"10s"`
	SafetyBlocklist []string      `env:"SAFETY_BLOCKLIST"`

	// Inference Config
	GeminiAPIKey     string `env:"GEMINI_API_KEY"`
	LLMModel         string `env:"LLM_MODEL" envDefault:"gemini-2.5-flash"`
	LLMFallbackModel string `env:"LLM_FALLBACK_MODEL" envDefault:"gemini-2.5-flash-lite"`
	EmbeddingModel   string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-004"`

	// Vector search
	QdrantURL    string `env:"QDRANT_URL"`
	QdrantAPIKey string `env:"QDRANT_API_KEY"`

	// Transcription
	TranscriptionURL    string `env:"TRANSCRIPTION_URL"`
	TranscriptionAPIKey string `env:"TRANSCRIPTION_API_KEY"`

	// Realtime Config
	BroadcastMode    string        `env:"BROADCAST_MODE" envDefault:"local"`
	BroadcastChannel string        `env:"BROADCAST_CHANNEL" envDefault:"incident_events"`
	SubscriberBuffer int           `env:"SUBSCRIBER_BUFFER" envDefault:"64"`
	SessionTTL       time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	IncidentCacheTTL time.Duration `env:"INCIDENT_CACHE_TTL" envDefault:"5m"`

	// Реестр командиров: "id:zone:specialization,..."
	Commanders []Commander `env:"COMMANDERS"`

	// API Keys for authentication
	APIKeys   []string `env:"API_KEYS"`
	JWTSecret string   `env:"JWT_SECRET"`
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := &Config{
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		HTTPPort:            getEnv("HTTP_PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:             getEnvAsInt("REDIS_DB", 0),
		WebhookURL:          os.Getenv("WEBHOOK_URL"),
		WebhookSecret:       os.Getenv("WEBHOOK_SECRET"),
		WebhookTimeout:      getEnvAsDuration("WEBHOOK_TIMEOUT", 5*time.Second),
		WebhookMaxRetries:   getEnvAsInt("WEBHOOK_MAX_RETRIES", 3),
		WebhookBaseDelay:    getEnvAsDuration("WEBHOOK_BASE_DELAY", 500*time.Millisecond),
		PipelineTimeout:     getEnvAsDuration("PIPELINE_TIMEOUT", 30*time.Second),
		StageTimeout:        getEnvAsDuration("STAGE_TIMEOUT", 10*time.Second),
		SafetyBlocklist:     getEnvAsList("SAFETY_BLOCKLIST"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		LLMModel:            getEnv("LLM_MODEL", "gemini-2.5-flash"),
		LLMFallbackModel:    getEnv("LLM_FALLBACK_MODEL", "gemini-2.5-flash-lite"),
		EmbeddingModel:      getEnv("EMBEDDING_MODEL", "text-embedding-004"),
		QdrantURL:           os.Getenv("QDRANT_URL"),
		QdrantAPIKey:        os.Getenv("QDRANT_API_KEY"),
		TranscriptionURL:    os.Getenv("TRANSCRIPTION_URL"),
		TranscriptionAPIKey: os.Getenv("TRANSCRIPTION_API_KEY"),
		BroadcastMode:       getEnv("BROADCAST_MODE", "local"),
		BroadcastChannel:    getEnv("BROADCAST_CHANNEL", "incident_events"),
		SubscriberBuffer:    getEnvAsInt("SUBSCRIBER_BUFFER", 64),
		SessionTTL:          getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		IncidentCacheTTL:    getEnvAsDuration("INCIDENT_CACHE_TTL", 5*time.Minute),
		APIKeys:             getEnvAsList("API_KEYS"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
	}

	commanders, err := ParseCommanders(os.Getenv("COMMANDERS"))
	if err != nil {
		return nil, err
	}
	cfg.Commanders = commanders

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.BroadcastMode != "local" && cfg.BroadcastMode != "redis" {
		return nil, fmt.Errorf("BROADCAST_MODE must be local or redis, got %q", cfg.BroadcastMode)
	}

	return cfg, nil
}

// ParseCommanders разбирает список "id:zone:specialization" через запятую.
// Зона и специализация необязательны.
func ParseCommanders(raw string) ([]Commander, error) {
	var out []Commander
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) > 3 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("invalid COMMANDERS entry %q", item)
		}
		c := Commander{ID: strings.TrimSpace(parts[0])}
		if len(parts) > 1 {
			c.Zone = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			c.Specialization = strings.TrimSpace(parts[2])
		}
		out = append(out, c)
	}
	return out, nil
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}

// getEnvAsList разбирает список через запятую, пустые элементы отбрасываются
func getEnvAsList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
