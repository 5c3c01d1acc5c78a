package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	Worker   WorkerConfig
	Sync     SyncConfig
	Ponto    PontoConfig
}

type ServerConfig struct {
	Port         string
	TriggerToken string
}

type PostgresConfig struct {
	URL string
}

type KafkaConfig struct {
	Brokers         []string
	SettlementTopic string
	CardEventsTopic string
	Partitions      int
	// Sarama-specific
	Version       string
	ConsumerGroup string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

type WorkerConfig struct {
	ProcessingInterval time.Duration
}

type SyncConfig struct {
	RunTimeout      time.Duration
	TreasuryTimeout time.Duration
	Cron            string
	LockTTL         time.Duration
	RewardPolicy    string
}

type PontoConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	PageSize     int
}

var ErrMissingPostgresURL = errors.New("POSTGRES_URL is required")

// Load reads .env files (if present) over the process environment and builds the config.
func Load() (*Config, error) {
	for _, file := range []string{".env", ".env.dev"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			return nil, err
		}
	}

	cfg := New()
	if cfg.Postgres.URL == "" {
		return nil, ErrMissingPostgresURL
	}
	return cfg, nil
}

func New() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", ":8080"),
			TriggerToken: os.Getenv("SYNC_TRIGGER_TOKEN"),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("POSTGRES_URL"),
		},
		Kafka: KafkaConfig{
			Brokers:         splitList(os.Getenv("KAFKA_BROKERS")),
			SettlementTopic: getEnv("KAFKA_SETTLEMENT_TOPIC", "treasury.settlements"),
			CardEventsTopic: getEnv("KAFKA_CARD_EVENTS_TOPIC", "treasury.card-events"),
			Partitions:      getEnvInt("KAFKA_PARTITIONS", 1),
			Version:         os.Getenv("KAFKA_VERSION"),
			ConsumerGroup:   os.Getenv("KAFKA_CONSUMER_GROUP"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Worker: WorkerConfig{
			ProcessingInterval: time.Duration(getEnvInt("WORKER_PROCESSING_INTERVAL", 5)) * time.Second,
		},
		Sync: SyncConfig{
			RunTimeout:      time.Duration(getEnvInt("SYNC_RUN_TIMEOUT", 600)) * time.Second,
			TreasuryTimeout: time.Duration(getEnvInt("SYNC_TREASURY_TIMEOUT", 120)) * time.Second,
			Cron:            os.Getenv("SYNC_CRON"),
			LockTTL:         time.Duration(getEnvInt("SYNC_LOCK_TTL", 300)) * time.Second,
			RewardPolicy:    getEnv("SYNC_REWARD_POLICY", "total"),
		},
		Ponto: PontoConfig{
			BaseURL:      getEnv("PONTO_BASE_URL", "https://api.myponto.com"),
			ClientID:     os.Getenv("PONTO_CLIENT_ID"),
			ClientSecret: os.Getenv("PONTO_CLIENT_SECRET"),
			PageSize:     getEnvInt("PONTO_PAGE_SIZE", 100),
		},
	}
}

// KafkaEnabled reports whether any broker is configured.
func (k *KafkaConfig) KafkaEnabled() bool {
	return len(k.Brokers) > 0
}

func (k *KafkaConfig) GetSaramaConfig() *sarama.Config {
	config := sarama.NewConfig()

	if k.Version != "" {
		version, err := sarama.ParseKafkaVersion(k.Version)
		if err == nil {
			config.Version = version
		}
	}

	// Consumer settings
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.AutoCommit.Enable = true
	config.Consumer.Offsets.AutoCommit.Interval = 2 * time.Minute
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	// Settings for batch processing
	config.Consumer.Fetch.Min = 1
	config.Consumer.Fetch.Default = 1024 * 1024 // 1MB
	config.Consumer.MaxWaitTime = 100 * time.Millisecond

	config.Net.MaxOpenRequests = 5
	config.Net.DialTimeout = 30 * time.Second
	config.Net.ReadTimeout = 30 * time.Second
	config.Net.WriteTimeout = 30 * time.Second

	return config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
