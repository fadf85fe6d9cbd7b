package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

// MaxTokenTTLDays bounds JWT_EXPIRATION so the lifetime fits a time.Duration.
const MaxTokenTTLDays = 3650

type Config struct {
	Env          string
	ServerPort   int
	APIPrefix    string
	StoreBackend string
	Log          LogConfig
	Database     DatabaseConfig
	Auth         AuthConfig
	MQ           MQConfig
	Storage      StorageConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// AuthConfig holds the signing and hashing parameters. Issuance and
// verification must share the same values for a token to validate.
type AuthConfig struct {
	Secret     string
	Algorithm  string
	Issuer     string
	Audience   string
	TokenTTL   time.Duration
	BcryptCost int
}

type MQConfig struct {
	Backend  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

type StorageConfig struct {
	Backend string
	Minio   MinioConfig
	GCS     GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "fastcrud"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "fastcrud_db"),
		UseSSL:   getEnvBool("DB_SSL", false),
	}

	authConfig := AuthConfig{
		Secret:     strings.TrimSpace(getEnv("JWT_SECRET", "")),
		Algorithm:  strings.ToUpper(getEnv("JWT_ALGORITHM", "HS512")),
		Issuer:     getEnv("JWT_ISSUER", "fastcrud-auth"),
		Audience:   getEnv("JWT_AUDIENCE", "fastcrud-auth"),
		TokenTTL:   tokenTTL(getEnvInt("JWT_EXPIRATION", 1)),
		BcryptCost: getEnvInt("BCRYPT_COST", 10),
	}

	mqConfig := MQConfig{
		Backend: strings.ToLower(getEnv("MQ_BACKEND", "")),
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}

	storageConfig := StorageConfig{
		Backend: strings.ToLower(getEnv("STORAGE_BACKEND", "")),
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "fastcrud-exports"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GCS: GCSConfig{
			Bucket:          getEnv("GCS_BUCKET", ""),
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
	}

	return Config{
		Env:          getEnv("ENV", ""),
		ServerPort:   getEnvInt("SERVER_PORT", 8080),
		APIPrefix:    getEnv("API_PREFIX", "/api/v1"),
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", StoreBackendPostgres)),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Database: dbConfig,
		Auth:     authConfig,
		MQ:       mqConfig,
		Storage:  storageConfig,
	}
}

// Validate reports configuration that the server cannot start with.
func (c Config) Validate() error {
	if c.Auth.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.Auth.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported JWT_ALGORITHM %q", c.Auth.Algorithm)
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("JWT_EXPIRATION must be positive")
	}
	if c.Auth.TokenTTL > MaxTokenTTLDays*24*time.Hour {
		return fmt.Errorf("JWT_EXPIRATION must not exceed %d days", MaxTokenTTLDays)
	}
	switch c.StoreBackend {
	case StoreBackendPostgres, StoreBackendMemory:
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}

// tokenTTL converts days to a duration. Counts outside 0..MaxTokenTTLDays
// are clamped just past the range so Validate rejects them instead of a
// wrapped product.
func tokenTTL(days int) time.Duration {
	switch {
	case days > MaxTokenTTLDays:
		days = MaxTokenTTLDays + 1
	case days < 0:
		days = 0
	}
	return time.Duration(days) * 24 * time.Hour
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}
