package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Sync     SyncConfig
	Terminal TerminalConfig
	Tracing  TracingConfig
}

type ServerConfig struct {
	AppEnv         string
	GRPCPort       string
	HTTPPort       string
	AllowedOrigins []string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
	// Upper bound for every remote call. A call that exceeds it is failed, never retried.
	RemoteTimeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers       []string
	PaymentsTopic string
	GroupID       string
	Enabled       bool
}

type SyncConfig struct {
	DrainInterval     time.Duration
	ProbeInterval     time.Duration
	IdempotencyWindow time.Duration
}

// TerminalConfig identifies the tenant and branch this agent mirrors.
type TerminalConfig struct {
	TenantID   string
	LocationID string
}

// TracingConfig points spans at an OTLP/HTTP collector. No endpoint, no tracing.
type TracingConfig struct {
	Endpoint    string
	Insecure    bool
	ServiceName string
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:         getEnv("APP_ENV", "dev"),
			GRPCPort:       getEnv("GRPC_PORT", ":8082"),
			HTTPPort:       getEnv("HTTP_PORT", ":8090"),
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnv("POSTGRES_PORT", "5433"),
			User:            getEnv("POSTGRES_USER", "omnipos"),
			Password:        getEnv("POSTGRES_PASSWORD", "omnipos"),
			DBName:          getEnv("POSTGRES_DB", "omnipos_core"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
			RemoteTimeout:   getEnvDuration("REMOTE_TIMEOUT", 8*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			PaymentsTopic: getEnv("KAFKA_TOPIC_PAYMENTS", "payments.notifications"),
			GroupID:       getEnv("KAFKA_GROUP_TERMINAL", "pos-terminal"),
			Enabled:       getEnvBool("KAFKA_ENABLED", false),
		},
		Sync: SyncConfig{
			DrainInterval:     getEnvDuration("SYNC_DRAIN_INTERVAL", 30*time.Second),
			ProbeInterval:     getEnvDuration("SYNC_PROBE_INTERVAL", 10*time.Second),
			IdempotencyWindow: getEnvDuration("IDEMPOTENCY_WINDOW", 10*time.Minute),
		},
		Terminal: TerminalConfig{
			TenantID:   getEnv("TERMINAL_TENANT_ID", ""),
			LocationID: getEnv("TERMINAL_LOCATION_ID", ""),
		},
		Tracing: TracingConfig{
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Insecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "omnipos-offline-sync"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
