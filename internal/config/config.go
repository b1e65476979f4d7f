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

// StatusUpdatePolicy controls who may change a ticket's status.
type StatusUpdatePolicy string

const (
	StatusPolicyOpen          StatusUpdatePolicy = "open"
	StatusPolicyAuthenticated StatusUpdatePolicy = "authenticated"
	StatusPolicyAdmin         StatusUpdatePolicy = "admin"
)

const defaultMapsSearchURL = "https://www.google.com/maps/search/?api=1&query="

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Realtime     RealtimeConfig
	Notification NotificationConfig
	Maps         MapsConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	StatusUpdatePolicy    StatusUpdatePolicy
	AdminUsername         string
	AdminPassword         string
}

// RealtimeConfig tunes the websocket event channel.
type RealtimeConfig struct {
	SendBufferSize      int
	MaxMessageBytes     int64
	PingIntervalSeconds int
	RequireAuth         bool
	ValidateRooms       bool
	OrderedDelivery     bool
}

// NotificationConfig controls the outbound event mirror.
type NotificationConfig struct {
	Enabled      bool
	RedisChannel string
}

// MapsConfig holds the map-search link prefix used for ticket addresses.
type MapsConfig struct {
	SearchBaseURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
// The token signing secret has no default.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	secret := strings.TrimSpace(os.Getenv("AUTH_JWT_SECRET"))
	if secret == "" {
		return nil, errors.New("AUTH_JWT_SECRET is required")
	}

	policy := StatusUpdatePolicy(strings.ToLower(getEnv("AUTH_STATUS_UPDATE_POLICY", string(StatusPolicyOpen))))
	switch policy {
	case StatusPolicyOpen, StatusPolicyAuthenticated, StatusPolicyAdmin:
	default:
		return nil, fmt.Errorf("invalid AUTH_STATUS_UPDATE_POLICY %q", policy)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-desk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             secret,
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			StatusUpdatePolicy:    policy,
			AdminUsername:         os.Getenv("AUTH_BOOTSTRAP_ADMIN_USERNAME"),
			AdminPassword:         os.Getenv("AUTH_BOOTSTRAP_ADMIN_PASSWORD"),
		},
		Realtime: RealtimeConfig{
			SendBufferSize:      getEnvAsInt("REALTIME_SEND_BUFFER", 64),
			MaxMessageBytes:     int64(getEnvAsInt("REALTIME_MAX_MESSAGE_BYTES", 16*1024)),
			PingIntervalSeconds: getEnvAsInt("REALTIME_PING_INTERVAL_SECONDS", 25),
			RequireAuth:         getEnvAsBool("REALTIME_REQUIRE_AUTH", false),
			ValidateRooms:       getEnvAsBool("REALTIME_VALIDATE_ROOMS", false),
			OrderedDelivery:     getEnvAsBool("REALTIME_ORDERED_DELIVERY", true),
		},
		Notification: NotificationConfig{
			Enabled:      getEnvAsBool("NOTIFY_ENABLED", true),
			RedisChannel: getEnv("NOTIFY_REDIS_CHANNEL", "support-desk.events"),
		},
		Maps: MapsConfig{
			SearchBaseURL: getEnv("MAPS_SEARCH_BASE_URL", defaultMapsSearchURL),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// PingInterval returns how often the server pings websocket clients.
func (r RealtimeConfig) PingInterval() time.Duration {
	if r.PingIntervalSeconds <= 0 {
		return 25 * time.Second
	}
	return time.Duration(r.PingIntervalSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
