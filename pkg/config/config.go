package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Firebase FirebaseConfig
	NATS     NATSConfig
	Dispatch DispatchConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxConns       int
	MinConns       int
	AutoMigrate    bool
	MigrationsPath string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret     string
	Expiration int // in hours
}

// FirebaseConfig holds Firebase Cloud Messaging configuration
type FirebaseConfig struct {
	ProjectID       string
	CredentialsPath string
	Enabled         bool
}

// NATSConfig holds event bus configuration
type NATSConfig struct {
	URL     string
	Enabled bool
}

// DispatchConfig holds the ride-dispatch engine tunables. Defaults match the
// key TTLs the engine relies on for crash recovery, so changing them changes
// recovery behavior too.
type DispatchConfig struct {
	OfferTimeoutSeconds   int     // per-offer acceptance window
	QueueTTLSeconds       int     // overall dispatch lifetime while pending
	AcceptedTTLSeconds    int     // accepted state retention
	ResponseLogTTLSeconds int     // response-log retention
	LivenessTTLSeconds    int     // presence freshness
	SearchRadiusKm        float64 // initial candidate radius
	SearchLimit           int     // maximum candidates per request
	SweepIntervalSeconds  int     // stalled-offer sweeper period
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "ridedispatch"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxConns:       getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:       getEnvAsInt("DB_MIN_CONNS", 5),
			AutoMigrate:    getEnvAsBool("DB_AUTO_MIGRATE", false),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "file://db/migrations"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			Expiration: getEnvAsInt("JWT_EXPIRATION", 24),
		},
		Firebase: FirebaseConfig{
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
			Enabled:         getEnvAsBool("FIREBASE_ENABLED", false),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Enabled: getEnvAsBool("NATS_ENABLED", false),
		},
		Dispatch: DefaultDispatchConfig(),
	}

	loadDispatchOverrides(&cfg.Dispatch)

	return cfg, nil
}

// DefaultDispatchConfig returns the production dispatch defaults.
func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		OfferTimeoutSeconds:   60,
		QueueTTLSeconds:       600,
		AcceptedTTLSeconds:    3600,
		ResponseLogTTLSeconds: 86400,
		LivenessTTLSeconds:    300,
		SearchRadiusKm:        5.0,
		SearchLimit:           10,
		SweepIntervalSeconds:  30,
	}
}

func loadDispatchOverrides(d *DispatchConfig) {
	d.OfferTimeoutSeconds = getEnvAsInt("OFFER_TIMEOUT_SECONDS", d.OfferTimeoutSeconds)
	d.QueueTTLSeconds = getEnvAsInt("QUEUE_TTL_SECONDS", d.QueueTTLSeconds)
	d.AcceptedTTLSeconds = getEnvAsInt("ACCEPTED_TTL_SECONDS", d.AcceptedTTLSeconds)
	d.ResponseLogTTLSeconds = getEnvAsInt("RESPONSE_LOG_TTL_SECONDS", d.ResponseLogTTLSeconds)
	d.LivenessTTLSeconds = getEnvAsInt("LIVENESS_TTL_SECONDS", d.LivenessTTLSeconds)
	d.SearchRadiusKm = getEnvAsFloat("SEARCH_RADIUS_KM", d.SearchRadiusKm)
	d.SearchLimit = getEnvAsInt("SEARCH_LIMIT", d.SearchLimit)
	d.SweepIntervalSeconds = getEnvAsInt("SWEEP_INTERVAL_SECONDS", d.SweepIntervalSeconds)
}

// OfferTimeout returns the per-offer acceptance window as a duration.
func (d DispatchConfig) OfferTimeout() time.Duration {
	return time.Duration(d.OfferTimeoutSeconds) * time.Second
}

// QueueTTL returns the pending dispatch lifetime as a duration.
func (d DispatchConfig) QueueTTL() time.Duration {
	return time.Duration(d.QueueTTLSeconds) * time.Second
}

// AcceptedTTL returns the accepted state retention as a duration.
func (d DispatchConfig) AcceptedTTL() time.Duration {
	return time.Duration(d.AcceptedTTLSeconds) * time.Second
}

// ResponseLogTTL returns the response log retention as a duration.
func (d DispatchConfig) ResponseLogTTL() time.Duration {
	return time.Duration(d.ResponseLogTTLSeconds) * time.Second
}

// LivenessTTL returns the presence freshness window as a duration.
func (d DispatchConfig) LivenessTTL() time.Duration {
	return time.Duration(d.LivenessTTLSeconds) * time.Second
}

// SweepInterval returns the sweeper period as a duration.
func (d DispatchConfig) SweepInterval() time.Duration {
	return time.Duration(d.SweepIntervalSeconds) * time.Second
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// getEnv gets an environment variable with a fallback default
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsFloat gets an environment variable as a float
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as a boolean
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
