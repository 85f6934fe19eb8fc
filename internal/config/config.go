package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUser  string
	DBPass  string
	DBHost  string
	DBPort  string
	DBName  string
	SSLMode string

	RedisHost string
	RedisPort string

	NatsHost string
	NatsPort string

	ApiPort string

	AuthJWTSecret string

	GatewayURL     string
	GatewayAPIKey  string
	GatewayModel   string
	GatewayTimeout time.Duration

	VideoEnabled    bool
	RefundOnFailure bool
	SignupBonus     int64

	RateLimitRPS   float64
	RateLimitBurst int
}

// New loads and validates configuration from environment variables.
// Generation gateway credentials are required: the service refuses to start
// half-configured rather than fail on the first paid request.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:  os.Getenv("SPARKFEED_POSTGRES_USER"),
		DBPass:  os.Getenv("SPARKFEED_POSTGRES_PASSWORD"),
		DBHost:  os.Getenv("SPARKFEED_POSTGRES_HOST"),
		DBPort:  os.Getenv("SPARKFEED_POSTGRES_PORT"),
		DBName:  os.Getenv("SPARKFEED_POSTGRES_DB"),
		SSLMode: os.Getenv("SPARKFEED_POSTGRES_SSLMODE"),

		RedisHost: os.Getenv("SPARKFEED_REDIS_HOST"),
		RedisPort: os.Getenv("SPARKFEED_REDIS_PORT"),

		NatsHost: os.Getenv("SPARKFEED_NATS_HOST"),
		NatsPort: os.Getenv("SPARKFEED_NATS_PORT"),

		ApiPort: os.Getenv("SPARKFEED_API_PORT"),

		AuthJWTSecret: os.Getenv("SPARKFEED_AUTH_JWT_SECRET"),

		GatewayURL:     os.Getenv("SPARKFEED_GATEWAY_URL"),
		GatewayAPIKey:  os.Getenv("SPARKFEED_GATEWAY_API_KEY"),
		GatewayModel:   os.Getenv("SPARKFEED_GATEWAY_MODEL"),
		GatewayTimeout: getEnvDuration("SPARKFEED_GATEWAY_TIMEOUT", 60*time.Second),

		VideoEnabled:    os.Getenv("SPARKFEED_VIDEO_ENABLED") == "true",
		RefundOnFailure: os.Getenv("SPARKFEED_REFUND_ON_FAILURE") == "true",
		SignupBonus:     getEnvInt64("SPARKFEED_SIGNUP_BONUS", 100),

		RateLimitRPS:   getEnvFloat("SPARKFEED_RATE_LIMIT_RPS", 0),
		RateLimitBurst: int(getEnvInt64("SPARKFEED_RATE_LIMIT_BURST", 5)),
	}

	// Required: database
	if cfg.DBUser == "" || cfg.DBHost == "" || cfg.DBName == "" || cfg.SSLMode == "" {
		return nil, fmt.Errorf("missing required env for database: SPARKFEED_POSTGRES_USER/HOST/DB/SSLMODE")
	}

	// Required: redis
	if cfg.RedisHost == "" || cfg.RedisPort == "" {
		return nil, fmt.Errorf("missing required env for redis: SPARKFEED_REDIS_HOST/PORT")
	}

	// Required: nats
	if cfg.NatsHost == "" || cfg.NatsPort == "" {
		return nil, fmt.Errorf("missing required env for nats: SPARKFEED_NATS_HOST/PORT")
	}

	// Required: HTTP API
	if cfg.ApiPort == "" {
		return nil, fmt.Errorf("missing required env: SPARKFEED_API_PORT")
	}

	// Required: auth
	if cfg.AuthJWTSecret == "" {
		return nil, fmt.Errorf("missing required env: SPARKFEED_AUTH_JWT_SECRET")
	}

	// Required: generation gateway
	if cfg.GatewayURL == "" || cfg.GatewayAPIKey == "" || cfg.GatewayModel == "" {
		return nil, fmt.Errorf("missing required env for gateway: SPARKFEED_GATEWAY_URL/API_KEY/MODEL")
	}

	if cfg.SignupBonus < 0 {
		return nil, fmt.Errorf("SPARKFEED_SIGNUP_BONUS must be >= 0")
	}

	return cfg, nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName, c.SSLMode)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func (c *Config) NatsAddr() string {
	return fmt.Sprintf("nats://%s:%s", c.NatsHost, c.NatsPort)
}

func (c *Config) ApiAddr() string {
	return ":" + c.ApiPort
}

func getEnvInt64(key string, defaultVal int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	intVal, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultVal
	}
	return intVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	floatVal, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return floatVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
