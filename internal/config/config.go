package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Stripe   StripeConfig
	Booking  BookingConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

type StripeConfig struct {
	SecretKey      string
	Currency       string
	GatewayTimeout time.Duration
	// DemoMode marks gateway failures as completed payments. Local
	// development only.
	DemoMode bool
}

type BookingConfig struct {
	HoldTTL       time.Duration
	SweepInterval time.Duration
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverHost := os.Getenv("SERVER_HOST")
	if serverHost == "" {
		serverHost = "localhost"
	}

	serverPortStr := os.Getenv("SERVER_PORT")
	if serverPortStr == "" {
		serverPortStr = "8080"
	}

	serverPort, err := strconv.Atoi(serverPortStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid SERVER_PORT: %w", op, err)
	}

	serverCfg := ServerConfig{
		Host: serverHost,
		Port: serverPort,
	}

	postgresHost := os.Getenv("POSTGRES_HOST")
	if postgresHost == "" {
		postgresHost = "localhost"
	}

	postgresPortStr := os.Getenv("POSTGRES_PORT")
	if postgresPortStr == "" {
		postgresPortStr = "5432"
	}

	postgresPort, err := strconv.Atoi(postgresPortStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid POSTGRES_PORT: %w", op, err)
	}

	postgresUser := os.Getenv("POSTGRES_USER")
	if postgresUser == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
	}

	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if postgresPassword == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
	}

	postgresDB := os.Getenv("POSTGRES_DB")
	if postgresDB == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
	}

	postgresSSLMode := os.Getenv("POSTGRES_SSLMODE")
	if postgresSSLMode == "" {
		postgresSSLMode = "disable"
	}

	postgresCfg := PostgresConfig{
		User:     postgresUser,
		Password: postgresPassword,
		Name:     postgresDB,
		Host:     postgresHost,
		Port:     postgresPort,
		SSLMode:  postgresSSLMode,
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisCfg := RedisConfig{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	}

	stripeCurrency := os.Getenv("STRIPE_CURRENCY")
	if stripeCurrency == "" {
		stripeCurrency = "inr"
	}

	gatewayTimeout, err := durationEnv("STRIPE_GATEWAY_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	stripeCfg := StripeConfig{
		SecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
		Currency:       stripeCurrency,
		GatewayTimeout: gatewayTimeout,
		DemoMode:       os.Getenv("PAYMENT_DEMO_MODE") == "true",
	}

	holdTTL, err := durationEnv("BOOKING_HOLD_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sweepInterval, err := durationEnv("BOOKING_SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// A ticker interval must be positive.
	if holdTTL <= 0 {
		holdTTL = 15 * time.Minute
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}

	bookingCfg := BookingConfig{
		HoldTTL:       holdTTL,
		SweepInterval: sweepInterval,
	}

	return &Config{
		Server:   serverCfg,
		Postgres: postgresCfg,
		Redis:    redisCfg,
		Stripe:   stripeCfg,
		Booking:  bookingCfg,
	}, nil
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}

	return d, nil
}
