package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort int

	DBDriver         string
	DBDataSourceName string
	MigrationsDir    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	WebhookSecret string
	AdminToken    string

	TicketPrice    float64
	Capacity       int
	MaxPerPurchase int
	Prizes         []float64
	BotFee         float64

	PendingInvoiceTTL time.Duration
	StatusCacheTTL    time.Duration
	ProgressInterval  time.Duration
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: no .env file found, relying on environment")
	}

	config := &Config{}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.ServerPort = p
		}
	}
	if config.ServerPort == 0 {
		config.ServerPort = 8041
	}

	config.DBDriver = getEnvOrDefault("LOTTERY_DB_DRIVER", "postgres")

	dbHost := getEnvOrDefault("LOTTERY_DB_HOST", "localhost")
	dbPort := getEnvOrDefault("LOTTERY_DB_PORT", "5432")
	dbName := getEnvOrDefault("LOTTERY_DB_DATABASE", "lotteryDB")
	dbUser := getEnvOrDefault("LOTTERY_DB_USERNAME", "root")
	dbPassword := getEnvOrDefault("LOTTERY_DB_PASSWORD", "1234")

	config.DBDataSourceName = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbUser, dbPassword, dbHost, dbPort, dbName)
	config.MigrationsDir = getEnvOrDefault("MIGRATIONS_DIR", "migrations")

	redisHost := getEnvOrDefault("LOTTERY_REDIS_HOST", "localhost")
	redisPort := getEnvOrDefault("LOTTERY_REDIS_PORT", "6379")
	config.RedisAddr = fmt.Sprintf("%s:%s", redisHost, redisPort)
	config.RedisPassword = os.Getenv("LOTTERY_REDIS_PASSWORD")
	config.RedisDB = getEnvInt("LOTTERY_REDIS_DB", 0)

	config.WebhookSecret = getEnvOrDefault("LOTTERY_WEBHOOK_SECRET", "change_this_secret")
	config.AdminToken = os.Getenv("LOTTERY_ADMIN_TOKEN")

	config.TicketPrice = getEnvFloat("LOTTERY_TICKET_PRICE", 0.5)
	config.Capacity = getEnvInt("LOTTERY_CAPACITY", 10000)
	config.MaxPerPurchase = getEnvInt("LOTTERY_MAX_PER_PURCHASE", 100)
	config.Prizes = getEnvFloats("LOTTERY_PRIZES", []float64{2500, 1500, 500})
	config.BotFee = getEnvFloat("LOTTERY_BOT_FEE", 500)

	config.PendingInvoiceTTL = time.Hour
	config.StatusCacheTTL = 5 * time.Second
	config.ProgressInterval = 10 * time.Minute

	if config.TicketPrice <= 0 {
		return nil, fmt.Errorf("ticket price must be positive, got %v", config.TicketPrice)
	}
	if config.Capacity < 1 {
		return nil, fmt.Errorf("capacity must be positive, got %d", config.Capacity)
	}
	if config.MaxPerPurchase < 1 {
		return nil, fmt.Errorf("max per purchase must be positive, got %d", config.MaxPerPurchase)
	}
	if len(config.Prizes) == 0 {
		return nil, fmt.Errorf("at least one prize must be configured")
	}

	return config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvFloats(key string, defaultValue []float64) []float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	parsed := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return defaultValue
		}
		parsed = append(parsed, v)
	}
	return parsed
}
