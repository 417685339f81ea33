package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

type Config struct {
	ServiceName string
	LoggerLevel string

	AppPort int

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string

	RabbitHost     string
	RabbitPort     int
	RabbitUser     string
	RabbitPassword string

	GatewayBaseURL   string
	GatewayKeyID     string
	GatewayKeySecret string
	Currency         string

	AssignmentRadiusKm float64
	AssignmentTimeout  time.Duration
	CancelWindow       time.Duration
}

func Load() Config {
	_ = godotenv.Load(".env")

	cfg := Config{}

	cfg.ServiceName = cast.ToString(getOrReturnDefault("SERVICE_NAME", "harshuu"))
	cfg.LoggerLevel = cast.ToString(getOrReturnDefault("LOGGER_LEVEL", "debug"))
	cfg.AppPort = cast.ToInt(getOrReturnDefault("APP_PORT", 8080))

	cfg.PostgresHost = cast.ToString(getOrReturnDefault("POSTGRES_HOST", "localhost"))
	cfg.PostgresPort = cast.ToString(getOrReturnDefault("POSTGRES_PORT", "5432"))
	cfg.PostgresUser = cast.ToString(getOrReturnDefault("POSTGRES_USER", "postgres"))
	cfg.PostgresPassword = cast.ToString(getOrReturnDefault("POSTGRES_PASSWORD", "1234"))
	cfg.PostgresDB = cast.ToString(getOrReturnDefault("POSTGRES_DB", "harshuu"))

	cfg.RabbitHost = cast.ToString(getOrReturnDefault("RABBIT_HOST", "localhost"))
	cfg.RabbitPort = cast.ToInt(getOrReturnDefault("RABBIT_PORT", 5672))
	cfg.RabbitUser = cast.ToString(getOrReturnDefault("RABBIT_USER", "guest"))
	cfg.RabbitPassword = cast.ToString(getOrReturnDefault("RABBIT_PASSWORD", "guest"))

	cfg.GatewayBaseURL = cast.ToString(getOrReturnDefault("GATEWAY_BASE_URL", "https://api.razorpay.com/v1"))
	cfg.GatewayKeyID = cast.ToString(getOrReturnDefault("GATEWAY_KEY_ID", ""))
	cfg.GatewayKeySecret = cast.ToString(getOrReturnDefault("GATEWAY_KEY_SECRET", ""))
	cfg.Currency = cast.ToString(getOrReturnDefault("CURRENCY", "INR"))

	cfg.AssignmentRadiusKm = cast.ToFloat64(getOrReturnDefault("ASSIGNMENT_RADIUS_KM", 6.0))
	cfg.AssignmentTimeout = time.Duration(cast.ToInt(getOrReturnDefault("ASSIGNMENT_TIMEOUT_SEC", 15))) * time.Second
	cfg.CancelWindow = time.Duration(cast.ToInt(getOrReturnDefault("CANCEL_WINDOW_MIN", 5))) * time.Minute

	return cfg
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}
