package utils

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Gateway   GatewayConfig
	Redis     RedisConfig
	Rabbit    RabbitConfig
	Kafka     KafkaConfig
	Telemetry TelemetryConfig
	Scheduler SchedulerConfig
}

type AppConfig struct {
	Name    string
	Port    string
	Debug   bool
	LogPath string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
}

type JWTConfig struct {
	Secret string
}

type GatewayConfig struct {
	PublicKey     string
	SecretKey     string
	WebhookSecret string
}

type RedisConfig struct {
	URL string
}

type RabbitConfig struct {
	URL      string
	Exchange string
}

type KafkaConfig struct {
	Brokers       []string
	TimelineTopic string
}

type TelemetryConfig struct {
	Endpoint string
}

type SchedulerConfig struct {
	Enabled            bool
	BookingExpiry      time.Duration
	InspectionWorkflow time.Duration
	Settlement         time.Duration
	TimelineRelay      time.Duration
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("APP_NAME", "vehicle-rental")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("RABBIT_EXCHANGE", "rental.notifications")
	viper.SetDefault("KAFKA_TIMELINE_TOPIC", "rental.timeline")
	viper.SetDefault("SCHEDULER_ENABLED", true)
	viper.SetDefault("SCHEDULER_BOOKING_EXPIRY", "15m")
	viper.SetDefault("SCHEDULER_INSPECTION_WORKFLOW", "10m")
	viper.SetDefault("SCHEDULER_SETTLEMENT", "15m")
	viper.SetDefault("SCHEDULER_TIMELINE_RELAY", "30s")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:    viper.GetString("APP_NAME"),
			Port:    viper.GetString("PORT"),
			Debug:   viper.GetBool("DEBUG"),
			LogPath: viper.GetString("LOG_PATH"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASS"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
		},
		Gateway: GatewayConfig{
			PublicKey:     viper.GetString("OMISE_PUBLIC_KEY"),
			SecretKey:     viper.GetString("OMISE_SECRET_KEY"),
			WebhookSecret: viper.GetString("WEBHOOK_SECRET"),
		},
		Redis: RedisConfig{
			URL: viper.GetString("REDIS_URL"),
		},
		Rabbit: RabbitConfig{
			URL:      viper.GetString("RABBIT_URL"),
			Exchange: viper.GetString("RABBIT_EXCHANGE"),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(viper.GetString("KAFKA_BROKERS")),
			TimelineTopic: viper.GetString("KAFKA_TIMELINE_TOPIC"),
		},
		Telemetry: TelemetryConfig{
			Endpoint: viper.GetString("OTEL_ENDPOINT"),
		},
		Scheduler: SchedulerConfig{
			Enabled:            viper.GetBool("SCHEDULER_ENABLED"),
			BookingExpiry:      viper.GetDuration("SCHEDULER_BOOKING_EXPIRY"),
			InspectionWorkflow: viper.GetDuration("SCHEDULER_INSPECTION_WORKFLOW"),
			Settlement:         viper.GetDuration("SCHEDULER_SETTLEMENT"),
			TimelineRelay:      viper.GetDuration("SCHEDULER_TIMELINE_RELAY"),
		},
	}

	return config, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
