package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr         string `mapstructure:"REDIS_ADDR"`
	RedisPassword     string `mapstructure:"REDIS_PASSWORD"`
	RedisSessionDB    int    `mapstructure:"REDIS_SESSION_DB"`
	RedisQueueDB      int    `mapstructure:"REDIS_QUEUE_DB"`
	SessionTTLMinutes int    `mapstructure:"SESSION_TTL_MINUTES"`

	// VTU aggregator.
	VTUBaseURL        string `mapstructure:"VTU_BASE_URL"`
	VTUAPIKey         string `mapstructure:"VTU_API_KEY"`
	VTUServer         string `mapstructure:"VTU_SERVER"`
	VTUTimeoutSeconds int    `mapstructure:"VTU_TIMEOUT_SECONDS"`

	// Payment gateway.
	PaymentGateway       string `mapstructure:"PAYMENT_GATEWAY"`
	PaystackPublicKey    string `mapstructure:"PAYSTACK_PUBLIC_KEY"`
	StripeKey            string `mapstructure:"STRIPE_KEY"`
	StripePublishableKey string `mapstructure:"STRIPE_PUBLISHABLE_KEY"`
	Currency             string `mapstructure:"CURRENCY"`
	GuestEmail           string `mapstructure:"GUEST_EMAIL"`

	// Fulfillment notification queue.
	FulfillmentQueue        bool `mapstructure:"FULFILLMENT_QUEUE"`
	FulfillmentDelaySeconds int  `mapstructure:"FULFILLMENT_DELAY_SECONDS"`

	// Demo auth.
	JWTSecret    string `mapstructure:"JWT_SECRET"`
	DemoEmail    string `mapstructure:"DEMO_EMAIL"`
	DemoPassword string `mapstructure:"DEMO_PASSWORD"`
}

var AppConfig Config

func LoadConfig() {
	// A local .env is optional; real deployments pass plain environment variables.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func setDefaults() {
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 200)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_SESSION_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 1)
	viper.SetDefault("SESSION_TTL_MINUTES", 30)
	viper.SetDefault("VTU_BASE_URL", "")
	viper.SetDefault("VTU_API_KEY", "")
	viper.SetDefault("VTU_SERVER", "1")
	viper.SetDefault("VTU_TIMEOUT_SECONDS", 15)
	viper.SetDefault("PAYMENT_GATEWAY", "paystack")
	viper.SetDefault("PAYSTACK_PUBLIC_KEY", "")
	viper.SetDefault("STRIPE_KEY", "")
	viper.SetDefault("STRIPE_PUBLISHABLE_KEY", "")
	viper.SetDefault("CURRENCY", "NGN")
	viper.SetDefault("GUEST_EMAIL", "guest@oplugy.com")
	viper.SetDefault("FULFILLMENT_QUEUE", true)
	viper.SetDefault("FULFILLMENT_DELAY_SECONDS", 3)
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("DEMO_EMAIL", "demo@oplugy.com")
	viper.SetDefault("DEMO_PASSWORD", "password123")
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// SessionTTL is how long funnel sessions, handoff slots and notice feeds live in Redis.
func SessionTTL() time.Duration {
	if AppConfig.SessionTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(AppConfig.SessionTTLMinutes) * time.Minute
}

// VTUTimeout bounds every call to the aggregator.
func VTUTimeout() time.Duration {
	if AppConfig.VTUTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(AppConfig.VTUTimeoutSeconds) * time.Second
}

// FulfillmentDelay is the pause between a successful payment and the success notice.
func FulfillmentDelay() time.Duration {
	if AppConfig.FulfillmentDelaySeconds < 0 {
		return 0
	}
	return time.Duration(AppConfig.FulfillmentDelaySeconds) * time.Second
}
