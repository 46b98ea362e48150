package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Stripe    StripeConfig
	Mail      MailConfig
	Kafka     KafkaConfig
}

type ServerConfig struct {
	Port               string
	Env                string
	CORSAllowedOrigins []string
}

// AppConfig holds settings used to build links back to the API and the web frontend
type AppConfig struct {
	URL         string
	FrontendURL string
	Key         string
	SeedData    bool
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret       string
	AccessExpiry int // in minutes
}

type RateLimitConfig struct {
	VerificationRequests int
	VerificationWindow   time.Duration
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

type MailConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	Enabled     bool
}

type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
}

// IsProduction reports whether the server runs with production settings
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func Load() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("APP_URL", "http://localhost:8080")
	viper.SetDefault("FRONTEND_URL", "http://localhost:3000")
	viper.SetDefault("SEED_DATA", false)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("JWT_ACCESS_EXPIRY", 60*24)
	viper.SetDefault("VERIFICATION_RATE_LIMIT", 6)
	viper.SetDefault("VERIFICATION_RATE_WINDOW", "1m")
	viper.SetDefault("STRIPE_CURRENCY", "usd")
	viper.SetDefault("MAIL_PORT", 587)
	viper.SetDefault("MAIL_FROM_ADDRESS", "noreply@storefront.local")
	viper.SetDefault("KAFKA_TOPIC_PREFIX", "storefront")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	mailHost := viper.GetString("MAIL_HOST")

	return &Config{
		Server: ServerConfig{
			Port:               viper.GetString("SERVER_PORT"),
			Env:                viper.GetString("SERVER_ENV"),
			CORSAllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
		App: AppConfig{
			URL:         strings.TrimRight(viper.GetString("APP_URL"), "/"),
			FrontendURL: strings.TrimRight(viper.GetString("FRONTEND_URL"), "/"),
			Key:         appKey(),
			SeedData:    viper.GetBool("SEED_DATA"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:       viper.GetString("JWT_SECRET"),
			AccessExpiry: viper.GetInt("JWT_ACCESS_EXPIRY"),
		},
		RateLimit: RateLimitConfig{
			VerificationRequests: viper.GetInt("VERIFICATION_RATE_LIMIT"),
			VerificationWindow:   viper.GetDuration("VERIFICATION_RATE_WINDOW"),
		},
		Stripe: StripeConfig{
			SecretKey:     viper.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret: viper.GetString("STRIPE_WEBHOOK_SECRET"),
			Currency:      strings.ToLower(viper.GetString("STRIPE_CURRENCY")),
		},
		Mail: MailConfig{
			Host:        mailHost,
			Port:        viper.GetInt("MAIL_PORT"),
			Username:    viper.GetString("MAIL_USERNAME"),
			Password:    viper.GetString("MAIL_PASSWORD"),
			FromAddress: viper.GetString("MAIL_FROM_ADDRESS"),
			Enabled:     mailHost != "",
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(viper.GetString("KAFKA_BROKERS")),
			TopicPrefix: viper.GetString("KAFKA_TOPIC_PREFIX"),
		},
	}
}

// appKey signs verification links; it falls back to the JWT secret when unset
func appKey() string {
	if key := viper.GetString("APP_KEY"); key != "" {
		return key
	}
	return viper.GetString("JWT_SECRET")
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
