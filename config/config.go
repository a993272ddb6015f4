package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Supabase      SupabaseConfig
	S3            S3Config
	Stripe        StripeConfig
	Redis         RedisConfig
	Address       AddressConfig
	Scheduler     SchedulerConfig
	Catalog       CatalogConfig
	ObjectBackend string // supabase or s3
	SessionDBPath string
	LogPath       string
	LogLevel      string
	WebhookAddr   string
}

type SupabaseConfig struct {
	URL        string
	AnonKey    string
	ServiceKey string
	DBURL      string
	JWTSecret  string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for DO Spaces, R2, etc.
	AccessKeyID     string
	SecretAccessKey string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	SuccessURL    string
	CancelURL     string
}

type RedisConfig struct {
	Addr     string
	Password string
	TTL      time.Duration
}

type AddressConfig struct {
	LookupURL   string
	CountryCode string
	Debounce    time.Duration
}

type SchedulerConfig struct {
	PublishCron string
}

type CatalogConfig struct {
	PackagesPath string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Supabase: SupabaseConfig{
			URL:        os.Getenv("SUPABASE_URL"),
			AnonKey:    os.Getenv("SUPABASE_ANON_KEY"),
			ServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
			DBURL:      os.Getenv("SUPABASE_DB_URL"),
			JWTSecret:  os.Getenv("SUPABASE_JWT_SECRET"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "ap-southeast-2"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			Currency:      getEnv("STRIPE_CURRENCY", "aud"),
			SuccessURL:    getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/checkout/success"),
			CancelURL:     getEnv("CHECKOUT_CANCEL_URL", "http://localhost:3000/checkout/cancel"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			TTL:      getEnvDuration("ADDRESS_CACHE_TTL", 24*time.Hour),
		},
		Address: AddressConfig{
			LookupURL:   getEnv("ADDRESS_LOOKUP_URL", "https://nominatim.openstreetmap.org"),
			CountryCode: getEnv("ADDRESS_COUNTRY", "au"),
			Debounce:    time.Duration(getEnvInt("ADDRESS_DEBOUNCE_MS", 300)) * time.Millisecond,
		},
		Scheduler: SchedulerConfig{
			PublishCron: getEnv("PUBLISH_CRON", "*/5 * * * *"),
		},
		Catalog: CatalogConfig{
			PackagesPath: getEnv("PACKAGES_PATH", "config/packages.yaml"),
		},
		ObjectBackend: getEnv("OBJECT_BACKEND", "supabase"),
		SessionDBPath: getEnv("SESSION_DB_PATH", "session.db"),
		LogPath:       getEnv("LOG_PATH", "listingdesk.log"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		WebhookAddr:   getEnv("WEBHOOK_ADDR", ":8080"),
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
