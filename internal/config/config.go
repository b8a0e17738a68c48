package config

import (
	"fmt"
	"log"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Environment string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	Store       string `mapstructure:"STORE"`
	DBDSN       string `mapstructure:"DB_DSN"`
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`

	BusinessTimezone  string        `mapstructure:"BUSINESS_TIMEZONE"`
	MaxBookingsPerDay int           `mapstructure:"BOOKING_MAX_PER_DAY"`
	SlotCapacity      int           `mapstructure:"BOOKING_SLOT_CAPACITY"`
	CORSOrigins       string        `mapstructure:"CORS_ORIGINS"`
	ShutdownTimeout   time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	JWTTTL    time.Duration `mapstructure:"JWT_TTL"`

	// Redis нужен для очереди уведомлений и общего rate limit
	RedisAddr       string `mapstructure:"REDIS_ADDR"`
	RedisPassword   string `mapstructure:"REDIS_PASSWORD"`
	RedisDB         int    `mapstructure:"REDIS_DB"`
	RateLimitPerMin int    `mapstructure:"RATE_LIMIT_PER_MIN"`

	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     string `mapstructure:"SMTP_PORT"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`

	TelegramToken string `mapstructure:"TELEGRAM_TOKEN"`

	NotifyQueue   string `mapstructure:"NOTIFY_QUEUE"`
	NotifyWorkers int    `mapstructure:"NOTIFY_WORKERS"`

	CompanyName string `mapstructure:"COMPANY_NAME"`
	SiteURL     string `mapstructure:"SITE_URL"`
}

var defaults = map[string]any{
	"ENV":                   "development",
	"LOG_LEVEL":             "",
	"STORE":                 StorePostgres,
	"DB_DSN":                "",
	"HTTP_ADDR":             ":8080",
	"BUSINESS_TIMEZONE":     "Asia/Ho_Chi_Minh",
	"BOOKING_MAX_PER_DAY":   3,
	"BOOKING_SLOT_CAPACITY": 2,
	"CORS_ORIGINS":          "*",
	"SHUTDOWN_TIMEOUT":      "10s",
	"JWT_SECRET":            "",
	"JWT_TTL":               "24h",
	"REDIS_ADDR":            "",
	"REDIS_PASSWORD":        "",
	"REDIS_DB":              0,
	"RATE_LIMIT_PER_MIN":    120,
	"KAFKA_BROKERS":         "",
	"KAFKA_TOPIC":           "appointments.events",
	"SMTP_HOST":             "",
	"SMTP_PORT":             "587",
	"SMTP_FROM":             "",
	"SMTP_USERNAME":         "",
	"SMTP_PASSWORD":         "",
	"TELEGRAM_TOKEN":        "",
	"NOTIFY_QUEUE":          "notifications",
	"NOTIFY_WORKERS":        2,
	"COMPANY_NAME":          "Service Center",
	"SITE_URL":              "",
}

// Load читает .env (если есть) и переменные окружения
func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	return FromEnv(viper.New())
}

// FromEnv собирает конфиг из окружения через переданный экземпляр viper
func FromEnv(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required but not set")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE %q: expected %s or %s", c.Store, StorePostgres, StoreMemory)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	if c.MaxBookingsPerDay <= 0 || c.SlotCapacity <= 0 {
		return fmt.Errorf("BOOKING_MAX_PER_DAY and BOOKING_SLOT_CAPACITY must be positive")
	}
	return nil
}

// Location часовой пояс, в котором действуют правила записи
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return nil, fmt.Errorf("load BUSINESS_TIMEZONE %q: %w", c.BusinessTimezone, err)
	}
	return loc, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// CORSOriginList разбирает CORS_ORIGINS через запятую
func (c *Config) CORSOriginList() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}
