package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the full service configuration, read from the environment.
type Config struct {
	Env      string `envconfig:"ENV" default:"development"`
	Port     string `envconfig:"PORT" default:"3000"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	CORSOrigins string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`
	JWTSecret   string `envconfig:"JWT_SECRET" default:"parkpay-dev-secret"`
	// RateLimit caps mutating API calls per caller per minute; 0 disables it.
	RateLimit       int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	// SystemKeyHash is the bcrypt hash of the key used by gate controllers.
	SystemKeyHash string `envconfig:"SYSTEM_KEY_HASH"`

	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	Transfer TransferConfig
	Wallet   WalletConfig
	Payment  PaymentRequestConfig
	Events   EventsConfig
}

type DatabaseConfig struct {
	Driver          string        `envconfig:"DB_DRIVER" default:"postgres"`
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"postgres"`
	Password        string        `envconfig:"DB_PASSWORD" default:"postgres"`
	Name            string        `envconfig:"DB_NAME" default:"parkpay"`
	SSLMode         string        `envconfig:"DB_SSLMODE" default:"disable"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"100"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DB_CONN_MAX_IDLE_TIME" default:"30m"`
}

// DSN builds the postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}

type RedisConfig struct {
	Enabled  bool          `envconfig:"REDIS_ENABLED" default:"true"`
	Host     string        `envconfig:"REDIS_HOST" default:"localhost"`
	Port     string        `envconfig:"REDIS_PORT" default:"6379"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	TTL      time.Duration `envconfig:"REDIS_WALLET_TTL" default:"5m"`
}

type NATSConfig struct {
	Enabled       bool          `envconfig:"NATS_ENABLED" default:"false"`
	URL           string        `envconfig:"NATS_URL" default:"nats://localhost:4222"`
	Name          string        `envconfig:"NATS_CLIENT_NAME" default:"parkpay"`
	Stream        string        `envconfig:"NATS_STREAM" default:"PARKPAY_EVENTS"`
	MaxReconnects int           `envconfig:"NATS_MAX_RECONNECTS" default:"10"`
	ReconnectWait time.Duration `envconfig:"NATS_RECONNECT_WAIT" default:"2s"`
}

type TransferConfig struct {
	MaxAttempts int           `envconfig:"TRANSFER_MAX_ATTEMPTS" default:"3"`
	RetryBase   time.Duration `envconfig:"TRANSFER_RETRY_BASE" default:"20ms"`

	// BankMode is "sandbox" or "live". Live deposits stay PENDING until settled.
	BankMode            string `envconfig:"BANK_MODE" default:"sandbox"`
	WithdrawalFeeBPS    int64  `envconfig:"WITHDRAWAL_FEE_BPS" default:"0"`
	PlatformFeeWalletID string `envconfig:"PLATFORM_FEE_WALLET_ID"`
	LimitTimezone       string `envconfig:"LIMIT_TIMEZONE" default:"Asia/Kolkata"`
}

type WalletConfig struct {
	DefaultCurrency       string `envconfig:"WALLET_DEFAULT_CURRENCY" default:"INR"`
	DefaultDailyLimit     int64  `envconfig:"WALLET_DAILY_LIMIT" default:"2000000"`
	DefaultMonthlyLimit   int64  `envconfig:"WALLET_MONTHLY_LIMIT" default:"20000000"`
	DefaultSingleTxnLimit int64  `envconfig:"WALLET_SINGLE_TXN_LIMIT" default:"500000"`
}

type PaymentRequestConfig struct {
	DefaultTTL time.Duration `envconfig:"PAYMENT_REQUEST_TTL" default:"15m"`
	MaxTTL     time.Duration `envconfig:"PAYMENT_REQUEST_MAX_TTL" default:"168h"`
	QRBaseURL  string        `envconfig:"PAYMENT_QR_BASE" default:"parkpay://pay"`
}

type EventsConfig struct {
	QueueSize   int           `envconfig:"EVENT_QUEUE_SIZE" default:"1024"`
	MaxAttempts int           `envconfig:"EVENT_MAX_ATTEMPTS" default:"3"`
	RetryBase   time.Duration `envconfig:"EVENT_RETRY_BASE" default:"100ms"`
}

// Load reads .env (if any) and processes the environment into a Config.
func Load() (*Config, error) {
	LoadEnv()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}

// LoadEnv loads variables from a .env file if present.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found: %v", err)
	}
}

// GetEnv returns an environment variable or a default value.
func GetEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

// GetIntEnv returns an int environment variable or a default value.
func GetIntEnv(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// IsProduction checks if the app runs in production mode.
func IsProduction() bool {
	return GetEnv("ENV", "development") == "production"
}

// IsProduction reports whether this configuration targets production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// SandboxBanking reports whether deposits settle against the sandbox mirror.
func (c TransferConfig) SandboxBanking() bool {
	return c.BankMode != "live"
}

// Location resolves the timezone used for daily and monthly limit windows.
func (c TransferConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.LimitTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid LIMIT_TIMEZONE %q: %w", c.LimitTimezone, err)
	}
	return loc, nil
}
