package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported values for DB_DRIVER and PRICE_BACKEND
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	PriceBackendGorm   = "gorm"
	PriceBackendMongo  = "mongo"
	PriceBackendMemory = "memory"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string
	LogFormat   string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	PriceBackend  string
	MongoURI      string
	MongoDatabase string

	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisPriceTTL time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	QuoteURLTemplate string
	QuoteTimeout     time.Duration
	UpdateInterval   time.Duration

	HistoryEnabled   bool
	HistoryPath      string
	HistoryRetention time.Duration

	LookupRatePerSec float64
	LookupBurst      int
	WSMaxClients     int
}

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	config := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "console"),

		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "watchlist"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "data/watchlist.db"),

		PriceBackend:  strings.ToLower(getEnv("PRICE_BACKEND", PriceBackendGorm)),
		MongoURI:      getEnv("MONGODB_URI", ""),
		MongoDatabase: getEnv("MONGODB_DATABASE", "watchlist"),

		RedisEnabled:  getEnvBool("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisPriceTTL: time.Duration(getEnvInt("REDIS_PRICE_TTL_SEC", 0)) * time.Second,

		KafkaBrokers: splitCSV(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "prices"),

		QuoteURLTemplate: getEnv("QUOTE_URL_TEMPLATE", "https://stooq.com/q/l/?s=%s&f=sd2t2ohlcv&h&e=csv"),
		QuoteTimeout:     time.Duration(getEnvInt("QUOTE_TIMEOUT_SEC", 10)) * time.Second,
		UpdateInterval:   time.Duration(getEnvInt("STOCKS_UPDATE_MS", 5000)) * time.Millisecond,

		HistoryEnabled:   getEnvBool("HISTORY_ENABLED", true),
		HistoryPath:      getEnv("HISTORY_PATH", "data/price_history.db"),
		HistoryRetention: time.Duration(getEnvInt("HISTORY_RETENTION_DAYS", 30)) * 24 * time.Hour,

		LookupRatePerSec: getEnvFloat("LOOKUP_RATE_PER_SEC", 5),
		LookupBurst:      getEnvInt("LOOKUP_BURST", 10),
		WSMaxClients:     getEnvInt("WS_MAX_CLIENTS", 100),
	}

	if err := config.validate(); err != nil {
		return config, err
	}
	return config, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.PriceBackend {
	case PriceBackendGorm, PriceBackendMemory:
	case PriceBackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("PRICE_BACKEND=mongo requires MONGODB_URI")
		}
	default:
		return fmt.Errorf("unsupported PRICE_BACKEND %q", c.PriceBackend)
	}
	if c.UpdateInterval <= 0 {
		return fmt.Errorf("STOCKS_UPDATE_MS must be positive")
	}
	if !strings.Contains(c.QuoteURLTemplate, "%s") {
		return fmt.Errorf("QUOTE_URL_TEMPLATE must contain a %%s placeholder")
	}
	return nil
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// RedisAddr returns host:port for the Redis client
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// InitDB initializes database connection
func InitDB(cfg *Config, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case DriverPostgres:
		log.Info("connecting to database",
			zap.String("driver", cfg.DBDriver),
			zap.String("host", maskHost(cfg.DBHost)),
			zap.String("port", cfg.DBPort),
			zap.String("user", cfg.DBUser),
			zap.String("dbname", cfg.DBName),
		)
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			cfg.DBHost,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBPort,
			cfg.DBSSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		log.Info("opening sqlite database", zap.String("path", cfg.SQLitePath))
		if err := ensureDir(cfg.SQLitePath); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(cfg.SQLitePath)
	}

	logLevel := logger.Info
	if cfg.IsProduction() {
		logLevel = logger.Error
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection with ping
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Info("database connection verified")
	return db, nil
}

// maskHost masks host for logging, preserving domain structure
func maskHost(host string) string {
	if len(host) <= 3 {
		return "***"
	}
	if len(host) <= 15 {
		return host[:3] + "***"
	}
	return host[:8] + "***" + host[len(host)-10:]
}

func ensureDir(path string) error {
	idx := strings.LastIndexAny(path, `/\`)
	if idx <= 0 {
		return nil
	}
	if err := os.MkdirAll(path[:idx], 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y":
		return true
	case "0", "false", "no", "n":
		return false
	default:
		return defaultValue
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
