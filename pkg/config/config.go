package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// DBConfig 数据库配置
type DBConfig struct {
	Driver          string // postgres | sqlite
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

// ServerConfig 服务配置
type ServerConfig struct {
	Port string
	Env  string
}

// RecrawlConfig 重抓对账配置
type RecrawlConfig struct {
	BatchSize      int
	BatchPause     time.Duration
	Cron           string
	Concurrency    int
	Enabled        bool
	ManualCooldown time.Duration
	// InitialDelay 启动后延迟执行一轮全店铺重抓，0 表示只按 cron 执行
	InitialDelay time.Duration
}

// FeedConfig 商品源配置
type FeedConfig struct {
	// Stores 店铺 ID -> feed 地址
	Stores    map[string]string
	UserAgent string
	PageSize  int
	Timeout   time.Duration
	RPS       float64
	Retries   int
}

// Config 全部配置
type Config struct {
	ServiceName string
	LogLevel    string
	DB          DBConfig
	Server      ServerConfig
	Recrawl     RecrawlConfig
	Feed        FeedConfig
}

// Load 从 .env（可选）与环境变量加载配置
func Load(serviceName string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found, using environment variables\n")
	}

	stores, err := ParseStoreFeeds(getEnv("STORE_FEEDS", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServiceName: serviceName,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DB: DBConfig{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			DSN:             getEnv("DB_DSN", "host=localhost port=5432 user=postgres password=password dbname=recrawl sslmode=disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			LogLevel:        getEnvAsLogLevel("DB_LOG_LEVEL", logger.Warn),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("APP_ENV", "development"),
		},
		Recrawl: RecrawlConfig{
			BatchSize:      getEnvAsInt("RECRAWL_BATCH_SIZE", 50),
			BatchPause:     getEnvAsDuration("RECRAWL_BATCH_PAUSE", 500*time.Millisecond),
			Cron:           getEnv("RECRAWL_CRON", "0 0 */6 * * *"),
			Concurrency:    getEnvAsInt("RECRAWL_CONCURRENCY", 2),
			Enabled:        getEnvAsBool("RECRAWL_ENABLED", true),
			ManualCooldown: getEnvAsDuration("MANUAL_RECRAWL_COOLDOWN", 10*time.Minute),
			InitialDelay:   getEnvAsDuration("RECRAWL_INITIAL_DELAY", 0),
		},
		Feed: FeedConfig{
			Stores:    stores,
			UserAgent: getEnv("FEED_USER_AGENT", "Retail-Recrawl/1.0"),
			PageSize:  getEnvAsInt("FEED_PAGE_SIZE", 100),
			Timeout:   getEnvAsDuration("FEED_TIMEOUT", 20*time.Second),
			RPS:       getEnvAsFloat("FEED_RPS", 2),
			Retries:   getEnvAsInt("FEED_RETRIES", 3),
		},
	}

	if cfg.Recrawl.BatchSize <= 0 {
		return nil, fmt.Errorf("RECRAWL_BATCH_SIZE must be positive, got %d", cfg.Recrawl.BatchSize)
	}
	return cfg, nil
}

// LogFields 启动时打印的配置摘要
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.String("db_driver", c.DB.Driver),
		zap.String("server_port", c.Server.Port),
		zap.Int("batch_size", c.Recrawl.BatchSize),
		zap.Duration("batch_pause", c.Recrawl.BatchPause),
		zap.String("cron", c.Recrawl.Cron),
		zap.Duration("initial_delay", c.Recrawl.InitialDelay),
		zap.Int("stores", len(c.Feed.Stores)),
	}
}

// ParseStoreFeeds 解析 "store=url,store=url"
func ParseStoreFeeds(raw string) (map[string]string, error) {
	stores := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		store, url, ok := strings.Cut(pair, "=")
		store, url = strings.TrimSpace(store), strings.TrimSpace(url)
		if !ok || store == "" || url == "" {
			return nil, fmt.Errorf("invalid STORE_FEEDS entry %q", pair)
		}
		if _, dup := stores[store]; dup {
			return nil, fmt.Errorf("duplicate store %q in STORE_FEEDS", store)
		}
		stores[store] = url
	}
	return stores, nil
}

// ==================== 工具函数 ====================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsLogLevel(key string, defaultValue logger.LogLevel) logger.LogLevel {
	switch strings.ToLower(getEnv(key, "")) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	}
	return defaultValue
}
