package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config содержит конфигурацию приложения
type Config struct {
	Environment string
	Server      ServerConfig
	Redis       RedisConfig
	MQTT        MQTTConfig
	MySQL       MySQLConfig
	Auth        AuthConfig
	Upload      UploadConfig
	Analytics   AnalyticsConfig
	Monitoring  MonitoringConfig
}

// ServerConfig конфигурация HTTP сервера
type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// RedisConfig конфигурация Redis
type RedisConfig struct {
	URL          string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// MQTTConfig конфигурация MQTT ингеста телеметрии
type MQTTConfig struct {
	URL          string
	ClientID     string
	Username     string
	Password     string
	CleanSession bool
	OrderMatters bool
	TopicPrefix  string
}

// MySQLConfig конфигурация MySQL (история полетов)
type MySQLConfig struct {
	DSN          string
	MaxIdleConns int
	MaxOpenConns int
}

// AuthConfig конфигурация аутентификации
type AuthConfig struct {
	Endpoint string
	CacheTTL time.Duration
}

// UploadConfig ограничения загрузки логов полетов
type UploadConfig struct {
	MaxSamples   int   // Максимум измерений в одном логе
	MaxBodyBytes int64 // Максимальный размер тела запроса
}

// AnalyticsConfig ограничения кросс-полетной аналитики
type AnalyticsConfig struct {
	HistoryLimit int // Максимум полетов, загружаемых для аналитики
}

// MonitoringConfig конфигурация мониторинга
type MonitoringConfig struct {
	MetricsEnabled bool
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Address:      getEnv("SERVER_ADDRESS", ":8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", "redis://localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getInt("REDIS_DB", 0),
			PoolSize:     getInt("REDIS_POOL_SIZE", 50),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 5),
		},
		MQTT: MQTTConfig{
			URL:          getEnv("MQTT_URL", "tcp://localhost:1883"),
			ClientID:     getEnv("MQTT_CLIENT_ID", "telemetry-api"),
			Username:     getEnv("MQTT_USERNAME", ""),
			Password:     getEnv("MQTT_PASSWORD", ""),
			CleanSession: getBool("MQTT_CLEAN_SESSION", false),
			OrderMatters: getBool("MQTT_ORDER_MATTERS", false),
			TopicPrefix:  getEnv("MQTT_TOPIC_PREFIX", "uav/+/telemetry"),
		},
		MySQL: MySQLConfig{
			DSN:          getEnv("MYSQL_DSN", ""),
			MaxIdleConns: getInt("MYSQL_MAX_IDLE_CONNS", 10),
			MaxOpenConns: getInt("MYSQL_MAX_OPEN_CONNS", 50),
		},
		Auth: AuthConfig{
			Endpoint: getEnv("AUTH_ENDPOINT", ""),
			CacheTTL: getDuration("AUTH_CACHE_TTL", 5*time.Minute),
		},
		Upload: UploadConfig{
			MaxSamples:   getInt("UPLOAD_MAX_SAMPLES", 100000),
			MaxBodyBytes: int64(getInt("UPLOAD_MAX_BODY_BYTES", 32<<20)),
		},
		Analytics: AnalyticsConfig{
			HistoryLimit: getInt("ANALYTICS_HISTORY_LIMIT", 500),
		},
		Monitoring: MonitoringConfig{
			MetricsEnabled: getBool("METRICS_ENABLED", true),
		},
	}

	// Валидация
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("SERVER_ADDRESS is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.MQTT.URL == "" {
		return fmt.Errorf("MQTT_URL is required")
	}

	if c.Upload.MaxSamples <= 0 {
		return fmt.Errorf("UPLOAD_MAX_SAMPLES must be positive")
	}

	if c.Upload.MaxBodyBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BODY_BYTES must be positive")
	}

	if c.Analytics.HistoryLimit <= 0 {
		return fmt.Errorf("ANALYTICS_HISTORY_LIMIT must be positive")
	}

	return nil
}

// Helper функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// LogLevel возвращает уровень логирования
func LogLevel() string {
	return getEnv("LOG_LEVEL", "info")
}

// LogFormat возвращает формат логирования
func LogFormat() string {
	return getEnv("LOG_FORMAT", "json")
}
