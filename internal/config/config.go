package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит все настройки приложения
type Config struct {
	State    StateConfig
	Telegram TelegramConfig
	Database DatabaseConfig
	LogLevel string
}

type StateConfig struct {
	// CredentialsPath — путь к файлу учетных данных удаленного хранилища.
	// Пустое значение означает работу только на локальном хранилище.
	CredentialsPath string
	// FallbackPath — базовый путь локальных файлов состояния
	FallbackPath string
	// FailureAlertThreshold — число подряд неудачных записей до уведомления
	FailureAlertThreshold int
	// AlertMinInterval — минимальный интервал между уведомлениями
	AlertMinInterval time.Duration
}

type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

type DatabaseConfig struct {
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	OperationTimeout time.Duration
}

// Load загружает конфигурацию из .env файла и переменных окружения
func Load() (*Config, error) {
	// Загружаем .env файл (если есть)
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	chatID, err := strconv.ParseInt(getEnv("TELEGRAM_CHAT_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
	}

	failureThreshold, err := strconv.Atoi(getEnv("FAILURE_ALERT_THRESHOLD", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid FAILURE_ALERT_THRESHOLD: %w", err)
	}

	alertMinInterval, err := time.ParseDuration(getEnv("ALERT_MIN_INTERVAL", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid ALERT_MIN_INTERVAL: %w", err)
	}

	maxOpenConns, err := strconv.Atoi(getEnv("DB_MAX_OPEN_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}

	maxIdleConns, err := strconv.Atoi(getEnv("DB_MAX_IDLE_CONNS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}

	connMaxLifetime, err := time.ParseDuration(getEnv("DB_CONN_MAX_LIFETIME", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}

	operationTimeout, err := time.ParseDuration(getEnv("DB_OPERATION_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_OPERATION_TIMEOUT: %w", err)
	}

	config := &Config{
		State: StateConfig{
			CredentialsPath:       getEnv("STATE_CREDENTIALS_PATH", ""),
			FallbackPath:          getEnv("STATE_FALLBACK_PATH", "local_state.json"),
			FailureAlertThreshold: failureThreshold,
			AlertMinInterval:      alertMinInterval,
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   chatID,
		},
		Database: DatabaseConfig{
			MaxOpenConns:     maxOpenConns,
			MaxIdleConns:     maxIdleConns,
			ConnMaxLifetime:  connMaxLifetime,
			OperationTimeout: operationTimeout,
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate проверяет обязательные поля конфигурации
func (c *Config) Validate() error {
	if c.State.FallbackPath == "" {
		return fmt.Errorf("STATE_FALLBACK_PATH is required")
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	if c.State.FailureAlertThreshold <= 0 {
		return fmt.Errorf("FAILURE_ALERT_THRESHOLD must be positive")
	}
	if c.Database.OperationTimeout <= 0 {
		return fmt.Errorf("DB_OPERATION_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
