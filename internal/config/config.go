// Пакет config — загрузка и валидация конфигурации сервиса документов
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Бэкенды хранилища.
const (
	// BackendLocal — встроенное хранилище: документы записей на диске,
	// payload внутри документа, без внешних сервисов.
	BackendLocal = "local"
	// BackendPostgres — метаданные в PostgreSQL, байты на файловой системе.
	BackendPostgres = "postgres"
)

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration

	// --- Хранилище ---

	// Бэкенд хранилища (local, postgres)
	Backend string
	// Корневая директория данных: документы записей в local,
	// байты файлов в postgres
	DataDir string
	// Максимальный размер файла в байтах
	MaxFileSize int64

	// --- PostgreSQL (только backend=postgres) ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Жизненный цикл файлов ---

	// Задержка отложенного автоудаления после скачивания из просмотра
	AutoExpireDelay time.Duration

	// --- Кэш метаданных ---

	// Максимальное количество записей в LRU-кэше метаданных
	CacheSize int
	// TTL элемента кэша метаданных
	CacheTTL time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// CSRT_PORT — порт HTTP-сервера (по умолчанию 3000)
	cfg.Port, err = getEnvInt("CSRT_PORT", 3000)
	if err != nil {
		return nil, fmt.Errorf("CSRT_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("CSRT_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// CSRT_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("CSRT_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("CSRT_LOG_LEVEL: %w", err)
	}

	// CSRT_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("CSRT_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("CSRT_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// CSRT_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("CSRT_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CSRT_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Хранилище ---

	// CSRT_BACKEND — бэкенд хранилища (по умолчанию local)
	cfg.Backend = getEnvDefault("CSRT_BACKEND", BackendLocal)
	if cfg.Backend != BackendLocal && cfg.Backend != BackendPostgres {
		return nil, fmt.Errorf("CSRT_BACKEND: недопустимое значение %q, допустимые: local, postgres", cfg.Backend)
	}

	// CSRT_DATA_DIR — директория данных (по умолчанию uploads)
	cfg.DataDir = getEnvDefault("CSRT_DATA_DIR", "uploads")

	// CSRT_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 50 МБ)
	cfg.MaxFileSize, err = getEnvInt64("CSRT_MAX_FILE_SIZE", 50*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("CSRT_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("CSRT_MAX_FILE_SIZE: значение должно быть положительным")
	}

	// --- PostgreSQL: обязательные параметры только для backend=postgres ---

	if cfg.Backend == BackendPostgres {
		// CSRT_DB_HOST — обязательный
		cfg.DBHost, err = getEnvRequired("CSRT_DB_HOST")
		if err != nil {
			return nil, err
		}

		// CSRT_DB_PORT — порт PostgreSQL (по умолчанию 5432)
		cfg.DBPort, err = getEnvInt("CSRT_DB_PORT", 5432)
		if err != nil {
			return nil, fmt.Errorf("CSRT_DB_PORT: %w", err)
		}

		// CSRT_DB_NAME — обязательный
		cfg.DBName, err = getEnvRequired("CSRT_DB_NAME")
		if err != nil {
			return nil, err
		}

		// CSRT_DB_USER — обязательный
		cfg.DBUser, err = getEnvRequired("CSRT_DB_USER")
		if err != nil {
			return nil, err
		}

		// CSRT_DB_PASSWORD — обязательный
		cfg.DBPassword, err = getEnvRequired("CSRT_DB_PASSWORD")
		if err != nil {
			return nil, err
		}

		// CSRT_DB_SSL_MODE — режим SSL (по умолчанию disable)
		cfg.DBSSLMode = getEnvDefault("CSRT_DB_SSL_MODE", "disable")
		validSSLModes := map[string]bool{
			"disable": true, "require": true, "verify-ca": true, "verify-full": true,
		}
		if !validSSLModes[cfg.DBSSLMode] {
			return nil, fmt.Errorf("CSRT_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
		}
	}

	// --- Жизненный цикл файлов ---

	// CSRT_AUTO_EXPIRE_DELAY — задержка автоудаления (по умолчанию 2m)
	cfg.AutoExpireDelay, err = getEnvDuration("CSRT_AUTO_EXPIRE_DELAY", 2*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("CSRT_AUTO_EXPIRE_DELAY: %w", err)
	}
	if cfg.AutoExpireDelay <= 0 {
		return nil, fmt.Errorf("CSRT_AUTO_EXPIRE_DELAY: значение должно быть положительным")
	}

	// --- Кэш метаданных ---

	// CSRT_CACHE_SIZE — размер LRU-кэша (по умолчанию 512)
	cfg.CacheSize, err = getEnvInt("CSRT_CACHE_SIZE", 512)
	if err != nil {
		return nil, fmt.Errorf("CSRT_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 1 {
		return nil, fmt.Errorf("CSRT_CACHE_SIZE: значение должно быть положительным")
	}

	// CSRT_CACHE_TTL — TTL элемента кэша (по умолчанию 1m)
	cfg.CacheTTL, err = getEnvDuration("CSRT_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("CSRT_CACHE_TTL: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 2m, 1h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
