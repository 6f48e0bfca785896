package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	// EventTypes — допустимый словарь названий событий. Название события
	// при создании обязано входить в этот список.
	EventTypes []string

	// CacheSize — ёмкость каждого LRU-кэша чтения.
	CacheSize int
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	portStr := os.Getenv("SERVER_PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	eventTypes := splitAndTrim(os.Getenv("EVENT_TYPES"))
	if len(eventTypes) == 0 {
		return nil, fmt.Errorf("EVENT_TYPES environment variable is not set")
	}

	cacheSize := 128
	if sizeStr := os.Getenv("EVENT_CACHE_SIZE"); sizeStr != "" {
		cacheSize, err = strconv.Atoi(sizeStr)
		if err != nil || cacheSize <= 0 {
			return nil, fmt.Errorf("invalid EVENT_CACHE_SIZE environment variable: %q", sizeStr)
		}
	}

	cfg := &Config{
		DatabaseURL:  dbURL,
		JWTSecretKey: jwtKey,
		ServerPort:   port,
		EventTypes:   eventTypes,
		CacheSize:    cacheSize,
	}

	return cfg, nil
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
