package config

import (
	"os"
	"strconv"
	"strings"
)

// ============================================================
// Configuration
// ============================================================

type Config struct {
	Port         string
	Environment  string
	ReadTimeout  int
	WriteTimeout int
	// BodyLimit в мегабайтах
	BodyLimit      int
	DBPath         string
	MigrationsPath string
	StorageDir     string
	PrefsPath      string
	OpenAPIPath    string
	// CORSOrigins пустой = "*"
	CORSOrigins []string
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "3001"),
		Environment:    getEnv("ENV", "development"),
		ReadTimeout:    getEnvAsInt("READ_TIMEOUT", 30),
		WriteTimeout:   getEnvAsInt("WRITE_TIMEOUT", 30),
		BodyLimit:      getEnvAsInt("BODY_LIMIT_MB", 64),
		DBPath:         getEnv("CONVERTER_DB_PATH", "data/db/converter.db"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations/001_init_documents.sql"),
		StorageDir:     getEnv("STORAGE_DIR", "data/files"),
		PrefsPath:      getEnv("ARCHIFC_PREFS", ""),
		OpenAPIPath:    getEnv("OPENAPI_PATH", "docs/converter.openapi.yaml"),
		CORSOrigins:    getEnvAsList("CORS_ORIGINS", nil),
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getEnvAsList читает список через запятую; пустые элементы отбрасываются
func getEnvAsList(key string, defaultVal []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	return SplitList(value)
}

// SplitList разбивает "IfcA, IfcB" на элементы
func SplitList(s string) []string {
	out := []string{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
