package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ============================================================
// Configuration
// ============================================================

type Config struct {
	Port         string   `yaml:"port"`
	Environment  string   `yaml:"env"`
	ReadTimeout  int      `yaml:"read_timeout"`
	WriteTimeout int      `yaml:"write_timeout"`
	LogLevel     string   `yaml:"log_level"`
	CORSOrigins  []string `yaml:"cors_origins"`

	DBPath    string `yaml:"db_path"`
	FilesRoot string `yaml:"files_root"`
	Store     string `yaml:"store"` // sqlite или memory
	EntityCap int    `yaml:"entity_cap"`
}

func defaults() *Config {
	return &Config{
		Port:         "3000",
		Environment:  "development",
		ReadTimeout:  10,
		WriteTimeout: 10,
		LogLevel:     "info",
		DBPath:       "data/db/geocad.db",
		FilesRoot:    "data/drawings",
		Store:        "sqlite",
		EntityCap:    20,
	}
}

// Load загружает конфигурацию: сначала YAML из GEOCAD_CONFIG (если задан),
// затем переменные окружения поверх него.
func Load() (*Config, error) {
	cfg := defaults()
	if path := os.Getenv("GEOCAD_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Environment = getEnv("ENV", cfg.Environment)
	cfg.ReadTimeout = getEnvAsInt("READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = getEnvAsInt("WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.DBPath = getEnv("GEOCAD_DB_PATH", cfg.DBPath)
	cfg.FilesRoot = getEnv("GEOCAD_FILES_ROOT", cfg.FilesRoot)
	cfg.Store = getEnv("GEOCAD_STORE", cfg.Store)
	cfg.EntityCap = getEnvAsInt("GEOCAD_ENTITY_CAP", cfg.EntityCap)
	if origins := os.Getenv("GEOCAD_CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = strings.Split(origins, ",")
	}

	if cfg.Store != "sqlite" && cfg.Store != "memory" {
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
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
