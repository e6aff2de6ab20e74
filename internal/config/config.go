// Package config предоставляет функции для работы с конфигурацией приложения
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config основная структура конфигурации приложения
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Database  DatabaseConfig  `yaml:"database"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Fetcher   FetcherConfig   `yaml:"fetcher"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
}

// TelegramConfig конфигурация Telegram-бота
type TelegramConfig struct {
	Token string `yaml:"token"`
}

// DatabaseConfig конфигурация базы данных
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScheduleConfig конфигурация источника расписания
type ScheduleConfig struct {
	BaseURL       string `yaml:"base_url"`
	Timezone      string `yaml:"timezone"`
	CacheTTLHours int    `yaml:"cache_ttl_hours"`
}

// FetcherConfig конфигурация HTTP-клиента с ограничением частоты запросов
type FetcherConfig struct {
	MaxRequestsPerMinute int           `yaml:"max_requests_per_minute"`
	Timeout              time.Duration `yaml:"timeout"`
	Retries              int           `yaml:"retries"`
}

// BroadcastConfig время ежедневной рассылки расписания
type BroadcastConfig struct {
	Hour   int `yaml:"hour"`
	Minute int `yaml:"minute"`
}

// LoadConfig загружает конфигурацию из YAML файла
func LoadConfig(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", filename, err)
	}
	defer file.Close()

	cfg := &Config{}

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", filename, err)
	}

	// Токен из окружения имеет приоритет над файлом
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.Telegram.Token = token
	}

	// Устанавливаем значения по умолчанию, если они не заданы
	if cfg.Database.Path == "" {
		cfg.Database.Path = "users.db"
	}
	if cfg.Schedule.BaseURL == "" {
		cfg.Schedule.BaseURL = "https://rasp.rsreu.ru"
	}
	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = "Europe/Moscow"
	}
	if cfg.Schedule.CacheTTLHours == 0 {
		cfg.Schedule.CacheTTLHours = 6
	}
	if cfg.Fetcher.MaxRequestsPerMinute == 0 {
		cfg.Fetcher.MaxRequestsPerMinute = 30
	}
	if cfg.Fetcher.Timeout == 0 {
		cfg.Fetcher.Timeout = 30 * time.Second
	}
	if cfg.Fetcher.Retries == 0 {
		cfg.Fetcher.Retries = 3
	}
	// 00:00 неотличимо от незаполненной секции и трактуется как 06:00
	if cfg.Broadcast.Hour == 0 && cfg.Broadcast.Minute == 0 {
		cfg.Broadcast.Hour = 6
	}

	return cfg, nil
}
