package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultModel          = "gpt-4o-mini"
	DefaultTemperature    = 0.3
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 8000
	DefaultMongoURI       = "mongodb://localhost:27017"
	DefaultMongoDatabase  = "ideaflow"
	DefaultTokenPaceMs    = 50
	DefaultPromptWindow   = 10
	DefaultBufferIdleTTL  = "2h"
	DefaultEvictionSweep  = "10m"
	DefaultTimezone       = "America/Toronto"
	DefaultRequestTimeout = 30
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Provider ProviderConfig `json:"provider"`
	Mongo    MongoConfig    `json:"mongo"`
	Chat     ChatConfig     `json:"chat"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type ProviderConfig struct {
	APIKey         string  `json:"apiKey"`
	BaseURL        string  `json:"baseUrl,omitempty"`
	Model          string  `json:"model"`
	ScoringModel   string  `json:"scoringModel,omitempty"`
	Temperature    float64 `json:"temperature"`
	RequestTimeout int     `json:"requestTimeout"` // seconds, non-streaming calls only
}

type MongoConfig struct {
	URI      string `json:"uri"`
	Database string `json:"database"`
}

type ChatConfig struct {
	TokenPaceMs   int    `json:"tokenPaceMs"`
	PromptWindow  int    `json:"promptWindow"`
	BufferIdleTTL string `json:"bufferIdleTtl"`
	EvictionSweep string `json:"evictionSweep"`
	Timezone      string `json:"timezone"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Provider: ProviderConfig{
			Model:          DefaultModel,
			ScoringModel:   DefaultModel,
			Temperature:    DefaultTemperature,
			RequestTimeout: DefaultRequestTimeout,
		},
		Mongo: MongoConfig{
			URI:      DefaultMongoURI,
			Database: DefaultMongoDatabase,
		},
		Chat: ChatConfig{
			TokenPaceMs:   DefaultTokenPaceMs,
			PromptWindow:  DefaultPromptWindow,
			BufferIdleTTL: DefaultBufferIdleTTL,
			EvictionSweep: DefaultEvictionSweep,
			Timezone:      DefaultTimezone,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".ideaflow")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if key := os.Getenv("IDEAFLOW_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if url := os.Getenv("IDEAFLOW_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if url := os.Getenv("OPENAI_BASE_URL"); url != "" && cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = url
	}
	if model := os.Getenv("IDEAFLOW_MODEL"); model != "" {
		cfg.Provider.Model = model
	}
	if model := os.Getenv("IDEAFLOW_SCORING_MODEL"); model != "" {
		cfg.Provider.ScoringModel = model
	}
	if uri := os.Getenv("IDEAFLOW_MONGO_URI"); uri != "" {
		cfg.Mongo.URI = uri
	}
	if uri := os.Getenv("MONGODB_URI"); uri != "" && cfg.Mongo.URI == DefaultMongoURI {
		cfg.Mongo.URI = uri
	}
	if db := os.Getenv("IDEAFLOW_MONGO_DB"); db != "" {
		cfg.Mongo.Database = db
	}
	if host := os.Getenv("IDEAFLOW_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("IDEAFLOW_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = parsed
		}
	}
	if tz := os.Getenv("IDEAFLOW_TIMEZONE"); tz != "" {
		cfg.Chat.Timezone = tz
	}
	if pace := os.Getenv("IDEAFLOW_TOKEN_PACE_MS"); pace != "" {
		if parsed, err := strconv.Atoi(pace); err == nil {
			cfg.Chat.TokenPaceMs = parsed
		}
	}

	if cfg.Provider.Model == "" {
		cfg.Provider.Model = DefaultModel
	}
	if cfg.Provider.ScoringModel == "" {
		cfg.Provider.ScoringModel = cfg.Provider.Model
	}
	if cfg.Provider.RequestTimeout <= 0 {
		cfg.Provider.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Chat.PromptWindow <= 0 {
		cfg.Chat.PromptWindow = DefaultPromptWindow
	}
	if cfg.Chat.BufferIdleTTL == "" {
		cfg.Chat.BufferIdleTTL = DefaultBufferIdleTTL
	}
	if cfg.Chat.EvictionSweep == "" {
		cfg.Chat.EvictionSweep = DefaultEvictionSweep
	}
	if cfg.Chat.Timezone == "" {
		cfg.Chat.Timezone = DefaultTimezone
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
