// Package config loads runtime configuration from the environment with an
// optional YAML overlay, and wires up process logging.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// AuthType identifies how the active provider is authenticated. Retry
// fallback behavior differs per mode.
type AuthType string

const (
	AuthQwenOAuth AuthType = "qwen-oauth"
	AuthOpenAI    AuthType = "openai"
	AuthAnthropic AuthType = "anthropic"
	AuthOllama    AuthType = "ollama"
	AuthBedrock   AuthType = "bedrock"
)

// Default models for the qwen-oauth mode.
const (
	DefaultModel         = "qwen3-coder-plus"
	DefaultFallbackModel = "qwen3-coder-flash"
)

// Config holds all configuration values.
type Config struct {
	// Provider selection
	AuthType      AuthType
	Model         string
	FallbackModel string

	// Provider credentials / endpoints
	APIKey     string
	BaseURL    string
	OllamaHost string
	AWSRegion  string

	// Session
	SessionID    string
	SystemPrompt string

	// Telemetry
	TelemetryEnabled bool
	TelemetryDir     string

	// Diagnostic logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig is the YAML overlay shape. Empty fields leave the
// environment-derived value untouched.
type fileConfig struct {
	AuthType      string `yaml:"authType"`
	Model         string `yaml:"model"`
	FallbackModel string `yaml:"fallbackModel"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseUrl"`
	OllamaHost    string `yaml:"ollamaHost"`
	AWSRegion     string `yaml:"awsRegion"`
	SystemPrompt  string `yaml:"systemPrompt"`
	Telemetry     *bool  `yaml:"telemetry"`
	TelemetryDir  string `yaml:"telemetryDir"`
	LogFile       string `yaml:"logFile"`
	LogLevel      string `yaml:"logLevel"`
}

// Load reads configuration from environment variables, then overlays the
// YAML file at QWEN_CONFIG (default ~/.qwen/config.yaml) when present.
// A fresh session id is minted on every load.
func Load() Config {
	cfg := Config{
		AuthType:      AuthType(getEnv("QWEN_AUTH_TYPE", string(AuthQwenOAuth))),
		Model:         getEnv("QWEN_MODEL", DefaultModel),
		FallbackModel: getEnv("QWEN_FALLBACK_MODEL", DefaultFallbackModel),

		APIKey:     getEnv("QWEN_API_KEY", os.Getenv("OPENAI_API_KEY")),
		BaseURL:    getEnv("QWEN_BASE_URL", "https://dashscope.aliyuncs.com/compatible-mode/v1"),
		OllamaHost: getEnv("OLLAMA_HOST", "http://localhost:11434"),
		AWSRegion:  os.Getenv("AWS_REGION"),

		SessionID:    uuid.NewString(),
		SystemPrompt: os.Getenv("QWEN_SYSTEM_PROMPT"),

		TelemetryEnabled: getEnv("QWEN_TELEMETRY", "true") == "true",
		TelemetryDir:     getEnv("QWEN_TELEMETRY_DIR", "logs"),

		LogFile:  getEnv("QWEN_LOG_FILE", defaultLogFile()),
		LogLevel: parseLogLevel(getEnv("QWEN_LOG_LEVEL", "INFO")),
	}

	path := os.Getenv("QWEN_CONFIG")
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".qwen", "config.yaml")
		}
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("config file ignored", "path", path, "error", err)
		}
	}
	return cfg
}

// applyFile overlays values from a YAML config file.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if fc.AuthType != "" {
		c.AuthType = AuthType(fc.AuthType)
	}
	if fc.Model != "" {
		c.Model = fc.Model
	}
	if fc.FallbackModel != "" {
		c.FallbackModel = fc.FallbackModel
	}
	if fc.APIKey != "" {
		c.APIKey = fc.APIKey
	}
	if fc.BaseURL != "" {
		c.BaseURL = fc.BaseURL
	}
	if fc.OllamaHost != "" {
		c.OllamaHost = fc.OllamaHost
	}
	if fc.AWSRegion != "" {
		c.AWSRegion = fc.AWSRegion
	}
	if fc.SystemPrompt != "" {
		c.SystemPrompt = fc.SystemPrompt
	}
	if fc.Telemetry != nil {
		c.TelemetryEnabled = *fc.Telemetry
	}
	if fc.TelemetryDir != "" {
		c.TelemetryDir = fc.TelemetryDir
	}
	if fc.LogFile != "" {
		c.LogFile = fc.LogFile
	}
	if fc.LogLevel != "" {
		c.LogLevel = parseLogLevel(fc.LogLevel)
	}
	return nil
}

func defaultLogFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "qwen.log"
	}
	return filepath.Join(home, ".qwen", "qwen.log")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
