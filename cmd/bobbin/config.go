// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"

	bobbinconfig "github.com/teradata-labs/bobbin/pkg/config"
)

const (
	// ServiceName for keyring storage
	ServiceName = "bobbin"
	// DefaultConfigFileName is the name of the config file
	DefaultConfigFileName = "bobbin"
)

// Config holds all configuration for the bobbin server.
// Priority: CLI flags > config file > env vars > defaults
type Config struct {
	// DataDir is the bobbin data directory. It is computed from the
	// BOBBIN_DATA_DIR environment variable, not loaded from the config
	// file.
	DataDir string `mapstructure:"-"`

	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Database DatabaseConfig `mapstructure:"database"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Sessions SessionsConfig `mapstructure:"sessions"`
	Prompts  PromptsConfig  `mapstructure:"prompts"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// CORSAllowedOrigins restricts browser origins ("*" allows all)
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LLMConfig holds Gemini provider configuration.
type LLMConfig struct {
	GeminiAPIKey string  `mapstructure:"gemini_api_key"` // From CLI/env/keyring only
	GeminiModel  string  `mapstructure:"gemini_model"`
	Temperature  float64 `mapstructure:"temperature"`
	MaxTokens    int     `mapstructure:"max_tokens"`
}

// DatasetConfig holds dataset source configuration.
type DatasetConfig struct {
	// Path is the dataset file (.csv, .csv.gz, .csv.zst, .xlsx).
	// Defaults to $BOBBIN_DATA_DIR/datasets/titanic.csv.
	Path string `mapstructure:"path"`

	// URL to fetch the dataset from when Path does not exist.
	URL string `mapstructure:"url"`

	// Driver selects the datastore engine ("sqlite3", "mysql", "postgres").
	// Non-sqlite drivers query DSN directly instead of loading Path.
	Driver string `mapstructure:"driver"`

	// DSN is the connection string for non-sqlite drivers.
	DSN string `mapstructure:"dsn"`
}

// DatabaseConfig holds session database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`

	// Encrypt enables SQLCipher encryption of the session database.
	// The key comes from the keyring or the BOBBIN_DB_KEY env var.
	Encrypt       bool   `mapstructure:"encrypt"`
	EncryptionKey string `mapstructure:"-"` // From env/keyring only, never the config file
}

// AgentConfig holds reasoning loop limits.
type AgentConfig struct {
	MaxSteps            int `mapstructure:"max_steps"`
	MaxToolExecutions   int `mapstructure:"max_tool_executions"`
	ContextBudgetTokens int `mapstructure:"context_budget_tokens"`
	StepTimeoutSeconds  int `mapstructure:"step_timeout_seconds"`
	TurnTimeoutSeconds  int `mapstructure:"turn_timeout_seconds"`
}

// SessionsConfig holds session retention configuration.
type SessionsConfig struct {
	// MaxIdleMinutes evicts sessions idle longer than this (0 = keep forever)
	MaxIdleMinutes int `mapstructure:"max_idle_minutes"`

	// SweepSchedule is a cron expression for the retention sweep
	SweepSchedule string `mapstructure:"sweep_schedule"`
}

// PromptsConfig holds system prompt configuration.
type PromptsConfig struct {
	// File overrides the built-in system prompt; hot-reloaded on change
	File string `mapstructure:"file"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// LoadConfig loads configuration from multiple sources with proper priority:
// 1. Command line flags (highest priority)
// 2. Config file
// 3. Environment variables
// 4. Defaults (lowest priority)
func LoadConfig(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config search paths (in order of priority)
		viper.AddConfigPath(bobbinconfig.GetDataDir()) // Data directory (respects BOBBIN_DATA_DIR)
		viper.AddConfigPath(".")                       // Current directory
		viper.AddConfigPath("/etc/bobbin/")            // System-wide
		viper.SetConfigName(DefaultConfigFileName)     // bobbin.yaml
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", viper.ConfigFileUsed(), err)
		}
		// Config file not found; using defaults + env vars + flags
	}

	// Bind environment variables
	viper.SetEnvPrefix("BOBBIN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// The Gemini key is conventionally exported as GEMINI_API_KEY, without
	// the BOBBIN prefix.
	_ = viper.BindEnv("llm.gemini_api_key", "GEMINI_API_KEY", "BOBBIN_LLM_GEMINI_API_KEY")
	_ = viper.BindEnv("database.encryption_key", "BOBBIN_DB_KEY")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.EncryptionKeyFromEnv()

	// Set DataDir from environment or default; it is not a config file field
	config.DataDir = bobbinconfig.GetDataDir()

	// Load secrets from keyring if not provided via CLI/env.
	// Non-fatal: keyring might not be available.
	_ = loadSecretsFromKeyring(&config)

	return &config, nil
}

// EncryptionKeyFromEnv fills the database encryption key from the bound
// environment variable. The field is excluded from Unmarshal so the key can
// never be read from a config file on disk.
func (c *Config) EncryptionKeyFromEnv() {
	if key := viper.GetString("database.encryption_key"); key != "" {
		c.Database.EncryptionKey = key
	}
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.cors_allowed_origins", []string{"*"})

	viper.SetDefault("llm.gemini_model", "gemini-2.5-flash")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.max_tokens", 4096)

	viper.SetDefault("dataset.path", bobbinconfig.GetSubDir("datasets")+"/titanic.csv")
	viper.SetDefault("dataset.url", "")
	viper.SetDefault("dataset.driver", "sqlite3")
	viper.SetDefault("dataset.dsn", "")

	viper.SetDefault("database.path", bobbinconfig.GetDataDir()+"/bobbin.db")
	viper.SetDefault("database.encrypt", false)

	viper.SetDefault("agent.max_steps", 10)
	viper.SetDefault("agent.max_tool_executions", 20)
	viper.SetDefault("agent.context_budget_tokens", 200000)
	viper.SetDefault("agent.step_timeout_seconds", 60)
	viper.SetDefault("agent.turn_timeout_seconds", 300)

	viper.SetDefault("sessions.max_idle_minutes", 0)
	viper.SetDefault("sessions.sweep_schedule", "@every 10m")

	viper.SetDefault("prompts.file", "")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "")
}

// SecretMapping defines how to load a secret from keyring into the config.
type SecretMapping struct {
	KeyringKey string
	Setter     func(*Config, string)
	IsSet      func(*Config) bool // Returns true if the value is already set (skip keyring lookup)
}

// GetSecretMappings returns all secret mappings for the application.
func GetSecretMappings() []SecretMapping {
	return []SecretMapping{
		{
			KeyringKey: "gemini_api_key",
			Setter:     func(c *Config, val string) { c.LLM.GeminiAPIKey = val },
			IsSet:      func(c *Config) bool { return c.LLM.GeminiAPIKey != "" },
		},
		{
			KeyringKey: "db_encryption_key",
			Setter:     func(c *Config, val string) { c.Database.EncryptionKey = val },
			IsSet:      func(c *Config) bool { return c.Database.EncryptionKey != "" },
		},
	}
}

// loadSecretsFromKeyring loads API keys from the system keyring using the
// secret mappings.
func loadSecretsFromKeyring(config *Config) error {
	for _, mapping := range GetSecretMappings() {
		// Skip if value is already set (from CLI/env/config file)
		if mapping.IsSet(config) {
			continue
		}

		value, err := GetSecretFromKeyring(mapping.KeyringKey)
		if err == nil && value != "" {
			mapping.Setter(config, value)
		}
		// Non-fatal: if keyring doesn't have the key, just continue
	}
	return nil
}

// GetSecretFromKeyring retrieves a secret from the system keyring.
func GetSecretFromKeyring(key string) (string, error) {
	return keyring.Get(ServiceName, key)
}

// SaveSecretToKeyring saves a secret to the system keyring.
func SaveSecretToKeyring(key, value string) error {
	return keyring.Set(ServiceName, key, value)
}

// DeleteSecretFromKeyring removes a secret from the system keyring.
func DeleteSecretFromKeyring(key string) error {
	return keyring.Delete(ServiceName, key)
}

// ListAvailableSecretKeys returns all known secret keys that can be stored
// in the keyring.
func ListAvailableSecretKeys() []string {
	mappings := GetSecretMappings()
	keys := make([]string, 0, len(mappings))
	for _, m := range mappings {
		keys = append(keys, m.KeyringKey)
	}
	return keys
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// The agent cannot reason without a model behind it; fail at startup
	// rather than on the first request.
	if c.LLM.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is not set: provide it via the environment, " +
			"the --gemini-key flag, or `bobbin config set-secret gemini_api_key`")
	}

	switch c.Dataset.Driver {
	case "", "sqlite3":
		if c.Dataset.Path == "" {
			return fmt.Errorf("dataset.path is required")
		}
	case "mysql", "postgres":
		if c.Dataset.DSN == "" {
			return fmt.Errorf("dataset.dsn is required for driver %q", c.Dataset.Driver)
		}
	default:
		return fmt.Errorf("unsupported dataset.driver %q (use sqlite3, mysql, or postgres)", c.Dataset.Driver)
	}

	if c.Agent.MaxSteps < 1 {
		return fmt.Errorf("agent.max_steps must be at least 1, got %d", c.Agent.MaxSteps)
	}
	if c.Agent.MaxToolExecutions < 1 {
		return fmt.Errorf("agent.max_tool_executions must be at least 1, got %d", c.Agent.MaxToolExecutions)
	}

	if c.Database.Encrypt && c.Database.EncryptionKey == "" {
		return fmt.Errorf("database.encrypt is set but no encryption key found: " +
			"set BOBBIN_DB_KEY or `bobbin config set-secret db_encryption_key`")
	}

	return nil
}

// GenerateExampleConfig returns a commented example configuration file.
func GenerateExampleConfig() string {
	return `# Bobbin configuration file
# Place at $BOBBIN_DATA_DIR/bobbin.yaml (default: ~/.bobbin/bobbin.yaml)

server:
  host: 0.0.0.0
  port: 8080
  # cors_allowed_origins:
  #   - https://analytics.example.com

llm:
  # API key comes from GEMINI_API_KEY, the keyring, or --gemini-key.
  # Never put it in this file.
  gemini_model: gemini-2.5-flash
  temperature: 0.2
  max_tokens: 4096

dataset:
  # path: /data/titanic.csv
  # url: https://example.com/datasets/titanic.csv
  # driver: sqlite3   # or mysql / postgres with a dsn
  # dsn: user:pass@tcp(dbhost:3306)/warehouse

database:
  # path: ~/.bobbin/bobbin.db
  # encrypt: true   # key from BOBBIN_DB_KEY or the keyring

agent:
  max_steps: 10
  max_tool_executions: 20
  # Oldest history falls out of the LLM window past this many tokens (0 sends everything)
  context_budget_tokens: 200000
  step_timeout_seconds: 60
  turn_timeout_seconds: 300

sessions:
  # Evict sessions idle longer than this (0 keeps them forever)
  max_idle_minutes: 0
  sweep_schedule: "@every 10m"

prompts:
  # file: /etc/bobbin/system-prompt.txt   # hot-reloaded on change

logging:
  level: info
  # file: /var/log/bobbin.log
`
}
