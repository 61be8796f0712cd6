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
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetViper(t)
	t.Setenv("BOBBIN_DATA_DIR", t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.GeminiModel)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 0.001)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)
	assert.Equal(t, 10, cfg.Agent.MaxSteps)
	assert.Equal(t, 20, cfg.Agent.MaxToolExecutions)
	assert.Equal(t, 200000, cfg.Agent.ContextBudgetTokens)
	assert.Equal(t, 60, cfg.Agent.StepTimeoutSeconds)
	assert.Equal(t, 300, cfg.Agent.TurnTimeoutSeconds)
	assert.Equal(t, 0, cfg.Sessions.MaxIdleMinutes)
	assert.Equal(t, "@every 10m", cfg.Sessions.SweepSchedule)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfig_FromFile(t *testing.T) {
	resetViper(t)
	t.Setenv("BOBBIN_DATA_DIR", t.TempDir())

	configPath := filepath.Join(t.TempDir(), "bobbin.yaml")
	content := `
server:
  host: 127.0.0.1
  port: 9090
llm:
  gemini_model: gemini-2.5-pro
  temperature: 0.7
dataset:
  path: /data/titanic.csv
agent:
  max_steps: 5
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.GeminiModel)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 0.001)
	assert.Equal(t, "/data/titanic.csv", cfg.Dataset.Path)
	assert.Equal(t, 5, cfg.Agent.MaxSteps)
	// Unset values keep their defaults
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)
}

func TestLoadConfig_GeminiKeyFromEnv(t *testing.T) {
	resetViper(t)
	t.Setenv("BOBBIN_DATA_DIR", t.TempDir())
	t.Setenv("GEMINI_API_KEY", "env-key-123456789")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "env-key-123456789", cfg.LLM.GeminiAPIKey)
}

func TestLoadConfig_PrefixedEnvOverride(t *testing.T) {
	resetViper(t)
	t.Setenv("BOBBIN_DATA_DIR", t.TempDir())
	t.Setenv("BOBBIN_SERVER_PORT", "9999")
	t.Setenv("BOBBIN_LOGGING_LEVEL", "debug")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfig_EncryptionKeyNeverFromFile(t *testing.T) {
	resetViper(t)
	t.Setenv("BOBBIN_DATA_DIR", t.TempDir())

	configPath := filepath.Join(t.TempDir(), "bobbin.yaml")
	content := `
database:
  encrypt: true
  encryption_key: sneaky-file-key
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.True(t, cfg.Database.Encrypt)
	assert.Empty(t, cfg.Database.EncryptionKey, "encryption key must not load from config files")
}

func TestLoadConfig_EncryptionKeyFromEnv(t *testing.T) {
	resetViper(t)
	t.Setenv("BOBBIN_DATA_DIR", t.TempDir())
	t.Setenv("BOBBIN_DB_KEY", "env-db-key")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "env-db-key", cfg.Database.EncryptionKey)
}

func validTestConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: 8080},
		LLM: LLMConfig{
			GeminiAPIKey: "test-key",
			GeminiModel:  "gemini-2.5-flash",
		},
		Dataset: DatasetConfig{Path: "/data/titanic.csv"},
		Agent: AgentConfig{
			MaxSteps:          10,
			MaxToolExecutions: 20,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			modify: func(c *Config) {},
		},
		{
			name:    "port too low",
			modify:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "port too high",
			modify:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "missing api key",
			modify:  func(c *Config) { c.LLM.GeminiAPIKey = "" },
			wantErr: "GEMINI_API_KEY",
		},
		{
			name:    "missing dataset path",
			modify:  func(c *Config) { c.Dataset.Path = "" },
			wantErr: "dataset.path",
		},
		{
			name:    "mysql without dsn",
			modify:  func(c *Config) { c.Dataset.Driver = "mysql" },
			wantErr: "dataset.dsn",
		},
		{
			name:    "unsupported driver",
			modify:  func(c *Config) { c.Dataset.Driver = "oracle" },
			wantErr: "unsupported dataset.driver",
		},
		{
			name:    "zero max steps",
			modify:  func(c *Config) { c.Agent.MaxSteps = 0 },
			wantErr: "max_steps",
		},
		{
			name:    "zero max tool executions",
			modify:  func(c *Config) { c.Agent.MaxToolExecutions = 0 },
			wantErr: "max_tool_executions",
		},
		{
			name:    "encrypt without key",
			modify:  func(c *Config) { c.Database.Encrypt = true },
			wantErr: "no encryption key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestServerConfigAddr(t *testing.T) {
	s := ServerConfig{Host: "0.0.0.0", Port: 8080}
	assert.Equal(t, "0.0.0.0:8080", s.Addr())
}

func TestGenerateExampleConfig(t *testing.T) {
	example := GenerateExampleConfig()
	assert.Contains(t, example, "server:")
	assert.Contains(t, example, "gemini_model:")
	assert.Contains(t, example, "max_steps:")
	assert.Contains(t, example, "sweep_schedule:")
	// The example must steer users away from putting the key on disk
	assert.Contains(t, example, "Never put it in this file")
	assert.NotContains(t, example, "gemini_api_key:")
}

func TestListAvailableSecretKeys(t *testing.T) {
	keys := ListAvailableSecretKeys()
	assert.Contains(t, keys, "gemini_api_key")
	assert.Contains(t, keys, "db_encryption_key")
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "short secret",
			input:    "short",
			expected: "***",
		},
		{
			name:     "normal secret",
			input:    "AIzaSy1234567890abcdef",
			expected: "AIza...cdef",
		},
		{
			name:     "empty secret",
			input:    "",
			expected: "***",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, maskSecret(tt.input))
		})
	}
}
