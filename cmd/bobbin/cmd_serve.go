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
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/teradata-labs/bobbin/pkg/agent"
	"github.com/teradata-labs/bobbin/pkg/datastore"
	"github.com/teradata-labs/bobbin/pkg/llm/gemini"
	"github.com/teradata-labs/bobbin/pkg/server"
	"github.com/teradata-labs/bobbin/pkg/tool/builtin"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bobbin HTTP server",
	Long:  `Load the dataset, connect the Gemini provider, and serve the chat API over HTTP.`,
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	// Startup diagnostics fail fast: a server with no API key or no
	// dataset cannot answer anything.
	if err := config.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	logger := buildLogger(config)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting bobbin", zap.String("version", rootCmd.Version))

	configFileUsed := viper.ConfigFileUsed()
	if configFileUsed != "" {
		logger.Info("Config file loaded", zap.String("path", configFileUsed))
	} else {
		logger.Info("No config file found, using defaults + environment variables",
			zap.String("searched", "$BOBBIN_DATA_DIR/bobbin.yaml, ./bobbin.yaml, /etc/bobbin/bobbin.yaml"))
	}

	store, err := openDataset(context.Background(), config, logger)
	if err != nil {
		log.Fatalf("Dataset load failed: %v", err)
	}
	defer store.Close()

	memory, sessionStore, err := buildMemory(config, logger)
	if err != nil {
		log.Fatalf("Session store setup failed: %v", err)
	}
	if sessionStore != nil {
		defer sessionStore.Close()
	}

	ag, promptFile, err := buildAgent(config, memory, logger)
	if err != nil {
		log.Fatalf("Agent setup failed: %v", err)
	}
	if promptFile != nil {
		defer promptFile.Close()
	}

	askHuman := builtin.NewAskHumanTool(builtin.AskHumanConfig{Logger: logger})
	ag.RegisterTools(builtin.SQLTools(store)...)
	ag.RegisterTool(askHuman)

	retention := agent.NewRetention(memory, agent.RetentionConfig{
		MaxIdle:  time.Duration(config.Sessions.MaxIdleMinutes) * time.Minute,
		Schedule: config.Sessions.SweepSchedule,
	}, logger)
	if err := retention.Start(); err != nil {
		log.Fatalf("Session retention setup failed: %v", err)
	}
	defer retention.Stop()

	corsConfig := server.DefaultCORSConfig()
	if len(config.Server.CORSAllowedOrigins) > 0 {
		corsConfig.AllowedOrigins = config.Server.CORSAllowedOrigins
	}

	httpSrv := server.NewHTTPServerWithCORS(ag, config.Server.Addr(), logger, corsConfig)
	httpSrv.SetHumanRequestStore(askHuman.Store())

	logger.Info("Agent ready",
		zap.String("model", config.LLM.GeminiModel),
		zap.Strings("tools", ag.ListTools()),
		zap.String("addr", config.Server.Addr()))

	// Handle graceful shutdown
	go func() {
		sigch := make(chan os.Signal, 1)
		signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
		<-sigch
		logger.Info("Shutting down gracefully... (press Ctrl+C again to force)")

		go func() {
			<-sigch
			logger.Warn("Force shutdown requested")
			os.Exit(1)
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Stop(ctx); err != nil {
			logger.Warn("Error stopping HTTP server", zap.Error(err))
		}
	}()

	if err := httpSrv.Start(context.Background()); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	logger.Info("Server stopped")
}

// buildLogger creates the production logger with stack traces only at ERROR.
func buildLogger(config *Config) *zap.Logger {
	zapConfig := zap.NewProductionConfig()

	logLevel := zap.InfoLevel
	if config.Logging.Level != "" {
		if err := logLevel.UnmarshalText([]byte(config.Logging.Level)); err != nil {
			log.Printf("Invalid log level %q, using INFO: %v", config.Logging.Level, err)
		}
	}
	zapConfig.Level = zap.NewAtomicLevelAt(logLevel)

	if config.Logging.File != "" {
		zapConfig.OutputPaths = []string{config.Logging.File}
		zapConfig.ErrorOutputPaths = []string{config.Logging.File}
	}

	logger, err := zapConfig.Build(zap.AddStacktrace(zap.ErrorLevel))
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	return logger
}

// openDataset makes sure the dataset file exists (fetching it when a URL is
// configured), loads it into SQLite, and opens a read-only store over it.
func openDataset(ctx context.Context, config *Config, logger *zap.Logger) (*datastore.Store, error) {
	// External engines query an existing database; nothing to fetch or load.
	if config.Dataset.Driver == "mysql" || config.Dataset.Driver == "postgres" {
		store, err := datastore.Open(datastore.Config{
			Driver: config.Dataset.Driver,
			DSN:    config.Dataset.DSN,
		}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Dataset ready", zap.String("driver", config.Dataset.Driver))
		return store, nil
	}

	srcPath := config.Dataset.Path

	if _, err := os.Stat(srcPath); os.IsNotExist(err) {
		url := config.Dataset.URL
		if url == "" && filepath.Base(srcPath) == "titanic.csv" {
			url = datastore.TitanicURL
		}
		if url == "" {
			return nil, fmt.Errorf("dataset file %s does not exist and no dataset.url is configured", srcPath)
		}

		fetchCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if err := datastore.Fetch(fetchCtx, url, srcPath, logger); err != nil {
			return nil, err
		}
	}

	dbPath := datasetDBPath(srcPath)
	table, err := datastore.LoadFile(dbPath, srcPath, logger)
	if err != nil {
		return nil, err
	}

	store, err := datastore.Open(datastore.Config{Driver: "sqlite3", DSN: dbPath}, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Dataset ready", zap.String("table", table), zap.String("source", srcPath))
	return store, nil
}

// datasetDBPath returns the SQLite database path for a dataset source file.
// The database lives next to the source so the pair travels together.
func datasetDBPath(srcPath string) string {
	return filepath.Join(filepath.Dir(srcPath), "dataset.db")
}

// buildMemory opens the session store and wraps it in conversation memory.
func buildMemory(config *Config, logger *zap.Logger) (*agent.Memory, *agent.SessionStore, error) {
	if err := os.MkdirAll(filepath.Dir(config.Database.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create database directory: %w", err)
	}

	sessionStore, err := agent.NewSessionStoreWithConfig(agent.DBConfig{
		Path:            config.Database.Path,
		EncryptDatabase: config.Database.Encrypt,
		EncryptionKey:   config.Database.EncryptionKey,
	})
	if err != nil {
		return nil, nil, err
	}

	logger.Info("Session store ready",
		zap.String("path", config.Database.Path),
		zap.Bool("encrypted", config.Database.Encrypt))
	return agent.NewMemoryWithStore(sessionStore), sessionStore, nil
}

// buildAgent constructs the agent over the Gemini provider, wiring in the
// optional hot-reloaded prompt file.
func buildAgent(config *Config, memory *agent.Memory, logger *zap.Logger) (*agent.Agent, *agent.PromptFile, error) {
	llm := gemini.NewClient(gemini.Config{
		APIKey:      config.LLM.GeminiAPIKey,
		Model:       config.LLM.GeminiModel,
		Temperature: config.LLM.Temperature,
		MaxTokens:   config.LLM.MaxTokens,
	})

	agentConfig := agent.DefaultConfig()
	agentConfig.MaxSteps = config.Agent.MaxSteps
	agentConfig.MaxToolExecutions = config.Agent.MaxToolExecutions
	agentConfig.ContextBudget = config.Agent.ContextBudgetTokens
	agentConfig.StepTimeout = time.Duration(config.Agent.StepTimeoutSeconds) * time.Second
	agentConfig.TurnTimeout = time.Duration(config.Agent.TurnTimeoutSeconds) * time.Second

	var promptFile *agent.PromptFile
	if config.Prompts.File != "" {
		var err error
		promptFile, err = agent.NewPromptFile(config.Prompts.File, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("load prompt file: %w", err)
		}
		if err := promptFile.Watch(); err != nil {
			logger.Warn("Prompt hot-reload unavailable", zap.Error(err))
		}
	}

	ag := agent.New(agentConfig, llm, memory, logger)
	if promptFile != nil {
		memory.SetSystemPromptFunc(promptFile.Content)
	}
	return ag, promptFile, nil
}
