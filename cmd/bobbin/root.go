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
	"os"
	"path/filepath"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teradata-labs/bobbin/internal/version"
	bobbinconfig "github.com/teradata-labs/bobbin/pkg/config"
)

var (
	cfgFile string
	config  *Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "bobbin",
	Short: "Bobbin - Conversational analytics over tabular datasets",
	Long: heredoc.Doc(`
		Bobbin serves a conversational agent that answers natural-language
		questions about a tabular dataset by writing and running read-only
		SQL, then explaining the results.
	`),
	Version: version.Get(),
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $BOBBIN_DATA_DIR/bobbin.yaml)")

	// Server flags
	rootCmd.PersistentFlags().String("host", "0.0.0.0", "HTTP server host")
	rootCmd.PersistentFlags().Int("port", 8080, "HTTP server port")

	// LLM flags
	rootCmd.PersistentFlags().String("gemini-key", "", "Gemini API key (or use GEMINI_API_KEY/keyring)")
	rootCmd.PersistentFlags().String("gemini-model", "gemini-2.5-flash", "Gemini model")
	rootCmd.PersistentFlags().Float64("temperature", 0.2, "LLM temperature")
	rootCmd.PersistentFlags().Int("max-tokens", 4096, "Maximum tokens per request")

	// Dataset flags
	rootCmd.PersistentFlags().String("dataset", "", "dataset file to load (.csv, .csv.gz, .csv.zst, .xlsx)")
	rootCmd.PersistentFlags().String("dataset-url", "", "URL to fetch the dataset from when the file is missing")
	rootCmd.PersistentFlags().String("db-driver", "sqlite3", "datastore driver (sqlite3, mysql, postgres)")
	rootCmd.PersistentFlags().String("db-dsn", "", "datastore connection string for mysql/postgres")

	// Database flags
	// GetDataDir respects the BOBBIN_DATA_DIR environment variable
	defaultDBPath := filepath.Join(bobbinconfig.GetDataDir(), "bobbin.db")
	rootCmd.PersistentFlags().String("db", defaultDBPath, "SQLite session database path")

	// Logging flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	// Bind flags to viper
	_ = viper.BindPFlag("server.host", rootCmd.PersistentFlags().Lookup("host"))
	_ = viper.BindPFlag("server.port", rootCmd.PersistentFlags().Lookup("port"))

	_ = viper.BindPFlag("llm.gemini_api_key", rootCmd.PersistentFlags().Lookup("gemini-key"))
	_ = viper.BindPFlag("llm.gemini_model", rootCmd.PersistentFlags().Lookup("gemini-model"))
	_ = viper.BindPFlag("llm.temperature", rootCmd.PersistentFlags().Lookup("temperature"))
	_ = viper.BindPFlag("llm.max_tokens", rootCmd.PersistentFlags().Lookup("max-tokens"))

	_ = viper.BindPFlag("dataset.path", rootCmd.PersistentFlags().Lookup("dataset"))
	_ = viper.BindPFlag("dataset.url", rootCmd.PersistentFlags().Lookup("dataset-url"))
	_ = viper.BindPFlag("dataset.driver", rootCmd.PersistentFlags().Lookup("db-driver"))
	_ = viper.BindPFlag("dataset.dsn", rootCmd.PersistentFlags().Lookup("db-dsn"))

	_ = viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	var err error
	config, err = LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
}
