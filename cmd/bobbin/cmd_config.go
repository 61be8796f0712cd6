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

	"github.com/spf13/cobra"
	bobbinconfig "github.com/teradata-labs/bobbin/pkg/config"
	"golang.org/x/term"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage bobbin configuration",
	Long:  `Manage configuration files and secrets for the bobbin server.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate example configuration file",
	Long:  `Generate an example bobbin.yaml configuration file in ~/.bobbin/`,
	Run:   runConfigInit,
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret [key-name]",
	Short: "Save a secret to the system keyring",
	Long: `Save a secret to the system keyring securely.

The secret will be stored in your system's secure credential storage
(Keychain on macOS, Credential Manager on Windows, Secret Service on Linux).

Run 'bobbin config list-secrets' to see available key names.`,
	Args: cobra.ExactArgs(1),
	Run:  runConfigSetSecret,
}

var configGetSecretCmd = &cobra.Command{
	Use:   "get-secret [key-name]",
	Short: "Retrieve a secret from the system keyring",
	Long:  `Retrieve a secret from the system keyring (for verification).`,
	Args:  cobra.ExactArgs(1),
	Run:   runConfigGetSecret,
}

var configDeleteSecretCmd = &cobra.Command{
	Use:   "delete-secret [key-name]",
	Short: "Delete a secret from the system keyring",
	Long:  `Remove a secret from the system keyring.`,
	Args:  cobra.ExactArgs(1),
	Run:   runConfigDeleteSecret,
}

var configListSecretsCmd = &cobra.Command{
	Use:   "list-secrets",
	Short: "List available secret keys",
	Long:  `List all secret keys that can be stored in the keyring.`,
	Run:   runConfigListSecrets,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration (merged from all sources).`,
	Run:   runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetSecretCmd)
	configCmd.AddCommand(configGetSecretCmd)
	configCmd.AddCommand(configDeleteSecretCmd)
	configCmd.AddCommand(configListSecretsCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	configDir := bobbinconfig.GetDataDir()
	configPath := filepath.Join(configDir, DefaultConfigFileName+".yaml")

	if err := os.MkdirAll(configDir, 0750); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating config directory: %v\n", err)
		os.Exit(1)
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config file already exists: %s\n", configPath)
		fmt.Print("Overwrite? (y/N): ")
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	if err := os.WriteFile(configPath, []byte(GenerateExampleConfig()), 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing config file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Config file created: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Save your Gemini API key:")
	fmt.Println("   bobbin config set-secret gemini_api_key")
	fmt.Println("   (or export GEMINI_API_KEY in your environment)")
	fmt.Println("2. Start the server:")
	fmt.Println("   bobbin serve")
}

func runConfigSetSecret(cmd *cobra.Command, args []string) {
	keyName := args[0]

	availableKeys := ListAvailableSecretKeys()
	validKeys := make(map[string]bool)
	for _, k := range availableKeys {
		validKeys[k] = true
	}

	if !validKeys[keyName] {
		fmt.Fprintf(os.Stderr, "Invalid key name: %s\n", keyName)
		fmt.Fprintf(os.Stderr, "Available keys:\n")
		for _, k := range availableKeys {
			fmt.Fprintf(os.Stderr, "  - %s\n", k)
		}
		os.Exit(1)
	}

	// Read secret from stdin (without echo)
	fmt.Printf("Enter %s (input hidden): ", keyName)
	secretBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println() // New line after hidden input
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}

	secret := string(secretBytes)
	if secret == "" {
		fmt.Fprintf(os.Stderr, "Secret cannot be empty\n")
		os.Exit(1)
	}

	if err := SaveSecretToKeyring(keyName, secret); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving to keyring: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Saved %s to system keyring\n", keyName)
}

func runConfigGetSecret(cmd *cobra.Command, args []string) {
	keyName := args[0]

	secret, err := GetSecretFromKeyring(keyName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error retrieving key: %v\n", err)
		fmt.Fprintf(os.Stderr, "Key not found in keyring. Set it with: bobbin config set-secret %s\n", keyName)
		os.Exit(1)
	}

	fmt.Printf("%s: %s\n", keyName, maskSecret(secret))
}

func runConfigDeleteSecret(cmd *cobra.Command, args []string) {
	keyName := args[0]

	if err := DeleteSecretFromKeyring(keyName); err != nil {
		fmt.Fprintf(os.Stderr, "Error deleting key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Deleted %s from system keyring\n", keyName)
}

func runConfigListSecrets(cmd *cobra.Command, args []string) {
	fmt.Println("Available secret keys:")
	fmt.Println("======================")
	for _, key := range ListAvailableSecretKeys() {
		fmt.Printf("  - %s\n", key)
	}
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  bobbin config set-secret <key-name>")
	fmt.Println("  bobbin config get-secret <key-name>")
	fmt.Println("  bobbin config delete-secret <key-name>")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	fmt.Println("Current Configuration:")
	fmt.Println("======================")
	fmt.Println()

	fmt.Println("Server:")
	fmt.Printf("  Host: %s\n", config.Server.Host)
	fmt.Printf("  Port: %d\n", config.Server.Port)
	fmt.Println()

	fmt.Println("LLM:")
	fmt.Printf("  Model: %s\n", config.LLM.GeminiModel)
	if config.LLM.GeminiAPIKey != "" {
		fmt.Printf("  API Key: %s\n", maskSecret(config.LLM.GeminiAPIKey))
	} else {
		fmt.Printf("  API Key: (not set)\n")
	}
	fmt.Printf("  Temperature: %.1f\n", config.LLM.Temperature)
	fmt.Printf("  Max Tokens: %d\n", config.LLM.MaxTokens)
	fmt.Println()

	fmt.Println("Dataset:")
	fmt.Printf("  Path: %s\n", config.Dataset.Path)
	if config.Dataset.URL != "" {
		fmt.Printf("  URL: %s\n", config.Dataset.URL)
	}
	fmt.Println()

	fmt.Println("Database:")
	fmt.Printf("  Path: %s\n", config.Database.Path)
	fmt.Printf("  Encrypted: %t\n", config.Database.Encrypt)
	fmt.Println()

	fmt.Println("Agent:")
	fmt.Printf("  Max Steps: %d\n", config.Agent.MaxSteps)
	fmt.Printf("  Max Tool Executions: %d\n", config.Agent.MaxToolExecutions)
	fmt.Printf("  Step Timeout: %ds\n", config.Agent.StepTimeoutSeconds)
	fmt.Printf("  Turn Timeout: %ds\n", config.Agent.TurnTimeoutSeconds)
	fmt.Println()

	fmt.Println("Logging:")
	fmt.Printf("  Level: %s\n", config.Logging.Level)
	if config.Logging.File != "" {
		fmt.Printf("  File: %s\n", config.Logging.File)
	}
}

// maskSecret masks a secret for display.
func maskSecret(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
