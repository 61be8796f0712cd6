// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"os"
	"path/filepath"
	"strings"
)

// GetDataDir returns the bobbin data directory.
//
// Priority:
// 1. BOBBIN_DATA_DIR environment variable (if set and non-empty)
// 2. ~/.bobbin (default)
//
// The returned path is always absolute. Tilde (~) in BOBBIN_DATA_DIR is
// expanded to the user's home directory, and relative paths are converted
// to absolute paths.
//
// This function is called during bootstrap (before the config file is
// loaded) to locate the config file itself. It reads directly from
// os.Getenv(), not from viper, to avoid circular dependency during config
// initialization.
func GetDataDir() string {
	if dataDir := os.Getenv("BOBBIN_DATA_DIR"); dataDir != "" {
		return expandPath(dataDir)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home dir cannot be determined
		return ".bobbin"
	}
	return filepath.Join(homeDir, ".bobbin")
}

// GetSubDir returns a subdirectory within the bobbin data directory.
// Example: GetSubDir("datasets") returns ~/.bobbin/datasets
func GetSubDir(subdir string) string {
	return filepath.Join(GetDataDir(), subdir)
}

// expandPath expands ~ and resolves to absolute path
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path // Return as-is if we can't get home dir
		}
		return filepath.Join(homeDir, path[2:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return path // Return as-is if we can't make it absolute
	}
	return absPath
}
