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
	"os"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teradata-labs/bobbin/pkg/datastore"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Manage the dataset the agent answers questions about",
}

var datasetFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the dataset file",
	Long: heredoc.Doc(`
		Download the dataset file to the configured dataset path.

		Without --url the demo Titanic passenger dataset is fetched.
		The server does this automatically on first start; fetch is for
		pre-seeding machines without outbound network access at runtime.`),
	Run: runDatasetFetch,
}

var datasetLoadCmd = &cobra.Command{
	Use:   "load [file]",
	Short: "Load a dataset file into a SQLite database",
	Long: heredoc.Doc(`
		Load a dataset file (.csv, .csv.gz, .csv.zst, or .xlsx) into a
		SQLite database next to it and print the resulting table name.

		Without an argument the configured dataset path is loaded.`),
	Args: cobra.MaximumNArgs(1),
	Run:  runDatasetLoad,
}

var datasetFetchURL string

func init() {
	rootCmd.AddCommand(datasetCmd)
	datasetCmd.AddCommand(datasetFetchCmd)
	datasetCmd.AddCommand(datasetLoadCmd)

	datasetFetchCmd.Flags().StringVar(&datasetFetchURL, "url", "", "dataset source URL (default: the demo Titanic dataset)")
}

func runDatasetFetch(cmd *cobra.Command, args []string) {
	url := datasetFetchURL
	if url == "" {
		url = config.Dataset.URL
	}
	if url == "" {
		url = datastore.TitanicURL
	}

	destPath := config.Dataset.Path

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := datastore.Fetch(ctx, url, destPath, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching dataset: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Dataset saved: %s\n", destPath)
}

func runDatasetLoad(cmd *cobra.Command, args []string) {
	srcPath := config.Dataset.Path
	if len(args) == 1 {
		srcPath = args[0]
	}

	if _, err := os.Stat(srcPath); err != nil {
		fmt.Fprintf(os.Stderr, "Dataset file not found: %s\n", srcPath)
		fmt.Fprintf(os.Stderr, "Fetch it first with: bobbin dataset fetch\n")
		os.Exit(1)
	}

	dbPath := datasetDBPath(srcPath)
	table, err := datastore.LoadFile(dbPath, srcPath, zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading dataset: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Loaded table %q into %s\n", table, dbPath)
}
