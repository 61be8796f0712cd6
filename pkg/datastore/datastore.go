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

// Package datastore provides the read-only tabular store the SQL tools run
// against. Datasets are ingested once at startup; during normal operation
// the store only ever reads.
package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/bobbin/pkg/types"
)

// Config holds datastore connection configuration.
type Config struct {
	// Driver is the database/sql driver name ("sqlite3", "mysql", "postgres")
	Driver string

	// DSN is the data source name. For sqlite3 this is the database file path.
	DSN string

	// QueryTimeout bounds individual query execution (0 means no extra bound
	// beyond the caller's context)
	QueryTimeout time.Duration

	// MaxRows caps the number of rows returned per query
	MaxRows int
}

// Store executes read-only queries against a tabular database and exposes
// schema introspection.
type Store struct {
	db      *sql.DB
	driver  string
	timeout time.Duration
	maxRows int
	logger  *zap.Logger
}

// DefaultMaxRows is the per-query row cap when Config.MaxRows is zero.
const DefaultMaxRows = 1000

// Open opens a datastore connection. For sqlite3 the connection is opened
// read-only (mode=ro) so writes are refused by the engine even if a
// statement slips past the classifier.
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = "sqlite3"
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("datastore: DSN is required")
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = DefaultMaxRows
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := cfg.DSN
	if cfg.Driver == "sqlite3" {
		dsn = fmt.Sprintf("file:%s?mode=ro", cfg.DSN)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("datastore: open %s: %w", cfg.Driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("datastore: ping %s: %w", cfg.Driver, err)
	}

	logger.Info("datastore opened",
		zap.String("driver", cfg.Driver),
		zap.Int("max_rows", cfg.MaxRows))

	return &Store{
		db:      db,
		driver:  cfg.Driver,
		timeout: cfg.QueryTimeout,
		maxRows: cfg.MaxRows,
		logger:  logger,
	}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the active driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Query executes a read-only SQL statement and returns the result rows.
// Mutating statements are rejected with a permission_denied Error before
// reaching the engine.
func (s *Store) Query(ctx context.Context, query string) (*types.ResultSet, error) {
	if err := CheckReadOnly(query); err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classifyQueryError(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, classifyQueryError(err)
	}

	rs := &types.ResultSet{Columns: cols}
	for rows.Next() {
		if len(rs.Rows) >= s.maxRows {
			s.logger.Warn("query result truncated",
				zap.Int("max_rows", s.maxRows))
			break
		}

		values := make([]interface{}, len(cols))
		scanTargets := make([]interface{}, len(cols))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, classifyQueryError(err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyQueryError(err)
	}
	rs.RowCount = len(rs.Rows)

	s.logger.Debug("query executed",
		zap.Int("rows", rs.RowCount),
		zap.Duration("duration", time.Since(start)))

	return rs, nil
}

// Tables returns the names of the user tables in the store.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	var query string
	switch s.driver {
	case "sqlite3":
		query = "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	case "postgres":
		query = "SELECT table_name FROM information_schema.tables WHERE table_schema='public' ORDER BY table_name"
	case "mysql":
		query = "SELECT table_name FROM information_schema.tables WHERE table_schema=DATABASE() ORDER BY table_name"
	default:
		return nil, fmt.Errorf("datastore: unsupported driver for introspection: %s", s.driver)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classifyQueryError(err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, classifyQueryError(err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Column describes one column of a table.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Columns returns the column definitions of a table.
func (s *Store) Columns(ctx context.Context, table string) ([]Column, error) {
	if err := validateIdentifier(table); err != nil {
		return nil, err
	}

	var rows *sql.Rows
	var err error
	switch s.driver {
	case "sqlite3":
		// Table name is validated above; PRAGMA does not take placeholders.
		rows, err = s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
		if err != nil {
			return nil, classifyQueryError(err)
		}
		defer rows.Close()

		var cols []Column
		for rows.Next() {
			var cid int
			var name, ctype string
			var notnull, pk int
			var dflt sql.NullString
			if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
				return nil, classifyQueryError(err)
			}
			cols = append(cols, Column{Name: name, Type: ctype})
		}
		if len(cols) == 0 {
			return nil, &Error{Kind: KindSchema, Message: fmt.Sprintf("no such table: %s", table)}
		}
		return cols, rows.Err()
	case "postgres":
		rows, err = s.db.QueryContext(ctx,
			"SELECT column_name, data_type FROM information_schema.columns WHERE table_name=$1 ORDER BY ordinal_position", table)
	case "mysql":
		rows, err = s.db.QueryContext(ctx,
			"SELECT column_name, data_type FROM information_schema.columns WHERE table_schema=DATABASE() AND table_name=? ORDER BY ordinal_position", table)
	default:
		return nil, fmt.Errorf("datastore: unsupported driver for introspection: %s", s.driver)
	}
	if err != nil {
		return nil, classifyQueryError(err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, classifyQueryError(err)
		}
		cols = append(cols, c)
	}
	if len(cols) == 0 {
		return nil, &Error{Kind: KindSchema, Message: fmt.Sprintf("no such table: %s", table)}
	}
	return cols, rows.Err()
}

// SampleRow returns the first row of a table, for schema grounding in the
// system prompt and the get_table_row_example tool.
func (s *Store) SampleRow(ctx context.Context, table string) (*types.ResultSet, error) {
	if err := validateIdentifier(table); err != nil {
		return nil, err
	}
	return s.Query(ctx, fmt.Sprintf("SELECT * FROM %q LIMIT 1", table))
}

// validateIdentifier rejects table names that could not have come from the
// store's own introspection output.
func validateIdentifier(name string) error {
	if name == "" {
		return &Error{Kind: KindSchema, Message: "empty table name"}
	}
	for _, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return &Error{Kind: KindSchema, Message: fmt.Sprintf("invalid table name: %s", name)}
		}
	}
	return nil
}
