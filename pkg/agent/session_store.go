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
package agent

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/teradata-labs/bobbin/internal/sqlitedriver"
)

// SessionStore provides persistent storage for sessions, messages, and tool
// executions, backed by SQLite.
type SessionStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// DBConfig configures the session database.
type DBConfig struct {
	// Path to the SQLite database file
	Path string

	// EncryptDatabase enables SQLCipher encryption at rest. Requires
	// EncryptionKey and a cgo build; modernc builds reject it at open.
	EncryptDatabase bool

	// EncryptionKey is the SQLCipher key. Never stored in config files;
	// the caller resolves it from the keyring or environment.
	EncryptionKey string
}

// NewSessionStore opens an unencrypted store at dbPath.
func NewSessionStore(dbPath string) (*SessionStore, error) {
	return NewSessionStoreWithConfig(DBConfig{Path: dbPath})
}

// NewSessionStoreWithConfig opens the store, keys it when encryption is on,
// and creates the schema.
func NewSessionStoreWithConfig(config DBConfig) (*SessionStore, error) {
	db, err := openSessionDB(config)
	if err != nil {
		return nil, err
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &SessionStore{db: db}

	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// openSessionDB opens the SQLite file and verifies the key when encryption
// is enabled. The "sqlite3" driver comes from internal/sqlitedriver:
// SQLCipher under cgo builds, modernc.org/sqlite otherwise.
func openSessionDB(config DBConfig) (*sql.DB, error) {
	if config.EncryptDatabase && !sqlitedriver.EncryptionSupported {
		return nil, fmt.Errorf("database encryption requires a cgo build (CGO_ENABLED=1)")
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if config.EncryptDatabase {
		if config.EncryptionKey == "" {
			db.Close()
			return nil, fmt.Errorf("database encryption enabled but no key provided")
		}

		// Must be the first statement on the connection.
		if _, err := db.Exec(fmt.Sprintf("PRAGMA key = '%s'", config.EncryptionKey)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set encryption key: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		if config.EncryptDatabase {
			return nil, fmt.Errorf("failed to verify encryption key (wrong key or corrupted database): %w", err)
		}
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return db, nil
}

// initSchema creates the database schema if it doesn't exist.
func (s *SessionStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		context_json TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		total_cost_usd REAL DEFAULT 0,
		total_tokens INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT,
		tool_calls_json TEXT,
		tool_use_id TEXT,
		tool_result_json TEXT,
		timestamp INTEGER NOT NULL,
		token_count INTEGER DEFAULT 0,
		cost_usd REAL DEFAULT 0,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS tool_executions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		tool_name TEXT NOT NULL,
		input_json TEXT,
		result_json TEXT,
		error TEXT,
		execution_time_ms INTEGER,
		timestamp INTEGER NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
	CREATE INDEX IF NOT EXISTS idx_tool_executions_session ON tool_executions(session_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveSession persists a session to the database.
func (s *SessionStore) SaveSession(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contextJSON, err := json.Marshal(session.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}

	query := `
		INSERT INTO sessions (id, context_json, created_at, updated_at, total_cost_usd, total_tokens)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			context_json = excluded.context_json,
			updated_at = excluded.updated_at,
			total_cost_usd = excluded.total_cost_usd,
			total_tokens = excluded.total_tokens
	`

	_, err = s.db.ExecContext(ctx, query,
		session.ID,
		string(contextJSON),
		session.CreatedAt.Unix(),
		session.LastUpdated().Unix(),
		session.TotalCostUSD,
		session.TotalTokens,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// LoadSession loads a session and its messages from the database.
func (s *SessionStore) LoadSession(ctx context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, context_json, created_at, updated_at, total_cost_usd, total_tokens
		FROM sessions
		WHERE id = ?
	`

	row := s.db.QueryRowContext(ctx, query, sessionID)

	var session Session
	var contextJSON string
	var createdAt, updatedAt int64

	err := row.Scan(
		&session.ID,
		&contextJSON,
		&createdAt,
		&updatedAt,
		&session.TotalCostUSD,
		&session.TotalTokens,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if err := json.Unmarshal([]byte(contextJSON), &session.Context); err != nil {
		return nil, fmt.Errorf("failed to unmarshal context: %w", err)
	}

	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)

	messages, err := s.loadMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	session.Messages = messages

	return &session, nil
}

// SaveMessage persists a message to the database.
func (s *SessionStore) SaveMessage(ctx context.Context, sessionID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var toolCallsJSON *string
	if len(msg.ToolCalls) > 0 {
		data, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("failed to marshal tool calls: %w", err)
		}
		jsonStr := string(data)
		toolCallsJSON = &jsonStr
	}

	var toolUseID *string
	if msg.ToolUseID != "" {
		toolUseID = &msg.ToolUseID
	}

	var toolResultJSON *string
	if msg.ToolResult != nil {
		data, err := json.Marshal(msg.ToolResult)
		if err != nil {
			return fmt.Errorf("failed to marshal tool result: %w", err)
		}
		jsonStr := string(data)
		toolResultJSON = &jsonStr
	}

	query := `
		INSERT INTO messages (session_id, role, content, tool_calls_json, tool_use_id, tool_result_json, timestamp, token_count, cost_usd)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		sessionID,
		msg.Role,
		msg.Content,
		toolCallsJSON,
		toolUseID,
		toolResultJSON,
		msg.Timestamp.Unix(),
		msg.TokenCount,
		msg.CostUSD,
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

// loadMessages loads all messages for a session in insertion order.
func (s *SessionStore) loadMessages(ctx context.Context, sessionID string) ([]Message, error) {
	query := `
		SELECT id, role, content, tool_calls_json, tool_use_id, tool_result_json, timestamp, token_count, cost_usd
		FROM messages
		WHERE session_id = ?
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		var msgID int64
		var toolCallsJSON, toolUseID, toolResultJSON *string
		var timestamp int64

		err := rows.Scan(
			&msgID,
			&msg.Role,
			&msg.Content,
			&toolCallsJSON,
			&toolUseID,
			&toolResultJSON,
			&timestamp,
			&msg.TokenCount,
			&msg.CostUSD,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		msg.ID = fmt.Sprintf("%d", msgID)
		msg.Timestamp = time.Unix(timestamp, 0)

		if toolCallsJSON != nil {
			if err := json.Unmarshal([]byte(*toolCallsJSON), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tool calls: %w", err)
			}
		}
		if toolUseID != nil {
			msg.ToolUseID = *toolUseID
		}
		if toolResultJSON != nil {
			if err := json.Unmarshal([]byte(*toolResultJSON), &msg.ToolResult); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tool result: %w", err)
			}
		}

		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// SaveToolExecution persists a tool execution record.
func (s *SessionStore) SaveToolExecution(ctx context.Context, sessionID string, exec ToolExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inputJSON, err := json.Marshal(exec.Input)
	if err != nil {
		return fmt.Errorf("failed to marshal input: %w", err)
	}

	var resultJSON *string
	var executionTimeMs int64
	if exec.Result != nil {
		data, err := json.Marshal(exec.Result)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		jsonStr := string(data)
		resultJSON = &jsonStr
		executionTimeMs = exec.Result.ExecutionTimeMs
	}

	var errStr *string
	if exec.Error != nil {
		e := exec.Error.Error()
		errStr = &e
	}

	query := `
		INSERT INTO tool_executions (session_id, tool_name, input_json, result_json, error, execution_time_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		sessionID,
		exec.ToolName,
		string(inputJSON),
		resultJSON,
		errStr,
		executionTimeMs,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save tool execution: %w", err)
	}

	return nil
}

// DeleteSession removes a session and its messages and tool executions.
func (s *SessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Foreign keys are off by default in SQLite; delete children explicitly.
	for _, q := range []string{
		`DELETE FROM tool_executions WHERE session_id = ?`,
		`DELETE FROM messages WHERE session_id = ?`,
		`DELETE FROM sessions WHERE id = ?`,
	} {
		if _, err := s.db.ExecContext(ctx, q, sessionID); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
	}

	return nil
}

// IdleSessionIDs returns IDs of sessions not updated since the cutoff.
func (s *SessionStore) IdleSessionIDs(ctx context.Context, cutoff time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM sessions WHERE updated_at < ?`, cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query idle sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Close closes the underlying database.
func (s *SessionStore) Close() error {
	return s.db.Close()
}
