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
	"sync"
	"time"

	"github.com/teradata-labs/bobbin/pkg/types"
)

// SystemPromptFunc returns the system prompt for a new session. Evaluated at
// session creation time so the prompt reflects the tools registered by then.
type SystemPromptFunc func() string

// Memory manages conversation sessions and history.
// Supports optional persistent storage via SessionStore.
type Memory struct {
	mu               sync.RWMutex
	sessions         map[string]*Session
	store            *SessionStore // Optional persistent storage
	systemPromptFunc SystemPromptFunc
}

// NewMemory creates a new in-memory session manager.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*Session),
	}
}

// NewMemoryWithStore creates a memory manager with persistent storage.
func NewMemoryWithStore(store *SessionStore) *Memory {
	return &Memory{
		sessions: make(map[string]*Session),
		store:    store,
	}
}

// SetSystemPromptFunc sets a function to generate system prompts for new
// sessions.
func (m *Memory) SetSystemPromptFunc(fn SystemPromptFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.systemPromptFunc = fn
}

// GetOrCreateSession gets an existing session or creates a new one.
// If persistent storage is configured, attempts to load from database first.
func (m *Memory) GetOrCreateSession(sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[sessionID]; ok {
		return session
	}

	// Try loading from persistent store
	if m.store != nil {
		session, err := m.store.LoadSession(context.Background(), sessionID)
		if err == nil {
			m.sessions[sessionID] = session
			return session
		}
		// Not found in store, create new below
	}

	session := &Session{
		ID:        sessionID,
		Messages:  []Message{},
		Context:   make(map[string]interface{}),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if m.systemPromptFunc != nil {
		if prompt := m.systemPromptFunc(); prompt != "" {
			session.AddMessage(Message{
				Role:      types.RoleSystem,
				Content:   prompt,
				Timestamp: time.Now(),
			})
		}
	}

	m.sessions[sessionID] = session

	if m.store != nil {
		_ = m.store.SaveSession(context.Background(), session)
		for _, msg := range session.GetMessages() {
			_ = m.store.SaveMessage(context.Background(), sessionID, msg)
		}
	}

	return session
}

// GetSession retrieves a session by ID.
func (m *Memory) GetSession(sessionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[sessionID]
	return session, ok
}

// DeleteSession removes a session from memory and, if persistence is
// configured, from the store.
func (m *Memory) DeleteSession(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if m.store != nil {
		_ = m.store.DeleteSession(context.Background(), sessionID)
	}
}

// ListSessions returns all active sessions.
func (m *Memory) ListSessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}

	return sessions
}

// CountSessions returns the number of active sessions.
func (m *Memory) CountSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}

// ClearAll removes all sessions from memory (does not affect persistent store).
func (m *Memory) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions = make(map[string]*Session)
}

// PersistSession saves a session to persistent storage if configured.
func (m *Memory) PersistSession(ctx context.Context, session *Session) error {
	if m.store == nil {
		return nil
	}
	return m.store.SaveSession(ctx, session)
}

// PersistMessage saves a message to persistent storage if configured.
func (m *Memory) PersistMessage(ctx context.Context, sessionID string, msg Message) error {
	if m.store == nil {
		return nil
	}
	return m.store.SaveMessage(ctx, sessionID, msg)
}

// PersistToolExecution saves a tool execution to persistent storage if configured.
func (m *Memory) PersistToolExecution(ctx context.Context, sessionID string, exec ToolExecution) error {
	if m.store == nil {
		return nil
	}
	return m.store.SaveToolExecution(ctx, sessionID, exec)
}

// GetStore returns the SessionStore if persistence is enabled, nil otherwise.
func (m *Memory) GetStore() *SessionStore {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store
}
