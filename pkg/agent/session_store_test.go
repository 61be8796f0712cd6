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
	"path/filepath"
	"testing"
	"time"

	"github.com/teradata-labs/bobbin/pkg/tool"
	"github.com/teradata-labs/bobbin/pkg/types"
)

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()
	store, err := NewSessionStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("NewSessionStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSessionStore_SaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := &Session{
		ID:        "s1",
		Context:   map[string]interface{}{"dataset": "titanic"},
		CreatedAt: time.Now().Add(-time.Hour),
		UpdatedAt: time.Now(),
	}
	session.AddMessage(Message{Role: types.RoleUser, Content: "how many rows?", Timestamp: time.Now()})
	session.AddMessage(Message{
		Role:      types.RoleAssistant,
		Content:   "",
		ToolCalls: []ToolCall{{ID: "c1", Name: "execute_sql_query", Input: map[string]interface{}{"query": "SELECT 1"}}},
		Timestamp: time.Now(),
	})
	session.AddMessage(Message{
		Role:       types.RoleTool,
		Content:    `{"row_count":891}`,
		ToolUseID:  "c1",
		ToolResult: &tool.Result{Success: true, Data: map[string]interface{}{"row_count": float64(891)}},
		Timestamp:  time.Now(),
	})

	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	for _, msg := range session.GetMessages() {
		if err := store.SaveMessage(ctx, session.ID, msg); err != nil {
			t.Fatalf("SaveMessage failed: %v", err)
		}
	}

	loaded, err := store.LoadSession(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}

	if loaded.ID != "s1" {
		t.Errorf("Loaded ID = %q", loaded.ID)
	}
	if loaded.Context["dataset"] != "titanic" {
		t.Errorf("Context not round-tripped: %v", loaded.Context)
	}
	if loaded.MessageCount() != 3 {
		t.Fatalf("Expected 3 messages, got %d", loaded.MessageCount())
	}

	messages := loaded.GetMessages()
	if messages[1].ToolCalls[0].Name != "execute_sql_query" {
		t.Errorf("Tool calls not round-tripped: %+v", messages[1].ToolCalls)
	}
	if messages[2].ToolUseID != "c1" {
		t.Errorf("ToolUseID not round-tripped: %q", messages[2].ToolUseID)
	}
	if messages[2].ToolResult == nil || !messages[2].ToolResult.Success {
		t.Errorf("ToolResult not round-tripped: %+v", messages[2].ToolResult)
	}
}

func TestSessionStore_EncryptionRequiresKey(t *testing.T) {
	_, err := NewSessionStoreWithConfig(DBConfig{
		Path:            filepath.Join(t.TempDir(), "sessions.db"),
		EncryptDatabase: true,
	})
	if err == nil {
		t.Fatal("Expected an error opening an encrypted store without a key")
	}
}

func TestSessionStore_LoadMissingSession(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.LoadSession(context.Background(), "nope"); err == nil {
		t.Error("Expected error for missing session")
	}
}

func TestSessionStore_SaveSessionUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := &Session{
		ID:        "s1",
		Context:   map[string]interface{}{},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	session.TotalTokens = 500
	session.TotalCostUSD = 0.02
	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	loaded, err := store.LoadSession(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if loaded.TotalTokens != 500 {
		t.Errorf("TotalTokens = %d, want 500", loaded.TotalTokens)
	}
}

func TestSessionStore_SaveToolExecution(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	exec := ToolExecution{
		ToolName: "get_table_names",
		Input:    map[string]interface{}{},
		Result:   &tool.Result{Success: true, Data: []string{"titanic"}, ExecutionTimeMs: 3},
	}
	if err := store.SaveToolExecution(ctx, "s1", exec); err != nil {
		t.Fatalf("SaveToolExecution failed: %v", err)
	}
}

func TestSessionStore_DeleteSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := &Session{ID: "s1", Context: map[string]interface{}{}, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if err := store.SaveMessage(ctx, "s1", Message{Role: types.RoleUser, Content: "x", Timestamp: time.Now()}); err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}

	if err := store.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := store.LoadSession(ctx, "s1"); err == nil {
		t.Error("Expected session to be gone")
	}
}

func TestSessionStore_IdleSessionIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := &Session{ID: "old", Context: map[string]interface{}{}, CreatedAt: time.Now().Add(-2 * time.Hour)}
	old.UpdatedAt = time.Now().Add(-2 * time.Hour)
	fresh := &Session{ID: "fresh", Context: map[string]interface{}{}, CreatedAt: time.Now()}
	fresh.UpdatedAt = time.Now()

	if err := store.SaveSession(ctx, old); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if err := store.SaveSession(ctx, fresh); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	ids, err := store.IdleSessionIDs(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("IdleSessionIDs failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "old" {
		t.Errorf("IdleSessionIDs = %v, want [old]", ids)
	}
}

func TestMemoryWithStore_PersistsAcrossInstances(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sessions.db")

	store1, err := NewSessionStore(dbPath)
	if err != nil {
		t.Fatalf("NewSessionStore failed: %v", err)
	}
	mem1 := NewMemoryWithStore(store1)

	session := mem1.GetOrCreateSession("persistent")
	msg := Message{Role: types.RoleUser, Content: "remember me", Timestamp: time.Now()}
	session.AddMessage(msg)
	if err := mem1.PersistMessage(context.Background(), "persistent", msg); err != nil {
		t.Fatalf("PersistMessage failed: %v", err)
	}
	if err := mem1.PersistSession(context.Background(), session); err != nil {
		t.Fatalf("PersistSession failed: %v", err)
	}
	store1.Close()

	store2, err := NewSessionStore(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store2.Close()
	mem2 := NewMemoryWithStore(store2)

	restored := mem2.GetOrCreateSession("persistent")
	messages := restored.GetMessages()
	if len(messages) == 0 {
		t.Fatal("Expected restored session to have messages")
	}
	found := false
	for _, m := range messages {
		if m.Content == "remember me" {
			found = true
		}
	}
	if !found {
		t.Error("Expected restored session to contain the persisted message")
	}
}
