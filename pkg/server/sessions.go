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
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/teradata-labs/bobbin/pkg/types"
)

var errSessionNotFound = errors.New("session not found")

// SessionMessage is one history entry in a GET /sessions/{id} response.
type SessionMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionResponse is the GET /sessions/{id} body.
type SessionResponse struct {
	SessionID    string           `json:"session_id"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	TotalTokens  int              `json:"total_tokens"`
	MessageCount int              `json:"message_count"`
	Messages     []SessionMessage `json:"messages"`
}

func (h *HTTPServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	session, err := h.lookupSession(r, id)
	if err != nil {
		h.writeError(w, http.StatusNotFound, ErrKindBadRequest, "session not found: "+id)
		return
	}

	messages := session.GetMessages()
	out := make([]SessionMessage, 0, len(messages))
	for _, msg := range messages {
		// Tool-result plumbing stays internal; clients see the dialogue.
		if msg.Role == types.RoleSystem || msg.Role == types.RoleTool {
			continue
		}
		out = append(out, SessionMessage{
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		})
	}

	h.writeJSON(w, http.StatusOK, &SessionResponse{
		SessionID:    session.ID,
		CreatedAt:    session.CreatedTime(),
		UpdatedAt:    session.LastUpdated(),
		TotalTokens:  session.TokenTotal(),
		MessageCount: len(out),
		Messages:     out,
	})
}

// lookupSession checks live memory first, then the persistent store, so
// history survives a restart without resurrecting the session into memory.
func (h *HTTPServer) lookupSession(r *http.Request, id string) (*types.Session, error) {
	memory := h.agent.Memory()
	if session, ok := memory.GetSession(id); ok {
		return session, nil
	}

	store := memory.GetStore()
	if store == nil {
		return nil, errSessionNotFound
	}
	return store.LoadSession(r.Context(), id)
}

func (h *HTTPServer) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := h.lookupSession(r, id); err != nil {
		h.writeError(w, http.StatusNotFound, ErrKindBadRequest, "session not found: "+id)
		return
	}

	h.agent.Memory().DeleteSession(id)
	w.WriteHeader(http.StatusNoContent)
}
