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
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/teradata-labs/bobbin/pkg/tool/builtin"
)

// QuestionsResponse is the GET /questions body.
type QuestionsResponse struct {
	Questions []*builtin.HumanRequest `json:"questions"`
}

// AnswerRequest is the POST /questions/{id}/answer body.
type AnswerRequest struct {
	Response string `json:"response"`
}

func (h *HTTPServer) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	pending, err := h.humanStore.ListPending(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, ErrKindInternal, err.Error())
		return
	}
	if pending == nil {
		pending = []*builtin.HumanRequest{}
	}

	h.writeJSON(w, http.StatusOK, &QuestionsResponse{Questions: pending})
}

func (h *HTTPServer) handleAnswerQuestion(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrKindBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Response) == "" {
		h.writeError(w, http.StatusBadRequest, ErrKindBadRequest, "response is required")
		return
	}

	if err := h.humanStore.Respond(r.Context(), id, req.Response); err != nil {
		h.writeError(w, http.StatusNotFound, ErrKindBadRequest, err.Error())
		return
	}

	h.logger.Info("human question answered", zap.String("request_id", id))
	w.WriteHeader(http.StatusNoContent)
}
