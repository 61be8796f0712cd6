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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/bobbin/pkg/tool/builtin"
)

func newQuestionServer(t *testing.T) (*HTTPServer, builtin.HumanRequestStore) {
	t.Helper()

	srv := newTestServer(t, &scriptedProvider{})
	store := builtin.NewInMemoryHumanRequestStore()
	srv.SetHumanRequestStore(store)
	return srv, store
}

func TestQuestions_ListAndAnswer(t *testing.T) {
	srv, store := newQuestionServer(t)
	ctx := context.Background()

	require.NoError(t, store.Store(ctx, &builtin.HumanRequest{
		ID:        "q1",
		Question:  "Which deck?",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Minute),
		Status:    "pending",
	}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/questions", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp QuestionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Len(t, listResp.Questions, 1)
	assert.Equal(t, "q1", listResp.Questions[0].ID)
	assert.Equal(t, "Which deck?", listResp.Questions[0].Question)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/questions/q1/answer",
		bytes.NewBufferString(`{"response":"Deck C"}`)))
	require.Equal(t, http.StatusNoContent, rec.Code)

	got, err := store.Get(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, "responded", got.Status)
	assert.Equal(t, "Deck C", got.Response)

	// Answered questions leave the pending list.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/questions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	listResp = QuestionsResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	assert.Empty(t, listResp.Questions)
}

func TestQuestions_AnswerValidation(t *testing.T) {
	srv, _ := newQuestionServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/questions/q1/answer",
		bytes.NewBufferString(`{"response":""}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/questions/missing/answer",
		bytes.NewBufferString(`{"response":"hello"}`)))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuestions_RoutesAbsentWithoutStore(t *testing.T) {
	srv := newTestServer(t, &scriptedProvider{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/questions", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
