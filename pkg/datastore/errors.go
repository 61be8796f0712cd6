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
package datastore

import (
	"fmt"
	"strings"
)

// Error kinds for the query layer. All three are recoverable from the
// reasoning loop's perspective: they are surfaced to the LLM so it can
// correct the query.
const (
	KindSyntax     = "sql_syntax"
	KindSchema     = "sql_schema"
	KindPermission = "permission_denied"
)

// Error is a classified query-layer error.
type Error struct {
	Kind    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// classifyQueryError maps a driver error onto the query-layer taxonomy by
// inspecting its message. Unrecognized errors default to sql_syntax since
// the common cause is a malformed LLM-generated statement.
func classifyQueryError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "no such table"),
		strings.Contains(lower, "no such column"),
		strings.Contains(lower, "does not exist"),
		strings.Contains(lower, "unknown table"),
		strings.Contains(lower, "unknown column"):
		return &Error{Kind: KindSchema, Message: msg}
	case strings.Contains(lower, "readonly"),
		strings.Contains(lower, "read-only"),
		strings.Contains(lower, "attempt to write"),
		strings.Contains(lower, "permission denied"):
		return &Error{Kind: KindPermission, Message: msg}
	default:
		return &Error{Kind: KindSyntax, Message: msg}
	}
}
