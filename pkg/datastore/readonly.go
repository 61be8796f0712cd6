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
	"strings"
)

// mutatingKeywords are statement keywords that modify data or schema.
// Appearing at statement level (outside parentheses and string literals)
// they mark the statement as a write.
var mutatingKeywords = map[string]bool{
	"insert":   true,
	"update":   true,
	"delete":   true,
	"replace":  true,
	"drop":     true,
	"create":   true,
	"alter":    true,
	"truncate": true,
	"attach":   true,
	"detach":   true,
	"vacuum":   true,
	"reindex":  true,
	"pragma":   true,
	"grant":    true,
	"revoke":   true,
	"merge":    true,
	"call":     true,
	"begin":    true,
	"commit":   true,
	"rollback": true,
}

// CheckReadOnly verifies that a SQL statement is a single read-only query.
// Only SELECT and WITH...SELECT statements pass; anything else, including
// multi-statement batches and CTEs that wrap a write, is rejected with a
// permission_denied Error.
func CheckReadOnly(query string) error {
	stripped := stripSQL(query)
	if stripped == "" {
		return &Error{Kind: KindSyntax, Message: "empty query"}
	}

	tokens := tokenizeSQL(stripped)
	if len(tokens) == 0 {
		return &Error{Kind: KindSyntax, Message: "empty query"}
	}

	first := strings.ToLower(tokens[0])
	switch first {
	case "select", "with", "explain":
	default:
		return &Error{
			Kind:    KindPermission,
			Message: "only read-only queries are supported",
		}
	}

	// A CTE or EXPLAIN prefix can still wrap a write, and a semicolon can
	// smuggle a second statement; scan the remaining statement-level tokens.
	for _, tok := range tokens[1:] {
		if tok == ";" {
			return &Error{
				Kind:    KindPermission,
				Message: "multi-statement queries are not supported",
			}
		}
		if mutatingKeywords[strings.ToLower(tok)] {
			return &Error{
				Kind:    KindPermission,
				Message: "only read-only queries are supported",
			}
		}
	}

	return nil
}

// stripSQL removes SQL comments, trims whitespace, and drops one trailing
// semicolon. A remaining interior semicolon marks a multi-statement batch.
func stripSQL(query string) string {
	var b strings.Builder
	s := query
	for i := 0; i < len(s); i++ {
		if s[i] == '-' && i+1 < len(s) && s[i+1] == '-' {
			for i < len(s) && s[i] != '\n' {
				i++
			}
			b.WriteByte(' ')
			continue
		}
		if s[i] == '/' && i+1 < len(s) && s[i+1] == '*' {
			i += 2
			for i+1 < len(s) && !(s[i] == '*' && s[i+1] == '/') {
				i++
			}
			i++
			b.WriteByte(' ')
			continue
		}
		b.WriteByte(s[i])
	}
	out := strings.TrimSpace(b.String())
	out = strings.TrimSuffix(out, ";")
	return strings.TrimSpace(out)
}

// tokenizeSQL splits a statement into bare word tokens at paren depth zero,
// skipping string literals and quoted identifiers.
func tokenizeSQL(s string) []string {
	var tokens []string
	var cur strings.Builder
	depth := 0

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			flush()
			quote := c
			i++
			for i < len(s) && s[i] != quote {
				i++
			}
		case c == '(':
			flush()
			depth++
		case c == ')':
			flush()
			if depth > 0 {
				depth--
			}
		case c == ';':
			flush()
			tokens = append(tokens, ";")
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9':
			if depth == 0 {
				cur.WriteByte(c)
			}
		default:
			flush()
		}
	}
	flush()
	return tokens
}
