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
	"errors"
	"testing"
)

func TestCheckReadOnly_Allowed(t *testing.T) {
	queries := []string{
		"SELECT * FROM titanic",
		"select count(*) from titanic where Survived = 1",
		"SELECT name FROM sqlite_master WHERE type='table'",
		"WITH survivors AS (SELECT * FROM titanic WHERE Survived=1) SELECT COUNT(*) FROM survivors",
		"SELECT * FROM titanic;",
		"  SELECT 1  ",
		"SELECT * FROM titanic -- trailing comment",
		"/* leading comment */ SELECT 1",
		"SELECT 'insert' AS word FROM titanic",
		`SELECT "drop" FROM titanic`,
	}

	for _, q := range queries {
		if err := CheckReadOnly(q); err != nil {
			t.Errorf("CheckReadOnly(%q) = %v, want nil", q, err)
		}
	}
}

func TestCheckReadOnly_Rejected(t *testing.T) {
	tests := []struct {
		query string
		kind  string
	}{
		{"INSERT INTO titanic VALUES (1)", KindPermission},
		{"UPDATE titanic SET Survived=0", KindPermission},
		{"DELETE FROM titanic", KindPermission},
		{"DROP TABLE titanic", KindPermission},
		{"CREATE TABLE evil (id INT)", KindPermission},
		{"ALTER TABLE titanic ADD COLUMN x TEXT", KindPermission},
		{"PRAGMA journal_mode=DELETE", KindPermission},
		{"ATTACH DATABASE 'other.db' AS other", KindPermission},
		{"WITH x AS (SELECT 1) DELETE FROM titanic", KindPermission},
		{"SELECT 1; DROP TABLE titanic", KindPermission},
		{"-- sneaky\nDROP TABLE titanic", KindPermission},
		{"", KindSyntax},
		{"   ;  ", KindSyntax},
	}

	for _, tt := range tests {
		err := CheckReadOnly(tt.query)
		if err == nil {
			t.Errorf("CheckReadOnly(%q) = nil, want %s", tt.query, tt.kind)
			continue
		}
		var dsErr *Error
		if !errors.As(err, &dsErr) {
			t.Errorf("CheckReadOnly(%q) returned %T, want *Error", tt.query, err)
			continue
		}
		if dsErr.Kind != tt.kind {
			t.Errorf("CheckReadOnly(%q) kind = %s, want %s", tt.query, dsErr.Kind, tt.kind)
		}
	}
}

func TestClassifyQueryError(t *testing.T) {
	tests := []struct {
		msg  string
		kind string
	}{
		{"SQL logic error: no such table: passengers (1)", KindSchema},
		{"no such column: Age2", KindSchema},
		{`pq: relation "passengers" does not exist`, KindSchema},
		{"attempt to write a readonly database (8)", KindPermission},
		{`near "SELEC": syntax error (1)`, KindSyntax},
		{"incomplete input", KindSyntax},
	}

	for _, tt := range tests {
		err := classifyQueryError(errors.New(tt.msg))
		var dsErr *Error
		if !errors.As(err, &dsErr) {
			t.Fatalf("classifyQueryError(%q) returned %T, want *Error", tt.msg, err)
		}
		if dsErr.Kind != tt.kind {
			t.Errorf("classifyQueryError(%q) kind = %s, want %s", tt.msg, dsErr.Kind, tt.kind)
		}
	}
}

func TestTableNameFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/titanic.csv", "titanic"},
		{"My Data-Set.csv", "my_data_set"},
		{"report (final).xlsx", "report_final"},
		{"/tmp/titanic.csv.zst", "titanic"},
		{"titanic.csv.gz", "titanic"},
		{"2024.csv", "t_2024"},
		{"___.csv", "dataset"},
	}

	for _, tt := range tests {
		if got := TableNameFromPath(tt.path); got != tt.want {
			t.Errorf("TableNameFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
