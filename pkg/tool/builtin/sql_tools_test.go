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
package builtin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teradata-labs/bobbin/pkg/datastore"
	"github.com/teradata-labs/bobbin/pkg/tool"
)

const testCSV = `PassengerId,Survived,Pclass,Name,Age,Fare
1,0,3,"Braund, Mr. Owen Harris",22,7.25
2,1,1,"Cumings, Mrs. John Bradley",38,71.2833
3,1,3,"Heikkinen, Miss. Laina",26,7.925
4,1,1,"Futrelle, Mrs. Jacques Heath",35,53.1
5,0,3,"Allen, Mr. William Henry",35,8.05
`

func newTestStore(t *testing.T) *datastore.Store {
	t.Helper()

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "titanic.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(testCSV), 0o644))

	dbPath := filepath.Join(dir, "titanic.db")
	_, err := datastore.LoadFile(dbPath, csvPath, nil)
	require.NoError(t, err)

	store, err := datastore.Open(datastore.Config{Driver: "sqlite3", DSN: dbPath}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestExecuteSQLQueryTool_Success(t *testing.T) {
	sqlTool := NewExecuteSQLQueryTool(newTestStore(t))

	result, err := sqlTool.Execute(context.Background(), map[string]interface{}{
		"query": "SELECT COUNT(*) FROM titanic WHERE Survived = 1",
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	data, ok := result.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []string{"COUNT(*)"}, data["columns"])
	assert.Equal(t, 1, data["row_count"])

	rows, ok := data["rows"].([][]interface{})
	require.True(t, ok)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 3, rows[0][0])
}

func TestExecuteSQLQueryTool_WriteRejected(t *testing.T) {
	sqlTool := NewExecuteSQLQueryTool(newTestStore(t))
	ctx := context.Background()

	result, err := sqlTool.Execute(ctx, map[string]interface{}{
		"query": "INSERT INTO titanic (PassengerId) VALUES (99)",
	})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, datastore.KindPermission, result.Error.Code)
	assert.True(t, result.Error.Retryable)
	assert.Contains(t, result.Error.Suggestion, "Only SELECT")

	// The rejected write must not have touched the data.
	count, err := sqlTool.Execute(ctx, map[string]interface{}{
		"query": "SELECT COUNT(*) FROM titanic",
	})
	require.NoError(t, err)
	require.True(t, count.Success)
	rows := count.Data.(map[string]interface{})["rows"].([][]interface{})
	assert.EqualValues(t, 5, rows[0][0])
}

func TestExecuteSQLQueryTool_SchemaError(t *testing.T) {
	sqlTool := NewExecuteSQLQueryTool(newTestStore(t))

	result, err := sqlTool.Execute(context.Background(), map[string]interface{}{
		"query": "SELECT NoSuchColumn FROM titanic",
	})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, datastore.KindSchema, result.Error.Code)
	assert.True(t, result.Error.Retryable)
	assert.Contains(t, result.Error.Suggestion, "get_table_columns")
}

func TestExecuteSQLQueryTool_SyntaxError(t *testing.T) {
	sqlTool := NewExecuteSQLQueryTool(newTestStore(t))

	result, err := sqlTool.Execute(context.Background(), map[string]interface{}{
		"query": "SELEKT * FROM titanic",
	})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, datastore.KindSyntax, result.Error.Code)
	assert.True(t, result.Error.Retryable)
}

func TestExecuteSQLQueryTool_MissingQueryParam(t *testing.T) {
	sqlTool := NewExecuteSQLQueryTool(newTestStore(t))

	for _, params := range []map[string]interface{}{
		{},
		{"query": ""},
		{"query": 42},
	} {
		result, err := sqlTool.Execute(context.Background(), params)
		require.NoError(t, err)
		require.False(t, result.Success)
		assert.Equal(t, tool.CodeValidation, result.Error.Code)
	}
}

func TestGetTableNamesTool(t *testing.T) {
	namesTool := NewGetTableNamesTool(newTestStore(t))

	result, err := namesTool.Execute(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	require.True(t, result.Success)

	data := result.Data.(map[string]interface{})
	assert.Equal(t, []string{"titanic"}, data["tables"])
}

func TestGetTableColumnsTool(t *testing.T) {
	columnsTool := NewGetTableColumnsTool(newTestStore(t))

	result, err := columnsTool.Execute(context.Background(), map[string]interface{}{
		"table_name": "titanic",
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	data := result.Data.(map[string]interface{})
	assert.Equal(t, "titanic", data["table"])

	cols := data["columns"].([]map[string]interface{})
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c["name"].(string)
		assert.NotEmpty(t, c["type"], c["name"])
	}
	assert.Equal(t, []string{"PassengerId", "Survived", "Pclass", "Name", "Age", "Fare"}, names)
}

func TestGetTableColumnsTool_UnknownTable(t *testing.T) {
	columnsTool := NewGetTableColumnsTool(newTestStore(t))

	result, err := columnsTool.Execute(context.Background(), map[string]interface{}{
		"table_name": "no_such_table",
	})
	require.NoError(t, err)
	require.False(t, result.Success)
	assert.Equal(t, datastore.KindSchema, result.Error.Code)
	assert.True(t, result.Error.Retryable)
}

func TestGetTableRowExampleTool(t *testing.T) {
	sampleTool := NewGetTableRowExampleTool(newTestStore(t))

	result, err := sampleTool.Execute(context.Background(), map[string]interface{}{
		"table_name": "titanic",
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	data := result.Data.(map[string]interface{})
	assert.Equal(t, 1, data["row_count"])
	rows := data["rows"].([][]interface{})
	require.Len(t, rows, 1)
	assert.Len(t, rows[0], 6)
}

func TestSQLTools_Registration(t *testing.T) {
	registry := tool.NewRegistry()
	for _, tl := range SQLTools(newTestStore(t)) {
		require.NoError(t, registry.Register(tl))
	}

	names := make([]string, 0, 4)
	for _, tl := range registry.ListTools() {
		names = append(names, tl.Name())
	}
	assert.ElementsMatch(t, names, []string{
		"execute_sql_query", "get_table_names", "get_table_columns", "get_table_row_example",
	})
}
