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

// Package builtin provides the tools every bobbin agent ships with: the
// read-only SQL tools over the dataset store, and the ask_human escalation
// tool.
package builtin

import (
	"context"
	"errors"

	"github.com/teradata-labs/bobbin/pkg/datastore"
	"github.com/teradata-labs/bobbin/pkg/tool"
	"github.com/teradata-labs/bobbin/pkg/types"
)

// SQLTools returns the read-only query tools over the given store, in the
// order they should be presented to the LLM.
func SQLTools(store *datastore.Store) []tool.Tool {
	return []tool.Tool{
		NewExecuteSQLQueryTool(store),
		NewGetTableNamesTool(store),
		NewGetTableColumnsTool(store),
		NewGetTableRowExampleTool(store),
	}
}

// resultFromStoreError maps a datastore error onto a failed Result the LLM
// can recover from. Query-layer error kinds share their wire names with the
// tool error codes, so the kind passes through as the code. Context errors
// propagate as Go errors for the executor to classify.
func resultFromStoreError(err error) (*tool.Result, error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil, err
	}

	var storeErr *datastore.Error
	if errors.As(err, &storeErr) {
		return &tool.Result{
			Success: false,
			Error: &tool.Error{
				Code:       storeErr.Kind,
				Message:    storeErr.Message,
				Retryable:  true,
				Suggestion: suggestionFor(storeErr.Kind),
			},
		}, nil
	}

	return &tool.Result{
		Success: false,
		Error: &tool.Error{
			Code:      tool.CodeExecution,
			Message:   err.Error(),
			Retryable: true,
		},
	}, nil
}

func suggestionFor(kind string) string {
	switch kind {
	case datastore.KindSyntax:
		return "Check the SQL syntax and try again."
	case datastore.KindSchema:
		return "Use get_table_names and get_table_columns to check the schema, then correct the query."
	case datastore.KindPermission:
		return "Only SELECT queries are allowed. Rewrite the query without write or DDL statements."
	default:
		return ""
	}
}

func resultSetData(rs *types.ResultSet) map[string]interface{} {
	return map[string]interface{}{
		"columns":   rs.Columns,
		"rows":      rs.Rows,
		"row_count": rs.RowCount,
	}
}

// ExecuteSQLQueryTool runs a read-only SQL query against the dataset.
type ExecuteSQLQueryTool struct {
	store *datastore.Store
}

// NewExecuteSQLQueryTool creates the execute_sql_query tool.
func NewExecuteSQLQueryTool(store *datastore.Store) *ExecuteSQLQueryTool {
	return &ExecuteSQLQueryTool{store: store}
}

func (t *ExecuteSQLQueryTool) Name() string {
	return "execute_sql_query"
}

func (t *ExecuteSQLQueryTool) Description() string {
	return "Runs a read-only SQL query (SELECT only) against the dataset and returns the matching rows. " +
		"Write statements, DDL, and multi-statement queries are rejected."
}

func (t *ExecuteSQLQueryTool) InputSchema() *tool.JSONSchema {
	return tool.NewObjectSchema(
		"Parameters for running a read-only SQL query",
		map[string]*tool.JSONSchema{
			"query": tool.NewStringSchema("The SELECT statement to run."),
		},
		[]string{"query"},
	)
}

func (t *ExecuteSQLQueryTool) Execute(ctx context.Context, params map[string]interface{}) (*tool.Result, error) {
	query, ok := params["query"].(string)
	if !ok || query == "" {
		return tool.ErrorResult(tool.CodeValidation, "query must be a non-empty string", true), nil
	}

	rs, err := t.store.Query(ctx, query)
	if err != nil {
		return resultFromStoreError(err)
	}

	return &tool.Result{
		Success: true,
		Data:    resultSetData(rs),
	}, nil
}

// GetTableNamesTool lists the tables in the dataset.
type GetTableNamesTool struct {
	store *datastore.Store
}

// NewGetTableNamesTool creates the get_table_names tool.
func NewGetTableNamesTool(store *datastore.Store) *GetTableNamesTool {
	return &GetTableNamesTool{store: store}
}

func (t *GetTableNamesTool) Name() string {
	return "get_table_names"
}

func (t *GetTableNamesTool) Description() string {
	return "Lists the tables available in the dataset."
}

func (t *GetTableNamesTool) InputSchema() *tool.JSONSchema {
	return tool.NewObjectSchema("No parameters", map[string]*tool.JSONSchema{}, []string{})
}

func (t *GetTableNamesTool) Execute(ctx context.Context, params map[string]interface{}) (*tool.Result, error) {
	tables, err := t.store.Tables(ctx)
	if err != nil {
		return resultFromStoreError(err)
	}

	return &tool.Result{
		Success: true,
		Data:    map[string]interface{}{"tables": tables},
	}, nil
}

// GetTableColumnsTool describes the columns of one table.
type GetTableColumnsTool struct {
	store *datastore.Store
}

// NewGetTableColumnsTool creates the get_table_columns tool.
func NewGetTableColumnsTool(store *datastore.Store) *GetTableColumnsTool {
	return &GetTableColumnsTool{store: store}
}

func (t *GetTableColumnsTool) Name() string {
	return "get_table_columns"
}

func (t *GetTableColumnsTool) Description() string {
	return "Returns the column names and types of a table."
}

func (t *GetTableColumnsTool) InputSchema() *tool.JSONSchema {
	return tool.NewObjectSchema(
		"Parameters for describing a table",
		map[string]*tool.JSONSchema{
			"table_name": tool.NewStringSchema("Name of the table to describe."),
		},
		[]string{"table_name"},
	)
}

func (t *GetTableColumnsTool) Execute(ctx context.Context, params map[string]interface{}) (*tool.Result, error) {
	tableName, ok := params["table_name"].(string)
	if !ok || tableName == "" {
		return tool.ErrorResult(tool.CodeValidation, "table_name must be a non-empty string", true), nil
	}

	columns, err := t.store.Columns(ctx, tableName)
	if err != nil {
		return resultFromStoreError(err)
	}

	cols := make([]map[string]interface{}, len(columns))
	for i, c := range columns {
		cols[i] = map[string]interface{}{"name": c.Name, "type": c.Type}
	}

	return &tool.Result{
		Success: true,
		Data: map[string]interface{}{
			"table":   tableName,
			"columns": cols,
		},
	}, nil
}

// GetTableRowExampleTool returns one sample row from a table, so the LLM can
// see what the values look like before writing queries.
type GetTableRowExampleTool struct {
	store *datastore.Store
}

// NewGetTableRowExampleTool creates the get_table_row_example tool.
func NewGetTableRowExampleTool(store *datastore.Store) *GetTableRowExampleTool {
	return &GetTableRowExampleTool{store: store}
}

func (t *GetTableRowExampleTool) Name() string {
	return "get_table_row_example"
}

func (t *GetTableRowExampleTool) Description() string {
	return "Returns a single example row from a table, showing real values for each column."
}

func (t *GetTableRowExampleTool) InputSchema() *tool.JSONSchema {
	return tool.NewObjectSchema(
		"Parameters for sampling a table",
		map[string]*tool.JSONSchema{
			"table_name": tool.NewStringSchema("Name of the table to sample."),
		},
		[]string{"table_name"},
	)
}

func (t *GetTableRowExampleTool) Execute(ctx context.Context, params map[string]interface{}) (*tool.Result, error) {
	tableName, ok := params["table_name"].(string)
	if !ok || tableName == "" {
		return tool.ErrorResult(tool.CodeValidation, "table_name must be a non-empty string", true), nil
	}

	rs, err := t.store.SampleRow(ctx, tableName)
	if err != nil {
		return resultFromStoreError(err)
	}

	return &tool.Result{
		Success: true,
		Data:    resultSetData(rs),
	}, nil
}

var (
	_ tool.Tool = (*ExecuteSQLQueryTool)(nil)
	_ tool.Tool = (*GetTableNamesTool)(nil)
	_ tool.Tool = (*GetTableColumnsTool)(nil)
	_ tool.Tool = (*GetTableRowExampleTool)(nil)
)
