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
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// LoadFile ingests a CSV or XLSX file into the SQLite database at dbPath,
// creating one table named after the source file. CSV sources may be
// gzip- or zstd-compressed (.csv.gz, .csv.zst). An existing table with
// that name is replaced. Returns the table name.
func LoadFile(dbPath, srcPath string, logger *zap.Logger) (string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var header []string
	var records [][]string
	var err error

	logical, compression := splitCompression(srcPath)
	switch strings.ToLower(filepath.Ext(logical)) {
	case ".csv":
		header, records, err = readCSV(srcPath, compression)
	case ".xlsx":
		if compression != "" {
			return "", fmt.Errorf("unsupported dataset format: %s (compressed XLSX is not supported)", srcPath)
		}
		header, records, err = readXLSX(srcPath)
	default:
		return "", fmt.Errorf("unsupported dataset format: %s (want .csv or .xlsx)", srcPath)
	}
	if err != nil {
		return "", err
	}
	if len(header) == 0 {
		return "", fmt.Errorf("dataset %s has no header row", srcPath)
	}

	table := TableNameFromPath(srcPath)

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return "", fmt.Errorf("open database %s: %w", dbPath, err)
	}
	defer db.Close()

	if err := createAndFill(db, table, header, records); err != nil {
		return "", err
	}

	logger.Info("dataset loaded",
		zap.String("table", table),
		zap.Int("columns", len(header)),
		zap.Int("rows", len(records)))

	return table, nil
}

// TableNameFromPath derives a table name from a file path: the base name
// without extension (and without any compression suffix), with
// non-alphanumeric runs collapsed to underscores.
func TableNameFromPath(path string) string {
	logical, _ := splitCompression(path)
	base := filepath.Base(logical)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(base) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		name = "dataset"
	}
	// SQLite identifiers must not start with a digit.
	if name[0] >= '0' && name[0] <= '9' {
		name = "t_" + name
	}
	return name
}

// splitCompression strips a recognized compression suffix from the path.
// Returns the logical path ("titanic.csv" for "titanic.csv.zst") and the
// compression name, or "" when the file is plain.
func splitCompression(path string) (logical, compression string) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return strings.TrimSuffix(path, filepath.Ext(path)), "gzip"
	case ".zst":
		return strings.TrimSuffix(path, filepath.Ext(path)), "zstd"
	default:
		return path, ""
	}
}

func readCSV(path, compression string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer f.Close()

	var src io.Reader = f
	switch compression {
	case "gzip":
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("open gzip dataset %s: %w", path, err)
		}
		defer gz.Close()
		src = gz
	case "zstd":
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("open zstd dataset %s: %w", path, err)
		}
		defer zr.Close()
		src = zr
	}

	r := csv.NewReader(src)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", path, err)
		}
		// Pad short rows so every record matches the header width.
		for len(rec) < len(header) {
			rec = append(rec, "")
		}
		records = append(records, rec[:len(header)])
	}
	return header, records, nil
}

func readXLSX(path string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("dataset %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s of %s: %w", sheets[0], path, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("dataset %s is empty", path)
	}

	header := rows[0]
	var records [][]string
	for _, rec := range rows[1:] {
		for len(rec) < len(header) {
			rec = append(rec, "")
		}
		records = append(records, rec[:len(header)])
	}
	return header, records, nil
}

func createAndFill(db *sql.DB, table string, header []string, records [][]string) error {
	colTypes := inferColumnTypes(header, records)

	colDefs := make([]string, len(header))
	for i, name := range header {
		colDefs[i] = fmt.Sprintf("%q %s", sanitizeColumnName(name), colTypes[i])
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin load transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %q", table)); err != nil {
		return fmt.Errorf("drop existing table %s: %w", table, err)
	}
	if _, err := tx.Exec(fmt.Sprintf("CREATE TABLE %q (%s)", table, strings.Join(colDefs, ", "))); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(header)), ",")
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %q VALUES (%s)", table, placeholders))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		args := make([]interface{}, len(rec))
		for i, v := range rec {
			args[i] = convertValue(v, colTypes[i])
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("insert row into %s: %w", table, err)
		}
	}

	return tx.Commit()
}

// inferColumnTypes picks INTEGER, REAL, or TEXT per column by scanning all
// non-empty values. Empty cells don't disqualify a numeric column; they load
// as NULL.
func inferColumnTypes(header []string, records [][]string) []string {
	typesOut := make([]string, len(header))
	for col := range header {
		isInt, isReal, seen := true, true, false
		for _, rec := range records {
			v := strings.TrimSpace(rec[col])
			if v == "" {
				continue
			}
			seen = true
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isInt = false
			}
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				isReal = false
			}
			if !isInt && !isReal {
				break
			}
		}
		switch {
		case seen && isInt:
			typesOut[col] = "INTEGER"
		case seen && isReal:
			typesOut[col] = "REAL"
		default:
			typesOut[col] = "TEXT"
		}
	}
	return typesOut
}

func convertValue(v, colType string) interface{} {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	switch colType {
	case "INTEGER":
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	case "REAL":
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return v
}

func sanitizeColumnName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "column"
	}
	return name
}
