package sqlio

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/leapstack-labs/datarush/internal/fileio"
	"github.com/leapstack-labs/datarush/pkg/core"
)

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ReadFrame runs query and collects the result set into a frame.
func ReadFrame(ctx context.Context, q Querier, query string, args ...any) (*core.Frame, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	var data [][]any
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			values[i] = normalizeCell(v)
		}
		data = append(data, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return core.FrameFromRows(names, data)
}

// normalizeCell maps driver values onto the frame cell types.
func normalizeCell(v any) any {
	switch val := v.(type) {
	case nil, string, int64, float64, bool, time.Time:
		return val
	case []byte:
		return string(val)
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return int64(val) //nolint:gosec // values beyond int64 are not expected
	case float32:
		return float64(val)
	case *big.Int:
		if val.IsInt64() {
			return val.Int64()
		}
		return val.String()
	case []any:
		for i := range val {
			val[i] = normalizeCell(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = normalizeCell(val[k])
		}
		return val
	case interface{ Float64() float64 }:
		return val.Float64()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// WriteMode controls what happens when the target table exists.
type WriteMode string

const (
	// WriteCreate fails if the table exists.
	WriteCreate WriteMode = "create"
	// WriteAppend inserts into the table, creating it if missing.
	WriteAppend WriteMode = "append"
	// WriteReplace drops and recreates the table.
	WriteReplace WriteMode = "replace"
)

// WriteModes lists the modes, for enum parameters.
var WriteModes = []string{string(WriteCreate), string(WriteAppend), string(WriteReplace)}

// WriteFrame stores f into table in a single transaction.
func WriteFrame(ctx context.Context, db *sql.DB, d Driver, table string, f *core.Frame, mode WriteMode) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	quoted := QuoteIdent(table)
	switch mode {
	case WriteReplace:
		if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoted); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
		err = createTable(ctx, tx, quoted, f, false)
	case WriteAppend:
		err = createTable(ctx, tx, quoted, f, true)
	case WriteCreate:
		err = createTable(ctx, tx, quoted, f, false)
	default:
		err = fmt.Errorf("unknown write mode %q", mode)
	}
	if err != nil {
		return err
	}

	if f.NumColumns() > 0 && f.NumRows() > 0 {
		if err = insertRows(ctx, tx, d, quoted, f); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func createTable(ctx context.Context, tx *sql.Tx, quoted string, f *core.Frame, ifNotExists bool) error {
	defs := make([]string, 0, f.NumColumns())
	for _, col := range f.Columns() {
		defs = append(defs, QuoteIdent(col.Name)+" "+ColumnType(col.Values))
	}

	stmt := "CREATE TABLE "
	if ifNotExists {
		stmt += "IF NOT EXISTS "
	}
	stmt += fmt.Sprintf("%s (%s)", quoted, strings.Join(defs, ", "))

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

func insertRows(ctx context.Context, tx *sql.Tx, d Driver, quoted string, f *core.Frame) error {
	names := f.ColumnNames()
	cols := make([]string, len(names))
	marks := make([]string, len(names))
	for i, name := range names {
		cols[i] = QuoteIdent(name)
		marks[i] = d.Placeholder(i)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoted, strings.Join(cols, ", "), strings.Join(marks, ", "))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := 0; i < f.NumRows(); i++ {
		row := f.Row(i)
		for c, v := range row {
			row[c] = bindValue(v)
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}
	return nil
}

func bindValue(v any) any {
	switch v.(type) {
	case []any, map[string]any:
		return fileio.FormatCell(v)
	default:
		return v
	}
}

// ColumnType picks a portable SQL type for a column from its values.
// Mixed or empty columns are TEXT.
func ColumnType(values []any) string {
	typ := ""
	for _, v := range values {
		var t string
		switch v.(type) {
		case nil:
			continue
		case int64, int:
			t = "BIGINT"
		case float64:
			t = "DOUBLE PRECISION"
		case bool:
			t = "BOOLEAN"
		case time.Time:
			t = "TIMESTAMP"
		default:
			return "TEXT"
		}
		switch {
		case typ == "":
			typ = t
		case typ == t:
		case typ == "BIGINT" && t == "DOUBLE PRECISION", typ == "DOUBLE PRECISION" && t == "BIGINT":
			typ = "DOUBLE PRECISION"
		default:
			return "TEXT"
		}
	}
	if typ == "" {
		return "TEXT"
	}
	return typ
}
