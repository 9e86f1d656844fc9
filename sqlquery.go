package querycache

import (
	"context"
	"database/sql"
	"encoding/json"
)

// DBQuery adapts a database/sql read to the Query contract and supplies the
// execution callback that runs it. Rows are JSON-encoded for storage, with
// driver byte slices rendered as strings.
type DBQuery struct {
	db   *sql.DB
	conn string
	text string
	args []any
}

// NewDBQuery binds a prepared statement text and its positional arguments to
// a connection name used for cache key scoping.
func NewDBQuery(db *sql.DB, conn, text string, args ...any) *DBQuery {
	return &DBQuery{db: db, conn: conn, text: text, args: args}
}

func (q *DBQuery) Connection() string { return q.conn }

func (q *DBQuery) SQL() string { return q.text }

func (q *DBQuery) Bindings() []any { return append([]any(nil), q.args...) }

// Exec runs the query and returns its rows as a JSON array of column maps.
// It satisfies ExecFunc.
func (q *DBQuery) Exec(ctx context.Context) ([]byte, error) {
	rows, err := q.db.QueryContext(ctx, q.text, q.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			value := values[i]
			if body, ok := value.([]byte); ok {
				value = string(body)
			}
			row[col] = value
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// ExecValue runs the query expecting a single scalar (e.g. a COUNT) and
// returns it JSON-encoded.
func (q *DBQuery) ExecValue(ctx context.Context) ([]byte, error) {
	var value any
	if err := q.db.QueryRowContext(ctx, q.text, q.args...).Scan(&value); err != nil {
		return nil, err
	}
	if body, ok := value.([]byte); ok {
		value = string(body)
	}
	return json.Marshal(value)
}
