// Copyright 2021 FerretDB Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // register database/sql driver

	"github.com/FerretDB/aggregator/internal/types"
	"github.com/FerretDB/aggregator/internal/util/iterator"
	"github.com/FerretDB/aggregator/internal/util/lazyerrors"
)

// ErrNoTable is returned when the source table does not exist.
var ErrNoTable = errors.New("table does not exist")

// DB provides access to SQLite database tables as document collections.
type DB struct {
	db *sql.DB
}

// Open opens SQLite database with the given URI, such as "file:data.sqlite?mode=ro".
func Open(ctx context.Context, uri string) (*DB, error) {
	db, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	// a single connection keeps in-memory databases consistent
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(0)
	db.SetConnMaxLifetime(0)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, lazyerrors.Error(err)
	}

	return &DB{db: db}, nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.db.Close()
}

// Table returns an iterator over all rows of the table.
// Each row is a document with fields named after columns, in column order.
//
// Iterator's Close method releases the connection.
func (db *DB) Table(ctx context.Context, table string) (iterator.Interface[int, *types.Document], error) {
	var n int

	row := db.db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_schema WHERE type IN ('table', 'view') AND name = ?", table)
	if err := row.Scan(&n); err != nil {
		return nil, lazyerrors.Error(err)
	}

	if n == 0 {
		return nil, lazyerrors.Errorf("%q: %w", table, ErrNoTable)
	}

	q := "SELECT * FROM " + quoteIdentifier(table)

	rows, err := db.db.QueryContext(ctx, q)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, lazyerrors.Error(err)
	}

	return newRowsIterator(ctx, rows, columns), nil
}

// quoteIdentifier returns SQLite identifier quoted with double quotes.
func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// rowsIterator implements iterator.Interface to fetch documents from table rows.
//
//nolint:vet // for readability
type rowsIterator struct {
	ctx     context.Context
	columns []string

	m    sync.Mutex
	rows *sql.Rows
	n    int
}

// newRowsIterator returns a new rowsIterator for the given *sql.Rows.
func newRowsIterator(ctx context.Context, rows *sql.Rows, columns []string) *rowsIterator {
	return &rowsIterator{
		ctx:     ctx,
		columns: columns,
		rows:    rows,
	}
}

// Next implements iterator.Interface.
//
// The key is the row number starting from 0.
func (iter *rowsIterator) Next() (int, *types.Document, error) {
	iter.m.Lock()
	defer iter.m.Unlock()

	if iter.rows == nil {
		return 0, nil, iterator.ErrIteratorDone
	}

	if err := context.Cause(iter.ctx); err != nil {
		return 0, nil, lazyerrors.Error(err)
	}

	if !iter.rows.Next() {
		if err := iter.rows.Err(); err != nil {
			return 0, nil, lazyerrors.Error(err)
		}

		iter.close()

		return 0, nil, iterator.ErrIteratorDone
	}

	values := make([]any, len(iter.columns))
	dest := make([]any, len(iter.columns))

	for i := range values {
		dest[i] = &values[i]
	}

	if err := iter.rows.Scan(dest...); err != nil {
		return 0, nil, lazyerrors.Error(err)
	}

	doc := types.MakeDocument(len(iter.columns))

	for i, c := range iter.columns {
		v, err := convertValue(values[i])
		if err != nil {
			return 0, nil, lazyerrors.Errorf("column %q: %w", c, err)
		}

		if err = doc.Set(c, v); err != nil {
			return 0, nil, lazyerrors.Error(err)
		}
	}

	n := iter.n
	iter.n++

	return n, doc, nil
}

// Close implements iterator.Interface.
func (iter *rowsIterator) Close() {
	iter.m.Lock()
	defer iter.m.Unlock()

	iter.close()
}

// close closes iterator without holding mutex.
//
// This should be called only when the caller already holds the mutex.
func (iter *rowsIterator) close() {
	if iter.rows != nil {
		_ = iter.rows.Close()
		iter.rows = nil
	}
}

// convertValue converts SQLite column value.
// Integers that fit into int32 are converted to int32;
// blobs and times are converted to strings.
func convertValue(v any) (any, error) {
	switch v := v.(type) {
	case nil:
		return types.Null, nil
	case int64:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return int32(v), nil
		}

		return v, nil
	case float64, string, bool:
		return v, nil
	case []byte:
		return string(v), nil
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

// check interfaces
var (
	_ iterator.Interface[int, *types.Document] = (*rowsIterator)(nil)
)
