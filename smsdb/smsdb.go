// Package smsdb keeps a message history in a SQLite table shaped like the
// Android telephony provider's sms table and serves it as an sms.Store.
//
// It also provides Loopback, an sms.Transport that records submissions as
// sent rows, for development hosts without a radio.
//
// SQLite access uses github.com/mattn/go-sqlite3 (CGO required).
package smsdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/spachava753/smsbridge/sms"
)

// ErrUnknownField is returned when a query selects a column the table does
// not have.
var ErrUnknownField = errors.New("smsdb: unknown field")

const schema = `
CREATE TABLE IF NOT EXISTS sms (
	_id     INTEGER PRIMARY KEY AUTOINCREMENT,
	address TEXT,
	body    TEXT,
	date    INTEGER NOT NULL,
	read    INTEGER NOT NULL DEFAULT 0,
	type    INTEGER NOT NULL,
	ref     TEXT
);
CREATE INDEX IF NOT EXISTS sms_type_date ON sms (type, date DESC);
`

var columns = map[string]struct{}{
	sms.FieldID:      {},
	sms.FieldAddress: {},
	sms.FieldBody:    {},
	sms.FieldDate:    {},
	sms.FieldRead:    {},
	sms.FieldType:    {},
	"ref":            {},
}

// Record is a row to insert. Nil Address or Body are stored as NULL.
type Record struct {
	Address         *string
	Body            *string
	TimestampMillis int64
	Read            bool
	Type            int
	Ref             string
}

// DB is an sms table in one SQLite database file.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(path string) (*DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("smsdb: database path is required")
	}

	dsn := fmt.Sprintf("file:%s?mode=rwc&_busy_timeout=5000", strings.ReplaceAll(path, " ", "%20"))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("smsdb: opening sqlite database failed: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("smsdb: connecting to sqlite database failed: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("smsdb: creating schema failed: %w", err)
	}
	return &DB{db: db}, nil
}

// Close releases the database handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// Insert appends a record and returns its _id.
func (d *DB) Insert(ctx context.Context, rec Record) (int64, error) {
	return insert(ctx, d.db, rec)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, db execer, rec Record) (int64, error) {
	read := 0
	if rec.Read {
		read = 1
	}
	var ref any
	if rec.Ref != "" {
		ref = rec.Ref
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO sms (address, body, date, read, type, ref) VALUES (?, ?, ?, ?, ?, ?)`,
		nullable(rec.Address), nullable(rec.Body), rec.TimestampMillis, read, rec.Type, ref,
	)
	if err != nil {
		return 0, fmt.Errorf("smsdb: inserting message failed: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("smsdb: reading inserted id failed: %w", err)
	}
	return id, nil
}

// Query implements sms.Store. Rows stream from SQLite as the cursor advances.
func (d *DB) Query(ctx context.Context, q sms.Query) (sms.Cursor, error) {
	stmt, args, err := buildQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("smsdb: sqlite query failed: %w", err)
	}
	return NewRowsCursor(rows)
}

func buildQuery(q sms.Query) (string, []any, error) {
	fields := q.Fields
	if len(fields) == 0 {
		fields = sms.Fields()
	}
	for _, field := range fields {
		if _, ok := columns[field]; !ok {
			return "", nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
	}

	where := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if t := q.Box.Type(); t != sms.TypeAll {
		where = append(where, "type = ?")
		args = append(args, t)
	}
	if address, ok := q.Address.Get(); ok {
		where = append(where, "address = ?")
		args = append(args, address)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(fields, ", "))
	b.WriteString(" FROM sms")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY date DESC, _id DESC")
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return b.String(), args, nil
}

// NewRowsCursor adapts rows to sms.Cursor, keying each record by column
// name. closers run after rows are closed, in order. On error rows and
// closers are released before returning.
func NewRowsCursor(rows *sql.Rows, closers ...io.Closer) (sms.Cursor, error) {
	cols, err := rows.Columns()
	if err != nil {
		c := &cursor{rows: rows, closers: closers}
		c.Close()
		return nil, fmt.Errorf("smsdb: reading sqlite columns failed: %w", err)
	}
	return &cursor{rows: rows, columns: cols, closers: closers}, nil
}

type cursor struct {
	rows    *sql.Rows
	columns []string
	closers []io.Closer
	current sms.RawRecord
	err     error
}

func (c *cursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}

	values := make([]any, len(c.columns))
	pointers := make([]any, len(c.columns))
	for i := range values {
		pointers[i] = &values[i]
	}
	if err := c.rows.Scan(pointers...); err != nil {
		c.err = fmt.Errorf("smsdb: scanning sqlite row failed: %w", err)
		return false
	}

	record := make(sms.RawRecord, len(c.columns))
	for i, name := range c.columns {
		record[name] = values[i]
	}
	c.current = record
	return true
}

func (c *cursor) Record() sms.RawRecord {
	return c.current
}

func (c *cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	if err := c.rows.Err(); err != nil {
		return fmt.Errorf("smsdb: iterating sqlite rows failed: %w", err)
	}
	return nil
}

func (c *cursor) Close() error {
	errs := []error{c.rows.Close()}
	for _, closer := range c.closers {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
