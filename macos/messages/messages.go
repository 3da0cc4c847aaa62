package messages

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/spachava753/smsbridge/sms"
	"github.com/spachava753/smsbridge/smsdb"
)

const (
	messagesDBRelativePath = "Library/Messages/chat.db"
	appleReferenceUnixMs   = int64(978307200000) // 2001-01-01T00:00:00Z

	// chat.db switched from seconds to nanoseconds since the Apple epoch;
	// anything above this is nanoseconds.
	appleNanoThreshold = int64(100000000000)
)

// ErrUnknownField is returned when a query selects a field chat.db cannot
// provide.
var ErrUnknownField = errors.New("messages: unknown field")

var dateExpression = fmt.Sprintf(
	"(CASE WHEN COALESCE(m.date, 0) > %d THEN m.date / 1000000 ELSE COALESCE(m.date, 0) * 1000 END + %d)",
	appleNanoThreshold, appleReferenceUnixMs)

var fieldExpressions = map[string]string{
	sms.FieldID:      "m.ROWID",
	sms.FieldAddress: "h.id",
	sms.FieldBody:    "m.text",
	sms.FieldDate:    dateExpression,
	sms.FieldRead:    "COALESCE(m.is_read, 0)",
	sms.FieldType:    fmt.Sprintf("(CASE WHEN m.is_from_me = 1 THEN %d ELSE %d END)", sms.TypeSent, sms.TypeInbox),
}

type scriptRunner func(ctx context.Context, lines []string, args []string) (string, error)

// Option customises a Transport.
type Option func(*Transport)

// WithService sets the preferred Messages service ("SMS", "iMessage", "RCS").
func WithService(service string) Option {
	return func(t *Transport) {
		if s := normalizeServiceName(service); s != "" {
			t.service = s
		}
	}
}

// WithCapacity overrides the single-unit capacity reported for enc.
func WithCapacity(enc sms.Encoding, capacity int) Option {
	return func(t *Transport) {
		t.capacities[enc] = capacity
	}
}

// Transport sends through Messages.app. Messages relays SMS through a paired
// iPhone, which performs the radio-level concatenation, so every part is
// handed over in one script run.
type Transport struct {
	service    string
	capacities map[sms.Encoding]int
	run        scriptRunner
}

// NewTransport constructs a Messages.app transport preferring the SMS service.
func NewTransport(opts ...Option) *Transport {
	t := &Transport{
		service: "SMS",
		capacities: map[sms.Encoding]int{
			sms.EncodingGSM7: sms.DefaultGSM7Capacity,
			sms.EncodingUCS2: sms.DefaultUCS2Capacity,
		},
		run: runAppleScript,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// SegmentationCapacity implements sms.Transport.
func (t *Transport) SegmentationCapacity(enc sms.Encoding) int {
	return t.capacities[enc]
}

// SubmitSingle implements sms.Transport.
func (t *Transport) SubmitSingle(ctx context.Context, address, body string) error {
	return t.sendToHandle(ctx, address, []string{body})
}

// SubmitMultipart implements sms.Transport.
func (t *Transport) SubmitMultipart(ctx context.Context, address string, parts []string) error {
	if len(parts) == 0 {
		return errors.New("messages: multipart submission has no parts")
	}
	return t.sendToHandle(ctx, address, parts)
}

func (t *Transport) sendToHandle(ctx context.Context, handle string, parts []string) error {
	handle = normalizeHandleForSend(handle)
	if handle == "" {
		return errors.New("messages: handle is required")
	}

	attempts := []string{t.service, "SMS", "iMessage"}
	seen := map[string]struct{}{}

	script := []string{
		`on run argv`,
		`set targetHandle to item 1 of argv`,
		`set desiredService to item 2 of argv`,
		`tell application "Messages"`,
		`set targetAccount to first account whose service type is desiredService`,
		`set targetParticipant to participant targetHandle of targetAccount`,
		`repeat with i from 3 to (count of argv)`,
		`send (item i of argv) to targetParticipant`,
		`end repeat`,
		`end tell`,
		`end run`,
	}

	var lastErr error
	for _, service := range attempts {
		if _, ok := seen[service]; ok {
			continue
		}
		seen[service] = struct{}{}

		args := append([]string{handle, service}, parts...)
		_, err := t.run(ctx, script, args)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("messages: send to handle %q failed: %w", handle, lastErr)
}

// Store reads the local Messages database. It never writes to it.
type Store struct {
	path string
}

// NewStore returns a Store over the chat.db at path, or the current user's
// ~/Library/Messages/chat.db when path is empty.
func NewStore(path string) *Store {
	return &Store{path: strings.TrimSpace(path)}
}

// Query implements sms.Store. Inbound messages map to sms.TypeInbox and
// messages sent from this Mac or its paired phone to sms.TypeSent.
func (s *Store) Query(ctx context.Context, q sms.Query) (sms.Cursor, error) {
	stmt, args, err := buildQuery(q)
	if err != nil {
		return nil, err
	}

	db, err := s.open()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("messages: sqlite query failed: %w", err)
	}
	return smsdb.NewRowsCursor(rows, db)
}

func buildQuery(q sms.Query) (string, []any, error) {
	fields := q.Fields
	if len(fields) == 0 {
		fields = sms.Fields()
	}
	selects := make([]string, 0, len(fields))
	for _, field := range fields {
		expr, ok := fieldExpressions[field]
		if !ok {
			return "", nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
		selects = append(selects, fmt.Sprintf("%s AS %q", expr, field))
	}

	where := []string{"COALESCE(m.is_empty, 0) = 0"}
	args := make([]any, 0, 2)
	switch q.Box {
	case sms.BoxInbox:
		where = append(where, "COALESCE(m.is_from_me, 0) = 0")
	case sms.BoxSent:
		where = append(where, "m.is_from_me = 1")
	}
	if address, ok := q.Address.Get(); ok {
		where = append(where, "h.id = ?")
		args = append(args, address)
	}

	stmt := fmt.Sprintf(`
SELECT %s
FROM message m
LEFT JOIN handle h ON h.ROWID = m.handle_id
WHERE %s
ORDER BY %s DESC, m.ROWID DESC`, strings.Join(selects, ", "), strings.Join(where, " AND "), dateExpression)
	if q.Limit > 0 {
		stmt += "\nLIMIT ?"
		args = append(args, q.Limit)
	}
	return stmt, args, nil
}

func (s *Store) open() (*sql.DB, error) {
	dbPath, err := s.dbPath()
	if err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", strings.ReplaceAll(dbPath, " ", "%20"))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("messages: opening sqlite database failed: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("messages: connecting to sqlite database failed: %w", err)
	}
	return db, nil
}

func (s *Store) dbPath() (string, error) {
	path := s.path
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("messages: unable to resolve home directory: %w", err)
		}
		path = filepath.Join(home, messagesDBRelativePath)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("messages: chat database unavailable at %s: %w", path, err)
	}
	return path, nil
}

func runAppleScript(ctx context.Context, lines []string, args []string) (string, error) {
	cmdArgs := make([]string, 0, len(lines)*2+len(args))
	for _, line := range lines {
		cmdArgs = append(cmdArgs, "-e", line)
	}
	cmdArgs = append(cmdArgs, args...)

	cmd := exec.CommandContext(ctx, "/usr/bin/osascript", cmdArgs...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(out.String()))
	}
	return strings.TrimSpace(out.String()), nil
}

func normalizeHandleForSend(handle string) string {
	handle = strings.TrimSpace(handle)
	if i := strings.Index(handle, "("); i > 0 && strings.HasSuffix(handle, ")") {
		handle = strings.TrimSpace(handle[:i])
	}
	return handle
}

func normalizeServiceName(service string) string {
	switch strings.ToLower(strings.TrimSpace(service)) {
	case "imessage":
		return "iMessage"
	case "sms":
		return "SMS"
	case "rcs":
		return "RCS"
	default:
		return ""
	}
}
