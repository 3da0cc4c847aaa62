package smsdb

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nalgeon/be"
	"github.com/rs/zerolog"

	"github.com/spachava753/smsbridge/sms"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sms test.db"))
	be.Err(t, err, nil)
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func asString(v any) string {
	switch typed := v.(type) {
	case string:
		return typed
	case []byte:
		return string(typed)
	default:
		return ""
	}
}

func seed(t *testing.T, db *DB) {
	t.Helper()
	rows := []Record{
		{Address: ptr("555-0100"), Body: ptr("oldest"), TimestampMillis: 1000, Read: true, Type: sms.TypeInbox},
		{Address: ptr("555-0199"), Body: ptr("someone else"), TimestampMillis: 2000, Type: sms.TypeInbox},
		{Address: ptr("555-0100"), Body: ptr("middle"), TimestampMillis: 3000, Type: sms.TypeInbox},
		{Address: nil, Body: nil, TimestampMillis: 3000, Type: sms.TypeInbox},
		{Address: ptr("555-0100"), Body: ptr("newest"), TimestampMillis: 5000, Read: true, Type: sms.TypeInbox},
		{Address: ptr("555-0100"), Body: ptr("my reply"), TimestampMillis: 6000, Read: true, Type: sms.TypeSent},
	}
	for _, row := range rows {
		_, err := db.Insert(context.Background(), row)
		be.Err(t, err, nil)
	}
}

func readAll(t *testing.T, db *DB, limit int, address sms.Optional[string]) []sms.MessageRecord {
	t.Helper()
	reader, err := sms.NewReader(db, zerolog.Nop())
	be.Err(t, err, nil)
	resp := reader.Read(context.Background(), limit, address)
	be.Equal(t, resp.Outcome(), sms.OutcomeSuccess)
	records, ok := resp.Value().([]sms.MessageRecord)
	be.True(t, ok)
	return records
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	be.Err(t, err)
}

func TestReaderOverSQLiteOrdersNewestFirst(t *testing.T) {
	db := openTestDB(t)
	seed(t, db)

	records := readAll(t, db, 3, sms.None[string]())
	be.Equal(t, len(records), 3)
	be.Equal(t, *records[0].Body, "newest")
	// equal dates fall back to the higher _id first
	be.Equal(t, records[1].ID, "4")
	be.True(t, records[1].Address == nil)
	be.True(t, records[1].Body == nil)
	be.Equal(t, *records[2].Body, "middle")
	be.Equal(t, records[0].IsRead, true)
	be.Equal(t, records[2].IsRead, false)
	be.Equal(t, records[0].Type, sms.TypeInbox)
}

func TestReaderOverSQLiteFiltersExactAddress(t *testing.T) {
	db := openTestDB(t)
	seed(t, db)
	_, err := db.Insert(context.Background(), Record{Address: ptr("+1555-0100"), Body: ptr("close"), TimestampMillis: 9000, Type: sms.TypeInbox})
	be.Err(t, err, nil)

	records := readAll(t, db, 10, sms.Some("555-0100"))
	be.Equal(t, len(records), 3)
	for _, rec := range records {
		be.Equal(t, *rec.Address, "555-0100")
	}
	be.Equal(t, readAll(t, db, 10, sms.None[string]()), readAll(t, db, 10, sms.None[string]()))
}

func TestQueryBoxesAndFields(t *testing.T) {
	db := openTestDB(t)
	seed(t, db)

	cur, err := db.Query(context.Background(), sms.Query{Box: sms.BoxSent, Fields: []string{sms.FieldBody, "ref"}})
	be.Err(t, err, nil)
	be.True(t, cur.Next())
	be.Equal(t, asString(cur.Record()[sms.FieldBody]), "my reply")
	_, hasID := cur.Record()[sms.FieldID]
	be.Equal(t, hasID, false)
	be.Equal(t, cur.Next(), false)
	be.Err(t, cur.Err(), nil)
	be.Err(t, cur.Close(), nil)

	cur, err = db.Query(context.Background(), sms.Query{Box: sms.BoxAll})
	be.Err(t, err, nil)
	count := 0
	for cur.Next() {
		count++
	}
	be.Err(t, cur.Close(), nil)
	be.Equal(t, count, 6)

	_, err = db.Query(context.Background(), sms.Query{Box: sms.BoxInbox, Fields: []string{"body; DROP TABLE sms"}})
	be.Err(t, err, ErrUnknownField)
}

func TestQueryHonoursCancelledContext(t *testing.T) {
	db := openTestDB(t)
	seed(t, db)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader, err := sms.NewReader(db, zerolog.Nop())
	be.Err(t, err, nil)
	resp := reader.Read(ctx, 5, sms.None[string]())
	be.Equal(t, resp.Outcome(), sms.OutcomeFailure)
	be.Equal(t, resp.Err().Code, sms.CodeReadError)
}

func TestLoopbackSubmissions(t *testing.T) {
	db := openTestDB(t)
	clock := func() time.Time { return time.UnixMilli(42000) }
	transport, err := NewLoopback(db, WithCapacity(sms.EncodingGSM7, 10), WithLoopbackClock(clock))
	be.Err(t, err, nil)
	be.Equal(t, transport.SegmentationCapacity(sms.EncodingGSM7), 10)
	be.Equal(t, transport.SegmentationCapacity(sms.EncodingUCS2), sms.DefaultUCS2Capacity)

	sender, err := sms.NewSender(transport, zerolog.Nop())
	be.Err(t, err, nil)

	resp := sender.Send(context.Background(), "555-0100", "short")
	be.Equal(t, resp.Outcome(), sms.OutcomeSuccess)

	body := strings.Repeat("abcdefghij", 2) + "xyz"
	resp = sender.Send(context.Background(), "555-0100", body)
	be.Equal(t, resp.Outcome(), sms.OutcomeSuccess)

	rows, err := db.db.Query(`SELECT body, ref, date, type, read FROM sms WHERE type = ? ORDER BY _id`, sms.TypeSent)
	be.Err(t, err, nil)
	defer rows.Close()

	var bodies, refs []string
	for rows.Next() {
		var (
			b, ref    string
			date      int64
			typ, read int
		)
		be.Err(t, rows.Scan(&b, &ref, &date, &typ, &read), nil)
		be.Equal(t, date, int64(42000))
		be.Equal(t, read, 1)
		bodies = append(bodies, b)
		refs = append(refs, ref)
	}
	be.Err(t, rows.Err(), nil)
	be.Equal(t, bodies, []string{"short", "abcdefghij", "abcdefghij", "xyz"})
	be.True(t, refs[0] != refs[1])
	be.Equal(t, refs[1], refs[2])
	be.Equal(t, refs[2], refs[3])

	// sent rows never leak into inbox reads
	be.Equal(t, len(readAll(t, db, 10, sms.None[string]())), 0)
}

func TestLoopbackRejectsEmptyAddress(t *testing.T) {
	db := openTestDB(t)
	transport, err := NewLoopback(db)
	be.Err(t, err, nil)

	be.Err(t, transport.SubmitSingle(context.Background(), " ", "hi"))
	be.Err(t, transport.SubmitMultipart(context.Background(), "", []string{"a", "b"}))
	be.Err(t, transport.SubmitMultipart(context.Background(), "555", nil))
}
