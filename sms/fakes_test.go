package sms

import (
	"context"
	"errors"
	"sort"
)

type submission struct {
	address string
	parts   []string
	multi   bool
}

type fakeTransport struct {
	capacities  map[Encoding]int
	err         error
	submissions []submission
	panicWith   any
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{capacities: map[Encoding]int{
		EncodingGSM7: DefaultGSM7Capacity,
		EncodingUCS2: DefaultUCS2Capacity,
	}}
}

func (f *fakeTransport) SegmentationCapacity(enc Encoding) int {
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return f.capacities[enc]
}

func (f *fakeTransport) SubmitSingle(_ context.Context, address, body string) error {
	f.submissions = append(f.submissions, submission{address: address, parts: []string{body}})
	return f.err
}

func (f *fakeTransport) SubmitMultipart(_ context.Context, address string, parts []string) error {
	f.submissions = append(f.submissions, submission{address: address, parts: append([]string(nil), parts...), multi: true})
	return f.err
}

type fakeStore struct {
	records  []RawRecord
	queryErr error
	rowErr   error
	closeErr error
	queries  []Query
	cursors  []*fakeCursor
}

func (f *fakeStore) Query(_ context.Context, q Query) (Cursor, error) {
	f.queries = append(f.queries, q)
	if f.queryErr != nil {
		return nil, f.queryErr
	}

	matched := make([]RawRecord, 0, len(f.records))
	for _, rec := range f.records {
		if q.Box != BoxAll && rec[FieldType] != int64(q.Box.Type()) {
			continue
		}
		if want, ok := q.Address.Get(); ok {
			got, isString := rec[FieldAddress].(string)
			if !isString || got != want {
				continue
			}
		}
		matched = append(matched, rec)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		di, dj := matched[i][FieldDate].(int64), matched[j][FieldDate].(int64)
		if di == dj {
			return matched[i][FieldID].(int64) > matched[j][FieldID].(int64)
		}
		return di > dj
	})

	c := &fakeCursor{records: matched, pos: -1, rowErr: f.rowErr, closeErr: f.closeErr}
	f.cursors = append(f.cursors, c)
	return c, nil
}

type fakeCursor struct {
	records  []RawRecord
	pos      int
	rowErr   error
	closeErr error
	err      error
	visited  int
	closed   bool
}

func (c *fakeCursor) Next() bool {
	if c.closed {
		return false
	}
	if c.rowErr != nil && c.pos+1 == len(c.records) {
		c.err = c.rowErr
		return false
	}
	c.pos++
	if c.pos >= len(c.records) {
		return false
	}
	c.visited++
	return true
}

func (c *fakeCursor) Record() RawRecord {
	return c.records[c.pos]
}

func (c *fakeCursor) Err() error {
	return c.err
}

func (c *fakeCursor) Close() error {
	if c.closed {
		return errors.New("cursor closed twice")
	}
	c.closed = true
	return c.closeErr
}

func inboxRecord(id int64, address any, body any, date int64, read int64) RawRecord {
	return RawRecord{
		FieldID:      id,
		FieldAddress: address,
		FieldBody:    body,
		FieldDate:    date,
		FieldRead:    read,
		FieldType:    int64(TypeInbox),
	}
}
