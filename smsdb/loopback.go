package smsdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spachava753/smsbridge/sms"
)

// LoopbackOption customises a Loopback transport.
type LoopbackOption func(*Loopback)

// WithCapacity overrides the single-unit capacity reported for enc.
func WithCapacity(enc sms.Encoding, capacity int) LoopbackOption {
	return func(l *Loopback) {
		l.capacities[enc] = capacity
	}
}

// WithLoopbackClock overrides the clock used to timestamp stored rows.
func WithLoopbackClock(now func() time.Time) LoopbackOption {
	return func(l *Loopback) {
		if now != nil {
			l.now = now
		}
	}
}

// Loopback is an sms.Transport that stores every accepted submission as a
// sent, read row in the database instead of handing it to a radio.
type Loopback struct {
	db         *DB
	capacities map[sms.Encoding]int
	now        func() time.Time
}

// NewLoopback constructs a loopback transport writing to db.
func NewLoopback(db *DB, opts ...LoopbackOption) (*Loopback, error) {
	if db == nil {
		return nil, errors.New("smsdb: loopback database is required")
	}
	l := &Loopback{
		db: db,
		capacities: map[sms.Encoding]int{
			sms.EncodingGSM7: sms.DefaultGSM7Capacity,
			sms.EncodingUCS2: sms.DefaultUCS2Capacity,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// SegmentationCapacity implements sms.Transport.
func (l *Loopback) SegmentationCapacity(enc sms.Encoding) int {
	return l.capacities[enc]
}

// SubmitSingle implements sms.Transport.
func (l *Loopback) SubmitSingle(ctx context.Context, address, body string) error {
	if strings.TrimSpace(address) == "" {
		return errors.New("smsdb: destination address is required")
	}
	_, err := l.db.Insert(ctx, l.sentRecord(address, body))
	return err
}

// SubmitMultipart implements sms.Transport. Each part becomes its own row and
// all rows share one ref; either every part is stored or none is.
func (l *Loopback) SubmitMultipart(ctx context.Context, address string, parts []string) error {
	if strings.TrimSpace(address) == "" {
		return errors.New("smsdb: destination address is required")
	}
	if len(parts) == 0 {
		return errors.New("smsdb: multipart submission has no parts")
	}

	tx, err := l.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("smsdb: starting transaction failed: %w", err)
	}
	ref := uuid.NewString()
	for _, part := range parts {
		rec := l.sentRecord(address, part)
		rec.Ref = ref
		if _, err := insert(ctx, tx, rec); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("smsdb: committing multipart message failed: %w", err)
	}
	return nil
}

func (l *Loopback) sentRecord(address, body string) Record {
	return Record{
		Address:         &address,
		Body:            &body,
		TimestampMillis: l.now().UnixMilli(),
		Read:            true,
		Type:            sms.TypeSent,
		Ref:             uuid.NewString(),
	}
}
