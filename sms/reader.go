package sms

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/rs/zerolog"
)

// Reader lists the most recent inbox messages from a Store.
type Reader struct {
	store  Store
	logger zerolog.Logger
}

// NewReader constructs a Reader over store. A zero logger is replaced by
// zerolog.Nop().
func NewReader(store Store, logger zerolog.Logger) (*Reader, error) {
	if store == nil {
		return nil, errors.New("sms: reader store is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Reader{store: store, logger: logger}, nil
}

// Read returns Success with at most limit inbox records, newest first,
// optionally restricted to an exact address. limit <= 0 yields an empty
// result without querying the store.
func (r *Reader) Read(ctx context.Context, limit int, address Optional[string]) Response {
	if limit <= 0 {
		return Success([]MessageRecord{})
	}

	records, err := r.collect(ctx, limit, address)
	if err != nil {
		r.logger.Warn().Err(err).Int("limit", limit).Bool("filtered", address.IsPresent()).Msg("sms read failed")
		return Failure(CodeReadError, "Failed to read SMS: "+err.Error(), nil)
	}

	r.logger.Debug().Int("limit", limit).Int("count", len(records)).Msg("sms read")
	return Success(records)
}

func (r *Reader) collect(ctx context.Context, limit int, address Optional[string]) (records []MessageRecord, err error) {
	cursor, err := r.store.Query(ctx, Query{
		Box:     BoxInbox,
		Fields:  Fields(),
		Address: address,
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := cursor.Close(); closeErr != nil && err == nil {
			records, err = nil, fmt.Errorf("closing cursor: %w", closeErr)
		}
	}()

	records = make([]MessageRecord, 0, min(limit, 64))
	for len(records) < limit && cursor.Next() {
		record, err := Project(cursor.Record())
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
