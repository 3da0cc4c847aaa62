package sms

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Column names of the message store. They follow the Android telephony
// provider so that stores shaped like it need no translation.
const (
	FieldID      = "_id"
	FieldAddress = "address"
	FieldBody    = "body"
	FieldDate    = "date"
	FieldRead    = "read"
	FieldType    = "type"
)

// Message type classifications stored in FieldType.
const (
	TypeAll   = 0
	TypeInbox = 1
	TypeSent  = 2
)

// readSentinel is the stored value that marks a message as read.
const readSentinel = 1

// ErrCoercion is returned when a raw store value cannot be projected into a
// MessageRecord field.
var ErrCoercion = errors.New("sms: cannot coerce store value")

// Fields returns the columns the Reader selects, in projection order.
func Fields() []string {
	return []string{FieldID, FieldAddress, FieldBody, FieldDate, FieldRead, FieldType}
}

// Box scopes a store query to a class of messages.
type Box string

const (
	// BoxInbox selects received messages.
	BoxInbox Box = "inbox"
	// BoxSent selects messages sent from this device.
	BoxSent Box = "sent"
	// BoxAll selects every stored message.
	BoxAll Box = "all"
)

// Type returns the FieldType classification for the box, or TypeAll.
func (b Box) Type() int {
	switch b {
	case BoxInbox:
		return TypeInbox
	case BoxSent:
		return TypeSent
	default:
		return TypeAll
	}
}

// Transport submits text messages. Implementations own the segmentation
// threshold because it depends on the encoding the network uses.
type Transport interface {
	// SegmentationCapacity is the number of encoding units (septets for GSM
	// 7-bit, UTF-16 code units for UCS-2) one transport unit can carry.
	SegmentationCapacity(enc Encoding) int
	SubmitSingle(ctx context.Context, address, body string) error
	// SubmitMultipart submits ordered parts as one logical message. It fails
	// as a whole if any part is rejected.
	SubmitMultipart(ctx context.Context, address string, parts []string) error
}

// Query describes a store read. Results must be ordered by FieldDate
// descending, ties broken by FieldID descending.
type Query struct {
	Box     Box
	Fields  []string
	Address Optional[string]
	// Limit is a hint; 0 means the store may return everything it has.
	Limit int
}

// RawRecord is one store row keyed by column name. Values are nil, int64,
// float64, bool, string or []byte.
type RawRecord map[string]any

// Cursor iterates query results. Close must be safe to call after Next has
// returned false.
type Cursor interface {
	Next() bool
	Record() RawRecord
	Err() error
	Close() error
}

// Store is a read-only query capability over the message history.
type Store interface {
	Query(ctx context.Context, q Query) (Cursor, error)
}

// MessageRecord is the projection of one stored message returned to callers.
type MessageRecord struct {
	ID              string  `json:"id"`
	Address         *string `json:"address"`
	Body            *string `json:"body"`
	TimestampMillis int64   `json:"date"`
	IsRead          bool    `json:"isRead"`
	Type            int     `json:"type"`
}

// Project converts a raw store row into a MessageRecord.
func Project(raw RawRecord) (MessageRecord, error) {
	id, err := coerceString(raw[FieldID])
	if err != nil {
		return MessageRecord{}, fmt.Errorf("%s: %w", FieldID, err)
	}
	if id == nil {
		return MessageRecord{}, fmt.Errorf("%s: %w: value is null", FieldID, ErrCoercion)
	}
	address, err := coerceString(raw[FieldAddress])
	if err != nil {
		return MessageRecord{}, fmt.Errorf("%s: %w", FieldAddress, err)
	}
	body, err := coerceString(raw[FieldBody])
	if err != nil {
		return MessageRecord{}, fmt.Errorf("%s: %w", FieldBody, err)
	}
	date, err := coerceInt64(raw[FieldDate])
	if err != nil {
		return MessageRecord{}, fmt.Errorf("%s: %w", FieldDate, err)
	}
	read, err := coerceInt64(raw[FieldRead])
	if err != nil {
		return MessageRecord{}, fmt.Errorf("%s: %w", FieldRead, err)
	}
	typ, err := coerceInt64(raw[FieldType])
	if err != nil {
		return MessageRecord{}, fmt.Errorf("%s: %w", FieldType, err)
	}

	return MessageRecord{
		ID:              *id,
		Address:         address,
		Body:            body,
		TimestampMillis: date,
		IsRead:          read == readSentinel,
		Type:            int(typ),
	}, nil
}

func coerceString(value any) (*string, error) {
	var s string
	switch typed := value.(type) {
	case nil:
		return nil, nil
	case string:
		s = typed
	case []byte:
		s = string(typed)
	case int64:
		s = strconv.FormatInt(typed, 10)
	case int:
		s = strconv.Itoa(typed)
	default:
		return nil, fmt.Errorf("%w: %T to string", ErrCoercion, value)
	}
	return &s, nil
}

// coerceInt64 treats null as zero, as a cursor's integer getter does.
func coerceInt64(value any) (int64, error) {
	switch typed := value.(type) {
	case nil:
		return 0, nil
	case int64:
		return typed, nil
	case int:
		return int64(typed), nil
	case int32:
		return int64(typed), nil
	case bool:
		if typed {
			return 1, nil
		}
		return 0, nil
	case float64:
		if typed != math.Trunc(typed) || math.IsInf(typed, 0) {
			return 0, fmt.Errorf("%w: non-integral %v", ErrCoercion, typed)
		}
		return int64(typed), nil
	case string:
		return parseInt64(typed)
	case []byte:
		return parseInt64(string(typed))
	default:
		return 0, fmt.Errorf("%w: %T to int64", ErrCoercion, value)
	}
}

func parseInt64(raw string) (int64, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrCoercion, raw)
	}
	return n, nil
}
