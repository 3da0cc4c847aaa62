package sms

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Supported request methods.
const (
	MethodSendSMS = "sendSms"
	MethodReadSMS = "readSms"
)

// Argument names understood by the handlers.
const (
	ArgPhoneNumber = "phoneNumber"
	ArgMessage     = "message"
	ArgLimit       = "limit"
)

// DefaultReadLimit is used when a readSms request carries no limit.
const DefaultReadLimit = 10

const msgSendArgumentsRequired = "Phone number and message are required"

// Request is one named call from the host layer. ID is optional and only
// used to correlate log lines; Dispatch assigns one when it is empty.
type Request struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	Arguments Arguments `json:"arguments,omitempty"`
}

// SendSMS is a validated sendSms request.
type SendSMS struct {
	PhoneNumber string
	Message     string
}

// ReadSMS is a validated readSms request.
type ReadSMS struct {
	Limit       int
	PhoneNumber Optional[string]
}

// ParseSendSMS validates sendSms arguments. Both values must be present,
// non-null strings and the phone number must be non-empty.
func ParseSendSMS(args Arguments) (SendSMS, *Error) {
	invalid := &Error{Code: CodeInvalidArguments, Message: msgSendArgumentsRequired}

	phone, err := args.String(ArgPhoneNumber)
	if err != nil {
		return SendSMS{}, invalid
	}
	message, err := args.String(ArgMessage)
	if err != nil {
		return SendSMS{}, invalid
	}
	p, hasPhone := phone.Get()
	m, hasMessage := message.Get()
	if !hasPhone || !hasMessage || p == "" {
		return SendSMS{}, invalid
	}
	return SendSMS{PhoneNumber: p, Message: m}, nil
}

// ParseReadSMS validates readSms arguments, applying DefaultReadLimit.
func ParseReadSMS(args Arguments) (ReadSMS, *Error) {
	limit, err := args.Int(ArgLimit)
	if err != nil {
		return ReadSMS{}, &Error{Code: CodeInvalidArguments, Message: "limit must be an integer", Detail: err.Error()}
	}
	phone, err := args.String(ArgPhoneNumber)
	if err != nil {
		return ReadSMS{}, &Error{Code: CodeInvalidArguments, Message: "phoneNumber must be a string", Detail: err.Error()}
	}
	return ReadSMS{Limit: limit.Or(DefaultReadLimit), PhoneNumber: phone}, nil
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for per-request lines.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Dispatcher) {
		if !reflect.ValueOf(logger).IsZero() {
			d.logger = logger
		}
	}
}

// WithIDGenerator overrides how request ids are assigned (useful for tests).
func WithIDGenerator(next func() string) Option {
	return func(d *Dispatcher) {
		if next != nil {
			d.newID = next
		}
	}
}

// WithClock overrides the clock used to time requests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

type handlerFunc func(ctx context.Context, args Arguments) Response

type route struct {
	handle handlerFunc
	// failure code and message prefix reported when the handler panics
	code   ErrorCode
	prefix string
}

// Dispatcher routes requests to the send and read handlers.
type Dispatcher struct {
	routes map[string]route
	logger zerolog.Logger
	newID  func() string
	now    func() time.Time
}

// NewDispatcher wires sender and reader into the closed method table.
func NewDispatcher(sender *Sender, reader *Reader, opts ...Option) (*Dispatcher, error) {
	if sender == nil {
		return nil, errors.New("sms: dispatcher sender is required")
	}
	if reader == nil {
		return nil, errors.New("sms: dispatcher reader is required")
	}

	d := &Dispatcher{
		logger: zerolog.Nop(),
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	d.routes = map[string]route{
		MethodSendSMS: {
			code:   CodeSendError,
			prefix: "Failed to send SMS",
			handle: func(ctx context.Context, args Arguments) Response {
				req, invalid := ParseSendSMS(args)
				if invalid != nil {
					return Failure(invalid.Code, invalid.Message, invalid.Detail)
				}
				return sender.Send(ctx, req.PhoneNumber, req.Message)
			},
		},
		MethodReadSMS: {
			code:   CodeReadError,
			prefix: "Failed to read SMS",
			handle: func(ctx context.Context, args Arguments) Response {
				req, invalid := ParseReadSMS(args)
				if invalid != nil {
					return Failure(invalid.Code, invalid.Message, invalid.Detail)
				}
				return reader.Read(ctx, req.Limit, req.PhoneNumber)
			},
		},
	}
	return d, nil
}

// Methods lists the supported method names.
func (d *Dispatcher) Methods() []string {
	return []string{MethodSendSMS, MethodReadSMS}
}

// Dispatch runs the handler for req.Name exactly once and returns its
// Response. Unknown methods yield NotImplemented.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	id := req.ID
	if id == "" {
		id = d.newID()
	}

	r, ok := d.routes[req.Name]
	if !ok {
		d.logger.Debug().Str("request_id", id).Str("method", req.Name).Msg("method not implemented")
		return NotImplemented()
	}

	start := d.now()
	resp := r.invoke(ctx, req.Arguments)

	event := d.logger.Debug()
	if resp.Outcome() == OutcomeFailure {
		event = d.logger.Warn().Str("error_code", string(resp.Err().Code)).Str("error_message", resp.Err().Message)
	}
	event.Str("request_id", id).
		Str("method", req.Name).
		Str("outcome", resp.Outcome().String()).
		Dur("duration", d.now().Sub(start)).
		Msg("request dispatched")
	return resp
}

// invoke converts a handler panic into a Failure so every request is
// answered.
func (r route) invoke(ctx context.Context, args Arguments) (resp Response) {
	defer func() {
		if rec := recover(); rec != nil {
			resp = Failure(r.code, fmt.Sprintf("%s: %v", r.prefix, rec), nil)
		}
	}()
	return r.handle(ctx, args)
}
