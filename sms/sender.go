package sms

import (
	"context"
	"errors"
	"reflect"

	"github.com/rs/zerolog"
)

// Sender decides between single and multipart submission and hands the body
// to a Transport.
type Sender struct {
	transport Transport
	logger    zerolog.Logger
}

// NewSender constructs a Sender over transport. A zero logger is replaced by
// zerolog.Nop().
func NewSender(transport Transport, logger zerolog.Logger) (*Sender, error) {
	if transport == nil {
		return nil, errors.New("sms: sender transport is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Sender{transport: transport, logger: logger}, nil
}

// Send submits body to address. It returns Success(true) once the transport
// accepts the submission and an SMS_SEND_ERROR Failure otherwise.
func (s *Sender) Send(ctx context.Context, address, body string) Response {
	enc := EncodingOf(body)
	capacity := s.transport.SegmentationCapacity(enc)

	parts, err := Split(body, enc, capacity)
	if err != nil {
		return s.failure(err, enc, 0)
	}

	if len(parts) == 1 {
		err = s.transport.SubmitSingle(ctx, address, body)
	} else {
		err = s.transport.SubmitMultipart(ctx, address, parts)
	}
	if err != nil {
		return s.failure(err, enc, len(parts))
	}

	s.logger.Debug().
		Str("encoding", enc.String()).
		Int("capacity", capacity).
		Int("parts", len(parts)).
		Msg("sms submitted")
	return Success(true)
}

func (s *Sender) failure(err error, enc Encoding, parts int) Response {
	s.logger.Warn().
		Err(err).
		Str("encoding", enc.String()).
		Int("parts", parts).
		Msg("sms send failed")
	return Failure(CodeSendError, "Failed to send SMS: "+err.Error(), nil)
}
