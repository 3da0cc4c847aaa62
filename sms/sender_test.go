package sms

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nalgeon/be"
	"github.com/rs/zerolog"
)

func TestNewSenderRequiresTransport(t *testing.T) {
	_, err := NewSender(nil, zerolog.Nop())
	be.Err(t, err)
}

func TestSendFittingBodyUsesSingleSubmission(t *testing.T) {
	transport := newFakeTransport()
	sender, err := NewSender(transport, zerolog.Logger{})
	be.Err(t, err, nil)

	for _, body := range []string{"hi", strings.Repeat("a", 160), strings.Repeat("ж", 70), ""} {
		transport.submissions = nil
		resp := sender.Send(context.Background(), "+15550100", body)
		be.Equal(t, resp.Outcome(), OutcomeSuccess)
		be.Equal(t, resp.Value(), any(true))
		be.Equal(t, len(transport.submissions), 1)
		be.Equal(t, transport.submissions[0].multi, false)
		be.Equal(t, transport.submissions[0].parts, []string{body})
		be.Equal(t, transport.submissions[0].address, "+15550100")
	}
}

func TestSendLongBodyUsesMultipart(t *testing.T) {
	transport := newFakeTransport()
	sender, err := NewSender(transport, zerolog.Nop())
	be.Err(t, err, nil)

	body := strings.Repeat("x", 161)
	resp := sender.Send(context.Background(), "555-0100", body)
	be.Equal(t, resp.Outcome(), OutcomeSuccess)
	be.Equal(t, len(transport.submissions), 1)

	sub := transport.submissions[0]
	be.True(t, sub.multi)
	be.Equal(t, len(sub.parts), 2)
	be.Equal(t, strings.Join(sub.parts, ""), body)
	for _, part := range sub.parts {
		be.True(t, Length(part, EncodingGSM7) <= DefaultGSM7Capacity)
	}
}

func TestSendQueriesCapacityPerEncoding(t *testing.T) {
	transport := newFakeTransport()
	transport.capacities[EncodingUCS2] = 10
	sender, err := NewSender(transport, zerolog.Nop())
	be.Err(t, err, nil)

	body := strings.Repeat("ü", 12) + "日本"
	resp := sender.Send(context.Background(), "555-0100", body)
	be.Equal(t, resp.Outcome(), OutcomeSuccess)
	be.True(t, transport.submissions[0].multi)
	be.Equal(t, strings.Join(transport.submissions[0].parts, ""), body)
	for _, part := range transport.submissions[0].parts {
		be.True(t, Length(part, EncodingUCS2) <= 10)
	}
}

func TestSendTransportFailure(t *testing.T) {
	transport := newFakeTransport()
	transport.err = errors.New("address rejected")
	sender, err := NewSender(transport, zerolog.Nop())
	be.Err(t, err, nil)

	resp := sender.Send(context.Background(), "bogus", strings.Repeat("y", 400))
	be.Equal(t, resp.Outcome(), OutcomeFailure)
	be.Equal(t, resp.Err().Code, CodeSendError)
	be.Equal(t, resp.Err().Message, "Failed to send SMS: address rejected")
	be.Equal(t, resp.Err().Detail, nil)
	be.Equal(t, len(transport.submissions), 1)
}

func TestSendWithoutCapacityFailsBeforeSubmission(t *testing.T) {
	transport := newFakeTransport()
	transport.capacities[EncodingGSM7] = 0
	sender, err := NewSender(transport, zerolog.Nop())
	be.Err(t, err, nil)

	resp := sender.Send(context.Background(), "555-0100", "hello")
	be.Equal(t, resp.Outcome(), OutcomeFailure)
	be.Equal(t, resp.Err().Code, CodeSendError)
	be.Equal(t, len(transport.submissions), 0)
}
