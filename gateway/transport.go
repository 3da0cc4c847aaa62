package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"

	"github.com/spachava753/smsbridge/sms"
)

// smtpSession is the subset of *smtp.Client the transport drives.
type smtpSession interface {
	Mail(from string, opts *smtp.MailOptions) error
	Rcpt(to string, opts *smtp.RcptOptions) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

type clientSession struct {
	*smtp.Client
}

func (s clientSession) Data() (io.WriteCloser, error) {
	return s.Client.Data()
}

// Transport submits messages to the carrier gateway over SMTP.
type Transport struct {
	cfg  Config
	dial func(ctx context.Context) (smtpSession, error)
	now  func() time.Time
}

// NewTransport validates cfg and returns an SMTP transport.
func NewTransport(cfg Config) (*Transport, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(true, false); err != nil {
		return nil, err
	}
	t := &Transport{cfg: cfg, now: time.Now}
	t.dial = t.connect
	return t, nil
}

// SegmentationCapacity implements sms.Transport.
func (t *Transport) SegmentationCapacity(enc sms.Encoding) int {
	return t.cfg.capacity(enc)
}

// SubmitSingle implements sms.Transport.
func (t *Transport) SubmitSingle(ctx context.Context, address, body string) error {
	return t.submit(ctx, address, []string{body})
}

// SubmitMultipart implements sms.Transport. Every part is delivered in the
// same SMTP session; the first failing part fails the submission.
func (t *Transport) SubmitMultipart(ctx context.Context, address string, parts []string) error {
	if len(parts) == 0 {
		return errors.New("gateway: multipart submission has no parts")
	}
	return t.submit(ctx, address, parts)
}

func (t *Transport) submit(ctx context.Context, address string, parts []string) error {
	rcpt, err := t.cfg.Recipient(address)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	session, err := t.dial(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw := buildMessage(t.cfg.Address, rcpt, part, generateMessageID(t.cfg.Address), t.now())
		if err := deliver(session, t.cfg.Address, rcpt, raw); err != nil {
			if len(parts) > 1 {
				return fmt.Errorf("gateway: part %d of %d: %w", i+1, len(parts), err)
			}
			return err
		}
	}
	if err := session.Quit(); err != nil {
		return fmt.Errorf("gateway: QUIT failed: %w", err)
	}
	return nil
}

func deliver(session smtpSession, from, rcpt string, raw []byte) error {
	if err := session.Mail(from, nil); err != nil {
		return fmt.Errorf("gateway: MAIL FROM failed: %w", err)
	}
	if err := session.Rcpt(rcpt, nil); err != nil {
		return fmt.Errorf("gateway: RCPT TO %q failed: %w", rcpt, err)
	}
	writer, err := session.Data()
	if err != nil {
		return fmt.Errorf("gateway: DATA failed: %w", err)
	}
	if _, err := writer.Write(raw); err != nil {
		writer.Close()
		return fmt.Errorf("gateway: writing message failed: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("gateway: finalizing message failed: %w", err)
	}
	return nil
}

func (t *Transport) connect(ctx context.Context) (smtpSession, error) {
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: hostOf(t.cfg.SMTPAddr)}}
	conn, err := dialer.DialContext(ctx, "tcp", t.cfg.SMTPAddr)
	if err != nil {
		return nil, fmt.Errorf("gateway: SMTP TLS dial failed: %w", err)
	}

	smtpClient := smtp.NewClient(conn)
	auth := sasl.NewPlainClient("", t.cfg.Address, t.cfg.Password)
	if err := smtpClient.Auth(auth); err != nil {
		smtpClient.Close()
		return nil, fmt.Errorf("gateway: SMTP auth failed: %w", err)
	}
	return clientSession{smtpClient}, nil
}

// buildMessage renders a plain-text mail. Gateways drop the subject or
// prepend it to the SMS, so none is set.
func buildMessage(from, to, body, messageID string, now time.Time) []byte {
	headers := []string{
		"From: " + sanitizeHeader(from),
		"To: " + sanitizeHeader(to),
		"Date: " + now.Format(time.RFC1123Z),
		"Message-ID: " + messageID,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"Content-Transfer-Encoding: 8bit",
	}
	return []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + normalizeBody(body) + "\r\n")
}

func sanitizeHeader(value string) string {
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.TrimSpace(value)
}

// normalizeBody converts line endings to CRLF. Surrounding whitespace is
// kept since it counts towards the split parts.
func normalizeBody(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\r", "\n")
	return strings.ReplaceAll(body, "\n", "\r\n")
}

func generateMessageID(address string) string {
	domain := "localhost"
	if at := strings.LastIndex(address, "@"); at >= 0 && at < len(address)-1 {
		domain = address[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}
