package gateway

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"unicode"

	"github.com/spachava753/smsbridge/sms"
)

const defaultMailbox = "INBOX"

var (
	// ErrNoCredentials is returned when the mailbox address or password is
	// missing.
	ErrNoCredentials = errors.New("gateway: mail address and password are required")
	// ErrNoDomain is returned when no gateway domain is configured.
	ErrNoDomain = errors.New("gateway: gateway domain is required")
	// ErrUnsupportedBox is returned for boxes the gateway cannot serve.
	ErrUnsupportedBox = errors.New("gateway: unsupported box")
)

// Config holds mailbox credentials and server endpoints.
type Config struct {
	Address  string
	Password string
	// Domain is the carrier gateway domain, for example "vtext.com".
	Domain   string
	SMTPAddr string
	IMAPAddr string
	// Mailbox defaults to INBOX.
	Mailbox string
	// Capacities overrides the per-encoding unit capacity. Missing entries
	// use the sms defaults.
	Capacities map[sms.Encoding]int
}

func (c Config) withDefaults() Config {
	c.Address = strings.TrimSpace(c.Address)
	// app passwords are often displayed in space-separated groups
	c.Password = strings.ReplaceAll(c.Password, " ", "")
	c.Domain = strings.ToLower(strings.TrimSpace(c.Domain))
	c.Mailbox = strings.TrimSpace(c.Mailbox)
	if c.Mailbox == "" {
		c.Mailbox = defaultMailbox
	}
	return c
}

func (c Config) validate(needSMTP, needIMAP bool) error {
	if c.Address == "" || c.Password == "" {
		return ErrNoCredentials
	}
	if c.Domain == "" {
		return ErrNoDomain
	}
	if needSMTP {
		if _, _, err := net.SplitHostPort(c.SMTPAddr); err != nil {
			return fmt.Errorf("gateway: invalid SMTP address %q: %w", c.SMTPAddr, err)
		}
	}
	if needIMAP {
		if _, _, err := net.SplitHostPort(c.IMAPAddr); err != nil {
			return fmt.Errorf("gateway: invalid IMAP address %q: %w", c.IMAPAddr, err)
		}
	}
	return nil
}

func (c Config) capacity(enc sms.Encoding) int {
	if n, ok := c.Capacities[enc]; ok {
		return n
	}
	switch enc {
	case sms.EncodingGSM7:
		return sms.DefaultGSM7Capacity
	case sms.EncodingUCS2:
		return sms.DefaultUCS2Capacity
	default:
		return 0
	}
}

// Recipient returns the gateway mail address for a phone number. An address
// that already contains "@" is used as-is.
func (c Config) Recipient(address string) (string, error) {
	address = strings.TrimSpace(address)
	if strings.Contains(address, "@") {
		return address, nil
	}
	digits := digitsOf(address)
	if digits == "" {
		return "", fmt.Errorf("gateway: %q has no dialable digits", address)
	}
	return digits + "@" + c.Domain, nil
}

// senderAddress maps a From mailbox back to the address the caller would
// have used: the local part for gateway mail, the full address otherwise.
func (c Config) senderAddress(mailbox, host string) string {
	if strings.EqualFold(host, c.Domain) {
		return mailbox
	}
	if host == "" {
		return mailbox
	}
	return mailbox + "@" + host
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func digitsOf(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
