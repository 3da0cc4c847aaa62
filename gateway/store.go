package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/spachava753/smsbridge/sms"
)

const fetchPageSize = 50

// ErrUnknownField is returned when a query selects a field the gateway cannot
// provide.
var ErrUnknownField = errors.New("gateway: unknown field")

// envelope is the per-message metadata fetched for every search hit.
type envelope struct {
	UID     uint32
	Mailbox string
	Host    string
	HasFrom bool
	Seen    bool
	Date    time.Time
}

// mailbox is the subset of IMAP operations the store needs.
type mailbox interface {
	Search(criteria *imap.SearchCriteria) ([]uint32, error)
	Envelopes(uids []uint32) ([]envelope, error)
	Bodies(uids []uint32) (map[uint32][]byte, error)
	Close() error
}

// Store reads gateway replies from an IMAP mailbox.
type Store struct {
	cfg     Config
	connect func(ctx context.Context) (mailbox, error)
}

// NewStore validates cfg and returns an IMAP store.
func NewStore(cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(false, true); err != nil {
		return nil, err
	}
	s := &Store{cfg: cfg}
	s.connect = s.dialIMAP
	return s, nil
}

// Query implements sms.Store. Matching message metadata is sorted newest
// first up front; bodies are fetched lazily a page at a time as the cursor
// advances.
func (s *Store) Query(ctx context.Context, q sms.Query) (sms.Cursor, error) {
	if q.Box == sms.BoxSent {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBox, q.Box)
	}
	fields := q.Fields
	if len(fields) == 0 {
		fields = sms.Fields()
	}
	needBody := false
	for _, field := range fields {
		switch field {
		case sms.FieldID, sms.FieldAddress, sms.FieldDate, sms.FieldRead, sms.FieldType:
		case sms.FieldBody:
			needBody = true
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
	}

	criteria := imap.NewSearchCriteria()
	filter, filtered := q.Address.Get()
	if filtered {
		// FROM is a case-insensitive substring search; the returned address
		// always contains the filter when it matches, so this only narrows
		criteria.Header.Add("FROM", filter)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	box, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	index, err := s.buildIndex(box, criteria, filter, filtered)
	if err != nil {
		box.Close()
		return nil, err
	}
	if q.Limit > 0 && len(index) > q.Limit {
		index = index[:q.Limit]
	}
	return &cursor{
		ctx:      ctx,
		cfg:      s.cfg,
		box:      box,
		fields:   fields,
		needBody: needBody,
		index:    index,
	}, nil
}

// buildIndex fetches envelope metadata for every search hit. IMAP has no
// server-side date sort without the SORT extension, so newest-first order
// needs the dates of all hits; bodies are not part of the index.
func (s *Store) buildIndex(box mailbox, criteria *imap.SearchCriteria, filter string, filtered bool) ([]envelope, error) {
	uids, err := box.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("gateway: UID SEARCH failed: %w", err)
	}
	envs, err := box.Envelopes(uids)
	if err != nil {
		return nil, err
	}

	if filtered {
		matched := envs[:0]
		for _, env := range envs {
			if env.HasFrom && s.cfg.senderAddress(env.Mailbox, env.Host) == filter {
				matched = append(matched, env)
			}
		}
		envs = matched
	}

	sort.SliceStable(envs, func(i, j int) bool {
		if !envs[i].Date.Equal(envs[j].Date) {
			return envs[i].Date.After(envs[j].Date)
		}
		return envs[i].UID > envs[j].UID
	})
	return envs, nil
}

type cursor struct {
	ctx      context.Context
	cfg      Config
	box      mailbox
	fields   []string
	needBody bool

	index []envelope
	pos   int
	page  []sms.RawRecord
	cur   sms.RawRecord
	err   error
	done  bool
}

func (c *cursor) Next() bool {
	if c.done || c.err != nil {
		return false
	}
	if len(c.page) == 0 {
		if c.pos >= len(c.index) {
			c.done = true
			return false
		}
		if err := c.loadPage(); err != nil {
			c.err = err
			return false
		}
	}
	c.cur, c.page = c.page[0], c.page[1:]
	return true
}

func (c *cursor) loadPage() error {
	if err := c.ctx.Err(); err != nil {
		return err
	}
	end := min(c.pos+fetchPageSize, len(c.index))
	envs := c.index[c.pos:end]
	c.pos = end

	var bodies map[uint32][]byte
	if c.needBody {
		uids := make([]uint32, len(envs))
		for i, env := range envs {
			uids[i] = env.UID
		}
		var err error
		bodies, err = c.box.Bodies(uids)
		if err != nil {
			return err
		}
	}

	c.page = make([]sms.RawRecord, 0, len(envs))
	for _, env := range envs {
		rec, err := c.record(env, bodies)
		if err != nil {
			return err
		}
		c.page = append(c.page, rec)
	}
	return nil
}

func (c *cursor) record(env envelope, bodies map[uint32][]byte) (sms.RawRecord, error) {
	rec := make(sms.RawRecord, len(c.fields))
	for _, field := range c.fields {
		switch field {
		case sms.FieldID:
			rec[field] = int64(env.UID)
		case sms.FieldAddress:
			if env.HasFrom {
				rec[field] = c.cfg.senderAddress(env.Mailbox, env.Host)
			} else {
				rec[field] = nil
			}
		case sms.FieldBody:
			raw, ok := bodies[env.UID]
			if !ok {
				rec[field] = nil
				continue
			}
			text, err := extractText(raw)
			if err != nil {
				return nil, fmt.Errorf("gateway: parsing message %d failed: %w", env.UID, err)
			}
			rec[field] = text
		case sms.FieldDate:
			rec[field] = env.Date.UnixMilli()
		case sms.FieldRead:
			if env.Seen {
				rec[field] = int64(1)
			} else {
				rec[field] = int64(0)
			}
		case sms.FieldType:
			rec[field] = int64(sms.TypeInbox)
		}
	}
	return rec, nil
}

func (c *cursor) Record() sms.RawRecord { return c.cur }

func (c *cursor) Err() error { return c.err }

func (c *cursor) Close() error {
	c.done = true
	if c.box == nil {
		return nil
	}
	box := c.box
	c.box = nil
	return box.Close()
}

// imapMailbox adapts a logged-in client with the mailbox selected read-only.
type imapMailbox struct {
	client *client.Client
}

func (s *Store) dialIMAP(ctx context.Context) (mailbox, error) {
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: hostOf(s.cfg.IMAPAddr)}}
	conn, err := dialer.DialContext(ctx, "tcp", s.cfg.IMAPAddr)
	if err != nil {
		return nil, fmt.Errorf("gateway: IMAP TLS dial failed: %w", err)
	}
	imapClient, err := client.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("gateway: IMAP greeting failed: %w", err)
	}
	if err := imapClient.Login(s.cfg.Address, s.cfg.Password); err != nil {
		imapClient.Logout()
		return nil, fmt.Errorf("gateway: IMAP login failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		imapClient.Logout()
		return nil, err
	}
	if _, err := imapClient.Select(s.cfg.Mailbox, true); err != nil {
		imapClient.Logout()
		return nil, fmt.Errorf("gateway: selecting mailbox %q failed: %w", s.cfg.Mailbox, err)
	}
	return &imapMailbox{client: imapClient}, nil
}

func (m *imapMailbox) Search(criteria *imap.SearchCriteria) ([]uint32, error) {
	return m.client.UidSearch(criteria)
}

func (m *imapMailbox) Envelopes(uids []uint32) ([]envelope, error) {
	items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, imap.FetchFlags, imap.FetchInternalDate}
	out := make([]envelope, 0, len(uids))
	err := m.fetch(uids, items, func(msg *imap.Message) error {
		env := envelope{UID: msg.Uid, Date: msg.InternalDate}
		for _, flag := range msg.Flags {
			if strings.EqualFold(flag, imap.SeenFlag) {
				env.Seen = true
			}
		}
		if msg.Envelope != nil && len(msg.Envelope.From) > 0 && msg.Envelope.From[0] != nil {
			env.HasFrom = true
			env.Mailbox = msg.Envelope.From[0].MailboxName
			env.Host = msg.Envelope.From[0].HostName
		}
		out = append(out, env)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *imapMailbox) Bodies(uids []uint32) (map[uint32][]byte, error) {
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}
	out := make(map[uint32][]byte, len(uids))
	err := m.fetch(uids, items, func(msg *imap.Message) error {
		literal := msg.GetBody(section)
		if literal == nil {
			return nil
		}
		raw, err := io.ReadAll(literal)
		if err != nil {
			return fmt.Errorf("gateway: reading fetched body failed: %w", err)
		}
		out[msg.Uid] = raw
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *imapMailbox) fetch(uids []uint32, items []imap.FetchItem, each func(*imap.Message) error) error {
	if len(uids) == 0 {
		return nil
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	messages := make(chan *imap.Message, len(uids)+8)
	done := make(chan error, 1)
	go func() {
		done <- m.client.UidFetch(seqSet, items, messages)
	}()

	var firstErr error
	for msg := range messages {
		if firstErr != nil {
			continue
		}
		firstErr = each(msg)
	}
	if err := <-done; err != nil {
		return fmt.Errorf("gateway: fetching messages failed: %w", err)
	}
	return firstErr
}

func (m *imapMailbox) Close() error {
	return m.client.Logout()
}

// extractText returns the first text/plain body of a raw RFC 5322 message.
func extractText(raw []byte) (string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return "", err
	}
	text, _, err := textFromEntity(textproto.MIMEHeader(msg.Header), body)
	if err != nil {
		return "", err
	}
	// only the line break that terminates the mail body
	if trimmed, ok := strings.CutSuffix(text, "\r\n"); ok {
		return trimmed, nil
	}
	return strings.TrimSuffix(text, "\n"), nil
}

func textFromEntity(header textproto.MIMEHeader, body []byte) (string, bool, error) {
	mediaType, params, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil || mediaType == "" {
		mediaType = "text/plain"
	}
	decoded, err := decodeTransferEncoding(header.Get("Content-Transfer-Encoding"), body)
	if err != nil {
		return "", false, err
	}

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		boundary := params["boundary"]
		if boundary == "" {
			return "", false, nil
		}
		reader := multipart.NewReader(bytes.NewReader(decoded), boundary)
		for {
			part, err := reader.NextPart()
			if err == io.EOF {
				return "", false, nil
			}
			if err != nil {
				return "", false, err
			}
			partBody, err := io.ReadAll(part)
			if err != nil {
				return "", false, err
			}
			text, ok, err := textFromEntity(textproto.MIMEHeader(part.Header), partBody)
			if err != nil || ok {
				return text, ok, err
			}
		}
	case mediaType == "text/plain":
		return string(decoded), true, nil
	default:
		return "", false, nil
	}
}

func decodeTransferEncoding(encoding string, body []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		return io.ReadAll(quotedprintable.NewReader(bytes.NewReader(body)))
	case "base64":
		clean := strings.ReplaceAll(string(body), "\r", "")
		clean = strings.ReplaceAll(clean, "\n", "")
		decoded, err := base64.StdEncoding.DecodeString(clean)
		if err != nil {
			return body, nil
		}
		return decoded, nil
	default:
		return body, nil
	}
}
