// Package gateway sends and reads SMS through a carrier email-to-SMS gateway.
//
// Most carriers deliver mail addressed to <number>@<gateway domain> as a text
// message and deliver replies back to the sending mailbox. Transport submits
// over SMTP (implicit TLS, SASL PLAIN) and Store reads replies from an IMAP
// mailbox.
//
// Configuration
//
//	cfg := gateway.Config{
//		Address:  "bridge@example.com",
//		Password: os.Getenv("SMSBRIDGE_MAIL_PASSWORD"),
//		Domain:   "vtext.com",
//		SMTPAddr: "smtp.example.com:465",
//		IMAPAddr: "imap.example.com:993",
//	}
//	transport, err := gateway.NewTransport(cfg)
//	store, err := gateway.NewStore(cfg)
//
// Field mapping (mail → sms record)
//
//   - _id: IMAP UID in the configured mailbox
//   - address: sender local part when the sender is on the gateway domain,
//     otherwise the full sender address; NULL when the message has no sender
//   - body: first text/plain part, transfer-decoded, without the final line
//     break
//   - date: INTERNALDATE in unix milliseconds
//   - read: \Seen flag
//   - type: always sms.TypeInbox
//
// Operational notes
//
//   - Reads use BODY.PEEK so listing messages never marks them as seen.
//   - An address filter matches the returned address exactly; the IMAP FROM
//     search only narrows the candidates.
//   - Ordering needs the INTERNALDATE of every search hit, so envelope
//     metadata for all hits is fetched before the first body.
//   - Only BoxInbox and BoxAll are served; the gateway keeps no sent box.
//   - Multipart submissions send one mail per part in a single SMTP session.
package gateway
