// Package smsbridge is a lightweight index for the packages in this module.
//
// This root package is documentation-only. Import specific subpackages to use
// concrete functionality.
//
// Available packages:
//   - github.com/spachava753/smsbridge/sms
//     Request dispatch, segmentation, sending and inbox reads.
//   - github.com/spachava753/smsbridge/smsdb
//     SQLite message store and loopback transport.
//   - github.com/spachava753/smsbridge/macos/messages
//     macOS Messages transport and chat.db store.
//   - github.com/spachava753/smsbridge/gateway
//     Carrier email-to-SMS gateway over SMTP and IMAP.
//   - github.com/spachava753/smsbridge/cmd/smsbridge
//     JSON-lines host over stdin/stdout.
//
// Discovery workflow:
//   - Run: go doc github.com/spachava753/smsbridge
//   - Then drill in with:
//     go doc github.com/spachava753/smsbridge/sms
//     go doc github.com/spachava753/smsbridge/smsdb
//     go doc github.com/spachava753/smsbridge/gateway
package smsbridge
