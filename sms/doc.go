// Package sms is the command-dispatch core of smsbridge: it turns named,
// argument-bearing requests from a host layer into text-message sends and
// inbox reads against injected telephony collaborators.
//
// The package is intended for host shells (mobile method channels, CLIs,
// agents) that already hold the permissions needed to send and read SMS.
//
// Collaborators
//
//   - Transport: reports its per-unit segmentation capacity for an encoding
//     and accepts single or multipart submissions.
//   - Store: an externally owned, append-only message history queried
//     through a Cursor that is closed on every exit path.
//
// Concrete backends live in sibling packages:
//   - github.com/spachava753/smsbridge/smsdb (SQLite sms table)
//   - github.com/spachava753/smsbridge/macos/messages (Messages.app, chat.db)
//   - github.com/spachava753/smsbridge/gateway (email-to-SMS over SMTP/IMAP)
//
// Exported API (recommended usage order)
//
//  1. NewSender(transport, logger) and NewReader(store, logger)
//  2. NewDispatcher(sender, reader, opts...)
//  3. Dispatch(ctx, Request{Name: "sendSms", Arguments: ...})
//     Dispatch(ctx, Request{Name: "readSms", Arguments: ...})
//
// Every Dispatch call returns exactly one Response, which is either a
// Success, a Failure carrying an ErrorCode (INVALID_ARGUMENTS,
// SMS_SEND_ERROR, SMS_READ_ERROR), or NotImplemented for unknown methods.
//
// Operational notes
//
//   - The core holds no mutable state between calls and starts no goroutines.
//     Concurrent use is safe only when the Transport and Store are.
//   - No retries are attempted; a failed send or read is reported once.
package sms
