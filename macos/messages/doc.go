// Package messages serves macOS Messages as smsbridge collaborators: a
// Transport that sends SMS/iMessage through Messages.app and a read-only
// Store over the local chat database.
//
// Data sources
//
//   - AppleScript (Messages.app): send operations.
//   - SQLite (~/Library/Messages/chat.db): inbox/sent queries, opened with
//     mode=ro so the database is never modified.
//
// Field mapping (chat.db → sms record)
//
//   - _id: message.ROWID
//   - address: handle.id (NULL for messages without a handle)
//   - body: message.text (NULL for attachment-only messages)
//   - date: unix milliseconds, converted from the Apple epoch; both the
//     legacy seconds and current nanoseconds encodings are handled
//   - read: message.is_read
//   - type: sms.TypeSent when is_from_me, otherwise sms.TypeInbox
//
// Operational notes
//
//   - Sending requires macOS Automation permission for the calling process to
//     control Messages.app (System Settings -> Privacy & Security -> Automation).
//   - Reading chat.db requires Full Disk Access for the calling process.
//   - SQLite access uses github.com/mattn/go-sqlite3 (CGO required).
package messages
