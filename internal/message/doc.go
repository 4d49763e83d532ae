// Package message defines the chat message model and its wire codec.
//
// A Message carries:
//   - identity: uuid string assigned at construction
//   - one of eight types (TEXT, IMAGE, FILE, SYSTEM_NOTICE, USER_JOIN,
//     USER_LEAVE, TYPING, READ_RECEIPT)
//   - sender/recipient usernames ("SYSTEM" reserved, empty or "GROUP"
//     recipient means broadcast)
//   - open metadata map for auxiliary fields (attachment URLs, user counts)
//
// The package also provides factory constructors for server-generated
// messages and the validate/sanitize gate applied to every inbound payload.
package message
