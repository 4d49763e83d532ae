// Package router implements the Message Router, the orchestrator that turns
// validated messages into deliveries, history appends, and store calls.
//
// Routing is a per-type dispatch table, executed once per message:
//
//	TEXT/IMAGE/FILE  targeted: deliver + echo to sender (system error reply
//	                 when the recipient is offline); untargeted: broadcast.
//	                 Both append to history and persist.
//	SYSTEM_NOTICE    broadcast, history, persist.
//	USER_JOIN        broadcast, history; joiner additionally gets the online
//	                 user list and a replay of recent history.
//	USER_LEAVE       broadcast, history. Not persisted.
//	TYPING           targeted: deliver iff online, else silent drop;
//	                 untargeted: broadcast to everyone but the sender.
//	                 Never history, never persisted.
//	READ_RECEIPT     deliver to the recipient iff online; on success mark
//	                 the referenced message (carried in content) read.
//
// Connection lifecycle events enter through OnOpen/OnClose/OnError as
// synthesized USER_JOIN/USER_LEAVE messages. Store failures are logged and
// never affect in-memory delivery.
package router
