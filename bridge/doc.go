// Package bridge correlates tool requests with replies from the interactive
// front-end.
//
// # Overview
//
// The bridge sits between the stdio MCP server and the WebSocket transport:
//
//	mcp.Server (tools/call)
//	    ↓ SendAndAwait(msg, requestID, timeout)
//	Bridge ── Broadcast ──→ every open Session (front-end)
//	    ↑                            │ user answers
//	    └── OnBinaryMessage ←────────┘ (…Reply carrying requestID)
//
// # Components
//
// Registry: the set of connected sessions, keyed by session ID.
//
// Gate: satisfied on the first connection and never reset. A request that
// arrives before any front-end has attached waits (bounded) on the gate
// instead of broadcasting into the void.
//
// pendingTable: request ID → single-use reply slot. The first matching reply
// wins; later replies, replies for timed-out requests and unknown IDs are
// dropped.
//
// # Send failures
//
// A session whose Send fails is logged and left registered. It is removed
// only when the transport reports the connection closed.
package bridge
