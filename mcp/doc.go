// Package mcp implements the Model Context Protocol (MCP) side of the
// agent assistant.
//
// # Overview
//
// An agent talks to the Server over stdin/stdout using line-delimited
// JSON-RPC 2.0. The Server exposes two tools:
//
//   - ask_question: shows a question to the user and returns the answer.
//   - task_finish: tells the user the agent has finished, with a summary.
//
// A tools/call is mapped to a binary request message with a freshly
// generated request ID and handed to a Requester, normally the bridge,
// which broadcasts it to every connected front-end and blocks until the
// matching reply arrives:
//
//	Agent
//	    ↓ (tools/call on stdin)
//	Server.Run()
//	    ↓ (wire.Message, request ID)
//	Requester.SendAndAwait()
//	    ↓ (WebSocket binary frame)
//	Front-end shows the question, user answers
//	    ↓ (reply frame with the same request ID)
//	Server writes the tool result on stdout
//
// # Dispatch
//
// initialize and tools/list are answered from static data. The initialized
// notifications and unknown methods produce no output. Lines that are not
// valid JSON are logged and dropped. Lines are handled one at a time, so a
// pending tools/call holds back the lines behind it.
//
// # Errors
//
// Invalid params, missing arguments and unknown tools are reported with
// code -32602. A failed or timed out request is reported with code -32603.
// The response always echoes the request id as sent, and omits it when the
// request had none.
package mcp
