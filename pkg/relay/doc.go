// Package relay exposes the trace correlator to a hosting chat UI over HTTP
// and WebSocket.
//
// The UI notifies the relay when the user submits a message, when an
// assistant turn completes and when a conversation is cleared. The relay
// routes each notification to the conversation's Correlator, keyed by
// (email, chatID), which tags it with the session identifier and delivers it
// to the collector.
//
// # Endpoints
//
//	POST   /v1/chats/{chatID}/messages    {email, message, async?}
//	POST   /v1/chats/{chatID}/responses   {email, message, response, model?, usage?, async?}
//	GET    /v1/chats/{chatID}/session?email=
//	DELETE /v1/chats/{chatID}/session?email=
//	GET    /v1/stream                     WebSocket, one ack per frame
//	GET    /health, /ready, /version, /metrics
//
// A failed delivery is answered with 200 and success=false in the body;
// only malformed requests produce 4xx. With async=true the relay answers 202
// immediately and traces in the background, so the UI never waits.
//
// # Authentication
//
// When relay.auth_tokens is set, the /v1 routes require one of the tokens as
// "Authorization: Bearer <token>", an X-Relay-Token header or a token query
// parameter (for browser WebSocket clients). Probes and metrics stay open.
//
// # Streams
//
// Stream frames are JSON objects with a type of "user", "assistant" or
// "reset". Frames are traced in the order received and each is answered
// with {type:"ack", chatId, sessionId, result} or {type:"error", error}.
// A frame may carry its own W3C traceparent to join the UI's trace.
package relay
