// Package trace defines the data model shared by the correlator and the
// collector transport: trace events, their metadata envelope, delivery
// results and the error taxonomy.
//
// # Events
//
// An Event is one user message or one completed assistant response:
//
//	ev := trace.UserMessage("ada@example.com", "hi", "chat-1", "", sessionID)
//	ev := trace.AssistantResponse(email, "hi", "hello", "chat-1", "", "gpt-4", &usage, sessionID)
//
// Empty emails become "anonymous", empty chat ids "unknown" and an empty
// source defaults to "next-chats-share". Assistant events carry the task tag
// "llm_response" and derive usage.totalTokens when it is missing.
//
// # Results
//
// Delivery never fails with a Go error at the API boundary. Every outcome is a
// Result; Failure converts any error into {Success:false, Error:<text>}.
//
// # Errors
//
//   - ConfigurationError: no usable collector endpoint
//   - TransportError: network failure, timeout, non-2xx status
//   - SerializationError: payload or response (de)serialization failure
package trace
