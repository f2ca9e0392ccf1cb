// Package correlator decides the session identifier attached to every trace
// event of a conversation.
//
// A Correlator serves one conversation. The first identifier established
// wins and is reused for every later user message and assistant response
// until ResetSession is called:
//
//	c := correlator.New(client, correlator.Options{Email: email, ChatID: chatID})
//
//	c.TraceUserMessage(ctx, "hi")                       // collector returns traceId "abc"
//	c.TraceAssistantResponse(ctx, "hi", "hello", "", nil) // sent with sessionId "abc"
//
//	c.ResetSession() // next event establishes a new identifier
//
// Under MintAdopt (the default) the identifier is the traceId returned by
// the collector. Under MintLocal a UUID is generated before the first event
// is sent.
//
// Tracing is best effort: failures come back as trace.Result values, leave
// the identifier unchanged and are never retried.
//
// Registry keeps one Correlator per (email, chatID) for the relay and evicts
// idle conversations on request.
package correlator
