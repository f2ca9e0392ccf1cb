// Package logging provides structured logging with PII redaction.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - Structured logging with JSON, text, and console formats
//   - Automatic redaction of emails, API keys and chat text
//   - Context-aware logging with chat, session and request identifiers
//   - Configurable log levels (debug, info, warn, error)
//
// # Usage
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, os.Stderr))
//	if err != nil {
//	    return err
//	}
//	logger.SetDefault()
//
//	// Components receive the plain *slog.Logger.
//	client := transport.New(transport.Options{Logger: logger.Slog()})
//
//	// Correlation fields travel in the context.
//	ctx = logging.WithChatID(ctx, "chat-1")
//	logger.Slog().InfoContext(ctx, "trace delivered")  // includes chat_id
//
// # PII Redaction
//
// When RedactPII is enabled:
//
//   - Credential fields (api_key, x-api-key, token, ...): sk-abc123xyz → sk-a***
//   - email / user fields: ada@example.com → a***@example.com
//   - message / response fields: replaced by their length, e.g. [42 chars]
//   - Any other string: embedded emails, bearer tokens and keys are masked
package logging
