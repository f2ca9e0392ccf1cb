package secrets

import "context"

// KeySource yields the collector API key at send time.
//
// The transport asks for the key on every delivery so a rotated key takes
// effect without reconfiguring the client.
type KeySource interface {
	// APIKey returns the current key. An empty key with a nil error means
	// "send without x-api-key".
	APIKey(ctx context.Context) (string, error)

	// Source returns the source name (static, file).
	Source() string
}

// StaticSource is a fixed key taken from configuration or the environment.
type StaticSource string

// APIKey returns the configured key.
func (s StaticSource) APIKey(ctx context.Context) (string, error) {
	return string(s), nil
}

// Source returns the source name.
func (s StaticSource) Source() string {
	return "static"
}
