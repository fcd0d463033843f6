package device

import (
	"context"
	"encoding/json"
)

// Session is the abstract driver capability: establish the transport once,
// then execute command lists against the device. Results are the raw
// structured output of each command, in request order; their shape is
// vendor-specific and interpreted by the dispatched collection handler.
type Session interface {
	// Open establishes and verifies the session. Must be called exactly
	// once before the first Run.
	Open(ctx context.Context, creds Credentials) error

	// Run executes the given commands and returns one structured result
	// per command.
	Run(ctx context.Context, commands ...string) ([]json.RawMessage, error)

	Close() error
}
