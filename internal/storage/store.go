// Package storage records published telemetry in SQLite so a flight can be
// inspected or replayed after the fact.
package storage

import (
	"context"

	_ "github.com/mattn/go-sqlite3"
)

// Store provides an interface for recording bridge output.
// All operations that write to the database should be considered atomic.
type Store interface {
	// CreateSession initializes a new recording session and returns its unique identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - runID: Unique identifier of the bridge run
	//   - source: Names of the enabled input sources
	//   - config: Optional configuration. Can be string, []byte, or JSON-serializable object
	//
	// Returns:
	//   - sessionID: Unique identifier for the created session
	//   - error: If session creation fails or context is cancelled
	CreateSession(ctx context.Context, runID, source string, config any) (sessionID int64, err error)

	// Session retrieves a specific session by its ID.
	//
	// Returns:
	//   - session: Pointer to session data
	//   - error: If retrieval fails, the session does not exist or context is cancelled
	Session(ctx context.Context, id int64) (session *Session, err error)

	// Sessions returns all sessions stored in the database.
	// Results are ordered by start time in ascending order.
	Sessions(ctx context.Context) (sessions []*Session, err error)

	// StoreSamples saves output messages for a specific session.
	// All samples are stored in a single atomic transaction.
	StoreSamples(ctx context.Context, sessionID int64, samples []*Sample) error

	// Samples returns the samples of a session ordered by timestamp.
	// Options narrow the result by topic and time range.
	Samples(ctx context.Context, sessionID int64, opts ...QueryOption) (samples []*Sample, err error)

	// Close releases all database connections and resources.
	// After Close is called, the store instance cannot be reused.
	// It is safe to call Close multiple times.
	Close() error
}
