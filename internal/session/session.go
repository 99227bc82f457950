// Package session persists short chat histories keyed by session id so
// clients can omit history from follow-up requests.
package session

import (
	"context"
	"time"

	"github.com/docuery/docuery/internal/rag"
)

// DefaultTTL is how long an idle session is retained.
const DefaultTTL = 24 * time.Hour

// maxTurns bounds how many turns a session keeps. Older turns are
// discarded first.
const maxTurns = 50

// Store keeps conversation turns per session.
type Store interface {
	// History returns the turns recorded for id, oldest first. A
	// missing session yields an empty slice, not an error.
	History(ctx context.Context, id string) ([]rag.HistoryItem, error)
	// Append records turns at the end of the session's history and
	// refreshes its TTL.
	Append(ctx context.Context, id string, turns ...rag.HistoryItem) error
	// Clear removes the session.
	Clear(ctx context.Context, id string) error
}
