package dedupe

import "context"

// Deduper tracks which event ids have completed processing.
type Deduper interface {
	// Seen reports whether id was already marked as processed.
	Seen(ctx context.Context, id string) (alreadySeen bool, err error)
	// MarkSeen records id as processed. Called only after the event's side
	// effects are committed, so a failed event stays redeliverable.
	MarkSeen(ctx context.Context, id string) error
}
