package conversation

import "context"

// Store holds conversation histories keyed by user id. Implementations must
// be safe for concurrent use.
type Store interface {
	// History returns a copy of the user's interactions in insertion order and
	// whether the user has any history at all.
	History(ctx context.Context, userID string) ([]Interaction, bool, error)

	// Append adds records to the end of the user's history, creating it if
	// needed. Either all records are stored or none.
	Append(ctx context.Context, userID string, records ...Interaction) error

	// Users returns the number of users with a history.
	Users(ctx context.Context) (int, error)

	Close() error
}
