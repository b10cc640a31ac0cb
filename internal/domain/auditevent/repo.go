package auditevent

import (
	"context"
	"errors"
)

// ErrSequenceConflict means a different event is already stored under the
// same sequence number, i.e. the ledger reissued sequences it had already
// published.
var ErrSequenceConflict = errors.New("audit sequence already stored for a different event")

// Repository persists committed audit events outside the process.
type Repository interface {
	Append(ctx context.Context, e *Event) error
	List(ctx context.Context, limit, offset int) ([]*Event, int, error)
	ListByPatient(ctx context.Context, patient string, limit, offset int) ([]*Event, int, error)
	// LastSequence returns the highest stored sequence, 0 when empty.
	LastSequence(ctx context.Context) (uint64, error)
}
