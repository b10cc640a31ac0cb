package auditevent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeConn mimics the audit table for a single sequence.
type fakeConn struct {
	inserted bool
	storedID uuid.UUID
	maxSeq   int64
}

func (f *fakeConn) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeConn) QueryRow(_ context.Context, sql string, _ ...interface{}) pgx.Row {
	if strings.Contains(sql, "MAX(sequence)") {
		return fakeRow{val: f.maxSeq}
	}
	return fakeRow{val: f.storedID}
}

func (f *fakeConn) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	if f.inserted {
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
	return pgconn.NewCommandTag("INSERT 0 0"), nil
}

type fakeRow struct{ val interface{} }

func (r fakeRow) Scan(dest ...interface{}) error {
	switch d := dest[0].(type) {
	case *uuid.UUID:
		*d = r.val.(uuid.UUID)
	case *int64:
		*d = r.val.(int64)
	default:
		return fmt.Errorf("unexpected scan target %T", d)
	}
	return nil
}

func TestRepoPG_Append(t *testing.T) {
	ctx := context.Background()
	e := &Event{ID: uuid.New(), Sequence: 11, Kind: KindMedicalRecordAdded}

	conn := &fakeConn{inserted: true}
	if err := (&RepoPG{conn: conn}).Append(ctx, e); err != nil {
		t.Fatalf("fresh insert: %v", err)
	}

	// Replaying the same event is accepted.
	conn = &fakeConn{storedID: e.ID}
	if err := (&RepoPG{conn: conn}).Append(ctx, e); err != nil {
		t.Fatalf("replay of stored event: %v", err)
	}

	// A different event reusing the sequence must not vanish silently.
	conn = &fakeConn{storedID: uuid.New()}
	err := (&RepoPG{conn: conn}).Append(ctx, e)
	if !errors.Is(err, ErrSequenceConflict) {
		t.Fatalf("expected ErrSequenceConflict, got %v", err)
	}
}

func TestRepoPG_LastSequence(t *testing.T) {
	last, err := (&RepoPG{conn: &fakeConn{maxSeq: 15}}).LastSequence(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if last != 15 {
		t.Errorf("expected 15, got %d", last)
	}
}
