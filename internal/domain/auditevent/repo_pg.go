package auditevent

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type RepoPG struct {
	conn queryable
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{conn: pool}
}

const eventCols = `id, sequence, kind, actor, patient, subject, record_id, recorded_at`

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	var kind string
	var seq, recordID int64
	err := row.Scan(&e.ID, &seq, &kind, &e.Actor, &e.Patient, &e.Subject, &recordID, &e.Timestamp)
	e.Sequence = uint64(seq)
	e.Kind = Kind(kind)
	e.RecordID = uint64(recordID)
	return &e, err
}

// Append inserts the event. Re-publishing an already stored event is a
// no-op so a restarted process can replay its trail; a different event under
// a stored sequence fails with ErrSequenceConflict.
func (r *RepoPG) Append(ctx context.Context, e *Event) error {
	tag, err := r.conn.Exec(ctx, `
		INSERT INTO ledger_audit_event (`+eventCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (sequence) DO NOTHING`,
		e.ID, int64(e.Sequence), string(e.Kind), e.Actor, e.Patient, e.Subject, int64(e.RecordID), e.Timestamp)
	if err != nil {
		return fmt.Errorf("insert audit event %d: %w", e.Sequence, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var stored uuid.UUID
	if err := r.conn.QueryRow(ctx, `SELECT id FROM ledger_audit_event WHERE sequence = $1`, int64(e.Sequence)).Scan(&stored); err != nil {
		return fmt.Errorf("check audit event %d: %w", e.Sequence, err)
	}
	if stored != e.ID {
		return fmt.Errorf("audit event %d: stored id %s, got %s: %w", e.Sequence, stored, e.ID, ErrSequenceConflict)
	}
	return nil
}

func (r *RepoPG) LastSequence(ctx context.Context) (uint64, error) {
	var last int64
	if err := r.conn.QueryRow(ctx, `SELECT COALESCE(MAX(sequence), 0) FROM ledger_audit_event`).Scan(&last); err != nil {
		return 0, fmt.Errorf("last audit sequence: %w", err)
	}
	return uint64(last), nil
}

func (r *RepoPG) List(ctx context.Context, limit, offset int) ([]*Event, int, error) {
	var total int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_audit_event`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit events: %w", err)
	}
	rows, err := r.conn.Query(ctx, `SELECT `+eventCols+` FROM ledger_audit_event ORDER BY sequence LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()
	items, err := collectEvents(rows)
	return items, total, err
}

func (r *RepoPG) ListByPatient(ctx context.Context, patient string, limit, offset int) ([]*Event, int, error) {
	var total int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_audit_event WHERE patient = $1`, patient).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit events: %w", err)
	}
	rows, err := r.conn.Query(ctx, `SELECT `+eventCols+` FROM ledger_audit_event WHERE patient = $1 ORDER BY sequence LIMIT $2 OFFSET $3`, patient, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()
	items, err := collectEvents(rows)
	return items, total, err
}

func collectEvents(rows pgx.Rows) ([]*Event, error) {
	var items []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
