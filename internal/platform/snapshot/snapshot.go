// Package snapshot persists exported ledger state so a restarted server can
// resume with the same patients, grants, records and audit trail.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/medledger/medledger/internal/domain/ledger"
)

// Store saves and restores a whole ledger.State. Load reports false when the
// store has never been written.
type Store interface {
	Save(ctx context.Context, s ledger.State) error
	Load(ctx context.Context) (ledger.State, bool, error)
	Close() error
}

const (
	BackendNone    = "none"
	BackendLevelDB = "leveldb"
	BackendSQLite  = "sqlite"
	BackendS3      = "s3"
)

// Open returns the store for backend, or nil for BackendNone. For BackendS3
// path is an s3:// URL, see ParseS3Path.
func Open(ctx context.Context, backend, path string) (Store, error) {
	switch backend {
	case "", BackendNone:
		return nil, nil
	case BackendLevelDB:
		s, err := OpenLevelDB(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendSQLite:
		s, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendS3:
		cfg, err := ParseS3Path(path)
		if err != nil {
			return nil, err
		}
		s, err := OpenS3(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", backend)
	}
}

// The state is split into buckets, each stored as one JSON value.
const (
	bucketMeta         = "meta"
	bucketPatients     = "patients"
	bucketDoctors      = "doctors"
	bucketInstitutions = "institutions"
	bucketAuditEvents  = "audit_events"
)

var buckets = []string{bucketMeta, bucketPatients, bucketDoctors, bucketInstitutions, bucketAuditEvents}

type meta struct {
	Admin         string `json:"admin"`
	RecordCounter uint64 `json:"record_counter"`
}

func encode(s ledger.State) (map[string][]byte, error) {
	values := map[string]any{
		bucketMeta:         meta{Admin: s.Admin, RecordCounter: s.RecordCounter},
		bucketPatients:     s.Patients,
		bucketDoctors:      s.Doctors,
		bucketInstitutions: s.Institutions,
		bucketAuditEvents:  s.AuditEvents,
	}
	out := make(map[string][]byte, len(values))
	for _, b := range buckets {
		data, err := json.Marshal(values[b])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", b, err)
		}
		out[b] = data
	}
	return out, nil
}

// decode rebuilds a State from raw buckets. A missing meta bucket means
// nothing was ever saved.
func decode(raw map[string][]byte) (ledger.State, bool, error) {
	data, ok := raw[bucketMeta]
	if !ok {
		return ledger.State{}, false, nil
	}
	var m meta
	if err := json.Unmarshal(data, &m); err != nil {
		return ledger.State{}, false, fmt.Errorf("decode meta: %w", err)
	}
	s := ledger.State{Admin: m.Admin, RecordCounter: m.RecordCounter}

	targets := map[string]any{
		bucketPatients:     &s.Patients,
		bucketDoctors:      &s.Doctors,
		bucketInstitutions: &s.Institutions,
		bucketAuditEvents:  &s.AuditEvents,
	}
	for b, dst := range targets {
		data, ok := raw[b]
		if !ok {
			continue
		}
		if err := json.Unmarshal(data, dst); err != nil {
			return ledger.State{}, false, fmt.Errorf("decode %s: %w", b, err)
		}
	}
	return s, true, nil
}
