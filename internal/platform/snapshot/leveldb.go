package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/medledger/medledger/internal/domain/ledger"
)

const (
	levelKeyPrefix  = "ledger_"
	levelKeySavedAt = "meta_saved_at"
)

// LevelDB keeps each bucket under "ledger_<bucket>" and the time of the last
// save under "meta_saved_at". A save is written as one batch.
type LevelDB struct {
	db  *leveldb.DB
	now func() time.Time
}

func OpenLevelDB(path string) (*LevelDB, error) {
	if path == "" {
		path = "ledger-snapshot"
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelDB{db: db, now: time.Now}, nil
}

func (s *LevelDB) Save(_ context.Context, st ledger.State) error {
	raw, err := encode(st)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	for b, data := range raw {
		batch.Put([]byte(levelKeyPrefix+b), data)
	}
	batch.Put([]byte(levelKeySavedAt), []byte(s.now().UTC().Format(time.RFC3339Nano)))
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (s *LevelDB) Load(_ context.Context) (ledger.State, bool, error) {
	raw := make(map[string][]byte, len(buckets))
	for _, b := range buckets {
		data, err := s.db.Get([]byte(levelKeyPrefix+b), nil)
		if errors.Is(err, leveldb.ErrNotFound) {
			continue
		}
		if err != nil {
			return ledger.State{}, false, fmt.Errorf("read %s: %w", b, err)
		}
		raw[b] = data
	}
	return decode(raw)
}

// SavedAt returns the time of the last successful Save.
func (s *LevelDB) SavedAt() (time.Time, bool) {
	v, err := s.db.Get([]byte(levelKeySavedAt), nil)
	if err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, string(v))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (s *LevelDB) Close() error {
	return s.db.Close()
}
