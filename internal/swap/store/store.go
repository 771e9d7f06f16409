// Package store keeps swap orders in LevelDB with secondary indexes by
// offered token, wanted token and open/historical partition.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var (
	ErrNotFound        = errors.New("order not found")
	ErrVersionMismatch = errors.New("index version mismatch")
	ErrCorrupt         = errors.New("index corrupt")
)

const wipeBatchSize = 10_000

// Options tune the on-disk database.
type Options struct {
	CacheSize int
}

// Store is the persistent order store. It has a single writer (see Begin)
// and any number of snapshot readers.
type Store struct {
	db      *leveldb.DB
	metrics Metrics
}

type reader interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
}

// Open opens or creates the database at path.
func Open(path string, options Options, metrics Metrics) (*Store, error) {
	if metrics == nil {
		return nil, errors.New("order store metrics is required")
	}
	if options.CacheSize <= 0 {
		options.CacheSize = 64 << 20
	}
	db, err := leveldb.OpenFile(path, &opt.Options{
		Filter:             filter.NewBloomFilter(10),
		BlockCacheCapacity: options.CacheSize / 2,
		WriteBuffer:        options.CacheSize / 4,
	})
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &Store{db: db, metrics: metrics}, nil
}

// OpenMemory opens a store that lives in memory only.
func OpenMemory(metrics Metrics) (*Store, error) {
	if metrics == nil {
		return nil, errors.New("order store metrics is required")
	}
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open memory leveldb: %w", err)
	}
	return &Store{db: db, metrics: metrics}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureVersion stamps an empty database with SchemaVersion and wipes a
// database written by another version. It reports whether a wipe happened.
func (s *Store) EnsureVersion() (wiped bool, err error) {
	raw, err := s.db.Get(keyVersion, nil)
	switch {
	case err == nil:
		if len(raw) == 4 && binary.BigEndian.Uint32(raw) == SchemaVersion {
			return false, nil
		}
	case errors.Is(err, leveldb.ErrNotFound):
		empty, emptyErr := s.isEmpty()
		if emptyErr != nil {
			return false, emptyErr
		}
		if empty {
			return false, s.db.Put(keyVersion, versionBytes(), nil)
		}
	default:
		return false, fmt.Errorf("read index version: %w", err)
	}

	if err := s.Wipe(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrVersionMismatch, err)
	}
	return true, nil
}

// Wipe deletes every record and stamps the current version.
func (s *Store) Wipe() (err error) {
	started := time.Now()
	defer func() { s.metrics.Observe("wipe", err, started) }()

	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
		if batch.Len() >= wipeBatchSize {
			if err = s.db.Write(batch, nil); err != nil {
				return fmt.Errorf("wipe: %w", err)
			}
			batch.Reset()
		}
	}
	if err = iter.Error(); err != nil {
		return fmt.Errorf("wipe iterate: %w", err)
	}
	batch.Put(keyVersion, versionBytes())
	if err = s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("wipe: %w", err)
	}
	return nil
}

// Tip returns the last applied block; ok is false on an empty index.
func (s *Store) Tip() (model.Tip, bool, error) {
	return readTip(s.db)
}

// Snapshot returns a consistent read view. Callers must Release it.
func (s *Store) Snapshot() (*Snapshot, error) {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return &Snapshot{snap: snap, metrics: s.metrics}, nil
}

// Begin starts a write transaction. Only one transaction may be open at a time.
func (s *Store) Begin() *Txn {
	return &Txn{
		store:   s,
		batch:   new(leveldb.Batch),
		orders:  make(map[wire.OutPoint]*model.Order),
		touched: make(map[wire.OutPoint]struct{}),
	}
}

func (s *Store) isEmpty() (bool, error) {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()
	if iter.Next() {
		return false, nil
	}
	return true, iter.Error()
}

func versionBytes() []byte {
	return binary.BigEndian.AppendUint32(nil, SchemaVersion)
}

func getOrder(r reader, op wire.OutPoint) (model.Order, bool, error) {
	raw, err := r.Get(orderKey(op), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return model.Order{}, false, nil
	}
	if err != nil {
		return model.Order{}, false, fmt.Errorf("get order %v: %w", op, err)
	}
	o, err := decodeOrder(raw)
	if err != nil {
		return model.Order{}, false, fmt.Errorf("%w: order %v: %v", ErrCorrupt, op, err)
	}
	return o, true, nil
}

func readTip(r reader) (model.Tip, bool, error) {
	raw, err := r.Get(keyTip, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return model.Tip{}, false, nil
	}
	if err != nil {
		return model.Tip{}, false, fmt.Errorf("get tip: %w", err)
	}
	tip, err := decodeTip(raw)
	if err != nil {
		return model.Tip{}, false, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return tip, true, nil
}

func prefixRange(prefix []byte) *util.Range {
	return util.BytesPrefix(prefix)
}
