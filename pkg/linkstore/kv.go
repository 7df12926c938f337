package linkstore

import (
	"bytes"
	"errors"

	"github.com/cockroachdb/pebble"

	"github.com/farcasterxyz/linkstore/pkg/logger"
)

// ErrKeyNotFound is returned by KV.Get on a miss, mirroring pebble.ErrNotFound
// so callers can use errors.Is uniformly regardless of backend.
var ErrKeyNotFound = pebble.ErrNotFound

// KV is the ordered key-value engine the link store is built on. It is treated as an external
// collaborator; PebbleKV is the only implementation shipped here, backed by
// the embedded pebble engine the rest of this codebase already depends on.
type KV interface {
	Get(key []byte) ([]byte, error)
	NewBatch() Batch
	// ScanPrefix iterates keys in [prefix, end) in lexicographic order,
	// optionally resuming after startAfter (exclusive). visit returns
	// stop=true to end iteration early.
	ScanPrefix(prefix, end, startAfter []byte, visit func(key, value []byte) (stop bool, err error)) error
}

// Batch is a set of mutations applied atomically. Every merge, prune, and
// compact-state install coalesces into exactly one Batch.
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)
	Commit() error
	Close() error
}

// PebbleKV adapts a *pebble.DB to the KV interface.
type PebbleKV struct {
	db *pebble.DB
}

// NewPebbleKV opens (or creates) a pebble store at path.
func NewPebbleKV(path string, disableWAL bool, cacheBytes int64) (*PebbleKV, error) {
	opts := &pebble.Options{
		DisableWAL: disableWAL,
	}
	if cacheBytes > 0 {
		opts.Cache = pebble.NewCache(cacheBytes)
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, err
	}
	return &PebbleKV{db: db}, nil
}

func (p *PebbleKV) Close() error {
	return p.db.Close()
}

func (p *PebbleKV) Get(key []byte) ([]byte, error) {
	v, closer, err := p.db.Get(key)
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), v...)
	_ = closer.Close()
	return out, nil
}

func (p *PebbleKV) NewBatch() Batch {
	return &pebbleBatch{batch: p.db.NewBatch(), db: p.db}
}

func (p *PebbleKV) ScanPrefix(prefix, end, startAfter []byte, visit func(key, value []byte) (stop bool, err error)) error {
	upper := end
	if upper == nil {
		upper = incrementKey(prefix)
	}
	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return err
	}
	defer iter.Close()

	var valid bool
	if startAfter != nil {
		valid = iter.SeekGE(startAfter)
		if valid && bytes.Equal(iter.Key(), startAfter) {
			valid = iter.Next()
		}
	} else {
		valid = iter.First()
	}
	for ; valid; valid = iter.Next() {
		stop, err := visit(iter.Key(), iter.Value())
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return iter.Error()
}

type pebbleBatch struct {
	batch *pebble.Batch
	db    *pebble.DB
}

func (b *pebbleBatch) Put(key, value []byte) {
	_ = b.batch.Set(key, value, nil)
}

func (b *pebbleBatch) Delete(key []byte) {
	_ = b.batch.Delete(key, nil)
}

func (b *pebbleBatch) Commit() error {
	return b.db.Apply(b.batch, pebble.Sync)
}

func (b *pebbleBatch) Close() error {
	return b.batch.Close()
}

// IsNotFound reports whether err represents a KV miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// incrementKey returns the smallest byte string strictly greater than every
// string with prefix, i.e. the exclusive upper bound for a prefix scan. A
// prefix of all 0xFF bytes has no such bound and returns nil (scan to end).
func incrementKey(prefix []byte) []byte {
	out := append([]byte(nil), prefix...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}
