package linkstore

import (
	"bytes"
	"sort"
	"sync"
)

// memKV is an in-memory stand-in for PebbleKV, used so merge/query tests
// don't need a real pebble store on disk.
type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

func (m *memKV) Get(key []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := append([]byte(nil), v...)
	return out, nil
}

func (m *memKV) NewBatch() Batch {
	return &memBatch{kv: m, puts: make(map[string][]byte), dels: make(map[string]bool)}
}

func (m *memKV) ScanPrefix(prefix, end, startAfter []byte, visit func(key, value []byte) (bool, error)) error {
	m.mu.Lock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	m.mu.Unlock()
	sort.Strings(keys)

	upper := end
	if upper == nil {
		upper = incrementKey(prefix)
	}

	for _, k := range keys {
		kb := []byte(k)
		if !bytes.HasPrefix(kb, prefix) {
			continue
		}
		if upper != nil && bytes.Compare(kb, upper) >= 0 {
			continue
		}
		if startAfter != nil && bytes.Compare(kb, startAfter) <= 0 {
			continue
		}
		m.mu.Lock()
		v, ok := m.data[k]
		m.mu.Unlock()
		if !ok {
			continue
		}
		stop, err := visit(kb, v)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

type memBatch struct {
	kv   *memKV
	puts map[string][]byte
	dels map[string]bool
}

func (b *memBatch) Put(key, value []byte) {
	delete(b.dels, string(key))
	b.puts[string(key)] = append([]byte(nil), value...)
}

func (b *memBatch) Delete(key []byte) {
	delete(b.puts, string(key))
	b.dels[string(key)] = true
}

func (b *memBatch) Commit() error {
	b.kv.mu.Lock()
	defer b.kv.mu.Unlock()
	for k := range b.dels {
		delete(b.kv.data, k)
	}
	for k, v := range b.puts {
		b.kv.data[k] = v
	}
	return nil
}

func (b *memBatch) Close() error { return nil }
