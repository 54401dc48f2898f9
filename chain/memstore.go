package chain

import (
	"sort"
	"strings"
)

// KeyValue is one entry of a MemStore dump.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// MemStore is a Store kept in memory. Its Entries are sorted, so two
// stores with the same content always dump the same way.
type MemStore struct {
	values map[string][]byte
}

// NewMemStore returns a store holding the given entries.
func NewMemStore(entries ...KeyValue) *MemStore {
	m := &MemStore{values: make(map[string][]byte)}
	for _, kv := range entries {
		m.values[string(kv.Key)] = append([]byte{}, kv.Value...)
	}
	return m
}

// Get implements Store.
func (m *MemStore) Get(key []byte) ([]byte, error) {
	v, ok := m.values[string(key)]
	if !ok {
		return nil, nil
	}
	return append([]byte{}, v...), nil
}

// Set implements Store.
func (m *MemStore) Set(key, value []byte) error {
	m.values[string(key)] = append([]byte{}, value...)
	return nil
}

// Delete implements Store.
func (m *MemStore) Delete(key []byte) error {
	delete(m.values, string(key))
	return nil
}

// Len returns the number of keys.
func (m *MemStore) Len() int {
	return len(m.values)
}

// Entries returns all entries sorted by key.
func (m *MemStore) Entries() []KeyValue {
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]KeyValue, len(keys))
	for i, k := range keys {
		out[i] = KeyValue{Key: []byte(k), Value: append([]byte{}, m.values[k]...)}
	}
	return out
}

// Prefixed returns a view of m where every key is prefixed.
func (m *MemStore) Prefixed(prefix string) Store {
	return &prefixStore{m: m, prefix: prefix}
}

// HasPrefix returns true if some key starts with prefix.
func (m *MemStore) HasPrefix(prefix string) bool {
	for k := range m.values {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

type prefixStore struct {
	m      *MemStore
	prefix string
}

func (p *prefixStore) Get(key []byte) ([]byte, error) {
	return p.m.Get(append([]byte(p.prefix), key...))
}

func (p *prefixStore) Set(key, value []byte) error {
	return p.m.Set(append([]byte(p.prefix), key...), value)
}

func (p *prefixStore) Delete(key []byte) error {
	return p.m.Delete(append([]byte(p.prefix), key...))
}
