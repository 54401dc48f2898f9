package ledger

import (
	"github.com/dedis/auction_contracts/chain"
	"go.etcd.io/bbolt"
)

// bucketStore is a chain.Store over a bbolt bucket of an open transaction.
type bucketStore struct {
	b *bbolt.Bucket
}

func (s bucketStore) Get(key []byte) ([]byte, error) {
	v := s.b.Get(key)
	if v == nil {
		return nil, nil
	}
	return append([]byte{}, v...), nil
}

func (s bucketStore) Set(key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	return s.b.Put(append([]byte{}, key...), append([]byte{}, value...))
}

func (s bucketStore) Delete(key []byte) error {
	return s.b.Delete(key)
}

// entries returns the content of b sorted by key.
func entries(b *bbolt.Bucket) []chain.KeyValue {
	var kvs []chain.KeyValue
	b.ForEach(func(k, v []byte) error {
		if v == nil {
			return nil
		}
		kvs = append(kvs, chain.KeyValue{
			Key:   append([]byte{}, k...),
			Value: append([]byte{}, v...),
		})
		return nil
	})
	return kvs
}
