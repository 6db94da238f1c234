package servant

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"sync"

	"github.com/louteranas/nomad-viewer/internal/x/bboltx"
	"github.com/louteranas/nomad-viewer/value"
	"go.etcd.io/bbolt"
)

// Store persists property values.
type Store interface {
	// Load returns the stored value of the property with the given ID.
	//
	// ok is false if no value has been stored.
	Load(ctx context.Context, id int32) (v value.Value, ok bool, err error)

	// Save stores the value of the property with the given ID.
	Save(ctx context.Context, id int32, v value.Value) error

	// Close releases the store's resources.
	Close() error
}

// MemoryStore is a Store that keeps values in memory.
type MemoryStore struct {
	m      sync.RWMutex
	values map[int32]value.Value
}

// Load returns the stored value of the property with the given ID.
func (s *MemoryStore) Load(_ context.Context, id int32) (value.Value, bool, error) {
	s.m.RLock()
	defer s.m.RUnlock()

	v, ok := s.values[id]
	return v, ok, nil
}

// Save stores the value of the property with the given ID.
func (s *MemoryStore) Save(_ context.Context, id int32, v value.Value) error {
	s.m.Lock()
	defer s.m.Unlock()

	if s.values == nil {
		s.values = map[int32]value.Value{}
	}

	s.values[id] = v.Clone()
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

var (
	topBucket      = []byte("nomad")
	propertyBucket = []byte("properties")
)

// BoltStore is a Store that persists values in a BoltDB database, so that
// they survive a restart of the property server.
type BoltStore struct {
	DB *bbolt.DB
}

// Load returns the stored value of the property with the given ID.
func (s *BoltStore) Load(_ context.Context, id int32) (v value.Value, ok bool, err error) {
	err = bboltx.View(s.DB, func(tx *bbolt.Tx) {
		b := bboltx.Bucket(tx, topBucket, propertyBucket)
		if b == nil {
			return
		}

		data := b.Get(marshalID(id))
		if data == nil {
			return
		}

		bboltx.Must(json.Unmarshal(data, &v))
		ok = true
	})

	return v, ok, err
}

// Save stores the value of the property with the given ID.
func (s *BoltStore) Save(_ context.Context, id int32, v value.Value) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return bboltx.Update(s.DB, func(tx *bbolt.Tx) {
		b := bboltx.CreateBucketIfNotExists(tx, topBucket, propertyBucket)
		bboltx.Put(b, marshalID(id), data)
	})
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.DB.Close()
}

func marshalID(id int32) []byte {
	data := make([]byte, 4)
	binary.BigEndian.PutUint32(data, uint32(id))
	return data
}
