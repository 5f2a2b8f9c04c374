package state

import (
	"encoding/binary"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"nftmarket/storage"
)

// Manager provides typed access to marketplace state over a raw key-value
// database. All writes are staged in an overlay and only reach the database
// when Commit flushes them through a single storage batch; Discard drops
// them. This gives each entry point an all-or-nothing boundary: a failing
// call never leaves a partial write behind.
type Manager struct {
	db      storage.Database
	overlay map[string][]byte
}

// NewManager creates a state manager staging writes on top of db.
func NewManager(db storage.Database) *Manager {
	return &Manager{
		db:      db,
		overlay: make(map[string][]byte),
	}
}

// Commit flushes every staged write atomically and clears the overlay.
func (m *Manager) Commit() error {
	if len(m.overlay) == 0 {
		return nil
	}
	batch := m.db.NewBatch()
	for key, value := range m.overlay {
		batch.Put([]byte(key), value)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.overlay = make(map[string][]byte)
	return nil
}

// Discard drops every staged write.
func (m *Manager) Discard() {
	m.overlay = make(map[string][]byte)
}

// Pending reports how many writes are staged but not yet committed.
func (m *Manager) Pending() int {
	return len(m.overlay)
}

func stateKey(parts ...[]byte) []byte {
	return ethcrypto.Keccak256(parts...)
}

func uint64Key(prefix string, id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return stateKey([]byte(prefix), buf[:])
}

func (m *Manager) read(key []byte) ([]byte, bool, error) {
	if value, ok := m.overlay[string(key)]; ok {
		return value, true, nil
	}
	value, err := m.db.Get(key)
	if err != nil {
		if err == storage.ErrKeyNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (m *Manager) write(key, value []byte) {
	m.overlay[string(key)] = value
}

func (m *Manager) readRLP(key []byte, out interface{}) (bool, error) {
	data, ok, err := m.read(key)
	if err != nil || !ok {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode record: %w", err)
	}
	return true, nil
}

func (m *Manager) writeRLP(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode record: %w", err)
	}
	m.write(key, encoded)
	return nil
}

// --- Identifier allocator ---

func counterKey(kind string) []byte {
	return stateKey([]byte("market/counter/"), []byte(kind))
}

// CounterNext returns the current counter for kind (zero if absent) and
// stages counter+1 before returning. Within a serialized entry point no two
// calls can observe the same value.
func (m *Manager) CounterNext(kind string) (uint64, error) {
	next, err := m.CounterValue(kind)
	if err != nil {
		return 0, err
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next+1)
	m.write(counterKey(kind), buf[:])
	return next, nil
}

// CounterValue returns the counter for kind without advancing it.
func (m *Manager) CounterValue(kind string) (uint64, error) {
	data, ok, err := m.read(counterKey(kind))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("state: malformed counter %q", kind)
	}
	return binary.BigEndian.Uint64(data), nil
}
