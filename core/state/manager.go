package state

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"horus/storage"
)

// Manager reads and writes RLP encoded records over a key-value store. Writes
// land in an in-memory overlay until Commit flushes them in a single batch, and
// Snapshot/RevertToSnapshot discard overlay writes made after a snapshot.
//
// Manager is not safe for concurrent use.
type Manager struct {
	db      storage.Database
	dirty   map[string][]byte
	journal []journalEntry
	// snaps holds the journal length at each live snapshot.
	snaps []int
}

type journalEntry struct {
	key     string
	prev    []byte
	existed bool
}

// NewManager creates a state manager on top of db.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, dirty: make(map[string][]byte)}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) get(hashed []byte) ([]byte, error) {
	if value, ok := m.dirty[string(hashed)]; ok {
		return value, nil
	}
	value, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (m *Manager) put(hashed, value []byte) {
	key := string(hashed)
	prev, existed := m.dirty[key]
	m.journal = append(m.journal, journalEntry{key: key, prev: prev, existed: existed})
	m.dirty[key] = append([]byte(nil), value...)
}

// Snapshot marks the current overlay so later writes can be discarded.
func (m *Manager) Snapshot() int {
	m.snaps = append(m.snaps, len(m.journal))
	return len(m.snaps) - 1
}

// RevertToSnapshot undoes every write made since snapshot id. Snapshots taken
// after id are invalidated.
func (m *Manager) RevertToSnapshot(id int) {
	if id < 0 || id >= len(m.snaps) {
		return
	}
	mark := m.snaps[id]
	for i := len(m.journal) - 1; i >= mark; i-- {
		entry := m.journal[i]
		if entry.existed {
			m.dirty[entry.key] = entry.prev
		} else {
			delete(m.dirty, entry.key)
		}
	}
	m.journal = m.journal[:mark]
	m.snaps = m.snaps[:id]
}

// Pending reports the number of keys waiting for Commit.
func (m *Manager) Pending() int { return len(m.dirty) }

// Commit flushes the overlay to the database in one batch and clears every
// snapshot.
func (m *Manager) Commit() error {
	if len(m.dirty) == 0 {
		m.resetJournal()
		return nil
	}
	keys := make([]string, 0, len(m.dirty))
	for key := range m.dirty {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	batch := m.db.NewBatch()
	for _, key := range keys {
		batch.Put([]byte(key), m.dirty[key])
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit %d keys: %w", len(keys), err)
	}
	m.dirty = make(map[string][]byte)
	m.resetJournal()
	return nil
}

// Discard drops every uncommitted write.
func (m *Manager) Discard() {
	m.dirty = make(map[string][]byte)
	m.resetJournal()
}

func (m *Manager) resetJournal() {
	m.journal = nil
	m.snaps = nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the database.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.put(kvKey(key), encoded)
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	var list [][]byte
	if _, err := m.KVGet(key, &list); err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	return m.KVPut(key, list)
}

// KVGetList returns the byte slice list stored under key, or an empty list.
func (m *Manager) KVGetList(key []byte) ([][]byte, error) {
	list := [][]byte{}
	if _, err := m.KVGet(key, &list); err != nil {
		return nil, err
	}
	return list, nil
}
