package state

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// Manager provides typed access to the key/value state of the ledger. All
// writes go through the supplied Store, which is normally an Overlay opened by
// the host for the duration of a single call.
type Manager struct {
	store Store
}

// NewManager creates a state manager operating on the provided store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

var rolePrefix = []byte("role:")

func roleKey(role common.Hash) []byte {
	buf := make([]byte, len(rolePrefix)+common.HashLength)
	copy(buf, rolePrefix)
	copy(buf[len(rolePrefix):], role.Bytes())
	return ethcrypto.Keccak256(buf)
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func prefixedKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for _, part := range parts {
		buf = append(buf, part...)
	}
	return ethcrypto.Keccak256(buf)
}

func (m *Manager) getRLP(key []byte, out interface{}) (bool, error) {
	data, err := m.store.Get(key)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) putRLP(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.store.Put(key, encoded)
}

func (m *Manager) getAmount(key []byte) (*uint256.Int, error) {
	data, err := m.store.Get(key)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return new(uint256.Int), nil
	}
	var raw []byte
	if err := rlp.DecodeBytes(data, &raw); err != nil {
		return nil, err
	}
	if len(raw) > 32 {
		return nil, fmt.Errorf("state: amount exceeds 256 bits")
	}
	return new(uint256.Int).SetBytes(raw), nil
}

// putAmount stores amount under key; a zero amount removes the key.
func (m *Manager) putAmount(key []byte, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return m.store.Delete(key)
	}
	return m.putRLP(key, amount.Bytes())
}

func (m *Manager) loadMembers(role common.Hash) ([]common.Address, error) {
	var raw [][]byte
	if _, err := m.getRLP(roleKey(role), &raw); err != nil {
		return nil, err
	}
	members := make([]common.Address, 0, len(raw))
	for _, entry := range raw {
		members = append(members, common.BytesToAddress(entry))
	}
	return members, nil
}

func (m *Manager) writeMembers(role common.Hash, members []common.Address) error {
	if len(members) == 0 {
		return m.store.Delete(roleKey(role))
	}
	sort.Slice(members, func(i, j int) bool {
		return bytes.Compare(members[i].Bytes(), members[j].Bytes()) < 0
	})
	raw := make([][]byte, len(members))
	for i, member := range members {
		raw[i] = member.Bytes()
	}
	return m.putRLP(roleKey(role), raw)
}

// SetRole associates an address with the specified role. The boolean result
// reports whether the membership changed; duplicate assignments are ignored
// while the stored list remains sorted for determinism.
func (m *Manager) SetRole(role common.Hash, addr common.Address) (bool, error) {
	if role == (common.Hash{}) {
		return false, fmt.Errorf("role must not be empty")
	}
	members, err := m.loadMembers(role)
	if err != nil {
		return false, err
	}
	for _, existing := range members {
		if existing == addr {
			return false, nil
		}
	}
	members = append(members, addr)
	return true, m.writeMembers(role, members)
}

// RemoveRole drops an address from the role. The boolean result reports
// whether the address held the role.
func (m *Manager) RemoveRole(role common.Hash, addr common.Address) (bool, error) {
	members, err := m.loadMembers(role)
	if err != nil {
		return false, err
	}
	kept := members[:0]
	removed := false
	for _, existing := range members {
		if existing == addr {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	if !removed {
		return false, nil
	}
	return true, m.writeMembers(role, kept)
}

// RoleMembers returns all addresses assigned to the provided role in
// ascending byte order.
func (m *Manager) RoleMembers(role common.Hash) ([]common.Address, error) {
	return m.loadMembers(role)
}

// HasRole reports whether the provided address is associated with the
// specified role.
func (m *Manager) HasRole(role common.Hash, addr common.Address) (bool, error) {
	members, err := m.loadMembers(role)
	if err != nil {
		return false, err
	}
	for _, member := range members {
		if member == addr {
			return true, nil
		}
	}
	return false, nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the store.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.putRLP(kvKey(key), value)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.store.Get(kvKey(key))
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

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.store.Delete(kvKey(key))
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	hashed := kvKey(key)
	var list [][]byte
	if _, err := m.getRLP(hashed, &list); err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	return m.putRLP(hashed, list)
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.store.Get(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}
