package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"ratemint/core/types"
)

var accountPrefix = []byte("account:")

type accountRecord struct {
	Nonce   uint64
	Balance []byte
}

func accountStateKey(addr common.Address) []byte {
	return prefixedKey(accountPrefix, addr.Bytes())
}

// GetAccount loads the account stored for addr. Unknown addresses yield a zero
// account rather than an error.
func (m *Manager) GetAccount(addr common.Address) (*types.Account, error) {
	var record accountRecord
	found, err := m.getRLP(accountStateKey(addr), &record)
	if err != nil {
		return nil, err
	}
	account := &types.Account{Balance: new(uint256.Int)}
	if !found {
		return account, nil
	}
	if len(record.Balance) > 32 {
		return nil, fmt.Errorf("state: account balance exceeds 256 bits")
	}
	account.Nonce = record.Nonce
	account.Balance.SetBytes(record.Balance)
	return account, nil
}

// PutAccount persists account under addr. Empty accounts are removed.
func (m *Manager) PutAccount(addr common.Address, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	balance := account.Balance
	if balance == nil {
		balance = new(uint256.Int)
	}
	if account.Nonce == 0 && balance.IsZero() {
		return m.store.Delete(accountStateKey(addr))
	}
	return m.putRLP(accountStateKey(addr), accountRecord{Nonce: account.Nonce, Balance: balance.Bytes()})
}

// NativeBalance returns the native value held by addr.
func (m *Manager) NativeBalance(addr common.Address) (*uint256.Int, error) {
	account, err := m.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return account.Balance, nil
}

// SetNativeBalance overwrites the native value held by addr.
func (m *Manager) SetNativeBalance(addr common.Address, amount *uint256.Int) error {
	account, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	account.Balance = new(uint256.Int)
	if amount != nil {
		account.Balance.Set(amount)
	}
	return m.PutAccount(addr, account)
}

// Nonce returns the next expected transaction nonce for addr.
func (m *Manager) Nonce(addr common.Address) (uint64, error) {
	account, err := m.GetAccount(addr)
	if err != nil {
		return 0, err
	}
	return account.Nonce, nil
}

// IncrementNonce bumps the nonce of addr by one.
func (m *Manager) IncrementNonce(addr common.Address) error {
	account, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	account.Nonce++
	return m.PutAccount(addr, account)
}
