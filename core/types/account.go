package types

import "github.com/holiman/uint256"

// Account holds the native balance and replay counter of an address.
type Account struct {
	Nonce   uint64       `json:"nonce"`
	Balance *uint256.Int `json:"balance"`
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{Nonce: a.Nonce, Balance: new(uint256.Int)}
	if a.Balance != nil {
		clone.Balance.Set(a.Balance)
	}
	return clone
}
