package swap

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"ratemint/native/access"
)

// Token is the fungible token surface the engine needs. The boolean results
// mirror token contracts that report failure without an error.
type Token interface {
	Address() common.Address
	BalanceOf(holder common.Address) (*uint256.Int, error)
	Transfer(from, to common.Address, amount *uint256.Int) (bool, error)
	TransferFrom(spender, from, to common.Address, amount *uint256.Int) (bool, error)
}

// Minter is implemented by tokens that can issue new units.
type Minter interface {
	CanMint(account common.Address) bool
	Mint(caller, to common.Address, amount *uint256.Int) error
}

// TokenResolver looks up the token service deployed at an address.
type TokenResolver interface {
	Token(addr common.Address) (Token, error)
}

// ValueTransferer moves the native value currency.
type ValueTransferer interface {
	Balance(addr common.Address) (*uint256.Int, error)
	Transfer(from, to common.Address, amount *uint256.Int) error
}

// RoleGate checks and assigns roles.
type RoleGate interface {
	RequireRole(role access.Role, caller common.Address) error
	Grant(role access.Role, account, sender common.Address) error
}

// Rate is one row of the rate table.
type Rate struct {
	InputAmount  *uint256.Int `json:"inputAmount"`
	OutputAmount *uint256.Int `json:"outputAmount"`
}

// Config is the exported view of the engine configuration.
type Config struct {
	Initialized   bool           `json:"initialized"`
	InputToken    common.Address `json:"inputToken"`
	OutputToken   common.Address `json:"outputToken"`
	Vault         common.Address `json:"vault"`
	Admin         common.Address `json:"admin"`
	InitializedAt int64          `json:"initializedAt"`
}

// Implementation is the currently authorised engine logic.
type Implementation struct {
	Address common.Address `json:"address"`
	Version uint64         `json:"version"`
}
