package token

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"ratemint/core/events"
	corestate "ratemint/core/state"
)

var (
	errNilState = errors.New("token: state not configured")

	ErrUnknownToken          = errors.New("token: unknown token")
	ErrZeroAddress           = errors.New("token: zero address")
	ErrNilAmount             = errors.New("token: amount required")
	ErrInsufficientBalance   = errors.New("token: transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrNotMintAuthority      = errors.New("token: caller is not the mint authority")
	ErrSupplyOverflow        = errors.New("token: supply overflow")
)

type tokenState interface {
	Token(token common.Address) (*corestate.TokenMetadata, error)
	SetTokenMintAuthority(token, authority common.Address) error
	TokenBalance(token, holder common.Address) (*uint256.Int, error)
	SetTokenBalance(token, holder common.Address, amount *uint256.Int) error
	TokenAllowance(token, owner, spender common.Address) (*uint256.Int, error)
	SetTokenAllowance(token, owner, spender common.Address, amount *uint256.Int) error
	TokenSupply(token common.Address) (*uint256.Int, error)
	SetTokenSupply(token common.Address, amount *uint256.Int) error
}

// Registry resolves token addresses to ledgers backed by the shared state.
type Registry struct {
	state   tokenState
	emitter events.Emitter
}

// NewRegistry constructs a registry with a no-op emitter.
func NewRegistry() *Registry {
	return &Registry{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by every ledger.
func (r *Registry) SetState(state tokenState) { r.state = state }

// SetEmitter configures the event emitter used by every ledger.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// Ledger returns the ledger for a registered token.
func (r *Registry) Ledger(addr common.Address) (*Ledger, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	meta, err := r.state.Token(addr)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, addr.Hex())
	}
	return &Ledger{meta: meta, state: r.state, emitter: r.emitter}, nil
}

// Ledger implements fungible token semantics for a single token address.
type Ledger struct {
	meta    *corestate.TokenMetadata
	state   tokenState
	emitter events.Emitter
}

// Address returns the token address.
func (l *Ledger) Address() common.Address { return l.meta.Address }

// Metadata returns a copy of the token metadata.
func (l *Ledger) Metadata() corestate.TokenMetadata { return *l.meta }

// BalanceOf returns the units held by holder.
func (l *Ledger) BalanceOf(holder common.Address) (*uint256.Int, error) {
	return l.state.TokenBalance(l.meta.Address, holder)
}

// Allowance returns how many units spender may move for owner.
func (l *Ledger) Allowance(owner, spender common.Address) (*uint256.Int, error) {
	return l.state.TokenAllowance(l.meta.Address, owner, spender)
}

// TotalSupply returns the number of units in circulation.
func (l *Ledger) TotalSupply() (*uint256.Int, error) {
	return l.state.TokenSupply(l.meta.Address)
}

// Transfer moves amount from the caller to recipient.
func (l *Ledger) Transfer(from, to common.Address, amount *uint256.Int) (bool, error) {
	if err := l.move(from, to, amount); err != nil {
		return false, err
	}
	return true, nil
}

// TransferFrom moves amount from owner to recipient on behalf of spender. The
// allowance is decremented unless it is the maximum value.
func (l *Ledger) TransferFrom(spender, from, to common.Address, amount *uint256.Int) (bool, error) {
	if amount == nil {
		return false, ErrNilAmount
	}
	allowance, err := l.Allowance(from, spender)
	if err != nil {
		return false, err
	}
	if allowance.Lt(amount) {
		return false, fmt.Errorf("%w: have %s, need %s", ErrInsufficientAllowance, allowance.Dec(), amount.Dec())
	}
	if err := l.move(from, to, amount); err != nil {
		return false, err
	}
	if !isMaxAllowance(allowance) {
		remaining := new(uint256.Int).Sub(allowance, amount)
		if err := l.state.SetTokenAllowance(l.meta.Address, from, spender, remaining); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Approve sets the allowance granted by owner to spender.
func (l *Ledger) Approve(owner, spender common.Address, amount *uint256.Int) (bool, error) {
	if amount == nil {
		return false, ErrNilAmount
	}
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return false, ErrZeroAddress
	}
	if err := l.state.SetTokenAllowance(l.meta.Address, owner, spender, amount); err != nil {
		return false, err
	}
	l.emitter.Emit(events.TokenApproval{Token: l.meta.Address, Owner: owner, Spender: spender, Amount: new(uint256.Int).Set(amount)})
	return true, nil
}

// CanMint reports whether account is the token's mint authority.
func (l *Ledger) CanMint(account common.Address) bool {
	return l.meta.MintAuthority != (common.Address{}) && l.meta.MintAuthority == account
}

// Mint creates amount new units for recipient. Only the mint authority may
// mint.
func (l *Ledger) Mint(caller, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrNilAmount
	}
	if !l.CanMint(caller) {
		return ErrNotMintAuthority
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	supply, err := l.TotalSupply()
	if err != nil {
		return err
	}
	newSupply, overflow := new(uint256.Int).AddOverflow(supply, amount)
	if overflow {
		return ErrSupplyOverflow
	}
	balance, err := l.BalanceOf(to)
	if err != nil {
		return err
	}
	// balance <= supply, so the credit cannot overflow once the supply fits.
	if err := l.state.SetTokenBalance(l.meta.Address, to, new(uint256.Int).Add(balance, amount)); err != nil {
		return err
	}
	if err := l.state.SetTokenSupply(l.meta.Address, newSupply); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenTransfer{Token: l.meta.Address, To: to, Amount: new(uint256.Int).Set(amount)})
	return nil
}

// SetMintAuthority hands the mint capability to a new account. Only the
// current authority may do so; the zero address disables minting.
func (l *Ledger) SetMintAuthority(caller, authority common.Address) error {
	if !l.CanMint(caller) {
		return ErrNotMintAuthority
	}
	previous := l.meta.MintAuthority
	if err := l.state.SetTokenMintAuthority(l.meta.Address, authority); err != nil {
		return err
	}
	l.meta.MintAuthority = authority
	l.emitter.Emit(events.TokenAuthority{Token: l.meta.Address, Previous: previous, Current: authority})
	return nil
}

func (l *Ledger) move(from, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrNilAmount
	}
	if from == (common.Address{}) || to == (common.Address{}) {
		return ErrZeroAddress
	}
	fromBalance, err := l.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBalance.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBalance.Dec(), amount.Dec())
	}
	if from != to {
		toBalance, err := l.BalanceOf(to)
		if err != nil {
			return err
		}
		if err := l.state.SetTokenBalance(l.meta.Address, from, new(uint256.Int).Sub(fromBalance, amount)); err != nil {
			return err
		}
		if err := l.state.SetTokenBalance(l.meta.Address, to, new(uint256.Int).Add(toBalance, amount)); err != nil {
			return err
		}
	}
	l.emitter.Emit(events.TokenTransfer{Token: l.meta.Address, From: from, To: to, Amount: new(uint256.Int).Set(amount)})
	return nil
}

func isMaxAllowance(amount *uint256.Int) bool {
	return amount.Eq(new(uint256.Int).SetAllOne())
}
