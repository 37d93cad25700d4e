package bank

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"ratemint/core/events"
	"ratemint/core/types"
)

var (
	errNilState = errors.New("bank: state not configured")
	// ErrInsufficientBalance is returned when the sender cannot cover the
	// transfer.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	// ErrBalanceOverflow is returned when crediting would exceed 256 bits.
	ErrBalanceOverflow = errors.New("bank: balance overflow")
	// ErrNilAmount is returned when no amount is supplied.
	ErrNilAmount = errors.New("bank: amount required")
)

type bankState interface {
	GetAccount(addr common.Address) (*types.Account, error)
	PutAccount(addr common.Address, account *types.Account) error
}

// Bank moves the native value currency between accounts.
type Bank struct {
	state   bankState
	emitter events.Emitter
}

// New constructs a bank with a no-op emitter.
func New() *Bank {
	return &Bank{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the bank.
func (b *Bank) SetState(state bankState) { b.state = state }

// SetEmitter configures the event emitter used by the bank.
func (b *Bank) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		b.emitter = events.NoopEmitter{}
		return
	}
	b.emitter = emitter
}

// Balance returns the native value held by addr.
func (b *Bank) Balance(addr common.Address) (*uint256.Int, error) {
	if b == nil || b.state == nil {
		return nil, errNilState
	}
	account, err := b.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if account.Balance == nil {
		return new(uint256.Int), nil
	}
	return new(uint256.Int).Set(account.Balance), nil
}

// Transfer moves amount from one account to another. Zero transfers succeed
// and still emit an event.
func (b *Bank) Transfer(from, to common.Address, amount *uint256.Int) error {
	if b == nil || b.state == nil {
		return errNilState
	}
	if amount == nil {
		return ErrNilAmount
	}
	sender, err := b.state.GetAccount(from)
	if err != nil {
		return err
	}
	senderBalance := balanceOf(sender)
	if senderBalance.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, senderBalance.Dec(), amount.Dec())
	}
	if from != to && !amount.IsZero() {
		recipient, err := b.state.GetAccount(to)
		if err != nil {
			return err
		}
		credited, overflow := new(uint256.Int).AddOverflow(balanceOf(recipient), amount)
		if overflow {
			return ErrBalanceOverflow
		}
		sender.Balance = new(uint256.Int).Sub(senderBalance, amount)
		recipient.Balance = credited
		if err := b.state.PutAccount(from, sender); err != nil {
			return err
		}
		if err := b.state.PutAccount(to, recipient); err != nil {
			return err
		}
	}
	b.emitter.Emit(events.ValueTransfer{From: from, To: to, Amount: new(uint256.Int).Set(amount)})
	return nil
}

func balanceOf(account *types.Account) *uint256.Int {
	if account == nil || account.Balance == nil {
		return new(uint256.Int)
	}
	return account.Balance
}
