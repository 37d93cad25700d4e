package events

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"ratemint/core/types"
)

const (
	// TypeValueTransfer is emitted for native value movements.
	TypeValueTransfer = "transfer.native"
	// TypeTokenTransfer is emitted for every token balance movement, including
	// mints (from the zero address).
	TypeTokenTransfer = "token.transfer"
	// TypeTokenApproval is emitted when an allowance is set.
	TypeTokenApproval = "token.approval"
	// TypeTokenAuthority is emitted when a token's mint authority changes.
	TypeTokenAuthority = "token.authority"
)

type ValueTransfer struct {
	From   common.Address
	To     common.Address
	Amount *uint256.Int
}

func (ValueTransfer) EventType() string { return TypeValueTransfer }

func (e ValueTransfer) Event() *types.Event {
	return &types.Event{Type: TypeValueTransfer, Attributes: map[string]string{
		"from":   FormatAddress(e.From),
		"to":     FormatAddress(e.To),
		"amount": FormatAmount(e.Amount),
	}}
}

type TokenTransfer struct {
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount *uint256.Int
}

func (TokenTransfer) EventType() string { return TypeTokenTransfer }

func (e TokenTransfer) Event() *types.Event {
	return &types.Event{Type: TypeTokenTransfer, Attributes: map[string]string{
		"token":  FormatAddress(e.Token),
		"from":   FormatAddress(e.From),
		"to":     FormatAddress(e.To),
		"amount": FormatAmount(e.Amount),
	}}
}

type TokenApproval struct {
	Token   common.Address
	Owner   common.Address
	Spender common.Address
	Amount  *uint256.Int
}

func (TokenApproval) EventType() string { return TypeTokenApproval }

func (e TokenApproval) Event() *types.Event {
	return &types.Event{Type: TypeTokenApproval, Attributes: map[string]string{
		"token":   FormatAddress(e.Token),
		"owner":   FormatAddress(e.Owner),
		"spender": FormatAddress(e.Spender),
		"amount":  FormatAmount(e.Amount),
	}}
}

type TokenAuthority struct {
	Token    common.Address
	Previous common.Address
	Current  common.Address
}

func (TokenAuthority) EventType() string { return TypeTokenAuthority }

func (e TokenAuthority) Event() *types.Event {
	return &types.Event{Type: TypeTokenAuthority, Attributes: map[string]string{
		"token":    FormatAddress(e.Token),
		"previous": FormatAddress(e.Previous),
		"current":  FormatAddress(e.Current),
	}}
}
