package swap

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"ratemint/core/events"
	"ratemint/core/types"
)

const (
	TypeInitialized        = "swap.initialized"
	TypeRateChanged        = "swap.rate.changed"
	TypeInputTokenChanged  = "swap.input_token.changed"
	TypeOutputTokenChanged = "swap.output_token.changed"
	TypeVaultChanged       = "swap.vault.changed"
	TypeSwapped            = "swap.swapped"
	TypeTokenClaimed       = "swap.token.claimed"
	TypeValueClaimed       = "swap.value.claimed"
	TypeUpgraded           = "swap.upgraded"
)

type Initialized struct {
	Admin       common.Address
	InputToken  common.Address
	OutputToken common.Address
	Vault       common.Address
}

func (Initialized) EventType() string { return TypeInitialized }

func (e Initialized) Event() *types.Event {
	return &types.Event{Type: TypeInitialized, Attributes: map[string]string{
		"admin":       events.FormatAddress(e.Admin),
		"inputToken":  events.FormatAddress(e.InputToken),
		"outputToken": events.FormatAddress(e.OutputToken),
		"vault":       events.FormatAddress(e.Vault),
	}}
}

type RateChanged struct {
	InputAmount  *uint256.Int
	OutputAmount *uint256.Int
}

func (RateChanged) EventType() string { return TypeRateChanged }

func (e RateChanged) Event() *types.Event {
	return &types.Event{Type: TypeRateChanged, Attributes: map[string]string{
		"inputAmount":  events.FormatAmount(e.InputAmount),
		"outputAmount": events.FormatAmount(e.OutputAmount),
	}}
}

// AddressChanged covers the three configuration address setters; Kind is one
// of the *Changed type constants.
type AddressChanged struct {
	Kind     string
	Previous common.Address
	Current  common.Address
}

func (e AddressChanged) EventType() string { return e.Kind }

func (e AddressChanged) Event() *types.Event {
	return &types.Event{Type: e.Kind, Attributes: map[string]string{
		"previous": events.FormatAddress(e.Previous),
		"current":  events.FormatAddress(e.Current),
	}}
}

type Swapped struct {
	Account      common.Address
	InputAmount  *uint256.Int
	OutputAmount *uint256.Int
}

func (Swapped) EventType() string { return TypeSwapped }

func (e Swapped) Event() *types.Event {
	return &types.Event{Type: TypeSwapped, Attributes: map[string]string{
		"account":      events.FormatAddress(e.Account),
		"inputAmount":  events.FormatAmount(e.InputAmount),
		"outputAmount": events.FormatAmount(e.OutputAmount),
	}}
}

type TokenClaimed struct {
	Token     common.Address
	Recipient common.Address
	Amount    *uint256.Int
}

func (TokenClaimed) EventType() string { return TypeTokenClaimed }

func (e TokenClaimed) Event() *types.Event {
	return &types.Event{Type: TypeTokenClaimed, Attributes: map[string]string{
		"token":     events.FormatAddress(e.Token),
		"recipient": events.FormatAddress(e.Recipient),
		"amount":    events.FormatAmount(e.Amount),
	}}
}

type ValueClaimed struct {
	Recipient common.Address
	Amount    *uint256.Int
}

func (ValueClaimed) EventType() string { return TypeValueClaimed }

func (e ValueClaimed) Event() *types.Event {
	return &types.Event{Type: TypeValueClaimed, Attributes: map[string]string{
		"recipient": events.FormatAddress(e.Recipient),
		"amount":    events.FormatAmount(e.Amount),
	}}
}

type Upgraded struct {
	Implementation common.Address
	Version        uint64
}

func (Upgraded) EventType() string { return TypeUpgraded }

func (e Upgraded) Event() *types.Event {
	return &types.Event{Type: TypeUpgraded, Attributes: map[string]string{
		"implementation": events.FormatAddress(e.Implementation),
		"version":        strconv.FormatUint(e.Version, 10),
	}}
}
