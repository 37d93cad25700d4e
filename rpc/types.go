package rpc

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"ratemint/core"
	"ratemint/native/swap"
)

// RateResult pairs an input amount with its configured output. A zero
// output means no rate is defined.
type RateResult struct {
	InputAmount  string `json:"inputAmount"`
	OutputAmount string `json:"outputAmount"`
}

type ConfigResult struct {
	Initialized   bool   `json:"initialized"`
	InputToken    string `json:"inputToken"`
	OutputToken   string `json:"outputToken"`
	Vault         string `json:"vault"`
	Admin         string `json:"admin"`
	InitializedAt int64  `json:"initializedAt"`
}

type ImplementationResult struct {
	Address string `json:"address"`
	Version uint64 `json:"version"`
}

type TokenInfoResult struct {
	Address       string `json:"address"`
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	Decimals      uint8  `json:"decimals"`
	MintAuthority string `json:"mintAuthority"`
	TotalSupply   string `json:"totalSupply"`
}

// EventsListParams is the optional filter object accepted by events_list.
type EventsListParams struct {
	Type      string `json:"type,omitempty"`
	AttrName  string `json:"attrName,omitempty"`
	AttrValue string `json:"attrValue,omitempty"`
	AfterID   uint64 `json:"afterId,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

func formatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func formatAddress(addr common.Address) string {
	if addr == (common.Address{}) {
		return ""
	}
	return addr.Hex()
}

func newConfigResult(cfg *swap.Config) ConfigResult {
	if cfg == nil {
		return ConfigResult{}
	}
	return ConfigResult{
		Initialized:   cfg.Initialized,
		InputToken:    formatAddress(cfg.InputToken),
		OutputToken:   formatAddress(cfg.OutputToken),
		Vault:         formatAddress(cfg.Vault),
		Admin:         formatAddress(cfg.Admin),
		InitializedAt: cfg.InitializedAt,
	}
}

func newTokenInfoResult(info *core.TokenInfo) TokenInfoResult {
	return TokenInfoResult{
		Address:       info.Address.Hex(),
		Symbol:        info.Symbol,
		Name:          info.Name,
		Decimals:      info.Decimals,
		MintAuthority: formatAddress(info.MintAuthority),
		TotalSupply:   formatAmount(info.TotalSupply),
	}
}
