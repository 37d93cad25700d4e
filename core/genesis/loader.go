// core/genesis/loader.go
package genesis

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"ratemint/core/state"
	"ratemint/native/access"
)

// Exchange is the part of the swap engine genesis drives.
type Exchange interface {
	Initialize(caller, inputToken, outputToken, vault common.Address) error
	SetSwapRate(caller common.Address, inputAmount, outputAmount *uint256.Int) error
}

// RoleGranter assigns roles on behalf of an admin.
type RoleGranter interface {
	GrantRole(caller common.Address, role access.Role, account common.Address) error
}

// Apply writes the genesis allocation into manager. It returns false without
// writing anything when a genesis has already been applied to this state.
func Apply(manager *state.Manager, spec *GenesisSpec, engine common.Address, exchange Exchange, roles RoleGranter) (bool, error) {
	if spec == nil {
		return false, fmt.Errorf("genesis spec must not be nil")
	}
	if manager == nil {
		return false, fmt.Errorf("state manager must not be nil")
	}
	applied, err := manager.GenesisApplied()
	if err != nil {
		return false, err
	}
	if applied {
		return false, nil
	}
	if err := spec.Validate(); err != nil {
		return false, err
	}

	// 1) Tokens, in address order
	tokens := append([]TokenSpec(nil), spec.Tokens...)
	parsedTokens := make([]common.Address, len(tokens))
	for i := range tokens {
		addr, err := tokens[i].validate()
		if err != nil {
			return false, err
		}
		parsedTokens[i] = addr
	}
	order := make([]int, len(tokens))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return bytes.Compare(parsedTokens[order[a]].Bytes(), parsedTokens[order[b]].Bytes()) < 0
	})
	for _, idx := range order {
		token := tokens[idx]
		meta := &state.TokenMetadata{
			Address:  parsedTokens[idx],
			Symbol:   token.Symbol,
			Name:     token.Name,
			Decimals: token.Decimals,
		}
		if strings.TrimSpace(token.MintAuthority) != "" {
			authority, err := resolveAddress(token.MintAuthority, engine)
			if err != nil {
				return false, fmt.Errorf("token %q mintAuthority: %w", token.Symbol, err)
			}
			meta.MintAuthority = authority
		}
		if err := manager.RegisterToken(meta); err != nil {
			return false, fmt.Errorf("register token %q: %w", token.Symbol, err)
		}
	}

	// 2) Native allocations
	for _, holder := range sortedKeys(spec.Alloc) {
		addr, err := resolveAddress(holder, engine)
		if err != nil {
			return false, fmt.Errorf("alloc[%q]: %w", holder, err)
		}
		amount, err := parseAmount(spec.Alloc[holder])
		if err != nil {
			return false, fmt.Errorf("alloc[%q]: %w", holder, err)
		}
		if err := manager.SetNativeBalance(addr, amount); err != nil {
			return false, fmt.Errorf("alloc[%q]: %w", holder, err)
		}
	}

	// 3) Token allocations; the supply tracks the sum of allocations
	for _, tokenStr := range sortedKeys(spec.TokenAlloc) {
		tokenAddr, err := resolveAddress(tokenStr, engine)
		if err != nil {
			return false, fmt.Errorf("tokenAlloc[%q]: %w", tokenStr, err)
		}
		supply, err := manager.TokenSupply(tokenAddr)
		if err != nil {
			return false, err
		}
		holders := spec.TokenAlloc[tokenStr]
		for _, holder := range sortedKeys(holders) {
			addr, err := resolveAddress(holder, engine)
			if err != nil {
				return false, fmt.Errorf("tokenAlloc[%q][%q]: %w", tokenStr, holder, err)
			}
			amount, err := parseAmount(holders[holder])
			if err != nil {
				return false, fmt.Errorf("tokenAlloc[%q][%q]: %w", tokenStr, holder, err)
			}
			current, err := manager.TokenBalance(tokenAddr, addr)
			if err != nil {
				return false, err
			}
			var overflow bool
			if supply, overflow = new(uint256.Int).AddOverflow(supply, amount); overflow {
				return false, fmt.Errorf("tokenAlloc[%q]: supply overflow", tokenStr)
			}
			if err := manager.SetTokenBalance(tokenAddr, addr, new(uint256.Int).Add(current, amount)); err != nil {
				return false, err
			}
		}
		if err := manager.SetTokenSupply(tokenAddr, supply); err != nil {
			return false, err
		}
	}

	// 4) Exchange
	if spec.Exchange != nil {
		if err := applyExchange(spec.Exchange, engine, exchange, roles); err != nil {
			return false, fmt.Errorf("exchange: %w", err)
		}
	}

	hash, err := spec.Hash()
	if err != nil {
		return false, err
	}
	if err := manager.MarkGenesisApplied(hash); err != nil {
		return false, err
	}
	return true, nil
}

func applyExchange(spec *ExchangeSpec, engine common.Address, exchange Exchange, roles RoleGranter) error {
	if exchange == nil || roles == nil {
		return fmt.Errorf("exchange engine not available")
	}
	admin, err := resolveAddress(spec.Admin, engine)
	if err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	input, err := resolveAddress(spec.InputToken, engine)
	if err != nil {
		return fmt.Errorf("inputToken: %w", err)
	}
	output, err := resolveAddress(spec.OutputToken, engine)
	if err != nil {
		return fmt.Errorf("outputToken: %w", err)
	}
	vault, err := resolveAddress(spec.Vault, engine)
	if err != nil {
		return fmt.Errorf("vault: %w", err)
	}
	if err := exchange.Initialize(admin, input, output, vault); err != nil {
		return err
	}
	for i, upgrader := range spec.Upgraders {
		addr, err := resolveAddress(upgrader, engine)
		if err != nil {
			return fmt.Errorf("upgraders[%d]: %w", i, err)
		}
		if err := roles.GrantRole(admin, access.RoleUpgrader, addr); err != nil {
			return fmt.Errorf("upgraders[%d]: %w", i, err)
		}
	}
	for i, rate := range spec.Rates {
		in, err := parseAmount(rate.InputAmount)
		if err != nil {
			return fmt.Errorf("rates[%d]: %w", i, err)
		}
		out, err := parseAmount(rate.OutputAmount)
		if err != nil {
			return fmt.Errorf("rates[%d]: %w", i, err)
		}
		if err := exchange.SetSwapRate(admin, in, out); err != nil {
			return fmt.Errorf("rates[%d]: %w", i, err)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
