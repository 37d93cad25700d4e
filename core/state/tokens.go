package state

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// TokenMetadata describes a fungible token hosted by the ledger.
type TokenMetadata struct {
	Address       common.Address
	Symbol        string
	Name          string
	Decimals      uint8
	MintAuthority common.Address
}

var (
	tokenPrefix     = []byte("token:")
	tokenListKey    = ethcrypto.Keccak256([]byte("token-list"))
	supplyPrefix    = []byte("token-supply:")
	balancePrefix   = []byte("balance:")
	allowancePrefix = []byte("allowance:")
)

func tokenMetadataKey(token common.Address) []byte {
	return prefixedKey(tokenPrefix, token.Bytes())
}

func tokenSupplyKey(token common.Address) []byte {
	return prefixedKey(supplyPrefix, token.Bytes())
}

func balanceKey(token, holder common.Address) []byte {
	return prefixedKey(balancePrefix, token.Bytes(), []byte{':'}, holder.Bytes())
}

func allowanceKey(token, owner, spender common.Address) []byte {
	return prefixedKey(allowancePrefix, token.Bytes(), owner.Bytes(), spender.Bytes())
}

func (m *Manager) loadTokenList() ([]common.Address, error) {
	var raw [][]byte
	if _, err := m.getRLP(tokenListKey, &raw); err != nil {
		return nil, err
	}
	list := make([]common.Address, 0, len(raw))
	for _, entry := range raw {
		list = append(list, common.BytesToAddress(entry))
	}
	return list, nil
}

func (m *Manager) writeTokenList(list []common.Address) error {
	sort.Slice(list, func(i, j int) bool {
		return bytes.Compare(list[i].Bytes(), list[j].Bytes()) < 0
	})
	raw := make([][]byte, len(list))
	for i, addr := range list {
		raw[i] = addr.Bytes()
	}
	return m.putRLP(tokenListKey, raw)
}

// RegisterToken stores the metadata for a token and records it in the token
// index. Registering the same address twice is rejected.
func (m *Manager) RegisterToken(meta *TokenMetadata) error {
	if meta == nil {
		return fmt.Errorf("token metadata must not be nil")
	}
	if meta.Address == (common.Address{}) {
		return fmt.Errorf("token address must not be zero")
	}
	symbol := strings.ToUpper(strings.TrimSpace(meta.Symbol))
	if symbol == "" {
		return fmt.Errorf("token symbol must not be empty")
	}
	existing, err := m.Token(meta.Address)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("token %s already registered", meta.Address.Hex())
	}
	stored := *meta
	stored.Symbol = symbol
	stored.Name = strings.TrimSpace(meta.Name)
	if err := m.putRLP(tokenMetadataKey(meta.Address), &stored); err != nil {
		return err
	}
	list, err := m.loadTokenList()
	if err != nil {
		return err
	}
	return m.writeTokenList(append(list, meta.Address))
}

// Token returns the metadata registered for token, or nil when unknown.
func (m *Manager) Token(token common.Address) (*TokenMetadata, error) {
	meta := new(TokenMetadata)
	found, err := m.getRLP(tokenMetadataKey(token), meta)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return meta, nil
}

// TokenList returns every registered token address in ascending order.
func (m *Manager) TokenList() ([]common.Address, error) {
	return m.loadTokenList()
}

// SetTokenMintAuthority replaces the account allowed to mint token.
func (m *Manager) SetTokenMintAuthority(token, authority common.Address) error {
	meta, err := m.Token(token)
	if err != nil {
		return err
	}
	if meta == nil {
		return fmt.Errorf("token %s not registered", token.Hex())
	}
	meta.MintAuthority = authority
	return m.putRLP(tokenMetadataKey(token), meta)
}

// TokenBalance returns the token units held by holder.
func (m *Manager) TokenBalance(token, holder common.Address) (*uint256.Int, error) {
	return m.getAmount(balanceKey(token, holder))
}

// SetTokenBalance overwrites the token units held by holder.
func (m *Manager) SetTokenBalance(token, holder common.Address, amount *uint256.Int) error {
	return m.putAmount(balanceKey(token, holder), amount)
}

// TokenAllowance returns how many units spender may move on behalf of owner.
func (m *Manager) TokenAllowance(token, owner, spender common.Address) (*uint256.Int, error) {
	return m.getAmount(allowanceKey(token, owner, spender))
}

// SetTokenAllowance overwrites the allowance granted by owner to spender.
func (m *Manager) SetTokenAllowance(token, owner, spender common.Address, amount *uint256.Int) error {
	return m.putAmount(allowanceKey(token, owner, spender), amount)
}

// TokenSupply returns the tracked total supply of token.
func (m *Manager) TokenSupply(token common.Address) (*uint256.Int, error) {
	return m.getAmount(tokenSupplyKey(token))
}

// SetTokenSupply overwrites the tracked total supply of token.
func (m *Manager) SetTokenSupply(token common.Address, amount *uint256.Int) error {
	return m.putAmount(tokenSupplyKey(token), amount)
}
