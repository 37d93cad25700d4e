// core/genesis/spec.go
package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"ratemint/crypto"
)

// EngineAlias may be used wherever an address is expected to refer to the
// exchange engine account configured on the node.
const EngineAlias = "engine"

type GenesisSpec struct {
	GenesisTime string                       `json:"genesisTime,omitempty"`
	ChainID     *uint64                      `json:"chainId,omitempty"`
	Tokens      []TokenSpec                  `json:"tokens"`
	Alloc       map[string]string            `json:"alloc,omitempty"`      // addr -> native amount
	TokenAlloc  map[string]map[string]string `json:"tokenAlloc,omitempty"` // token -> holder -> amount
	Exchange    *ExchangeSpec                `json:"exchange,omitempty"`

	genesisTimestamp time.Time
}

type TokenSpec struct {
	Address       string `json:"address"`
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	Decimals      uint8  `json:"decimals"`
	MintAuthority string `json:"mintAuthority,omitempty"`
}

type ExchangeSpec struct {
	Admin       string     `json:"admin"`
	InputToken  string     `json:"inputToken"`
	OutputToken string     `json:"outputToken"`
	Vault       string     `json:"vault"`
	Upgraders   []string   `json:"upgraders,omitempty"`
	Rates       []RateSpec `json:"rates,omitempty"`
}

type RateSpec struct {
	InputAmount  string `json:"inputAmount"`
	OutputAmount string `json:"outputAmount"`
}

// LoadGenesisSpec reads and validates a genesis file. Unknown fields are
// rejected.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes and validates a genesis document.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

// ChainIDValue returns the chain id pinned by the genesis file, if any.
func (s *GenesisSpec) ChainIDValue() (uint64, bool) {
	if s.ChainID == nil {
		return 0, false
	}
	return *s.ChainID, true
}

// Hash identifies the genesis document; it is stored as the applied marker.
func (s *GenesisSpec) Hash() (common.Hash, error) {
	encoded, err := json.Marshal(s)
	if err != nil {
		return common.Hash{}, err
	}
	return ethcrypto.Keccak256Hash(encoded), nil
}

// Validate checks every address and amount without touching state. The
// engine alias is accepted syntactically; it is resolved when applied.
func (s *GenesisSpec) Validate() error {
	s.genesisTimestamp = time.Time{}
	if strings.TrimSpace(s.GenesisTime) != "" {
		ts, err := parseGenesisTime(s.GenesisTime)
		if err != nil {
			return err
		}
		s.genesisTimestamp = ts
	}

	tokens := make(map[common.Address]struct{}, len(s.Tokens))
	symbols := make(map[string]struct{}, len(s.Tokens))
	for i := range s.Tokens {
		addr, err := s.Tokens[i].validate()
		if err != nil {
			return fmt.Errorf("tokens[%d]: %w", i, err)
		}
		if _, exists := tokens[addr]; exists {
			return fmt.Errorf("tokens[%d]: duplicate address %s", i, addr.Hex())
		}
		symbol := strings.ToUpper(strings.TrimSpace(s.Tokens[i].Symbol))
		if _, exists := symbols[symbol]; exists {
			return fmt.Errorf("tokens[%d]: duplicate symbol %q", i, s.Tokens[i].Symbol)
		}
		tokens[addr] = struct{}{}
		symbols[symbol] = struct{}{}
	}

	for holder, amount := range s.Alloc {
		if err := checkAddress(holder); err != nil {
			return fmt.Errorf("alloc[%q]: %w", holder, err)
		}
		if _, err := parseAmount(amount); err != nil {
			return fmt.Errorf("alloc[%q]: %w", holder, err)
		}
	}

	for tokenStr, holders := range s.TokenAlloc {
		tokenAddr, err := crypto.ParseAddress(tokenStr)
		if err != nil {
			return fmt.Errorf("tokenAlloc[%q]: %w", tokenStr, err)
		}
		if _, ok := tokens[tokenAddr]; !ok {
			return fmt.Errorf("tokenAlloc[%q]: token not declared", tokenStr)
		}
		for holder, amount := range holders {
			if err := checkAddress(holder); err != nil {
				return fmt.Errorf("tokenAlloc[%q][%q]: %w", tokenStr, holder, err)
			}
			if _, err := parseAmount(amount); err != nil {
				return fmt.Errorf("tokenAlloc[%q][%q]: %w", tokenStr, holder, err)
			}
		}
	}

	if s.Exchange != nil {
		if err := s.Exchange.validate(tokens); err != nil {
			return fmt.Errorf("exchange: %w", err)
		}
	}
	return nil
}

func (t *TokenSpec) validate() (common.Address, error) {
	addr, err := crypto.ParseAddress(t.Address)
	if err != nil {
		return common.Address{}, fmt.Errorf("address: %w", err)
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("address must not be zero")
	}
	if strings.TrimSpace(t.Symbol) == "" {
		return common.Address{}, fmt.Errorf("symbol must be provided")
	}
	if t.Decimals > 77 {
		return common.Address{}, fmt.Errorf("decimals must be <= 77")
	}
	if strings.TrimSpace(t.MintAuthority) != "" {
		if err := checkAddress(t.MintAuthority); err != nil {
			return common.Address{}, fmt.Errorf("mintAuthority: %w", err)
		}
	}
	return addr, nil
}

func (e *ExchangeSpec) validate(tokens map[common.Address]struct{}) error {
	if err := checkAddress(e.Admin); err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	for name, value := range map[string]string{"inputToken": e.InputToken, "outputToken": e.OutputToken} {
		addr, err := crypto.ParseAddress(value)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if _, ok := tokens[addr]; !ok {
			return fmt.Errorf("%s: token %s not declared", name, addr.Hex())
		}
	}
	if err := checkAddress(e.Vault); err != nil {
		return fmt.Errorf("vault: %w", err)
	}
	for i, upgrader := range e.Upgraders {
		if err := checkAddress(upgrader); err != nil {
			return fmt.Errorf("upgraders[%d]: %w", i, err)
		}
	}
	for i, rate := range e.Rates {
		input, err := parseAmount(rate.InputAmount)
		if err != nil {
			return fmt.Errorf("rates[%d].inputAmount: %w", i, err)
		}
		if input.IsZero() {
			return fmt.Errorf("rates[%d].inputAmount must be positive", i)
		}
		if _, err := parseAmount(rate.OutputAmount); err != nil {
			return fmt.Errorf("rates[%d].outputAmount: %w", i, err)
		}
	}
	return nil
}

func checkAddress(value string) error {
	if strings.EqualFold(strings.TrimSpace(value), EngineAlias) {
		return nil
	}
	_, err := crypto.ParseAddress(value)
	return err
}

func resolveAddress(value string, engine common.Address) (common.Address, error) {
	if strings.EqualFold(strings.TrimSpace(value), EngineAlias) {
		return engine, nil
	}
	return crypto.ParseAddress(value)
}

func parseAmount(value string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return new(uint256.Int), nil
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return amount, nil
}

func parseGenesisTime(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid genesisTime %q", value)
}
