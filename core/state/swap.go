package state

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	swapConfigKey         = []byte("swap/config")
	swapRatePrefix        = "swap/rate/"
	swapRateIndexKey      = []byte("swap/rate-index")
	swapImplementationKey = []byte("swap/implementation")
	genesisMarkerKey      = []byte("genesis/applied")
)

// SwapConfig is the persisted configuration of the exchange engine. Admin is
// the account that initialized it; InitializedAt is in unix seconds.
type SwapConfig struct {
	Initialized   bool
	InputToken    common.Address
	OutputToken   common.Address
	Vault         common.Address
	Admin         common.Address
	InitializedAt uint64
}

// SwapRateEntry is one row of the rate table.
type SwapRateEntry struct {
	InputAmount  *uint256.Int
	OutputAmount *uint256.Int
}

// SwapImplementation records the currently authorised engine logic.
type SwapImplementation struct {
	Address common.Address
	Version uint64
}

func swapRateKey(input *uint256.Int) []byte {
	word := input.Bytes32()
	return append([]byte(swapRatePrefix), word[:]...)
}

// SwapConfig returns the stored engine configuration. An engine that has never
// been initialised yields a zero config.
func (m *Manager) SwapConfig() (*SwapConfig, error) {
	cfg := new(SwapConfig)
	if _, err := m.KVGet(swapConfigKey, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SwapPutConfig persists the engine configuration.
func (m *Manager) SwapPutConfig(cfg *SwapConfig) error {
	if cfg == nil {
		return fmt.Errorf("swap config must not be nil")
	}
	return m.KVPut(swapConfigKey, cfg)
}

// SwapRate returns the output amount configured for input. The boolean
// reports whether an entry exists; a stored zero is reported as found.
func (m *Manager) SwapRate(input *uint256.Int) (*uint256.Int, bool, error) {
	if input == nil {
		return new(uint256.Int), false, nil
	}
	var raw []byte
	found, err := m.KVGet(swapRateKey(input), &raw)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return new(uint256.Int), false, nil
	}
	if len(raw) > 32 {
		return nil, false, fmt.Errorf("state: swap rate exceeds 256 bits")
	}
	return new(uint256.Int).SetBytes(raw), true, nil
}

// SwapPutRate upserts a rate table entry and records the key in the rate
// index. Zero outputs are stored explicitly.
func (m *Manager) SwapPutRate(input, output *uint256.Int) error {
	if input == nil || input.IsZero() {
		return fmt.Errorf("swap rate input must be positive")
	}
	if output == nil {
		output = new(uint256.Int)
	}
	if err := m.KVPut(swapRateKey(input), output.Bytes()); err != nil {
		return err
	}
	word := input.Bytes32()
	return m.KVAppend(swapRateIndexKey, word[:])
}

// SwapRates lists every stored rate ordered by input amount.
func (m *Manager) SwapRates() ([]SwapRateEntry, error) {
	var index [][]byte
	if err := m.KVGetList(swapRateIndexKey, &index); err != nil {
		return nil, err
	}
	sort.Slice(index, func(i, j int) bool {
		return bytes.Compare(index[i], index[j]) < 0
	})
	entries := make([]SwapRateEntry, 0, len(index))
	for _, key := range index {
		input := new(uint256.Int).SetBytes(key)
		output, found, err := m.SwapRate(input)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		entries = append(entries, SwapRateEntry{InputAmount: input, OutputAmount: output})
	}
	return entries, nil
}

// SwapImplementation returns the recorded implementation pointer.
func (m *Manager) SwapImplementation() (*SwapImplementation, error) {
	impl := new(SwapImplementation)
	if _, err := m.KVGet(swapImplementationKey, impl); err != nil {
		return nil, err
	}
	return impl, nil
}

// SwapPutImplementation records a new implementation pointer.
func (m *Manager) SwapPutImplementation(impl *SwapImplementation) error {
	if impl == nil {
		return fmt.Errorf("swap implementation must not be nil")
	}
	return m.KVPut(swapImplementationKey, impl)
}

// GenesisApplied reports whether the genesis allocation has been written.
func (m *Manager) GenesisApplied() (bool, error) {
	return m.KVGet(genesisMarkerKey, nil)
}

// MarkGenesisApplied records that the genesis allocation has been written.
func (m *Manager) MarkGenesisApplied(hash common.Hash) error {
	return m.KVPut(genesisMarkerKey, hash.Bytes())
}
