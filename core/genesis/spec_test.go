package genesis

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"ratemint/core/state"
	"ratemint/crypto"
	"ratemint/native/access"
)

const (
	inputToken  = "0x0000000000000000000000000000456e65726779"
	outputToken = "0x4b85757bcf693f742003f2d5529cdc1672392f16"
	vault       = "0x3665eD160eDD2bC236fBDA83274eacA08769B0b9"
	admin       = "0x00000000000000000000000000000000000000a1"
	holder      = "0x00000000000000000000000000000000000000b2"
	upgrader    = "0x00000000000000000000000000000000000000c3"
)

var engineAddr = common.HexToAddress("0x00000000000000000000000000000000000e0000")

func sampleSpec() string {
	return `{
  "genesisTime": "2024-01-01T00:00:00Z",
  "chainId": 7331,
  "tokens": [
    {"address": "` + outputToken + `", "symbol": "sl4y", "name": "SLAY Token", "decimals": 18, "mintAuthority": "engine"},
    {"address": "` + inputToken + `", "symbol": "VTHO", "name": "VeThor Token", "decimals": 18}
  ],
  "alloc": {"` + holder + `": "1000", "engine": "25"},
  "tokenAlloc": {
    "` + inputToken + `": {"` + holder + `": "5000000000000000000000", "` + admin + `": "1"}
  },
  "exchange": {
    "admin": "` + admin + `",
    "inputToken": "` + inputToken + `",
    "outputToken": "` + outputToken + `",
    "vault": "` + vault + `",
    "upgraders": ["` + upgrader + `"],
    "rates": [{"inputAmount": "5000000000000000000000", "outputAmount": "50000000000000000000"}]
  }
}`
}

type recordingExchange struct {
	initCaller common.Address
	initArgs   [3]common.Address
	rates      map[string]string
	initErr    error
}

func (r *recordingExchange) Initialize(caller, in, out, vault common.Address) error {
	if r.initErr != nil {
		return r.initErr
	}
	r.initCaller = caller
	r.initArgs = [3]common.Address{in, out, vault}
	return nil
}

func (r *recordingExchange) SetSwapRate(caller common.Address, in, out *uint256.Int) error {
	if caller != r.initCaller {
		return errors.New("not admin")
	}
	if r.rates == nil {
		r.rates = make(map[string]string)
	}
	r.rates[in.Dec()] = out.Dec()
	return nil
}

type recordingRoles struct {
	grants []string
}

func (r *recordingRoles) GrantRole(caller common.Address, role access.Role, account common.Address) error {
	r.grants = append(r.grants, caller.Hex()+":"+role.String()+":"+account.Hex())
	return nil
}

func TestParseGenesisSpec(t *testing.T) {
	spec, err := ParseGenesisSpec([]byte(sampleSpec()))
	require.NoError(t, err)

	chainID, ok := spec.ChainIDValue()
	require.True(t, ok)
	require.Equal(t, uint64(7331), chainID)
	require.Equal(t, 2024, spec.GenesisTimestamp().Year())
	require.Len(t, spec.Tokens, 2)
	require.NotNil(t, spec.Exchange)
	require.Len(t, spec.Exchange.Rates, 1)
}

func TestParseGenesisSpecRejects(t *testing.T) {
	cases := map[string]string{
		"unknown field":    strings.Replace(sampleSpec(), `"chainId"`, `"chainID2": 1, "chainId"`, 1),
		"bad time":         strings.Replace(sampleSpec(), "2024-01-01T00:00:00Z", "yesterday", 1),
		"bad alloc amount": strings.Replace(sampleSpec(), `"1000"`, `"-5"`, 1),
		"zero rate input":  strings.Replace(sampleSpec(), `"inputAmount": "5000000000000000000000"`, `"inputAmount": "0"`, 1),
		"undeclared token": strings.Replace(sampleSpec(), `"inputToken": "`+inputToken+`"`, `"inputToken": "`+vault+`"`, 1),
		"duplicate symbol": strings.Replace(sampleSpec(), `"symbol": "VTHO"`, `"symbol": "SL4Y"`, 1),
		"bad admin":        strings.Replace(sampleSpec(), `"admin": "`+admin+`"`, `"admin": "0x1234"`, 1),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseGenesisSpec([]byte(raw))
			require.Error(t, err)
		})
	}
}

func TestLoadGenesisSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleSpec()), 0o600))

	spec, err := LoadGenesisSpec(path)
	require.NoError(t, err)
	require.Len(t, spec.Tokens, 2)

	_, err = LoadGenesisSpec(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	_, err = LoadGenesisSpec(" ")
	require.Error(t, err)
}

func TestGenesisAcceptsBech32(t *testing.T) {
	encoded := crypto.EncodeAddress(common.HexToAddress(holder))
	raw := strings.Replace(sampleSpec(), `"alloc": {"`+holder+`"`, `"alloc": {"`+encoded+`"`, 1)
	spec, err := ParseGenesisSpec([]byte(raw))
	require.NoError(t, err)

	mgr := state.NewManager(state.NewOverlay(nil))
	_, err = Apply(mgr, spec, engineAddr, &recordingExchange{}, &recordingRoles{})
	require.NoError(t, err)
	bal, err := mgr.NativeBalance(common.HexToAddress(holder))
	require.NoError(t, err)
	require.Equal(t, "1000", bal.Dec())
}

func TestApply(t *testing.T) {
	spec, err := ParseGenesisSpec([]byte(sampleSpec()))
	require.NoError(t, err)
	mgr := state.NewManager(state.NewOverlay(nil))
	exch := &recordingExchange{}
	roles := &recordingRoles{}

	applied, err := Apply(mgr, spec, engineAddr, exch, roles)
	require.NoError(t, err)
	require.True(t, applied)

	// tokens registered with the engine alias resolved
	out, err := mgr.Token(common.HexToAddress(outputToken))
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Equal(t, "SL4Y", out.Symbol)
	require.Equal(t, engineAddr, out.MintAuthority)
	list, err := mgr.TokenList()
	require.NoError(t, err)
	require.Equal(t, []common.Address{common.HexToAddress(inputToken), common.HexToAddress(outputToken)}, list)

	// native and token allocations
	engineBal, err := mgr.NativeBalance(engineAddr)
	require.NoError(t, err)
	require.Equal(t, "25", engineBal.Dec())
	holderTokens, err := mgr.TokenBalance(common.HexToAddress(inputToken), common.HexToAddress(holder))
	require.NoError(t, err)
	require.Equal(t, "5000000000000000000000", holderTokens.Dec())
	supply, err := mgr.TokenSupply(common.HexToAddress(inputToken))
	require.NoError(t, err)
	require.Equal(t, "5000000000000000000001", supply.Dec())

	// exchange wiring
	require.Equal(t, common.HexToAddress(admin), exch.initCaller)
	require.Equal(t, [3]common.Address{common.HexToAddress(inputToken), common.HexToAddress(outputToken), common.HexToAddress(vault)}, exch.initArgs)
	require.Equal(t, map[string]string{"5000000000000000000000": "50000000000000000000"}, exch.rates)
	require.Equal(t, []string{common.HexToAddress(admin).Hex() + ":UPGRADER:" + common.HexToAddress(upgrader).Hex()}, roles.grants)

	done, err := mgr.GenesisApplied()
	require.NoError(t, err)
	require.True(t, done)
}

func TestApplyOnlyOnce(t *testing.T) {
	spec, err := ParseGenesisSpec([]byte(sampleSpec()))
	require.NoError(t, err)
	mgr := state.NewManager(state.NewOverlay(nil))

	applied, err := Apply(mgr, spec, engineAddr, &recordingExchange{}, &recordingRoles{})
	require.NoError(t, err)
	require.True(t, applied)

	second := &recordingExchange{}
	applied, err = Apply(mgr, spec, engineAddr, second, &recordingRoles{})
	require.NoError(t, err)
	require.False(t, applied)
	require.Nil(t, second.rates)
	supply, err := mgr.TokenSupply(common.HexToAddress(inputToken))
	require.NoError(t, err)
	require.Equal(t, "5000000000000000000001", supply.Dec())
}

func TestApplyPropagatesExchangeFailure(t *testing.T) {
	spec, err := ParseGenesisSpec([]byte(sampleSpec()))
	require.NoError(t, err)
	mgr := state.NewManager(state.NewOverlay(nil))
	boom := errors.New("boom")

	_, err = Apply(mgr, spec, engineAddr, &recordingExchange{initErr: boom}, &recordingRoles{})
	require.ErrorIs(t, err, boom)
	done, err := mgr.GenesisApplied()
	require.NoError(t, err)
	require.False(t, done)
}

func TestApplyWithoutExchange(t *testing.T) {
	raw := `{"tokens": [{"address": "` + inputToken + `", "symbol": "VTHO", "name": "VeThor", "decimals": 18}]}`
	spec, err := ParseGenesisSpec([]byte(raw))
	require.NoError(t, err)
	mgr := state.NewManager(state.NewOverlay(nil))

	applied, err := Apply(mgr, spec, engineAddr, nil, nil)
	require.NoError(t, err)
	require.True(t, applied)
}

func TestHashStable(t *testing.T) {
	a, err := ParseGenesisSpec([]byte(sampleSpec()))
	require.NoError(t, err)
	b, err := ParseGenesisSpec([]byte(sampleSpec()))
	require.NoError(t, err)
	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	require.Equal(t, ha, hb)

	b.Alloc[holder] = "1001"
	hc, err := b.Hash()
	require.NoError(t, err)
	require.NotEqual(t, ha, hc)
}
