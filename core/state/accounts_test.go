package state

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"ratemint/core/types"
)

func TestAccountDefaultsAndRoundTrip(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	account, err := mgr.GetAccount(addr)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if account.Nonce != 0 || account.Balance == nil || !account.Balance.IsZero() {
		t.Fatalf("unexpected default account: %+v", account)
	}

	if err := mgr.PutAccount(addr, &types.Account{Nonce: 3, Balance: uint256.NewInt(900)}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := mgr.IncrementNonce(addr); err != nil {
		t.Fatalf("increment: %v", err)
	}
	nonce, err := mgr.Nonce(addr)
	if err != nil || nonce != 4 {
		t.Fatalf("nonce: got %d err=%v", nonce, err)
	}
	balance, err := mgr.NativeBalance(addr)
	if err != nil || balance.Uint64() != 900 {
		t.Fatalf("balance: got %v err=%v", balance, err)
	}
}

func TestEmptyAccountIsPruned(t *testing.T) {
	mgr, overlay, _ := newTestManager(t)
	addr := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	if err := mgr.SetNativeBalance(addr, uint256.NewInt(5)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := mgr.SetNativeBalance(addr, new(uint256.Int)); err != nil {
		t.Fatalf("clear: %v", err)
	}
	value, err := overlay.Get(accountStateKey(addr))
	if err != nil {
		t.Fatalf("raw get: %v", err)
	}
	if value != nil {
		t.Fatalf("expected empty account to be removed, found %x", value)
	}
}

func TestTokenRegistryAndBalances(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	token := common.HexToAddress("0x1000000000000000000000000000000000000001")
	other := common.HexToAddress("0x0500000000000000000000000000000000000001")
	holder := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	spender := common.HexToAddress("0x00000000000000000000000000000000000000dd")

	if err := mgr.RegisterToken(&TokenMetadata{Address: token, Symbol: " usdx ", Name: "USD X", Decimals: 18}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := mgr.RegisterToken(&TokenMetadata{Address: other, Symbol: "GEM", Decimals: 18}); err != nil {
		t.Fatalf("register other: %v", err)
	}
	if err := mgr.RegisterToken(&TokenMetadata{Address: token, Symbol: "DUP"}); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if err := mgr.RegisterToken(&TokenMetadata{Symbol: "ZERO"}); err == nil {
		t.Fatalf("expected zero address to be rejected")
	}

	meta, err := mgr.Token(token)
	if err != nil || meta == nil {
		t.Fatalf("token: meta=%v err=%v", meta, err)
	}
	if meta.Symbol != "USDX" || meta.Name != "USD X" || meta.Decimals != 18 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	list, err := mgr.TokenList()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0] != other || list[1] != token {
		t.Fatalf("unexpected token list: %v", list)
	}

	if err := mgr.SetTokenMintAuthority(token, holder); err != nil {
		t.Fatalf("authority: %v", err)
	}
	meta, _ = mgr.Token(token)
	if meta.MintAuthority != holder {
		t.Fatalf("authority not stored: %s", meta.MintAuthority.Hex())
	}

	if err := mgr.SetTokenBalance(token, holder, uint256.NewInt(77)); err != nil {
		t.Fatalf("balance: %v", err)
	}
	if err := mgr.SetTokenAllowance(token, holder, spender, uint256.NewInt(11)); err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if err := mgr.SetTokenSupply(token, uint256.NewInt(77)); err != nil {
		t.Fatalf("supply: %v", err)
	}
	balance, _ := mgr.TokenBalance(token, holder)
	allowance, _ := mgr.TokenAllowance(token, holder, spender)
	supply, _ := mgr.TokenSupply(token)
	if balance.Uint64() != 77 || allowance.Uint64() != 11 || supply.Uint64() != 77 {
		t.Fatalf("unexpected amounts: balance=%v allowance=%v supply=%v", balance, allowance, supply)
	}
	otherBalance, _ := mgr.TokenBalance(other, holder)
	if !otherBalance.IsZero() {
		t.Fatalf("balances leaked across tokens: %v", otherBalance)
	}
}

func TestSwapRatesIndexAndZeroEntries(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	if err := mgr.SwapPutRate(new(uint256.Int), uint256.NewInt(1)); err == nil {
		t.Fatalf("expected zero input to be rejected")
	}

	big := new(uint256.Int).Mul(uint256.NewInt(5000), new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(18)))
	if err := mgr.SwapPutRate(big, uint256.NewInt(50)); err != nil {
		t.Fatalf("put big: %v", err)
	}
	if err := mgr.SwapPutRate(uint256.NewInt(10), new(uint256.Int)); err != nil {
		t.Fatalf("put zero: %v", err)
	}
	if err := mgr.SwapPutRate(uint256.NewInt(10), uint256.NewInt(1)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	output, found, err := mgr.SwapRate(uint256.NewInt(10))
	if err != nil || !found || output.Uint64() != 1 {
		t.Fatalf("rate: output=%v found=%v err=%v", output, found, err)
	}
	output, found, err = mgr.SwapRate(uint256.NewInt(11))
	if err != nil || found || !output.IsZero() {
		t.Fatalf("absent rate: output=%v found=%v err=%v", output, found, err)
	}

	rates, err := mgr.SwapRates()
	if err != nil {
		t.Fatalf("rates: %v", err)
	}
	if len(rates) != 2 {
		t.Fatalf("expected 2 rates, got %d", len(rates))
	}
	if rates[0].InputAmount.Uint64() != 10 || !rates[1].InputAmount.Eq(big) {
		t.Fatalf("rates not ordered by input: %v, %v", rates[0].InputAmount, rates[1].InputAmount)
	}
}

func TestSwapConfigAndImplementation(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	cfg, err := mgr.SwapConfig()
	if err != nil || cfg.Initialized {
		t.Fatalf("default config: %+v err=%v", cfg, err)
	}
	want := &SwapConfig{
		Initialized: true,
		InputToken:  common.HexToAddress("0x01"),
		OutputToken: common.HexToAddress("0x02"),
		Vault:       common.HexToAddress("0x03"),
	}
	if err := mgr.SwapPutConfig(want); err != nil {
		t.Fatalf("put config: %v", err)
	}
	cfg, err = mgr.SwapConfig()
	if err != nil || *cfg != *want {
		t.Fatalf("config round trip: got %+v err=%v", cfg, err)
	}

	if err := mgr.SwapPutImplementation(&SwapImplementation{Address: common.HexToAddress("0x0a"), Version: 2}); err != nil {
		t.Fatalf("put impl: %v", err)
	}
	impl, err := mgr.SwapImplementation()
	if err != nil || impl.Version != 2 || impl.Address != common.HexToAddress("0x0a") {
		t.Fatalf("impl round trip: %+v err=%v", impl, err)
	}

	applied, err := mgr.GenesisApplied()
	if err != nil || applied {
		t.Fatalf("fresh genesis marker: applied=%v err=%v", applied, err)
	}
	if err := mgr.MarkGenesisApplied(common.HexToHash("0x01")); err != nil {
		t.Fatalf("mark: %v", err)
	}
	applied, err = mgr.GenesisApplied()
	if err != nil || !applied {
		t.Fatalf("genesis marker: applied=%v err=%v", applied, err)
	}
}
