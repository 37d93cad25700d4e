package swap

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"ratemint/core/events"
	corestate "ratemint/core/state"
	"ratemint/native/access"
)

type engineState interface {
	SwapConfig() (*corestate.SwapConfig, error)
	SwapPutConfig(cfg *corestate.SwapConfig) error
	SwapRate(input *uint256.Int) (*uint256.Int, bool, error)
	SwapPutRate(input, output *uint256.Int) error
	SwapRates() ([]corestate.SwapRateEntry, error)
	SwapImplementation() (*corestate.SwapImplementation, error)
	SwapPutImplementation(impl *corestate.SwapImplementation) error
}

// Engine executes fixed-rate swaps and the administrative operations around
// them. It holds no state of its own: configuration, rates and roles are read
// from and written to the configured state on every call, and the host is
// responsible for discarding those writes when a call fails.
type Engine struct {
	self    common.Address
	state   engineState
	emitter events.Emitter
	gate    RoleGate
	tokens  TokenResolver
	bank    ValueTransferer
	nowFn   func() int64
}

// NewEngine constructs an engine operating from the supplied account. The
// account is the spender for input pulls, the mint caller for output, and the
// source of claimed balances.
func NewEngine(self common.Address) *Engine {
	return &Engine{
		self:    self,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// Address returns the engine account.
func (e *Engine) Address() common.Address { return e.self }

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetGate configures the role gate.
func (e *Engine) SetGate(gate RoleGate) { e.gate = gate }

// SetTokens configures the token resolver.
func (e *Engine) SetTokens(tokens TokenResolver) { e.tokens = tokens }

// SetBank configures the native value primitive.
func (e *Engine) SetBank(bank ValueTransferer) { e.bank = bank }

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) loadConfig() (*corestate.SwapConfig, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.SwapConfig()
}

func (e *Engine) initializedConfig() (*corestate.SwapConfig, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Initialized {
		return nil, ErrNotInitialized
	}
	return cfg, nil
}

// requireRole checks the caller's role before the initialization state, so
// callers without the role see Unauthorized even on a fresh engine.
func (e *Engine) requireRole(role access.Role, caller common.Address) (*corestate.SwapConfig, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.gate == nil {
		return nil, errNilGate
	}
	if err := e.gate.RequireRole(role, caller); err != nil {
		return nil, err
	}
	return e.initializedConfig()
}

// Initialize stores the configuration and grants both roles to caller. It can
// succeed once.
func (e *Engine) Initialize(caller, inputToken, outputToken, vault common.Address) error {
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Initialized {
		return ErrAlreadyInitialized
	}
	if inputToken == (common.Address{}) || outputToken == (common.Address{}) || vault == (common.Address{}) {
		return ErrInvalidAddress
	}
	if e.gate == nil {
		return errNilGate
	}
	initializedAt := e.now()
	if initializedAt < 0 {
		initializedAt = 0
	}
	next := &corestate.SwapConfig{
		Initialized:   true,
		InputToken:    inputToken,
		OutputToken:   outputToken,
		Vault:         vault,
		Admin:         caller,
		InitializedAt: uint64(initializedAt),
	}
	if err := e.state.SwapPutConfig(next); err != nil {
		return err
	}
	for _, role := range access.Roles() {
		if err := e.gate.Grant(role, caller, caller); err != nil {
			return err
		}
	}
	e.emit(Initialized{Admin: caller, InputToken: inputToken, OutputToken: outputToken, Vault: vault})
	return nil
}

// Config returns the current configuration.
func (e *Engine) Config() (*Config, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	return &Config{
		Initialized:   cfg.Initialized,
		InputToken:    cfg.InputToken,
		OutputToken:   cfg.OutputToken,
		Vault:         cfg.Vault,
		Admin:         cfg.Admin,
		InitializedAt: int64(cfg.InitializedAt),
	}, nil
}

// SetSwapRate upserts the output granted for an exact input amount. A zero
// output is accepted and disables swaps of that amount.
func (e *Engine) SetSwapRate(caller common.Address, inputAmount, outputAmount *uint256.Int) error {
	if _, err := e.requireRole(access.RoleAdmin, caller); err != nil {
		return err
	}
	if inputAmount == nil || inputAmount.IsZero() {
		return ErrInvalidAmount
	}
	output := new(uint256.Int)
	if outputAmount != nil {
		output.Set(outputAmount)
	}
	if err := e.state.SwapPutRate(inputAmount, output); err != nil {
		return err
	}
	e.emit(RateChanged{InputAmount: new(uint256.Int).Set(inputAmount), OutputAmount: output})
	return nil
}

// Rate returns the output configured for inputAmount. Missing entries read as
// zero, exactly like entries explicitly set to zero.
func (e *Engine) Rate(inputAmount *uint256.Int) (*uint256.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if inputAmount == nil || inputAmount.IsZero() {
		return new(uint256.Int), nil
	}
	output, _, err := e.state.SwapRate(inputAmount)
	if err != nil {
		return nil, err
	}
	return output, nil
}

// Rates lists every stored entry ordered by input amount.
func (e *Engine) Rates() ([]Rate, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	entries, err := e.state.SwapRates()
	if err != nil {
		return nil, err
	}
	out := make([]Rate, 0, len(entries))
	for _, entry := range entries {
		out = append(out, Rate{InputAmount: entry.InputAmount, OutputAmount: entry.OutputAmount})
	}
	return out, nil
}

// SetInputTokenAddress replaces the token accepted by swaps.
func (e *Engine) SetInputTokenAddress(caller, addr common.Address) error {
	return e.setAddress(caller, addr, TypeInputTokenChanged, func(cfg *corestate.SwapConfig) *common.Address {
		return &cfg.InputToken
	})
}

// SetOutputTokenAddress replaces the token delivered by swaps.
func (e *Engine) SetOutputTokenAddress(caller, addr common.Address) error {
	return e.setAddress(caller, addr, TypeOutputTokenChanged, func(cfg *corestate.SwapConfig) *common.Address {
		return &cfg.OutputToken
	})
}

// SetVaultAddress replaces the account receiving swapped-in input.
func (e *Engine) SetVaultAddress(caller, addr common.Address) error {
	return e.setAddress(caller, addr, TypeVaultChanged, func(cfg *corestate.SwapConfig) *common.Address {
		return &cfg.Vault
	})
}

func (e *Engine) setAddress(caller, addr common.Address, kind string, field func(*corestate.SwapConfig) *common.Address) error {
	cfg, err := e.requireRole(access.RoleAdmin, caller)
	if err != nil {
		return err
	}
	if addr == (common.Address{}) {
		return ErrInvalidAddress
	}
	slot := field(cfg)
	previous := *slot
	*slot = addr
	if err := e.state.SwapPutConfig(cfg); err != nil {
		return err
	}
	e.emit(AddressChanged{Kind: kind, Previous: previous, Current: addr})
	return nil
}

// Swap pulls inputAmount of the input token from caller into the vault and
// delivers the configured output to caller. The pull always happens before the
// delivery; a failed delivery leaves the pull to be discarded by the host.
//
// The rate is looked up first: an engine that was never initialized holds no
// rates, so such a swap reports RateNotDefined.
func (e *Engine) Swap(caller common.Address, inputAmount *uint256.Int) (*uint256.Int, error) {
	output, err := e.Rate(inputAmount)
	if err != nil {
		return nil, err
	}
	if output.IsZero() {
		return nil, ErrRateNotDefined
	}
	cfg, err := e.initializedConfig()
	if err != nil {
		return nil, err
	}
	if e.tokens == nil {
		return nil, errNilToken
	}

	input, err := e.tokens.Token(cfg.InputToken)
	if err != nil {
		return nil, fmt.Errorf("%w: input token: %w", ErrTransferFailed, err)
	}
	ok, err := input.TransferFrom(e.self, caller, cfg.Vault, inputAmount)
	if err := transferResult("pull input", ok, err); err != nil {
		return nil, err
	}

	if err := e.deliver(cfg.OutputToken, caller, output); err != nil {
		return nil, err
	}
	e.emit(Swapped{Account: caller, InputAmount: new(uint256.Int).Set(inputAmount), OutputAmount: new(uint256.Int).Set(output)})
	return output, nil
}

func (e *Engine) deliver(tokenAddr, to common.Address, amount *uint256.Int) error {
	tok, err := e.tokens.Token(tokenAddr)
	if err != nil {
		return fmt.Errorf("%w: output token: %w", ErrTransferFailed, err)
	}
	if minter, ok := tok.(Minter); ok && minter.CanMint(e.self) {
		if err := minter.Mint(e.self, to, amount); err != nil {
			return fmt.Errorf("%w: mint output: %w", ErrTransferFailed, err)
		}
		return nil
	}
	ok, err := tok.Transfer(e.self, to, amount)
	return transferResult("deliver output", ok, err)
}

// ClaimToken sends amount of token from the engine's own balance to caller.
func (e *Engine) ClaimToken(caller, tokenAddr common.Address, amount *uint256.Int) error {
	if _, err := e.requireRole(access.RoleAdmin, caller); err != nil {
		return err
	}
	if tokenAddr == (common.Address{}) {
		return ErrInvalidAddress
	}
	if amount == nil {
		return ErrInvalidAmount
	}
	if e.tokens == nil {
		return errNilToken
	}
	tok, err := e.tokens.Token(tokenAddr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	balance, err := tok.BalanceOf(e.self)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	if balance.Lt(amount) {
		return fmt.Errorf("%w: engine holds %s, requested %s", ErrTransferFailed, balance.Dec(), amount.Dec())
	}
	ok, err := tok.Transfer(e.self, caller, amount)
	if err := transferResult("claim token", ok, err); err != nil {
		return err
	}
	e.emit(TokenClaimed{Token: tokenAddr, Recipient: caller, Amount: new(uint256.Int).Set(amount)})
	return nil
}

// ClaimValue sends amount of the native currency from the engine to caller.
func (e *Engine) ClaimValue(caller common.Address, amount *uint256.Int) error {
	if _, err := e.requireRole(access.RoleAdmin, caller); err != nil {
		return err
	}
	if amount == nil {
		return ErrInvalidAmount
	}
	if e.bank == nil {
		return errNilBank
	}
	if err := e.bank.Transfer(e.self, caller, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	e.emit(ValueClaimed{Recipient: caller, Amount: new(uint256.Int).Set(amount)})
	return nil
}

// AuthorizeUpgrade records a new implementation pointer. Configuration, rates
// and roles are untouched.
func (e *Engine) AuthorizeUpgrade(caller, implementation common.Address) (*Implementation, error) {
	if _, err := e.requireRole(access.RoleUpgrader, caller); err != nil {
		return nil, err
	}
	if implementation == (common.Address{}) {
		return nil, ErrInvalidAddress
	}
	current, err := e.state.SwapImplementation()
	if err != nil {
		return nil, err
	}
	next := &corestate.SwapImplementation{Address: implementation, Version: current.Version + 1}
	if err := e.state.SwapPutImplementation(next); err != nil {
		return nil, err
	}
	e.emit(Upgraded{Implementation: implementation, Version: next.Version})
	return &Implementation{Address: next.Address, Version: next.Version}, nil
}

// Implementation returns the recorded implementation pointer.
func (e *Engine) Implementation() (*Implementation, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	impl, err := e.state.SwapImplementation()
	if err != nil {
		return nil, err
	}
	return &Implementation{Address: impl.Address, Version: impl.Version}, nil
}

func transferResult(step string, ok bool, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransferFailed, step, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s: token reported failure", ErrTransferFailed, step)
	}
	return nil
}
