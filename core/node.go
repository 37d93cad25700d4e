package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	coreerrors "ratemint/core/errors"
	"ratemint/core/events"
	"ratemint/core/genesis"
	corestate "ratemint/core/state"
	"ratemint/core/types"
	"ratemint/native/access"
	"ratemint/native/bank"
	"ratemint/native/swap"
	"ratemint/native/token"
	"ratemint/observability"
	"ratemint/observability/logging"
	"ratemint/storage"
)

// NodeConfig carries the identity of the exchange a node serves.
type NodeConfig struct {
	ChainID       uint64
	EngineAddress common.Address
	Sink          events.Sink
	Logger        *slog.Logger
	// Now returns unix seconds; nil selects the wall clock.
	Now           func() int64
}

// Node is the central controller, wiring the engine and its collaborators to
// the host for every call.
type Node struct {
	host    *Host
	chainID uint64
	engine  common.Address
	logger  *slog.Logger
	nowFn   func() int64
}

// TokenInfo describes a registered token together with its supply.
type TokenInfo struct {
	Address       common.Address `json:"address"`
	Symbol        string         `json:"symbol"`
	Name          string         `json:"name"`
	Decimals      uint8          `json:"decimals"`
	MintAuthority common.Address `json:"mintAuthority"`
	TotalSupply   *uint256.Int   `json:"totalSupply"`
}

// NewNode builds a node over db. The engine address must be non-zero.
func NewNode(db storage.Database, cfg NodeConfig) (*Node, error) {
	if cfg.EngineAddress == (common.Address{}) {
		return nil, fmt.Errorf("node: engine address must be configured")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	host, err := NewHost(db, cfg.Sink, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("node ready", "component", "node", "chain_id", cfg.ChainID, "engine", cfg.EngineAddress.Hex())
	return &Node{
		host:    host,
		chainID: cfg.ChainID,
		engine:  cfg.EngineAddress,
		logger:  logger.With("component", "node"),
		nowFn:   cfg.Now,
	}, nil
}

// ChainID returns the chain id transactions must carry.
func (n *Node) ChainID() uint64 { return n.chainID }

// EngineAddress returns the account the engine operates from.
func (n *Node) EngineAddress() common.Address { return n.engine }

type modules struct {
	state  *corestate.Manager
	engine *swap.Engine
	gate   *access.Gate
	tokens *token.Registry
	bank   *bank.Bank
}

type tokenResolver struct {
	registry *token.Registry
}

func (r tokenResolver) Token(addr common.Address) (swap.Token, error) {
	ledger, err := r.registry.Ledger(addr)
	if err != nil {
		return nil, err
	}
	return ledger, nil
}

func (n *Node) bind(state *corestate.Manager, emitter events.Emitter) *modules {
	gate := access.NewGate()
	gate.SetState(state)
	gate.SetEmitter(emitter)

	registry := token.NewRegistry()
	registry.SetState(state)
	registry.SetEmitter(emitter)

	b := bank.New()
	b.SetState(state)
	b.SetEmitter(emitter)

	engine := swap.NewEngine(n.engine)
	engine.SetState(state)
	engine.SetEmitter(emitter)
	engine.SetGate(gate)
	engine.SetTokens(tokenResolver{registry: registry})
	engine.SetBank(b)
	engine.SetNowFunc(n.nowFn)

	return &modules{state: state, engine: engine, gate: gate, tokens: registry, bank: b}
}

func (n *Node) call(ctx context.Context, op string, fn func(*modules) error) ([]*types.Event, error) {
	start := time.Now()
	evts, err := n.host.Execute(ctx, func(frame *Frame) error {
		return fn(n.bind(frame.State(), frame.Emitter()))
	})
	observability.Exchange().Observe(op, err, time.Since(start))
	if err != nil {
		n.logger.Debug("call failed", "method", op, "error", err)
		return nil, err
	}
	return evts, nil
}

func (n *Node) view(fn func(*modules) error) error {
	return n.host.View(func(state *corestate.Manager) error {
		return fn(n.bind(state, events.NoopEmitter{}))
	})
}

// ApplyGenesis loads spec into an empty state. It returns false when a genesis
// was applied before. A chain id pinned by the spec must match the node's, and
// genesisTime, when set, becomes the exchange's initializedAt.
func (n *Node) ApplyGenesis(ctx context.Context, spec *genesis.GenesisSpec) (bool, error) {
	if spec == nil {
		return false, fmt.Errorf("node: genesis spec must not be nil")
	}
	if err := spec.Validate(); err != nil {
		return false, err
	}
	if id, ok := spec.ChainIDValue(); ok && id != n.chainID {
		return false, fmt.Errorf("%w: genesis pins %d, node runs %d", coreerrors.ErrChainIDMismatch, id, n.chainID)
	}
	var applied bool
	_, err := n.call(ctx, "genesis", func(m *modules) error {
		if ts := spec.GenesisTimestamp(); !ts.IsZero() {
			m.engine.SetNowFunc(func() int64 { return ts.Unix() })
		}
		var err error
		applied, err = genesis.Apply(m.state, spec, n.engine, m.engine, m.gate)
		return err
	})
	if err != nil {
		return false, err
	}
	if applied {
		n.logger.Info("genesis applied", "tokens", len(spec.Tokens))
	}
	return applied, nil
}

// --- Engine entry points ---

// Initialize configures the exchange once and makes caller its admin.
func (n *Node) Initialize(ctx context.Context, caller, inputToken, outputToken, vault common.Address) error {
	_, err := n.call(ctx, "initialize", func(m *modules) error {
		return m.engine.Initialize(caller, inputToken, outputToken, vault)
	})
	return err
}

// SetSwapRate maps inputAmount to outputAmount; a zero output disables that amount.
func (n *Node) SetSwapRate(ctx context.Context, caller common.Address, inputAmount, outputAmount *uint256.Int) error {
	_, err := n.call(ctx, "setSwapRate", func(m *modules) error {
		return m.engine.SetSwapRate(caller, inputAmount, outputAmount)
	})
	return err
}

// SetInputTokenAddress replaces the token accepted by Swap.
func (n *Node) SetInputTokenAddress(ctx context.Context, caller, addr common.Address) error {
	_, err := n.call(ctx, "setInputTokenAddress", func(m *modules) error {
		return m.engine.SetInputTokenAddress(caller, addr)
	})
	return err
}

// SetOutputTokenAddress replaces the token paid out by Swap.
func (n *Node) SetOutputTokenAddress(ctx context.Context, caller, addr common.Address) error {
	_, err := n.call(ctx, "setOutputTokenAddress", func(m *modules) error {
		return m.engine.SetOutputTokenAddress(caller, addr)
	})
	return err
}

// SetVaultAddress replaces the account that receives swapped input.
func (n *Node) SetVaultAddress(ctx context.Context, caller, addr common.Address) error {
	_, err := n.call(ctx, "setVaultAddress", func(m *modules) error {
		return m.engine.SetVaultAddress(caller, addr)
	})
	return err
}

// Swap exchanges inputAmount of the input token held by caller for the
// configured output amount, which is returned.
func (n *Node) Swap(ctx context.Context, caller common.Address, inputAmount *uint256.Int) (*uint256.Int, error) {
	var output *uint256.Int
	_, err := n.call(ctx, "swap", func(m *modules) error {
		var err error
		output, err = m.engine.Swap(caller, inputAmount)
		return err
	})
	if err != nil {
		return nil, err
	}
	observability.Exchange().RecordSwap(inputAmount.Dec())
	return output, nil
}

// ClaimToken moves amount of tokenAddr held by the engine to caller.
func (n *Node) ClaimToken(ctx context.Context, caller, tokenAddr common.Address, amount *uint256.Int) error {
	_, err := n.call(ctx, "claimToken", func(m *modules) error {
		return m.engine.ClaimToken(caller, tokenAddr, amount)
	})
	return err
}

// ClaimValue moves amount of the engine's native balance to caller.
func (n *Node) ClaimValue(ctx context.Context, caller common.Address, amount *uint256.Int) error {
	_, err := n.call(ctx, "claimValue", func(m *modules) error {
		return m.engine.ClaimValue(caller, amount)
	})
	return err
}

// GrantRole gives role to account when caller holds the role's admin role.
func (n *Node) GrantRole(ctx context.Context, caller common.Address, role access.Role, account common.Address) error {
	_, err := n.call(ctx, "grantRole", func(m *modules) error {
		return m.gate.GrantRole(caller, role, account)
	})
	return err
}

// RevokeRole takes role from account when caller holds the role's admin role.
func (n *Node) RevokeRole(ctx context.Context, caller common.Address, role access.Role, account common.Address) error {
	_, err := n.call(ctx, "revokeRole", func(m *modules) error {
		return m.gate.RevokeRole(caller, role, account)
	})
	return err
}

// RenounceRole drops role for caller, who must equal account.
func (n *Node) RenounceRole(ctx context.Context, caller common.Address, role access.Role, account common.Address) error {
	_, err := n.call(ctx, "renounceRole", func(m *modules) error {
		return m.gate.RenounceRole(caller, role, account)
	})
	return err
}

// AuthorizeUpgrade records implementation as the engine's next code version.
func (n *Node) AuthorizeUpgrade(ctx context.Context, caller, implementation common.Address) (*swap.Implementation, error) {
	var impl *swap.Implementation
	_, err := n.call(ctx, "authorizeUpgrade", func(m *modules) error {
		var err error
		impl, err = m.engine.AuthorizeUpgrade(caller, implementation)
		return err
	})
	if err != nil {
		return nil, err
	}
	return impl, nil
}

// --- Token and value primitives ---

// TransferValue moves native balance between accounts.
func (n *Node) TransferValue(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	_, err := n.call(ctx, "transferValue", func(m *modules) error {
		return m.bank.Transfer(from, to, amount)
	})
	return err
}

// TokenTransfer moves amount of tokenAddr from caller to to.
func (n *Node) TokenTransfer(ctx context.Context, caller, tokenAddr, to common.Address, amount *uint256.Int) error {
	_, err := n.call(ctx, "tokenTransfer", func(m *modules) error {
		return tokenTransfer(m, caller, tokenAddr, to, amount)
	})
	return err
}

// TokenApprove sets spender's allowance over caller's tokenAddr balance.
func (n *Node) TokenApprove(ctx context.Context, caller, tokenAddr, spender common.Address, amount *uint256.Int) error {
	_, err := n.call(ctx, "tokenApprove", func(m *modules) error {
		return tokenApprove(m, caller, tokenAddr, spender, amount)
	})
	return err
}

// TokenMint creates amount of tokenAddr for to; caller must be the mint authority.
func (n *Node) TokenMint(ctx context.Context, caller, tokenAddr, to common.Address, amount *uint256.Int) error {
	_, err := n.call(ctx, "tokenMint", func(m *modules) error {
		ledger, err := m.tokens.Ledger(tokenAddr)
		if err != nil {
			return err
		}
		return ledger.Mint(caller, to, amount)
	})
	return err
}

// TokenSetMintAuthority hands the mint authority of tokenAddr to authority.
func (n *Node) TokenSetMintAuthority(ctx context.Context, caller, tokenAddr, authority common.Address) error {
	_, err := n.call(ctx, "tokenSetMintAuthority", func(m *modules) error {
		ledger, err := m.tokens.Ledger(tokenAddr)
		if err != nil {
			return err
		}
		return ledger.SetMintAuthority(caller, authority)
	})
	return err
}

func tokenTransfer(m *modules, caller, tokenAddr, to common.Address, amount *uint256.Int) error {
	ledger, err := m.tokens.Ledger(tokenAddr)
	if err != nil {
		return err
	}
	ok, err := ledger.Transfer(caller, to, amount)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("token: transfer reported failure")
	}
	return nil
}

func tokenApprove(m *modules, caller, tokenAddr, spender common.Address, amount *uint256.Int) error {
	ledger, err := m.tokens.Ledger(tokenAddr)
	if err != nil {
		return err
	}
	ok, err := ledger.Approve(caller, spender, amount)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("token: approve reported failure")
	}
	return nil
}

// --- Reads ---

// Rate returns the output configured for inputAmount, zero when none is.
func (n *Node) Rate(inputAmount *uint256.Int) (*uint256.Int, error) {
	var out *uint256.Int
	err := n.view(func(m *modules) error {
		var err error
		out, err = m.engine.Rate(inputAmount)
		return err
	})
	return out, err
}

// Rates lists every configured rate.
func (n *Node) Rates() ([]swap.Rate, error) {
	var out []swap.Rate
	err := n.view(func(m *modules) error {
		var err error
		out, err = m.engine.Rates()
		return err
	})
	return out, err
}

// Config returns the exchange configuration.
func (n *Node) Config() (*swap.Config, error) {
	var out *swap.Config
	err := n.view(func(m *modules) error {
		var err error
		out, err = m.engine.Config()
		return err
	})
	return out, err
}

// Implementation returns the recorded implementation pointer and version.
func (n *Node) Implementation() (*swap.Implementation, error) {
	var out *swap.Implementation
	err := n.view(func(m *modules) error {
		var err error
		out, err = m.engine.Implementation()
		return err
	})
	return out, err
}

// HasRole reports whether account holds role.
func (n *Node) HasRole(role access.Role, account common.Address) (bool, error) {
	var out bool
	err := n.view(func(m *modules) error {
		var err error
		out, err = m.gate.HasRole(role, account)
		return err
	})
	return out, err
}

// RoleMembers lists the holders of role.
func (n *Node) RoleMembers(role access.Role) ([]common.Address, error) {
	var out []common.Address
	err := n.view(func(m *modules) error {
		var err error
		out, err = m.gate.Members(role)
		return err
	})
	return out, err
}

// TokenBalance returns holder's balance of tokenAddr.
func (n *Node) TokenBalance(tokenAddr, holder common.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := n.view(func(m *modules) error {
		ledger, err := m.tokens.Ledger(tokenAddr)
		if err != nil {
			return err
		}
		out, err = ledger.BalanceOf(holder)
		return err
	})
	return out, err
}

// TokenAllowance returns what spender may still move of owner's tokenAddr.
func (n *Node) TokenAllowance(tokenAddr, owner, spender common.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := n.view(func(m *modules) error {
		ledger, err := m.tokens.Ledger(tokenAddr)
		if err != nil {
			return err
		}
		out, err = ledger.Allowance(owner, spender)
		return err
	})
	return out, err
}

// TokenInfo describes the registered token at tokenAddr.
func (n *Node) TokenInfo(tokenAddr common.Address) (*TokenInfo, error) {
	var out *TokenInfo
	err := n.view(func(m *modules) error {
		ledger, err := m.tokens.Ledger(tokenAddr)
		if err != nil {
			return err
		}
		supply, err := ledger.TotalSupply()
		if err != nil {
			return err
		}
		meta := ledger.Metadata()
		out = &TokenInfo{
			Address:       meta.Address,
			Symbol:        meta.Symbol,
			Name:          meta.Name,
			Decimals:      meta.Decimals,
			MintAuthority: meta.MintAuthority,
			TotalSupply:   supply,
		}
		return nil
	})
	return out, err
}

// Balance returns the native value held by addr.
func (n *Node) Balance(addr common.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := n.view(func(m *modules) error {
		var err error
		out, err = m.bank.Balance(addr)
		return err
	})
	return out, err
}

// Nonce returns the next nonce expected from addr.
func (n *Node) Nonce(addr common.Address) (uint64, error) {
	var out uint64
	err := n.host.View(func(state *corestate.Manager) error {
		var err error
		out, err = state.Nonce(addr)
		return err
	})
	return out, err
}
