package core

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	coreerrors "ratemint/core/errors"
	"ratemint/core/types"
	"ratemint/crypto"
	"ratemint/native/access"
	"ratemint/native/swap"
	"ratemint/observability"
)

// ApplyTransaction verifies tx and runs the entry point it names as its
// signer. Signature, chain id, type and nonce failures reject the transaction
// without touching state. Once the nonce matches it is consumed, and the call
// itself runs in a nested frame: a failing call yields a receipt with status
// failed and no state changes beyond the nonce.
func (n *Node) ApplyTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if tx == nil {
		return nil, coreerrors.ErrNilTransaction
	}
	from, err := tx.From()
	if err != nil {
		return nil, err
	}
	if tx.ChainID != n.chainID {
		return nil, fmt.Errorf("%w: expected %d, got %d", coreerrors.ErrChainIDMismatch, n.chainID, tx.ChainID)
	}
	if !tx.Type.Known() {
		return nil, fmt.Errorf("%w: 0x%02x", coreerrors.ErrUnknownTxType, byte(tx.Type))
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}

	receipt := &types.Receipt{TxHash: hash, From: from, Nonce: tx.Nonce}
	start := time.Now()
	var callErr error
	evts, err := n.host.Execute(ctx, func(frame *Frame) error {
		expected, err := frame.State().Nonce(from)
		if err != nil {
			return err
		}
		if tx.Nonce != expected {
			return fmt.Errorf("%w: expected %d, got %d", coreerrors.ErrNonceMismatch, expected, tx.Nonce)
		}
		if err := frame.State().IncrementNonce(from); err != nil {
			return err
		}
		callErr = frame.Try(func(child *Frame) error {
			return n.dispatch(n.bind(child.State(), child.Emitter()), from, tx)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	observability.Exchange().Observe(tx.Type.String(), callErr, time.Since(start))

	receipt.Events = evts
	if callErr != nil {
		receipt.Fail(callErr)
		n.logger.Info("transaction reverted", "tx_hash", hash.Hex(), "tx_type", tx.Type.String(), "reason", callErr.Error())
		return receipt, nil
	}
	receipt.Status = types.ReceiptStatusSuccessful
	if tx.Type == types.TxTypeSwap {
		var payload types.SwapPayload
		if err := tx.DecodePayload(&payload); err == nil {
			observability.Exchange().RecordSwap(payload.InputAmount)
		}
	}
	return receipt, nil
}

func (n *Node) dispatch(m *modules, from common.Address, tx *types.Transaction) error {
	switch tx.Type {
	case types.TxTypeInitialize:
		var p types.InitializePayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		in, err := parseAddress("inputToken", p.InputToken)
		if err != nil {
			return err
		}
		out, err := parseAddress("outputToken", p.OutputToken)
		if err != nil {
			return err
		}
		vault, err := parseAddress("vault", p.Vault)
		if err != nil {
			return err
		}
		return m.engine.Initialize(from, in, out, vault)

	case types.TxTypeSetSwapRate:
		var p types.SwapRatePayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		in, err := parseAmount("inputAmount", p.InputAmount)
		if err != nil {
			return err
		}
		out, err := parseAmount("outputAmount", p.OutputAmount)
		if err != nil {
			return err
		}
		return m.engine.SetSwapRate(from, in, out)

	case types.TxTypeSetInputToken, types.TxTypeSetOutputToken, types.TxTypeSetVault:
		var p types.AddressPayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		addr, err := parseAddress("address", p.Address)
		if err != nil {
			return err
		}
		switch tx.Type {
		case types.TxTypeSetInputToken:
			return m.engine.SetInputTokenAddress(from, addr)
		case types.TxTypeSetOutputToken:
			return m.engine.SetOutputTokenAddress(from, addr)
		default:
			return m.engine.SetVaultAddress(from, addr)
		}

	case types.TxTypeSwap:
		var p types.SwapPayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		amount, err := parseAmount("inputAmount", p.InputAmount)
		if err != nil {
			return err
		}
		_, err = m.engine.Swap(from, amount)
		return err

	case types.TxTypeClaimToken:
		var p types.ClaimTokenPayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		tokenAddr, err := parseAddress("token", p.Token)
		if err != nil {
			return err
		}
		amount, err := parseAmount("amount", p.Amount)
		if err != nil {
			return err
		}
		return m.engine.ClaimToken(from, tokenAddr, amount)

	case types.TxTypeClaimValue:
		var p types.AmountPayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		amount, err := parseAmount("amount", p.Amount)
		if err != nil {
			return err
		}
		return m.engine.ClaimValue(from, amount)

	case types.TxTypeGrantRole, types.TxTypeRevokeRole, types.TxTypeRenounceRole:
		var p types.RolePayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		role, err := access.ParseRole(p.Role)
		if err != nil {
			return err
		}
		account, err := parseAddress("account", p.Account)
		if err != nil {
			return err
		}
		switch tx.Type {
		case types.TxTypeGrantRole:
			return m.gate.GrantRole(from, role, account)
		case types.TxTypeRevokeRole:
			return m.gate.RevokeRole(from, role, account)
		default:
			return m.gate.RenounceRole(from, role, account)
		}

	case types.TxTypeAuthorizeUpgrade:
		var p types.AddressPayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		impl, err := parseAddress("address", p.Address)
		if err != nil {
			return err
		}
		_, err = m.engine.AuthorizeUpgrade(from, impl)
		return err

	case types.TxTypeTransferValue:
		var p types.TransferValuePayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		to, err := parseAddress("to", p.To)
		if err != nil {
			return err
		}
		amount, err := parseAmount("amount", p.Amount)
		if err != nil {
			return err
		}
		return m.bank.Transfer(from, to, amount)

	case types.TxTypeTokenTransfer:
		var p types.TokenTransferPayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		tokenAddr, err := parseAddress("token", p.Token)
		if err != nil {
			return err
		}
		to, err := parseAddress("to", p.To)
		if err != nil {
			return err
		}
		amount, err := parseAmount("amount", p.Amount)
		if err != nil {
			return err
		}
		return tokenTransfer(m, from, tokenAddr, to, amount)

	case types.TxTypeTokenApprove:
		var p types.TokenApprovePayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		tokenAddr, err := parseAddress("token", p.Token)
		if err != nil {
			return err
		}
		spender, err := parseAddress("spender", p.Spender)
		if err != nil {
			return err
		}
		amount, err := parseAmount("amount", p.Amount)
		if err != nil {
			return err
		}
		return tokenApprove(m, from, tokenAddr, spender, amount)

	case types.TxTypeTokenMint:
		var p types.TokenMintPayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		tokenAddr, err := parseAddress("token", p.Token)
		if err != nil {
			return err
		}
		to, err := parseAddress("to", p.To)
		if err != nil {
			return err
		}
		amount, err := parseAmount("amount", p.Amount)
		if err != nil {
			return err
		}
		ledger, err := m.tokens.Ledger(tokenAddr)
		if err != nil {
			return err
		}
		return ledger.Mint(from, to, amount)

	case types.TxTypeTokenSetAuthority:
		var p types.TokenAuthorityPayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		tokenAddr, err := parseAddress("token", p.Token)
		if err != nil {
			return err
		}
		authority, err := parseAddress("authority", p.Authority)
		if err != nil {
			return err
		}
		ledger, err := m.tokens.Ledger(tokenAddr)
		if err != nil {
			return err
		}
		return ledger.SetMintAuthority(from, authority)
	}
	return fmt.Errorf("%w: %s", coreerrors.ErrUnknownTxType, tx.Type)
}

func parseAddress(field, value string) (common.Address, error) {
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %s: %w", swap.ErrInvalidAddress, field, err)
	}
	return addr, nil
}

func parseAmount(field, value string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q: %w", swap.ErrInvalidAmount, field, value, err)
	}
	return amount, nil
}
