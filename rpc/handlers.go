package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	coreerrors "ratemint/core/errors"
	"ratemint/core/types"
	"ratemint/crypto"
	"ratemint/indexer"
	"ratemint/native/access"
	"ratemint/native/swap"
	"ratemint/native/token"
)

type methodFunc func(ctx context.Context, params []json.RawMessage) (interface{}, *RPCError)

type method struct {
	fn   methodFunc
	auth bool
}

func (s *Server) routes() map[string]method {
	return map[string]method{
		"exchange_sendTransaction":   {fn: s.handleSendTransaction, auth: true},
		"exchange_getRate":           {fn: s.handleGetRate},
		"exchange_getRates":          {fn: s.handleGetRates},
		"exchange_getConfig":         {fn: s.handleGetConfig},
		"exchange_hasRole":           {fn: s.handleHasRole},
		"exchange_getRoleMembers":    {fn: s.handleGetRoleMembers},
		"exchange_getImplementation": {fn: s.handleGetImplementation},
		"token_balanceOf":            {fn: s.handleTokenBalanceOf},
		"token_allowance":            {fn: s.handleTokenAllowance},
		"token_info":                 {fn: s.handleTokenInfo},
		"account_getBalance":         {fn: s.handleAccountGetBalance},
		"account_getNonce":           {fn: s.handleAccountGetNonce},
		"events_list":                {fn: s.handleEventsList},
		"chain_id":                   {fn: s.handleChainID},
	}
}

// handleSendTransaction applies a signed transaction. A call that fails after
// its nonce was consumed is reported as an error carrying the receipt.
func (s *Server) handleSendTransaction(ctx context.Context, params []json.RawMessage) (interface{}, *RPCError) {
	if len(params) != 1 {
		return nil, invalidParams("expected signed transaction object")
	}
	tx := &types.Transaction{}
	if err := json.Unmarshal(params[0], tx); err != nil {
		return nil, newError(http.StatusBadRequest, codeInvalidParams, "invalid transaction", err.Error())
	}
	receipt, err := s.node.ApplyTransaction(ctx, tx)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrInvalidSignature),
			errors.Is(err, coreerrors.ErrChainIDMismatch),
			errors.Is(err, coreerrors.ErrUnknownTxType),
			errors.Is(err, coreerrors.ErrNilTransaction):
			return nil, newError(http.StatusBadRequest, codeInvalidParams, err.Error(), nil)
		case errors.Is(err, coreerrors.ErrNonceMismatch):
			return nil, newError(http.StatusConflict, codeServerError, err.Error(), nil)
		default:
			return nil, newError(http.StatusInternalServerError, codeServerError, "transaction failed", err.Error())
		}
	}
	if !receipt.Succeeded() {
		rpcErr := engineError(receipt.Err())
		if rpcErr == nil {
			rpcErr = newError(http.StatusOK, codeServerError, receipt.Error, nil)
		}
		rpcErr.Data = receipt
		return nil, rpcErr
	}
	return receipt, nil
}

func (s *Server) handleGetRate(_ context.Context, params []json.RawMessage) (interface{}, *RPCError) {
	if len(params) != 1 {
		return nil, invalidParams("expected inputAmount")
	}
	amount, rpcErr := amountParam(params[0], "inputAmount")
	if rpcErr != nil {
		return nil, rpcErr
	}
	out, err := s.node.Rate(amount)
	if err != nil {
		return nil, engineError(err)
	}
	return RateResult{InputAmount: amount.Dec(), OutputAmount: formatAmount(out)}, nil
}

func (s *Server) handleGetRates(_ context.Context, _ []json.RawMessage) (interface{}, *RPCError) {
	rates, err := s.node.Rates()
	if err != nil {
		return nil, engineError(err)
	}
	result := make([]RateResult, 0, len(rates))
	for _, r := range rates {
		result = append(result, RateResult{InputAmount: formatAmount(r.InputAmount), OutputAmount: formatAmount(r.OutputAmount)})
	}
	return result, nil
}

func (s *Server) handleGetConfig(_ context.Context, _ []json.RawMessage) (interface{}, *RPCError) {
	cfg, err := s.node.Config()
	if err != nil {
		return nil, engineError(err)
	}
	return newConfigResult(cfg), nil
}

func (s *Server) handleHasRole(_ context.Context, params []json.RawMessage) (interface{}, *RPCError) {
	if len(params) != 2 {
		return nil, invalidParams("expected role and account")
	}
	role, rpcErr := roleParam(params[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	account, rpcErr := addressParam(params[1], "account")
	if rpcErr != nil {
		return nil, rpcErr
	}
	ok, err := s.node.HasRole(role, account)
	if err != nil {
		return nil, engineError(err)
	}
	return ok, nil
}

func (s *Server) handleGetRoleMembers(_ context.Context, params []json.RawMessage) (interface{}, *RPCError) {
	if len(params) != 1 {
		return nil, invalidParams("expected role")
	}
	role, rpcErr := roleParam(params[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	members, err := s.node.RoleMembers(role)
	if err != nil {
		return nil, engineError(err)
	}
	result := make([]string, 0, len(members))
	for _, m := range members {
		result = append(result, m.Hex())
	}
	return result, nil
}

func (s *Server) handleGetImplementation(_ context.Context, _ []json.RawMessage) (interface{}, *RPCError) {
	impl, err := s.node.Implementation()
	if err != nil {
		return nil, engineError(err)
	}
	return ImplementationResult{Address: formatAddress(impl.Address), Version: impl.Version}, nil
}

func (s *Server) handleTokenBalanceOf(_ context.Context, params []json.RawMessage) (interface{}, *RPCError) {
	if len(params) != 2 {
		return nil, invalidParams("expected token and holder")
	}
	tokenAddr, rpcErr := addressParam(params[0], "token")
	if rpcErr != nil {
		return nil, rpcErr
	}
	holder, rpcErr := addressParam(params[1], "holder")
	if rpcErr != nil {
		return nil, rpcErr
	}
	bal, err := s.node.TokenBalance(tokenAddr, holder)
	if err != nil {
		return nil, engineError(err)
	}
	return formatAmount(bal), nil
}

func (s *Server) handleTokenAllowance(_ context.Context, params []json.RawMessage) (interface{}, *RPCError) {
	if len(params) != 3 {
		return nil, invalidParams("expected token, owner and spender")
	}
	tokenAddr, rpcErr := addressParam(params[0], "token")
	if rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := addressParam(params[1], "owner")
	if rpcErr != nil {
		return nil, rpcErr
	}
	spender, rpcErr := addressParam(params[2], "spender")
	if rpcErr != nil {
		return nil, rpcErr
	}
	allowance, err := s.node.TokenAllowance(tokenAddr, owner, spender)
	if err != nil {
		return nil, engineError(err)
	}
	return formatAmount(allowance), nil
}

func (s *Server) handleTokenInfo(_ context.Context, params []json.RawMessage) (interface{}, *RPCError) {
	if len(params) != 1 {
		return nil, invalidParams("expected token")
	}
	tokenAddr, rpcErr := addressParam(params[0], "token")
	if rpcErr != nil {
		return nil, rpcErr
	}
	info, err := s.node.TokenInfo(tokenAddr)
	if err != nil {
		return nil, engineError(err)
	}
	return newTokenInfoResult(info), nil
}

func (s *Server) handleAccountGetBalance(_ context.Context, params []json.RawMessage) (interface{}, *RPCError) {
	if len(params) != 1 {
		return nil, invalidParams("expected address")
	}
	addr, rpcErr := addressParam(params[0], "address")
	if rpcErr != nil {
		return nil, rpcErr
	}
	bal, err := s.node.Balance(addr)
	if err != nil {
		return nil, engineError(err)
	}
	return formatAmount(bal), nil
}

func (s *Server) handleAccountGetNonce(_ context.Context, params []json.RawMessage) (interface{}, *RPCError) {
	if len(params) != 1 {
		return nil, invalidParams("expected address")
	}
	addr, rpcErr := addressParam(params[0], "address")
	if rpcErr != nil {
		return nil, rpcErr
	}
	nonce, err := s.node.Nonce(addr)
	if err != nil {
		return nil, engineError(err)
	}
	return nonce, nil
}

func (s *Server) handleEventsList(ctx context.Context, params []json.RawMessage) (interface{}, *RPCError) {
	if s.index == nil {
		return nil, newError(http.StatusServiceUnavailable, codeServerError, "event index not configured", nil)
	}
	if len(params) > 1 {
		return nil, invalidParams("expected at most one filter object")
	}
	var p EventsListParams
	if len(params) == 1 {
		if err := json.Unmarshal(params[0], &p); err != nil {
			return nil, newError(http.StatusBadRequest, codeInvalidParams, "invalid filter", err.Error())
		}
	}
	if p.Limit < 0 {
		return nil, invalidParams("limit must not be negative")
	}
	entries, err := s.index.List(ctx, indexer.Filter{
		Type:      strings.TrimSpace(p.Type),
		AttrName:  strings.TrimSpace(p.AttrName),
		AttrValue: p.AttrValue,
		AfterID:   p.AfterID,
		Limit:     p.Limit,
	})
	if err != nil {
		return nil, newError(http.StatusInternalServerError, codeServerError, "failed to list events", err.Error())
	}
	return entries, nil
}

func (s *Server) handleChainID(_ context.Context, _ []json.RawMessage) (interface{}, *RPCError) {
	return s.node.ChainID(), nil
}

// engineError maps a node error onto a JSON-RPC error.
func engineError(err error) *RPCError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, access.ErrUnauthorized), errors.Is(err, access.ErrRenounceForOther):
		return newError(http.StatusForbidden, codeUnauthorized, err.Error(), nil)
	case errors.Is(err, swap.ErrInvalidAddress),
		errors.Is(err, swap.ErrInvalidAmount),
		errors.Is(err, access.ErrInvalidRole),
		errors.Is(err, token.ErrUnknownToken):
		return newError(http.StatusBadRequest, codeInvalidParams, err.Error(), nil)
	default:
		return newError(http.StatusOK, codeServerError, err.Error(), nil)
	}
}

func invalidParams(message string) *RPCError {
	return newError(http.StatusBadRequest, codeInvalidParams, message, nil)
}

func stringParam(raw json.RawMessage, field string) (string, *RPCError) {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", invalidParams(fmt.Sprintf("%s must be a string", field))
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", invalidParams(fmt.Sprintf("%s required", field))
	}
	return value, nil
}

func addressParam(raw json.RawMessage, field string) (common.Address, *RPCError) {
	value, rpcErr := stringParam(raw, field)
	if rpcErr != nil {
		return common.Address{}, rpcErr
	}
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return common.Address{}, newError(http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("invalid %s", field), err.Error())
	}
	return addr, nil
}

// amountParam accepts a base-10 string or a JSON number.
func amountParam(raw json.RawMessage, field string) (*uint256.Int, *RPCError) {
	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return nil, invalidParams(fmt.Sprintf("%s must be a decimal string", field))
	}
	amount, err := uint256.FromDecimal(strings.TrimSpace(number.String()))
	if err != nil {
		return nil, newError(http.StatusBadRequest, codeInvalidParams, fmt.Sprintf("invalid %s", field), err.Error())
	}
	return amount, nil
}

func roleParam(raw json.RawMessage) (access.Role, *RPCError) {
	value, rpcErr := stringParam(raw, "role")
	if rpcErr != nil {
		return "", rpcErr
	}
	role, err := access.ParseRole(value)
	if err != nil {
		return "", newError(http.StatusBadRequest, codeInvalidParams, err.Error(), nil)
	}
	return role, nil
}
