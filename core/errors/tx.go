package errors

import stderrors "errors"

var (
	ErrNonceMismatch   = stderrors.New("tx: nonce mismatch")
	ErrChainIDMismatch = stderrors.New("tx: chain id mismatch")
	ErrUnknownTxType   = stderrors.New("tx: unknown transaction type")
	ErrNilTransaction  = stderrors.New("tx: nil transaction")
)
