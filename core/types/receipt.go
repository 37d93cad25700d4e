package types

import "github.com/ethereum/go-ethereum/common"

const (
	// ReceiptStatusFailed marks a call whose state changes were discarded.
	ReceiptStatusFailed uint64 = 0
	// ReceiptStatusSuccessful marks a committed call.
	ReceiptStatusSuccessful uint64 = 1
)

// Receipt summarises the outcome of a single host call.
type Receipt struct {
	TxHash common.Hash    `json:"txHash"`
	From   common.Address `json:"from"`
	Nonce  uint64         `json:"nonce"`
	Status uint64         `json:"status"`
	Error  string         `json:"error,omitempty"`
	Events []*Event       `json:"events"`

	cause error
}

// Succeeded reports whether the call committed.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == ReceiptStatusSuccessful
}

// Fail marks the receipt as failed with err as its cause.
func (r *Receipt) Fail(err error) {
	r.Status = ReceiptStatusFailed
	r.cause = err
	if err != nil {
		r.Error = err.Error()
	}
}

// Err returns the error that failed the call, if it was produced in this
// process. Decoded receipts only carry the message.
func (r *Receipt) Err() error {
	if r == nil {
		return nil
	}
	return r.cause
}
