package events

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// FormatAddress renders addresses in checksummed hex so attributes compare
// byte-for-byte across emitters.
func FormatAddress(addr common.Address) string {
	return addr.Hex()
}

// FormatAmount renders amounts in base 10; nil renders as "0".
func FormatAmount(amount *uint256.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.Dec()
}
