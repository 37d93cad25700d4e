package swap

import "errors"

var (
	errNilState = errors.New("swap engine: state not configured")
	errNilGate  = errors.New("swap engine: access gate not configured")
	errNilToken = errors.New("swap engine: token resolver not configured")
	errNilBank  = errors.New("swap engine: value transfer not configured")

	// ErrAlreadyInitialized is returned by a second initialisation attempt.
	ErrAlreadyInitialized = errors.New("swap engine: already initialized")
	// ErrNotInitialized is returned by operations that need a configured
	// engine.
	ErrNotInitialized = errors.New("swap engine: not initialized")
	// ErrInvalidAddress is returned when a zero address is supplied.
	ErrInvalidAddress = errors.New("swap engine: invalid address")
	// ErrInvalidAmount is returned for a zero rate key.
	ErrInvalidAmount = errors.New("swap engine: invalid amount")
	// ErrRateNotDefined is returned when no positive rate exists for the
	// requested input amount.
	ErrRateNotDefined = errors.New("swap engine: swap rate not defined")
	// ErrTransferFailed wraps any failed asset movement.
	ErrTransferFailed = errors.New("swap engine: transfer failed")
)
