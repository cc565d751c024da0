package gateway

import "github.com/cockroachdb/errors"

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidAddress    = errors.New("invalid address")
	ErrFeeTooHigh        = errors.New("fee too high")
	ErrTokenNotSupported = errors.New("token not supported")
	ErrZeroAmount        = errors.New("amount must be greater than zero")
	ErrZeroRate          = errors.New("rate must be greater than zero")
	ErrPathTooShort      = errors.New("swap path too short")
	ErrNoRouter          = errors.New("no swap mechanism configured")
	ErrTransferFailed    = errors.New("transfer failed")
	ErrApprovalFailed    = errors.New("approval failed")
	ErrSwapFailed        = errors.New("swap failed")
	ErrRefundFailed      = errors.New("refund failed")
	ErrReentrantCall     = errors.New("reentrant call")
	ErrAmountOverflow    = errors.New("value exceeds uint256")

	ErrAlreadyInitialized = errors.New("gateway already initialized")
)
