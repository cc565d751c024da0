package api

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/uhyunpark/hypergate/pkg/chain"
	"github.com/uhyunpark/hypergate/pkg/gateway"
	"github.com/uhyunpark/hypergate/pkg/transaction"
)

type errorKind struct {
	err    error
	kind   string
	status int
}

// First match wins.
var errorKinds = []errorKind{
	{transaction.ErrInvalidCall, "invalid_call", http.StatusBadRequest},
	{transaction.ErrInvalidSignature, "invalid_signature", http.StatusUnauthorized},
	{transaction.ErrStaleNonce, "stale_nonce", http.StatusConflict},
	{gateway.ErrUnauthorized, "unauthorized", http.StatusForbidden},
	{gateway.ErrInvalidAddress, "invalid_address", http.StatusBadRequest},
	{gateway.ErrFeeTooHigh, "fee_too_high", http.StatusBadRequest},
	{gateway.ErrTokenNotSupported, "token_not_supported", http.StatusBadRequest},
	{gateway.ErrZeroAmount, "zero_amount", http.StatusBadRequest},
	{gateway.ErrZeroRate, "zero_rate", http.StatusBadRequest},
	{gateway.ErrAmountOverflow, "amount_overflow", http.StatusBadRequest},
	{gateway.ErrPathTooShort, "path_too_short", http.StatusBadRequest},
	{gateway.ErrNoRouter, "no_router", http.StatusConflict},
	{gateway.ErrAlreadyInitialized, "already_initialized", http.StatusConflict},
	{gateway.ErrReentrantCall, "reentrant_call", http.StatusConflict},
	{gateway.ErrRefundFailed, "refund_failed", http.StatusUnprocessableEntity},
	{gateway.ErrSwapFailed, "swap_failed", http.StatusUnprocessableEntity},
	{gateway.ErrTransferFailed, "transfer_failed", http.StatusUnprocessableEntity},
	{gateway.ErrApprovalFailed, "approval_failed", http.StatusUnprocessableEntity},
	{chain.ErrCallDepth, "call_depth", http.StatusUnprocessableEntity},
	{context.DeadlineExceeded, "timeout", http.StatusGatewayTimeout},
	{context.Canceled, "canceled", http.StatusServiceUnavailable},
}

// classify maps err onto a stable kind string and an HTTP status.
func classify(err error) (string, int) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind, k.status
		}
	}
	return "internal", http.StatusInternalServerError
}
