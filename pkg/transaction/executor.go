package transaction

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/uhyunpark/hypergate/pkg/chain"
	"github.com/uhyunpark/hypergate/pkg/crypto"
	"github.com/uhyunpark/hypergate/pkg/gateway"
	"github.com/uhyunpark/hypergate/pkg/util"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidCall      = errors.New("invalid call")
)

// Result is what a submitted call produced.
type Result struct {
	Receipt chain.Receipt `json:"receipt"`
	OrderID *uint64       `json:"orderId,omitempty"`
}

// Executor verifies signed calls and runs them against the gateway as one
// chain call each.
type Executor struct {
	chain    *chain.Chain
	gw       *gateway.Gateway
	verifier *Verifier
	nonces   *NonceStore
	logger   *zap.SugaredLogger
}

func NewExecutor(c *chain.Chain, gw *gateway.Gateway, verifier *Verifier, logger *zap.SugaredLogger) *Executor {
	return &Executor{
		chain:    c,
		gw:       gw,
		verifier: verifier,
		nonces:   NewNonceStore(gw.Address().Hex()),
		logger:   util.OrNop(logger),
	}
}

// Nonces exposes the replay-protection store.
func (e *Executor) Nonces() *NonceStore { return e.nonces }

// Submit verifies call and executes it. The nonce is consumed in the same
// atomic call as the gateway operation.
func (e *Executor) Submit(ctx context.Context, call *SignedCall) (Result, error) {
	msg, err := call.ToEIP712()
	if err != nil {
		return Result{}, errors.Wrap(ErrInvalidCall, err.Error())
	}
	nonce, err := call.NonceValue()
	if err != nil {
		return Result{}, errors.Wrap(ErrInvalidCall, err.Error())
	}
	sender, err := e.verifier.RecoverSigner(call)
	if err != nil {
		return Result{}, errors.Wrap(ErrInvalidSignature, err.Error())
	}

	var orderID *uint64
	receipt, err := e.chain.Execute(ctx, sender, func(env *chain.Env) error {
		if err := e.nonces.Use(env, sender, nonce); err != nil {
			return err
		}
		id, err := Dispatch(env, e.gw, msg)
		orderID = id
		return err
	})

	e.logger.Infow("call_executed",
		"type", string(call.Type), "sender", sender.Hex(), "nonce", nonce.String(),
		"success", err == nil, "seq", receipt.Seq)
	if err == nil {
		e.gw.RecordCommitted(ctx, receipt)
	}
	return Result{Receipt: receipt, OrderID: orderID}, err
}

// Dispatch maps a verified message onto the gateway entry point it
// authorizes. For settlements it returns the new order id.
func Dispatch(env *chain.Env, gw *gateway.Gateway, msg crypto.TypedMessage) (*uint64, error) {
	var (
		id  uint64
		err error
	)
	switch m := msg.(type) {
	case crypto.CreateOrderEIP712:
		id, err = gw.CreateOrder(env, m.Token, m.Amount, m.Rate, m.RefundAddress, m.LiquidityProvider)
	case crypto.SwapOrderEIP712:
		if len(m.Path) == 2 {
			id, err = gw.CreateOrderWithSwap(env, m.Path[0], m.Path[1], m.AmountIn, m.MinOut, m.Rate, m.RefundAddress, m.LiquidityProvider)
		} else {
			id, err = gw.CreateOrderWithCustomPath(env, m.Path, m.AmountIn, m.MinOut, m.Rate, m.RefundAddress, m.LiquidityProvider)
		}
	case crypto.AdminActionEIP712:
		return nil, dispatchAdmin(env, gw, m)
	default:
		return nil, fmt.Errorf("unsupported message %T", msg)
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func dispatchAdmin(env *chain.Env, gw *gateway.Gateway, m crypto.AdminActionEIP712) error {
	switch m.Action {
	case ActionSetSwapMechanism:
		return gw.SetSwapMechanism(env, m.Target)
	case ActionSetAssetSupport:
		return gw.SetAssetSupport(env, m.Target, m.Flag)
	case ActionSetTreasury:
		return gw.SetTreasury(env, m.Target)
	case ActionSetFeeRate:
		if m.Value == nil || !m.Value.IsUint64() {
			return errors.Wrapf(gateway.ErrFeeTooHigh, "%v", m.Value)
		}
		return gw.SetFeeRate(env, m.Value.Uint64())
	case ActionTransferAdmin:
		return gw.TransferAdmin(env, m.Target)
	case ActionAcceptAdmin:
		return gw.AcceptAdmin(env)
	default:
		return fmt.Errorf("unknown admin action: %s", m.Action)
	}
}
