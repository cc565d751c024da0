package gateway

import (
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hypergate/pkg/chain"
)

// CreateOrder pulls amount of asset from the caller, sends the fee to the
// treasury and the rest to liquidityProvider, and records the order.
func (g *Gateway) CreateOrder(env *chain.Env, asset common.Address, amount, rate *big.Int, refundAddress, liquidityProvider common.Address) (uint64, error) {
	var id uint64
	err := g.guard.withGuard("createOrder", func() error {
		return env.Try(func(env *chain.Env) error {
			if !g.IsAssetSupported(env, asset) {
				return errors.Wrapf(ErrTokenNotSupported, "%s", asset.Hex())
			}
			if err := quantity(amount, ErrZeroAmount); err != nil {
				return err
			}
			if err := quantity(rate, ErrZeroRate); err != nil {
				return err
			}
			if isZero(refundAddress) || isZero(liquidityProvider) {
				return errors.Wrap(ErrInvalidAddress, "refund address and liquidity provider are required")
			}

			tok, err := g.asset(env, asset)
			if err != nil {
				return err
			}
			if !tok.TransferFrom(env.From(g.address), env.Sender, g.address, amount) {
				return errors.Wrapf(ErrTransferFailed, "pull %s from %s", amount, env.Sender.Hex())
			}

			id, err = g.settle(env, tok, asset, amount, rate, refundAddress, liquidityProvider)
			return err
		})
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CreateOrderWithSwap swaps inputAmount of inputAsset into targetAsset and
// settles the output.
func (g *Gateway) CreateOrderWithSwap(env *chain.Env, inputAsset, targetAsset common.Address, inputAmount, minOut, rate *big.Int, refundAddress, liquidityProvider common.Address) (uint64, error) {
	return g.createWithPath(env, "createOrderWithSwap", []common.Address{inputAsset, targetAsset},
		inputAmount, minOut, rate, refundAddress, liquidityProvider)
}

// CreateOrderWithCustomPath swaps along path and settles the output in the
// last asset of path.
func (g *Gateway) CreateOrderWithCustomPath(env *chain.Env, path []common.Address, inputAmount, minOut, rate *big.Int, refundAddress, liquidityProvider common.Address) (uint64, error) {
	return g.createWithPath(env, "createOrderWithCustomPath", path,
		inputAmount, minOut, rate, refundAddress, liquidityProvider)
}

func (g *Gateway) createWithPath(env *chain.Env, op string, path []common.Address, inputAmount, minOut, rate *big.Int, refundAddress, liquidityProvider common.Address) (uint64, error) {
	var (
		id     uint64
		output *big.Int
	)
	err := g.guard.withGuard(op, func() error {
		return env.Try(func(env *chain.Env) error {
			routerRef, mech, err := g.swapMechanism(env)
			if err != nil {
				return err
			}
			if len(path) < 2 {
				return errors.Wrapf(ErrPathTooShort, "path length %d", len(path))
			}
			if err := quantity(inputAmount, ErrZeroAmount); err != nil {
				return err
			}
			if err := quantity(minOut, errors.Wrap(ErrZeroAmount, "minimum output")); err != nil {
				return err
			}
			if rate != nil && rate.BitLen() > 256 {
				return errors.Wrap(ErrAmountOverflow, "rate")
			}
			target := path[len(path)-1]
			if !g.IsAssetSupported(env, target) {
				return errors.Wrapf(ErrTokenNotSupported, "%s", target.Hex())
			}
			if isZero(refundAddress) || isZero(liquidityProvider) {
				return errors.Wrap(ErrInvalidAddress, "refund address and liquidity provider are required")
			}

			output, err = g.swap(env, routerRef, mech, path, inputAmount, minOut)
			if err != nil {
				return err
			}

			targetTok, err := g.asset(env, target)
			if err != nil {
				return err
			}
			id, err = g.settle(env, targetTok, target, output, rate, refundAddress, liquidityProvider)
			return err
		})
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// swap pulls inputAmount of path[0] from the caller and runs it through the
// swap mechanism. If the mechanism fails, or returns an empty, zero or
// below-minimum result, the input is refunded to the caller and
// ErrSwapFailed is returned.
func (g *Gateway) swap(env *chain.Env, routerRef common.Address, mech SwapMechanism, path []common.Address, inputAmount, minOut *big.Int) (*big.Int, error) {
	inTok, err := g.asset(env, path[0])
	if err != nil {
		return nil, err
	}
	self := env.From(g.address)
	if !inTok.TransferFrom(self, env.Sender, g.address, inputAmount) {
		return nil, errors.Wrapf(ErrTransferFailed, "pull %s from %s", inputAmount, env.Sender.Hex())
	}
	if !inTok.Approve(self, routerRef, inputAmount) {
		return nil, errors.Wrapf(ErrApprovalFailed, "approve %s for %s", inputAmount, routerRef.Hex())
	}

	deadline := env.Time + SwapDeadlineWindow
	var output *big.Int
	swapErr := env.Try(func(env *chain.Env) error {
		amounts, err := mech.Swap(env.From(g.address), path, inputAmount, minOut, g.address, deadline)
		if err != nil {
			return err
		}
		if len(amounts) == 0 {
			return errors.New("swap returned no amounts")
		}
		last := amounts[len(amounts)-1]
		if !positive(last) {
			return errors.New("swap returned zero output")
		}
		if last.Cmp(minOut) < 0 {
			return errors.Newf("swap output %s below minimum %s", last, minOut)
		}
		output = new(big.Int).Set(last)
		return nil
	})
	if swapErr != nil {
		g.swapFailureCounter.Add(env.Context(), 1)
		if !inTok.Transfer(self, env.Sender, inputAmount) {
			return nil, errors.Wrapf(ErrRefundFailed, "refund %s to %s", inputAmount, env.Sender.Hex())
		}
		g.logger.Warnw("swap_failed_refunded",
			"caller", env.Sender.Hex(), "token", path[0].Hex(), "amount", inputAmount.String(), "error", swapErr.Error())
		return nil, errors.Wrapf(ErrSwapFailed, "%v", swapErr)
	}

	env.Emit(g.address, EventSwapExecuted,
		"tokenIn", path[0], "tokenOut", path[len(path)-1], "amountIn", inputAmount, "amountOut", output, "path", path)
	return output, nil
}

// settle splits amount into fee and net, pays both legs out of the
// gateway's custody and appends the order.
func (g *Gateway) settle(env *chain.Env, tok Asset, asset common.Address, amount, rate *big.Int, refundAddress, liquidityProvider common.Address) (uint64, error) {
	fee, net := ComputeFee(amount, g.FeeRate(env))
	treasury := g.Treasury(env)
	self := env.From(g.address)

	if fee.Sign() > 0 && !tok.Transfer(self, treasury, fee) {
		return 0, errors.Wrapf(ErrTransferFailed, "fee %s to treasury %s", fee, treasury.Hex())
	}
	if !tok.Transfer(self, liquidityProvider, net) {
		return 0, errors.Wrapf(ErrTransferFailed, "net %s to provider %s", net, liquidityProvider.Hex())
	}

	if rate == nil {
		rate = new(big.Int)
	}
	order := Order{
		Token:             asset,
		Amount:            new(big.Int).Set(amount),
		Rate:              new(big.Int).Set(rate),
		Creator:           env.Sender,
		RefundAddress:     refundAddress,
		LiquidityProvider: liquidityProvider,
		IsFulfilled:       true,
		IsRefunded:        false,
		Timestamp:         env.Time,
	}
	id, err := g.appendOrder(env, order)
	if err != nil {
		return 0, err
	}

	env.Emit(g.address, EventOrderCreated,
		"orderId", id, "creator", env.Sender, "token", asset, "amount", amount,
		"fee", fee, "net", net, "rate", rate, "refundAddress", refundAddress, "liquidityProvider", liquidityProvider)
	env.Emit(g.address, EventOrderFulfilled, "orderId", id, "liquidityProvider", liquidityProvider, "amount", net)
	return id, nil
}
