// Package router implements a constant-product swap router over pools of
// token pairs kept in chain state.
package router

import (
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hypergate/pkg/chain"
)

// DefaultFeeBps is the pool fee charged on every hop (0.30%).
const DefaultFeeBps = 30

var (
	ErrInvalidPath           = errors.New("invalid swap path")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrInsufficientOutput    = errors.New("insufficient output amount")
	ErrExpired               = errors.New("swap deadline passed")
	ErrTransferFailed        = errors.New("token transfer failed")
	ErrUnknownToken          = errors.New("unknown token")
)

// erc20 is the part of a token the router needs.
type erc20 interface {
	Transfer(env *chain.Env, to common.Address, amount *big.Int) bool
	TransferFrom(env *chain.Env, from, to common.Address, amount *big.Int) bool
}

type Router struct {
	address common.Address
	feeBps  int64
}

func New(address common.Address, feeBps int64) *Router {
	return &Router{address: address, feeBps: feeBps}
}

func (r *Router) Address() common.Address { return r.address }

func (r *Router) token(env *chain.Env, addr common.Address) (erc20, error) {
	c, err := env.Contract(addr)
	if err != nil {
		return nil, errors.Wrapf(ErrUnknownToken, "%s", addr.Hex())
	}
	tok, ok := c.(erc20)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownToken, "%s is not a token", addr.Hex())
	}
	return tok, nil
}

// Reserves returns the pool reserves of a and b, in that order.
func (r *Router) Reserves(env *chain.Env, a, b common.Address) (*big.Int, *big.Int) {
	st := env.State()
	return st.GetBig(reserveKey(r.address, a, b, a)), st.GetBig(reserveKey(r.address, a, b, b))
}

// AddLiquidity pulls amountA of a and amountB of b from the sender into the
// a/b pool. The sender must have approved the router for both.
func (r *Router) AddLiquidity(env *chain.Env, a, b common.Address, amountA, amountB *big.Int) error {
	if a == b || a == (common.Address{}) || b == (common.Address{}) {
		return errors.Wrapf(ErrInvalidPath, "pair %s/%s", a.Hex(), b.Hex())
	}
	if !positive(amountA) || !positive(amountB) {
		return ErrInvalidAmount
	}
	return env.Try(func(env *chain.Env) error {
		for _, leg := range []struct {
			token  common.Address
			amount *big.Int
		}{{a, amountA}, {b, amountB}} {
			tok, err := r.token(env, leg.token)
			if err != nil {
				return err
			}
			if !tok.TransferFrom(env.From(r.address), env.Sender, r.address, leg.amount) {
				return errors.Wrapf(ErrTransferFailed, "pull %s %s", leg.amount, leg.token.Hex())
			}
		}

		ra, rb := r.Reserves(env, a, b)
		st := env.State()
		st.SetBig(reserveKey(r.address, a, b, a), ra.Add(ra, amountA))
		st.SetBig(reserveKey(r.address, a, b, b), rb.Add(rb, amountB))
		env.Emit(r.address, "LiquidityAdded",
			"provider", env.Sender, "tokenA", a, "tokenB", b, "amountA", amountA, "amountB", amountB)
		return nil
	})
}

// Quote returns the amount reached after each hop of path for amountIn.
// amounts[0] is amountIn; the last element is the final output.
func (r *Router) Quote(env *chain.Env, path []common.Address, amountIn *big.Int) ([]*big.Int, error) {
	if len(path) < 2 {
		return nil, errors.Wrapf(ErrInvalidPath, "path length %d", len(path))
	}
	if !positive(amountIn) {
		return nil, ErrInvalidAmount
	}

	amounts := make([]*big.Int, len(path))
	amounts[0] = new(big.Int).Set(amountIn)
	for i := 0; i < len(path)-1; i++ {
		in, out := path[i], path[i+1]
		if in == out {
			return nil, errors.Wrapf(ErrInvalidPath, "hop %d swaps %s for itself", i, in.Hex())
		}
		reserveIn, reserveOut := r.Reserves(env, in, out)
		amountOut, err := GetAmountOut(amounts[i], reserveIn, reserveOut, r.feeBps)
		if err != nil {
			return nil, errors.Wrapf(err, "hop %d", i)
		}
		amounts[i+1] = amountOut
	}
	return amounts, nil
}

// Swap sells amountIn of path[0] taken from the sender and delivers the
// final path asset to recipient. It fails without side effects if the
// deadline has passed or the output is below minOut.
func (r *Router) Swap(env *chain.Env, path []common.Address, amountIn, minOut *big.Int, recipient common.Address, deadline uint64) ([]*big.Int, error) {
	if env.Time > deadline {
		return nil, errors.Wrapf(ErrExpired, "now %d > deadline %d", env.Time, deadline)
	}
	if recipient == (common.Address{}) {
		return nil, errors.Wrap(ErrInvalidPath, "zero recipient")
	}

	amounts, err := r.Quote(env, path, amountIn)
	if err != nil {
		return nil, err
	}
	final := amounts[len(amounts)-1]
	if minOut != nil && final.Cmp(minOut) < 0 {
		return nil, errors.Wrapf(ErrInsufficientOutput, "got %s, want at least %s", final, minOut)
	}

	err = env.Try(func(env *chain.Env) error {
		tokenIn, err := r.token(env, path[0])
		if err != nil {
			return err
		}
		if !tokenIn.TransferFrom(env.From(r.address), env.Sender, r.address, amountIn) {
			return errors.Wrapf(ErrTransferFailed, "pull %s %s", amountIn, path[0].Hex())
		}

		st := env.State()
		for i := 0; i < len(path)-1; i++ {
			in, out := path[i], path[i+1]
			reserveIn, reserveOut := r.Reserves(env, in, out)
			st.SetBig(reserveKey(r.address, in, out, in), reserveIn.Add(reserveIn, amounts[i]))
			st.SetBig(reserveKey(r.address, in, out, out), reserveOut.Sub(reserveOut, amounts[i+1]))
		}

		tokenOut, err := r.token(env, path[len(path)-1])
		if err != nil {
			return err
		}
		if !tokenOut.Transfer(env.From(r.address), recipient, final) {
			return errors.Wrapf(ErrTransferFailed, "pay %s %s", final, path[len(path)-1].Hex())
		}

		env.Emit(r.address, "Swap",
			"sender", env.Sender, "recipient", recipient, "path", path, "amountIn", amountIn, "amountOut", final)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return amounts, nil
}

// GetAmountOut is the constant-product output for one hop:
//
//	out = in*(10000-fee)*reserveOut / (reserveIn*10000 + in*(10000-fee))
//
// truncated toward zero.
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int, feeBps int64) (*big.Int, error) {
	if !positive(amountIn) {
		return nil, ErrInvalidAmount
	}
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, errors.Wrap(ErrInsufficientLiquidity, "pool reserves must be positive")
	}

	inAfterFee := new(big.Int).Mul(amountIn, big.NewInt(10_000-feeBps))
	numerator := new(big.Int).Mul(inAfterFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(10_000))
	denominator.Add(denominator, inAfterFee)
	out := numerator.Quo(numerator, denominator)

	if out.Sign() == 0 {
		return nil, errors.Wrap(ErrInsufficientLiquidity, "output amount too small")
	}
	if out.Cmp(reserveOut) >= 0 {
		return nil, errors.Wrapf(ErrInsufficientLiquidity, "output %s >= reserve %s", out, reserveOut)
	}
	return out, nil
}

func positive(v *big.Int) bool { return v != nil && v.Sign() > 0 }
