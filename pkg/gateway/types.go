package gateway

import (
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hypergate/pkg/chain"
)

const (
	// MaxFeeBps caps the protocol fee at 10%.
	MaxFeeBps uint64 = 1000

	// BpsDenominator is 100% in basis points.
	BpsDenominator = 10_000

	// SwapDeadlineWindow is added to the block time to form the deadline
	// handed to the swap mechanism.
	SwapDeadlineWindow uint64 = 300
)

// Asset is a fungible token the gateway can move. Each method either
// completes fully or returns false with no effect.
type Asset interface {
	Transfer(env *chain.Env, to common.Address, amount *big.Int) bool
	TransferFrom(env *chain.Env, from, to common.Address, amount *big.Int) bool
	Approve(env *chain.Env, spender common.Address, amount *big.Int) bool
}

// SwapMechanism converts one asset into another along a path. Both methods
// return the amount reached after every hop, input first.
type SwapMechanism interface {
	Quote(env *chain.Env, path []common.Address, amountIn *big.Int) ([]*big.Int, error)
	Swap(env *chain.Env, path []common.Address, amountIn, minOut *big.Int, recipient common.Address, deadline uint64) ([]*big.Int, error)
}

// Order is the record of one completed settlement.
type Order struct {
	Token             common.Address `json:"token"`
	Amount            *big.Int       `json:"amount"`
	Rate              *big.Int       `json:"rate"`
	Creator           common.Address `json:"creator"`
	RefundAddress     common.Address `json:"refundAddress"`
	LiquidityProvider common.Address `json:"liquidityProvider"`
	IsFulfilled       bool           `json:"isFulfilled"`
	IsRefunded        bool           `json:"isRefunded"`
	Timestamp         uint64         `json:"timestamp"`
}

// Settings is a snapshot of the gateway configuration.
type Settings struct {
	Admin         common.Address `json:"admin"`
	PendingAdmin  common.Address `json:"pendingAdmin"`
	Treasury      common.Address `json:"treasury"`
	FeeBps        uint64         `json:"feeBps"`
	SwapMechanism common.Address `json:"swapMechanism"`
	NextOrderID   uint64         `json:"nextOrderId"`
}

// ComputeFee splits amount into the protocol fee and the net payout:
// fee = floor(amount * bps / 10000), net = amount - fee.
func ComputeFee(amount *big.Int, bps uint64) (fee, net *big.Int) {
	fee = new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	fee.Quo(fee, big.NewInt(BpsDenominator))
	net = new(big.Int).Sub(amount, fee)
	return fee, net
}

func positive(v *big.Int) bool { return v != nil && v.Sign() > 0 }

// quantity checks v is a positive uint256. zeroErr is returned for nil or
// non-positive values.
func quantity(v *big.Int, zeroErr error) error {
	if !positive(v) {
		return zeroErr
	}
	if v.BitLen() > 256 {
		return errors.Wrapf(ErrAmountOverflow, "%d bits", v.BitLen())
	}
	return nil
}

func isZero(a common.Address) bool { return a == (common.Address{}) }
