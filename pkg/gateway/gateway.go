// Package gateway settles orders: it pulls a supported asset from the
// caller, optionally swaps it, takes the protocol fee and pays the rest to
// a liquidity provider, recording every settlement in an append-only
// ledger.
package gateway

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/uhyunpark/hypergate/pkg/chain"
	"github.com/uhyunpark/hypergate/pkg/util"
)

type Gateway struct {
	address common.Address
	guard   reentrancyGuard
	logger  *zap.SugaredLogger

	ordersCounter      metric.Int64Counter
	swapFailureCounter metric.Int64Counter
}

func New(address common.Address, logger *zap.SugaredLogger) *Gateway {
	g := &Gateway{
		address: address,
		logger:  util.OrNop(logger),
	}

	meter := otel.Meter("gateway")
	g.ordersCounter, _ = meter.Int64Counter("gateway.orders.created",
		metric.WithDescription("Number of orders settled"),
		metric.WithUnit("{order}"))
	g.swapFailureCounter, _ = meter.Int64Counter("gateway.swaps.failed",
		metric.WithDescription("Number of settlements aborted by a failed swap"),
		metric.WithUnit("{swap}"))
	return g
}

func (g *Gateway) Address() common.Address { return g.address }

// RecordCommitted counts and logs the orders settled by a committed call.
// Receipts of failed calls are ignored. It returns the number of orders seen.
func (g *Gateway) RecordCommitted(ctx context.Context, r chain.Receipt) int {
	if !r.Success {
		return 0
	}
	n := 0
	for _, l := range r.Logs {
		if l.Contract != g.address || l.Name != EventOrderCreated {
			continue
		}
		g.ordersCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("token", l.Fields["token"])))
		g.logger.Infow("order_created",
			"order_id", l.Fields["orderId"], "creator", l.Fields["creator"], "token", l.Fields["token"],
			"amount", l.Fields["amount"], "seq", r.Seq)
		n++
	}
	return n
}

// Initialize sets the first administrator, treasury and fee rate. It can
// only run once per gateway address.
func (g *Gateway) Initialize(env *chain.Env, admin, treasury common.Address, feeBps uint64) error {
	return env.Try(func(env *chain.Env) error {
		st := env.State()
		if st.GetBool(fieldKey(g.address, "init")) {
			return ErrAlreadyInitialized
		}
		if isZero(admin) || isZero(treasury) {
			return errors.Wrap(ErrInvalidAddress, "admin and treasury are required")
		}
		if feeBps > MaxFeeBps {
			return errors.Wrapf(ErrFeeTooHigh, "%d > %d", feeBps, MaxFeeBps)
		}

		st.SetBool(fieldKey(g.address, "init"), true)
		st.SetAddress(fieldKey(g.address, "admin"), admin)
		st.SetAddress(fieldKey(g.address, "treasury"), treasury)
		st.SetUint64(fieldKey(g.address, "feeBps"), feeBps)

		env.Emit(g.address, EventAdminTransferred, "previous", common.Address{}, "admin", admin)
		env.Emit(g.address, EventTreasuryUpdated, "treasury", treasury)
		env.Emit(g.address, EventFeeRateUpdated, "feeBps", feeBps)
		return nil
	})
}

// Initialized reports whether Initialize has run.
func (g *Gateway) Initialized(env *chain.Env) bool {
	return env.State().GetBool(fieldKey(g.address, "init"))
}

func (g *Gateway) onlyAdmin(env *chain.Env) error {
	if env.Sender != g.Admin(env) {
		return errors.Wrapf(ErrUnauthorized, "%s is not the admin", env.Sender.Hex())
	}
	return nil
}

// SetSwapMechanism replaces the swap mechanism reference.
func (g *Gateway) SetSwapMechanism(env *chain.Env, ref common.Address) error {
	return env.Try(func(env *chain.Env) error {
		if err := g.onlyAdmin(env); err != nil {
			return err
		}
		if isZero(ref) {
			return errors.Wrap(ErrInvalidAddress, "swap mechanism")
		}
		env.State().SetAddress(fieldKey(g.address, "router"), ref)
		env.Emit(g.address, EventRouterUpdated, "router", ref)
		g.logger.Infow("config_updated", "field", "router", "value", ref.Hex())
		return nil
	})
}

// SetAssetSupport adds asset to, or removes it from, the supported set.
func (g *Gateway) SetAssetSupport(env *chain.Env, asset common.Address, supported bool) error {
	return env.Try(func(env *chain.Env) error {
		if err := g.onlyAdmin(env); err != nil {
			return err
		}
		if isZero(asset) {
			return errors.Wrap(ErrInvalidAddress, "asset")
		}
		env.State().SetBool(assetKey(g.address, asset), supported)
		env.Emit(g.address, EventAssetSupportUpdated, "asset", asset, "supported", supported)
		g.logger.Infow("config_updated", "field", "asset", "asset", asset.Hex(), "supported", supported)
		return nil
	})
}

// SetTreasury replaces the fee recipient.
func (g *Gateway) SetTreasury(env *chain.Env, treasury common.Address) error {
	return env.Try(func(env *chain.Env) error {
		if err := g.onlyAdmin(env); err != nil {
			return err
		}
		if isZero(treasury) {
			return errors.Wrap(ErrInvalidAddress, "treasury")
		}
		env.State().SetAddress(fieldKey(g.address, "treasury"), treasury)
		env.Emit(g.address, EventTreasuryUpdated, "treasury", treasury)
		g.logger.Infow("config_updated", "field", "treasury", "value", treasury.Hex())
		return nil
	})
}

// SetFeeRate replaces the fee rate. bps may be at most MaxFeeBps.
func (g *Gateway) SetFeeRate(env *chain.Env, bps uint64) error {
	return env.Try(func(env *chain.Env) error {
		if err := g.onlyAdmin(env); err != nil {
			return err
		}
		if bps > MaxFeeBps {
			return errors.Wrapf(ErrFeeTooHigh, "%d > %d", bps, MaxFeeBps)
		}
		env.State().SetUint64(fieldKey(g.address, "feeBps"), bps)
		env.Emit(g.address, EventFeeRateUpdated, "feeBps", bps)
		g.logger.Infow("config_updated", "field", "fee_bps", "value", bps)
		return nil
	})
}

// TransferAdmin nominates next as administrator. The nomination takes
// effect once next calls AcceptAdmin.
func (g *Gateway) TransferAdmin(env *chain.Env, next common.Address) error {
	return env.Try(func(env *chain.Env) error {
		if err := g.onlyAdmin(env); err != nil {
			return err
		}
		if isZero(next) {
			return errors.Wrap(ErrInvalidAddress, "pending admin")
		}
		env.State().SetAddress(fieldKey(g.address, "pendingAdmin"), next)
		env.Emit(g.address, EventAdminTransferStarted, "admin", env.Sender, "pending", next)
		return nil
	})
}

// AcceptAdmin completes a transfer started by TransferAdmin.
func (g *Gateway) AcceptAdmin(env *chain.Env) error {
	return env.Try(func(env *chain.Env) error {
		pending := g.PendingAdmin(env)
		if isZero(pending) || env.Sender != pending {
			return errors.Wrapf(ErrUnauthorized, "%s is not the pending admin", env.Sender.Hex())
		}
		previous := g.Admin(env)
		st := env.State()
		st.SetAddress(fieldKey(g.address, "admin"), pending)
		st.Delete(fieldKey(g.address, "pendingAdmin"))
		env.Emit(g.address, EventAdminTransferred, "previous", previous, "admin", pending)
		g.logger.Infow("admin_transferred", "previous", previous.Hex(), "admin", pending.Hex())
		return nil
	})
}

func (g *Gateway) Admin(env *chain.Env) common.Address {
	return env.State().GetAddress(fieldKey(g.address, "admin"))
}

func (g *Gateway) PendingAdmin(env *chain.Env) common.Address {
	return env.State().GetAddress(fieldKey(g.address, "pendingAdmin"))
}

func (g *Gateway) Treasury(env *chain.Env) common.Address {
	return env.State().GetAddress(fieldKey(g.address, "treasury"))
}

func (g *Gateway) FeeRate(env *chain.Env) uint64 {
	return env.State().GetUint64(fieldKey(g.address, "feeBps"))
}

// SwapMechanismRef returns the configured swap mechanism, or the zero
// address if none is set.
func (g *Gateway) SwapMechanismRef(env *chain.Env) common.Address {
	return env.State().GetAddress(fieldKey(g.address, "router"))
}

func (g *Gateway) IsAssetSupported(env *chain.Env, asset common.Address) bool {
	return env.State().GetBool(assetKey(g.address, asset))
}

// Settings returns the whole configuration at once.
func (g *Gateway) Settings(env *chain.Env) Settings {
	return Settings{
		Admin:         g.Admin(env),
		PendingAdmin:  g.PendingAdmin(env),
		Treasury:      g.Treasury(env),
		FeeBps:        g.FeeRate(env),
		SwapMechanism: g.SwapMechanismRef(env),
		NextOrderID:   g.NextOrderID(env),
	}
}

func (g *Gateway) asset(env *chain.Env, addr common.Address) (Asset, error) {
	c, err := env.Contract(addr)
	if err != nil {
		return nil, errors.Wrapf(ErrTransferFailed, "asset %s not deployed", addr.Hex())
	}
	a, ok := c.(Asset)
	if !ok {
		return nil, errors.Wrapf(ErrTransferFailed, "%s is not an asset", addr.Hex())
	}
	return a, nil
}

// swapMechanism resolves the configured mechanism. An unset or undeployed
// reference is reported as ErrNoRouter.
func (g *Gateway) swapMechanism(env *chain.Env) (common.Address, SwapMechanism, error) {
	ref := g.SwapMechanismRef(env)
	if isZero(ref) {
		return ref, nil, ErrNoRouter
	}
	c, err := env.Contract(ref)
	if err != nil {
		return ref, nil, errors.Wrapf(ErrNoRouter, "%s not deployed", ref.Hex())
	}
	mech, ok := c.(SwapMechanism)
	if !ok {
		return ref, nil, errors.Wrapf(ErrNoRouter, "%s is not a swap mechanism", ref.Hex())
	}
	return ref, mech, nil
}
