package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/hypergate/params"
	"github.com/uhyunpark/hypergate/pkg/chain"
	"github.com/uhyunpark/hypergate/pkg/gateway"
	"github.com/uhyunpark/hypergate/pkg/router"
	"github.com/uhyunpark/hypergate/pkg/token"
	"github.com/uhyunpark/hypergate/pkg/util"
)

// bootstrap registers the genesis contracts and, the first time the state
// is opened, mints balances, seeds the pools and initializes the gateway
// in one call.
func bootstrap(ctx context.Context, c *chain.Chain, cfg params.Gateway, g params.Genesis, logger *zap.SugaredLogger) (*gateway.Gateway, error) {
	logger = util.OrNop(logger)
	minter := common.HexToAddress(g.Minter)
	routerAddr := common.HexToAddress(g.Router.Address)

	gw := gateway.New(cfg.Address, logger)
	r := router.New(routerAddr, g.Router.FeeBps)
	if err := c.Deploy(cfg.Address, gw); err != nil {
		return nil, err
	}
	if err := c.Deploy(routerAddr, r); err != nil {
		return nil, err
	}
	tokens := make(map[common.Address]*token.Token, len(g.Tokens))
	for _, def := range g.Tokens {
		addr := common.HexToAddress(def.Address)
		tok := token.New(addr, def.Name, def.Symbol, def.Decimals, minter)
		if err := c.Deploy(addr, tok); err != nil {
			return nil, err
		}
		tokens[addr] = tok
	}

	var initialized bool
	if err := c.View(ctx, common.Address{}, func(env *chain.Env) error {
		initialized = gw.Initialized(env)
		return nil
	}); err != nil {
		return nil, err
	}
	if initialized {
		logger.Infow("genesis_skipped", "gateway", cfg.Address.Hex(), "seq", c.Seq())
		return gw, nil
	}

	_, err := c.Execute(ctx, cfg.Admin, func(env *chain.Env) error {
		m := env.From(minter)
		for _, def := range g.Tokens {
			tok := tokens[common.HexToAddress(def.Address)]
			for holder, raw := range def.Balances {
				amount, err := params.ParseAmount(raw)
				if err != nil {
					return err
				}
				if err := tok.Mint(m, common.HexToAddress(holder), amount); err != nil {
					return fmt.Errorf("mint %s: %w", def.Symbol, err)
				}
			}
		}
		for i, p := range g.Pools {
			a, b := common.HexToAddress(p.TokenA), common.HexToAddress(p.TokenB)
			amountA, err := params.ParseAmount(p.AmountA)
			if err != nil {
				return fmt.Errorf("pool %d amountA: %w", i, err)
			}
			amountB, err := params.ParseAmount(p.AmountB)
			if err != nil {
				return fmt.Errorf("pool %d amountB: %w", i, err)
			}
			if !tokens[a].Approve(m, routerAddr, amountA) || !tokens[b].Approve(m, routerAddr, amountB) {
				return fmt.Errorf("pool %d: router approval refused", i)
			}
			if err := r.AddLiquidity(m, a, b, amountA, amountB); err != nil {
				return fmt.Errorf("pool %d: %w", i, err)
			}
		}

		if err := gw.Initialize(env, cfg.Admin, cfg.Treasury, cfg.FeeBps); err != nil {
			return err
		}
		if err := gw.SetSwapMechanism(env, routerAddr); err != nil {
			return err
		}
		for _, def := range g.Tokens {
			if def.Supported {
				if err := gw.SetAssetSupport(env, common.HexToAddress(def.Address), true); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "genesis")
	}

	logger.Infow("genesis_applied",
		"gateway", cfg.Address.Hex(), "router", routerAddr.Hex(),
		"tokens", len(g.Tokens), "pools", len(g.Pools), "root", c.Root().Hex())
	return gw, nil
}

// totalSupply is used by the startup banner.
func totalSupply(ctx context.Context, c *chain.Chain, addr common.Address) *big.Int {
	out := new(big.Int)
	contract, err := c.Contract(addr)
	if err != nil {
		return out
	}
	tok, ok := contract.(*token.Token)
	if !ok {
		return out
	}
	c.View(ctx, common.Address{}, func(env *chain.Env) error {
		out = tok.TotalSupply(env)
		return nil
	})
	return out
}
