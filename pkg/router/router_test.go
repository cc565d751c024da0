package router

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hypergate/pkg/chain"
	"github.com/uhyunpark/hypergate/pkg/storage"
	"github.com/uhyunpark/hypergate/pkg/token"
	"github.com/uhyunpark/hypergate/pkg/util"
)

var (
	minter     = common.HexToAddress("0xAA00000000000000000000000000000000000001")
	trader     = common.HexToAddress("0xAA00000000000000000000000000000000000002")
	recipient  = common.HexToAddress("0xBB00000000000000000000000000000000000001")
	usdAddr    = common.HexToAddress("0x7000000000000000000000000000000000000001")
	ethAddr    = common.HexToAddress("0x7000000000000000000000000000000000000002")
	btcAddr    = common.HexToAddress("0x7000000000000000000000000000000000000003")
	routerAddr = common.HexToAddress("0x5200000000000000000000000000000000000001")
)

const now = 1_700_000_000

type fixture struct {
	chain  *chain.Chain
	router *Router
	tokens map[common.Address]*token.Token
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend, err := storage.NewPebbleMemStore()
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	c, err := chain.New(backend, chain.Config{Clock: util.NewManualClock(time.Unix(now, 0))})
	if err != nil {
		t.Fatalf("failed to create chain: %v", err)
	}
	f := &fixture{chain: c, router: New(routerAddr, DefaultFeeBps), tokens: map[common.Address]*token.Token{}}
	if err := c.Deploy(routerAddr, f.router); err != nil {
		t.Fatalf("Deploy router: %v", err)
	}

	for addr, sym := range map[common.Address]string{usdAddr: "USD", ethAddr: "ETH", btcAddr: "BTC"} {
		tok := token.New(addr, sym, sym, 18, minter)
		if err := c.Deploy(addr, tok); err != nil {
			t.Fatalf("Deploy %s: %v", sym, err)
		}
		f.tokens[addr] = tok
	}

	err = f.exec(t, minter, func(env *chain.Env) error {
		for _, tok := range f.tokens {
			if err := tok.Mint(env, minter, big.NewInt(1_000_000)); err != nil {
				return err
			}
			if err := tok.Mint(env, trader, big.NewInt(10_000)); err != nil {
				return err
			}
			tok.Approve(env, routerAddr, big.NewInt(1_000_000))
		}
		if err := f.router.AddLiquidity(env, usdAddr, ethAddr, big.NewInt(10_000), big.NewInt(10_000)); err != nil {
			return err
		}
		return f.router.AddLiquidity(env, ethAddr, btcAddr, big.NewInt(10_000), big.NewInt(10_000))
	})
	if err != nil {
		t.Fatalf("failed to seed pools: %v", err)
	}
	return f
}

func (f *fixture) exec(t *testing.T, sender common.Address, fn func(env *chain.Env) error) error {
	t.Helper()
	_, err := f.chain.Execute(context.Background(), sender, fn)
	return err
}

func (f *fixture) balance(t *testing.T, tok, holder common.Address) int64 {
	t.Helper()
	var out int64
	f.chain.View(context.Background(), holder, func(env *chain.Env) error {
		out = f.tokens[tok].BalanceOf(env, holder).Int64()
		return nil
	})
	return out
}

func TestGetAmountOut(t *testing.T) {
	tests := []struct {
		name      string
		in, rIn   int64
		rOut      int64
		want      int64
		wantError error
	}{
		{"balanced pool", 1_000, 10_000, 10_000, 906, nil},
		{"small trade", 10, 10_000, 10_000, 9, nil},
		{"dust rounds to zero", 1, 10_000, 10_000, 0, ErrInsufficientLiquidity},
		{"empty pool", 1_000, 0, 10_000, 0, ErrInsufficientLiquidity},
		{"zero input", 0, 10_000, 10_000, 0, ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GetAmountOut(big.NewInt(tt.in), big.NewInt(tt.rIn), big.NewInt(tt.rOut), DefaultFeeBps)
			if tt.wantError != nil {
				if !errors.Is(err, tt.wantError) {
					t.Errorf("err = %v, want %v", err, tt.wantError)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Int64() != tt.want {
				t.Errorf("out = %d, want %d", got.Int64(), tt.want)
			}
		})
	}
}

func TestQuoteMultiHop(t *testing.T) {
	f := newFixture(t)
	f.chain.View(context.Background(), trader, func(env *chain.Env) error {
		amounts, err := f.router.Quote(env, []common.Address{usdAddr, ethAddr, btcAddr}, big.NewInt(1_000))
		if err != nil {
			t.Fatalf("Quote: %v", err)
		}
		if len(amounts) != 3 {
			t.Fatalf("len(amounts) = %d, want 3", len(amounts))
		}
		// 1000 -> 906 -> 828
		if amounts[1].Int64() != 906 || amounts[2].Int64() != 828 {
			t.Errorf("amounts = %v, want [1000 906 828]", amounts)
		}
		return nil
	})
}

func TestQuoteRejectsBadPath(t *testing.T) {
	f := newFixture(t)
	f.chain.View(context.Background(), trader, func(env *chain.Env) error {
		if _, err := f.router.Quote(env, []common.Address{usdAddr}, big.NewInt(1)); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("short path err = %v, want ErrInvalidPath", err)
		}
		if _, err := f.router.Quote(env, []common.Address{usdAddr, usdAddr}, big.NewInt(1_000)); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("self hop err = %v, want ErrInvalidPath", err)
		}
		if _, err := f.router.Quote(env, []common.Address{usdAddr, btcAddr}, big.NewInt(1_000)); !errors.Is(err, ErrInsufficientLiquidity) {
			t.Errorf("missing pool err = %v, want ErrInsufficientLiquidity", err)
		}
		return nil
	})
}

func TestSwap(t *testing.T) {
	f := newFixture(t)
	err := f.exec(t, trader, func(env *chain.Env) error {
		f.tokens[usdAddr].Approve(env, routerAddr, big.NewInt(1_000))
		amounts, err := f.router.Swap(env, []common.Address{usdAddr, ethAddr}, big.NewInt(1_000), big.NewInt(900), recipient, now+300)
		if err != nil {
			return err
		}
		if got := amounts[len(amounts)-1].Int64(); got != 906 {
			t.Errorf("amountOut = %d, want 906", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}

	if got := f.balance(t, usdAddr, trader); got != 9_000 {
		t.Errorf("trader USD = %d, want 9000", got)
	}
	if got := f.balance(t, ethAddr, recipient); got != 906 {
		t.Errorf("recipient ETH = %d, want 906", got)
	}
	f.chain.View(context.Background(), trader, func(env *chain.Env) error {
		rUSD, rETH := f.router.Reserves(env, usdAddr, ethAddr)
		if rUSD.Int64() != 11_000 || rETH.Int64() != 9_094 {
			t.Errorf("reserves = %s/%s, want 11000/9094", rUSD, rETH)
		}
		return nil
	})
}

func TestSwapFailures(t *testing.T) {
	tests := []struct {
		name     string
		amountIn int64
		minOut   int64
		deadline uint64
		want     error
	}{
		{"deadline passed", 1_000, 1, now - 1, ErrExpired},
		{"below min out", 1_000, 907, now + 300, ErrInsufficientOutput},
		{"insufficient balance", 20_000, 1, now + 300, ErrTransferFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.exec(t, trader, func(env *chain.Env) error {
				f.tokens[usdAddr].Approve(env, routerAddr, big.NewInt(tt.amountIn))
				return nil
			})

			var swapErr error
			f.exec(t, trader, func(env *chain.Env) error {
				_, swapErr = f.router.Swap(env, []common.Address{usdAddr, ethAddr}, big.NewInt(tt.amountIn), big.NewInt(tt.minOut), recipient, tt.deadline)
				return nil
			})
			if !errors.Is(swapErr, tt.want) {
				t.Errorf("err = %v, want %v", swapErr, tt.want)
			}
			if got := f.balance(t, usdAddr, trader); got != 10_000 {
				t.Errorf("trader USD = %d, want 10000", got)
			}
		})
	}
}
